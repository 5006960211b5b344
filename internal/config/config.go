// Package config defines process configuration and its loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers file and environment on top of the defaults.
// - Validation failures wrap ErrInvalidConfig, loading failures ErrLoadConfig.
package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverPostgREST = "postgrest"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// StoreDriver selects the backing store: postgrest, postgres or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// SupabaseURL and SupabaseAnonKey address the hosted PostgREST API.
	SupabaseURL     string `koanf:"supabase_url"`
	SupabaseAnonKey string `koanf:"supabase_anon_key"`

	// SupabaseSchema selects a non-public schema. Empty means public.
	SupabaseSchema string `koanf:"supabase_schema"`

	// PostgresDSN is used by the postgres driver.
	PostgresDSN string `koanf:"postgres_dsn"`

	// SQLitePath is used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// SQLiteMigrate applies the embedded schema when the sqlite store opens.
	SQLiteMigrate bool `koanf:"sqlite_migrate"`

	// MaxOpenConns caps the postgres and sqlite connection pools.
	MaxOpenConns int `koanf:"max_open_conns"`

	SourceTable  string `koanf:"source_table"`
	MetricsTable string `koanf:"metrics_table"`
	ConflictKey  string `koanf:"conflict_key"`

	// PageSize is the number of rows requested per page.
	PageSize int `koanf:"page_size"`

	// MaxAttempts and BaseDelayMS shape the retry policy around store calls.
	MaxAttempts int `koanf:"max_attempts"`
	BaseDelayMS int `koanf:"base_delay_ms"`

	// RequestTimeoutMS bounds a single store call. Zero disables the bound.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// PushGatewayURL enables pushing run metrics when set.
	PushGatewayURL string `koanf:"push_gateway_url"`
	PushJob        string `koanf:"push_job"`
}

// New creates a Config with defaults. Context is accepted first to follow the
// project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		StoreDriver:      DriverPostgREST,
		SQLitePath:       "session_metrics.db",
		SQLiteMigrate:    true,
		MaxOpenConns:     4,
		SourceTable:      "sessions_raw",
		MetricsTable:     "session_metrics",
		ConflictKey:      "employee_id",
		PageSize:         1000,
		MaxAttempts:      3,
		BaseDelayMS:      1000,
		RequestTimeoutMS: 30_000,
		PushJob:          "session_metrics",
	}
}

// BaseDelay returns the first retry delay.
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

// RequestTimeout returns the per-call timeout, zero when disabled.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}

	switch c.StoreDriver {
	case DriverPostgREST:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf("%w: SUPABASE_URL and SUPABASE_ANON_KEY must be set", ErrInvalidConfig)
		}
		u, err := url.Parse(c.SupabaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: supabase_url %q is not an http(s) URL", ErrInvalidConfig, c.SupabaseURL)
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn must be set for the postgres driver", ErrInvalidConfig)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path must be set for the sqlite driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	if c.SourceTable == "" || c.MetricsTable == "" || c.ConflictKey == "" {
		return fmt.Errorf("%w: source_table, metrics_table and conflict_key must not be empty", ErrInvalidConfig)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("%w: page_size must be positive, got %d", ErrInvalidConfig, c.PageSize)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max_attempts must be positive, got %d", ErrInvalidConfig, c.MaxAttempts)
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("%w: max_open_conns must be positive, got %d", ErrInvalidConfig, c.MaxOpenConns)
	}
	if c.BaseDelayMS < 0 || c.RequestTimeoutMS < 0 {
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	}
	return nil
}
