package app

import (
	"context"
	"fmt"

	"github.com/okian/sessionmetrics/internal/adapters/repository"
	"github.com/okian/sessionmetrics/internal/config"
)

// OpenStore creates the store selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	var (
		store repository.Store
		err   error
	)
	switch cfg.StoreDriver {
	case config.DriverPostgREST:
		var s *repository.PostgRESTStore
		s, err = repository.NewPostgRESTStore(cfg.SupabaseURL, cfg.SupabaseAnonKey,
			repository.WithRequestTimeout(cfg.RequestTimeout()),
			repository.WithSchema(cfg.SupabaseSchema))
		store = s
	case config.DriverPostgres:
		var s *repository.PostgresStore
		s, err = repository.NewPostgresStore(ctx, cfg.PostgresDSN, sqlOptions(cfg)...)
		store = s
	case config.DriverSQLite:
		var s *repository.SQLiteStore
		s, err = repository.NewSQLiteStore(ctx, cfg.SQLitePath, sqlOptions(cfg)...)
		store = s
	default:
		return nil, fmt.Errorf("%w: unknown store_driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

func sqlOptions(cfg *config.Config) []repository.SQLOption {
	opts := []repository.SQLOption{
		repository.WithQueryTimeout(cfg.RequestTimeout()),
		repository.WithMaxOpenConns(cfg.MaxOpenConns),
	}
	if cfg.StoreDriver == config.DriverSQLite && !cfg.SQLiteMigrate {
		opts = append(opts, repository.WithoutMigrations())
	}
	return opts
}

// OptionsFromConfig maps configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) []Option {
	return []Option{
		WithTables(cfg.SourceTable, cfg.MetricsTable, cfg.ConflictKey),
		WithPageSize(cfg.PageSize),
		WithRetry(cfg.MaxAttempts, cfg.BaseDelay()),
	}
}
