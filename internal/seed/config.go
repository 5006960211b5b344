// Package seed generates synthetic sessions_raw rows for local development.
package seed

import "time"

// Default generator settings.
const (
	DefaultEmployees  = 50
	DefaultSessions   = 5000
	DefaultBatchSize  = 500
	DefaultCollection = "sessions_raw"
	DefaultKey        = "session_id"
	historyDays       = 90
	futureDays        = 14
	minDurationMin    = 30
	maxDurationMin    = 120
)

// Config holds configuration for a seed run.
type Config struct {
	Employees  int       // distinct employee ids
	Sessions   int       // rows to generate
	BatchSize  int       // rows per upsert call
	Seed       int64     // PRNG seed; equal seeds give equal rows
	Now        time.Time // reference time for start/end values
	Collection string    // destination collection
	OutputFile string    // optional JSON dump of the generated rows
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Employees <= 0 {
		out.Employees = DefaultEmployees
	}
	if out.Sessions < 0 {
		out.Sessions = 0
	}
	if out.BatchSize <= 0 {
		out.BatchSize = DefaultBatchSize
	}
	if out.Now.IsZero() {
		out.Now = time.Now().UTC()
	}
	if out.Collection == "" {
		out.Collection = DefaultCollection
	}
	return out
}

// Stats holds seed statistics.
type Stats struct {
	Generated int
	Written   int
	Batches   int
	ByStatus  map[string]int
	Duration  time.Duration
}
