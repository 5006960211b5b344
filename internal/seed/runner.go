package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/sessionmetrics/internal/adapters/repository"
	"github.com/okian/sessionmetrics/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run generates rows and writes them to store in batches keyed on
// session_id, so re-running with the same seed rewrites the same rows.
func Run(ctx context.Context, store repository.Store, config Config, log logger.Logger) (Stats, error) {
	cfg := config.withDefaults()
	started := time.Now()
	stats := Stats{ByStatus: map[string]int{}}

	log.Info(ctx, "generating sessions",
		logger.Int("sessions", cfg.Sessions),
		logger.Int("employees", cfg.Employees),
		logger.Int64("seed", cfg.Seed),
	)
	events := Generate(cfg)
	stats.Generated = len(events)

	rows := make([]json.RawMessage, 0, len(events))
	for _, ev := range events {
		b, err := json.Marshal(ev)
		if err != nil {
			return stats, fmt.Errorf("encode session %s: %w", ev.SessionID, err)
		}
		rows = append(rows, b)
		stats.ByStatus[string(ev.Status)]++
	}

	for start := 0; start < len(rows); start += cfg.BatchSize {
		end := min(start+cfg.BatchSize, len(rows))
		if err := store.Upsert(ctx, cfg.Collection, rows[start:end], DefaultKey); err != nil {
			return stats, fmt.Errorf("write batch %d: %w", stats.Batches+1, err)
		}
		stats.Batches++
		stats.Written += end - start
		log.Debug(ctx, "wrote batch", logger.Int("batch", stats.Batches), logger.Int("rows", end-start))
	}

	if cfg.OutputFile != "" {
		if err := saveToFile(cfg.OutputFile, rows); err != nil {
			log.Warn(ctx, "failed to save sessions to file", logger.Error(err))
		}
	}

	stats.Duration = time.Since(started)
	log.Info(ctx, "seed finished",
		logger.Int("written", stats.Written),
		logger.Int("batches", stats.Batches),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func saveToFile(path string, rows []json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(path), directoryPermission); err != nil {
		return err
	}
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, filePermission)
}
