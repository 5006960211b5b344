// Command seed-sessions fills the raw sessions table with synthetic rows.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/sessionmetrics/internal/app"
	"github.com/okian/sessionmetrics/internal/config"
	"github.com/okian/sessionmetrics/internal/seed"
	"github.com/okian/sessionmetrics/pkg/logger"
)

const defaultSeedTimeout = 10 * time.Minute

func main() {
	var (
		configPath = flag.String("config", os.Getenv(config.EnvConfigPath), "YAML config file")
		sessions   = flag.Int("sessions", seed.DefaultSessions, "Number of sessions to generate")
		employees  = flag.Int("employees", seed.DefaultEmployees, "Number of distinct employees")
		batch      = flag.Int("batch", seed.DefaultBatchSize, "Rows per upsert call")
		seedValue  = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		outputFile = flag.String("output", "", "Optional JSON dump of the generated rows")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	seedCfg := seed.Config{
		Employees:  *employees,
		Sessions:   *sessions,
		BatchSize:  *batch,
		Seed:       *seedValue,
		Now:        time.Now().UTC(),
		OutputFile: *outputFile,
	}
	if err := run(*configPath, seedCfg, *verbose); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(configPath string, seedCfg seed.Config, verbose bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSeedTimeout)
	defer cancel()

	cfg, err := config.LoadFile(ctx, configPath)
	if err != nil {
		return fmt.Errorf("Configuration error: %w", err) //nolint:stylecheck // user-facing message
	}
	if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}

	log := logger.Named("seed")

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("Database error: %w", err) //nolint:stylecheck // user-facing message
	}
	defer closeStore(ctx, store, log)

	seedCfg.Collection = cfg.SourceTable
	if _, err := seed.Run(ctx, store, seedCfg, log); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	return nil
}

func closeStore(ctx context.Context, store io.Closer, log logger.Logger) {
	if err := store.Close(); err != nil {
		log.Warn(ctx, "closing store", logger.Error(err))
	}
}
