// Command session-metrics recomputes per-employee session metrics from
// sessions_raw and upserts them into session_metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/okian/sessionmetrics/internal/app"
	"github.com/okian/sessionmetrics/internal/config"
	"github.com/okian/sessionmetrics/internal/domain/model"
	"github.com/okian/sessionmetrics/internal/domain/timestamp"
	"github.com/okian/sessionmetrics/pkg/logger"
	"github.com/okian/sessionmetrics/pkg/metrics"
)

const pushTimeout = 10 * time.Second

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	debug        bool
	configPath   string
	printRecords bool
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, describe(err))
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "session-metrics",
		Short: "Compute and upsert session metrics",
		Long: `Reads every row of the raw sessions table, aggregates completed and
cancelled sessions per employee and upserts one row per employee into the
metrics table.

Configuration comes from SUPABASE_URL and SUPABASE_ANON_KEY, SESSION_METRICS_*
variables and an optional YAML file (--config or SESSION_METRICS_CONFIG).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "YAML config file (overrides SESSION_METRICS_CONFIG)")
	cmd.Flags().BoolVar(&opts.printRecords, "print-records", false, "print the computed records as a table")
	return cmd
}

func execute(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	path := opts.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}
	cfg, err := config.LoadFile(ctx, path)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithWriter(stderr), logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	level := cfg.LogLevel
	if opts.debug {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	log := logger.Named("session-metrics")

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "closing store", logger.Error(err))
		}
	}()

	log.Debug(ctx, "starting run",
		logger.String("store_driver", cfg.StoreDriver),
		logger.String("source_table", cfg.SourceTable),
		logger.String("metrics_table", cfg.MetricsTable),
		logger.Int("page_size", cfg.PageSize),
	)

	pipeline := app.New(store, append(app.OptionsFromConfig(cfg), app.WithLogger(logger.Named("pipeline")))...)
	res, runErr := pipeline.RunDetailed(ctx)

	if cfg.PushGatewayURL != "" {
		pushMetrics(ctx, cfg, log)
	}
	if runErr != nil {
		return runErr
	}

	_, _ = fmt.Fprintf(stdout, "Successfully processed metrics for %d employee(s)\n", len(res.Records))
	if opts.printRecords {
		printRecords(stdout, res.Records)
	}
	return nil
}

// pushMetrics exports the run's metrics. Failures are logged only.
func pushMetrics(ctx context.Context, cfg *config.Config, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	instance, _ := os.Hostname()
	if err := metrics.Push(ctx, cfg.PushGatewayURL, cfg.PushJob, instance); err != nil {
		log.Warn(ctx, "pushing metrics failed", logger.String("url", cfg.PushGatewayURL), logger.Error(err))
	}
}

func printRecords(w io.Writer, records []model.MetricsRecord) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Employee", "Completed", "Cancelled", "Days Since Last Completed", "Computed At"})
	for _, r := range records {
		days := "-"
		if r.DaysSinceLastCompleted != nil {
			days = strconv.Itoa(*r.DaysSinceLastCompleted)
		}
		tw.AppendRow(table.Row{r.EmployeeID, r.CompletedCount, r.CancelledCount, days, r.ComputedAt})
	}
	tw.Render()
}

// describe maps an error to the message printed on stderr.
func describe(err error) string {
	switch {
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, config.ErrLoadConfig):
		return "Configuration error: " + err.Error()
	case errors.Is(err, app.ErrQuery):
		return "Database error: " + err.Error()
	case errors.Is(err, timestamp.ErrNaive), errors.Is(err, timestamp.ErrInvalid):
		return "Data error: " + err.Error()
	default:
		return "Unexpected error: " + err.Error()
	}
}
