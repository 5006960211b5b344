// Package app wires the fetch, aggregate and upsert stages into one run.
package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/sessionmetrics/internal/adapters/repository"
	"github.com/okian/sessionmetrics/internal/domain/aggregate"
	"github.com/okian/sessionmetrics/internal/domain/model"
	"github.com/okian/sessionmetrics/pkg/logger"
	"github.com/okian/sessionmetrics/pkg/metrics"
	"github.com/okian/sessionmetrics/pkg/retry"
)

// Default pipeline settings.
const (
	defaultSourceTable  = "sessions_raw"
	defaultMetricsTable = "session_metrics"
	defaultConflictKey  = "employee_id"
	defaultPageSize     = 1000
	defaultMaxAttempts  = 3
	defaultBaseDelay    = time.Second
)

// Result describes one run.
type Result struct {
	RunID      string
	Fetched    int
	Pages      int
	Duplicates int
	Ignored    int
	Records    []model.MetricsRecord
	ComputedAt time.Time

	FetchDuration     time.Duration
	AggregateDuration time.Duration
	UpsertDuration    time.Duration
}

// Pipeline recomputes session metrics from the full source table.
type Pipeline struct {
	store        repository.Store
	sourceTable  string
	metricsTable string
	conflictKey  string
	pageSize     int
	dedupe       bool
	retry        retrySettings
	now          func() time.Time
	newRunID     func() string
	log          logger.Logger
}

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithTables sets the source and destination collections and the conflict
// key of the destination.
func WithTables(source, destination, conflictKey string) Option {
	return func(p *Pipeline) {
		if source != "" {
			p.sourceTable = source
		}
		if destination != "" {
			p.metricsTable = destination
		}
		if conflictKey != "" {
			p.conflictKey = conflictKey
		}
	}
}

// WithPageSize sets the number of rows per page.
func WithPageSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithRetry sets the attempt budget and first backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) {
		if maxAttempts > 0 {
			p.retry.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			p.retry.baseDelay = baseDelay
		}
	}
}

// WithSleeper replaces the backoff sleeper.
func WithSleeper(s retry.Sleeper) Option {
	return func(p *Pipeline) {
		p.retry.sleeper = s
	}
}

// WithClock sets the source of the run timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithDedupe toggles dropping rows whose session id was already fetched.
func WithDedupe(enabled bool) Option {
	return func(p *Pipeline) {
		p.dedupe = enabled
	}
}

// New constructs a Pipeline over store with default configuration.
func New(store repository.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:        store,
		sourceTable:  defaultSourceTable,
		metricsTable: defaultMetricsTable,
		conflictKey:  defaultConflictKey,
		pageSize:     defaultPageSize,
		dedupe:       true,
		retry: retrySettings{
			maxAttempts: defaultMaxAttempts,
			baseDelay:   defaultBaseDelay,
		},
		now:      time.Now,
		newRunID: uuid.NewString,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one pass and returns the number of records written.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	res, err := p.RunDetailed(ctx)
	if err != nil {
		return 0, err
	}
	return len(res.Records), nil
}

// RunDetailed executes fetch, aggregate and upsert in order. Errors from any
// stage are returned unchanged; a failed fetch writes nothing.
func (p *Pipeline) RunDetailed(ctx context.Context) (Result, error) {
	started := time.Now()
	res := Result{RunID: p.newRunID()}
	log := p.log.With(logger.String("run_id", res.RunID))

	err := p.run(ctx, log, &res)
	total := time.Since(started)
	metrics.RecordRun(err == nil, time.Now(), total)
	if err != nil {
		log.Error(ctx, "pipeline run failed", logger.Error(err), logger.Duration("elapsed", total))
		return res, err
	}

	log.Info(ctx, "pipeline run finished",
		logger.Int("fetched", res.Fetched),
		logger.Int("duplicates", res.Duplicates),
		logger.Int("ignored", res.Ignored),
		logger.Int("records", len(res.Records)),
		logger.Duration("elapsed", total),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, log logger.Logger, res *Result) error {
	fetcher := NewFetcher(p.store, p.sourceTable, p.pageSize, p.retry.policy("select", log), log, p.dedupe)
	upserter := NewUpserter(p.store, p.metricsTable, p.conflictKey, p.retry.policy("upsert", log), log)

	stage := time.Now()
	fetched, err := fetcher.FetchAll(ctx)
	res.FetchDuration = time.Since(stage)
	metrics.ObserveStageDuration("fetch", res.FetchDuration)
	res.Fetched = len(fetched.Events)
	res.Pages = fetched.Pages
	res.Duplicates = fetched.Duplicates
	if err != nil {
		return err
	}
	log.Info(ctx, "fetched sessions",
		logger.String("collection", p.sourceTable),
		logger.Int("rows", res.Fetched),
		logger.Int("pages", res.Pages),
	)

	now := p.now().UTC().Truncate(time.Microsecond)
	res.ComputedAt = now

	stage = time.Now()
	records, stats, err := aggregate.AggregateWithStats(fetched.Events, now)
	res.AggregateDuration = time.Since(stage)
	metrics.ObserveStageDuration("aggregate", res.AggregateDuration)
	if err != nil {
		return err
	}
	res.Records = records
	res.Ignored = stats.Ignored
	metrics.RecordIgnoredEvents(stats.Ignored)
	metrics.UpdateRecordsComputed(len(records))
	if stats.Ignored > 0 {
		log.Debug(ctx, "ignored sessions with non-counted status", logger.Int("count", stats.Ignored))
	}

	stage = time.Now()
	err = upserter.Upsert(ctx, records)
	res.UpsertDuration = time.Since(stage)
	metrics.ObserveStageDuration("upsert", res.UpsertDuration)
	return err
}
