// Package metrics provides Prometheus metrics for the session metrics pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Fetch stage
	pagesFetched     prometheus.Counter
	rowsFetched      prometheus.Counter
	duplicateEvents  prometheus.Counter
	ignoredEvents    prometheus.Counter
	retries          *prometheus.CounterVec
	queryErrors      *prometheus.CounterVec
	recordsComputed  prometheus.Gauge
	recordsUpserted  prometheus.Counter
	stageDuration    *prometheus.HistogramVec
	runs             *prometheus.CounterVec
	lastSuccessUnix  prometheus.Gauge
	lastRunDurationS prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "sessionmetrics",
		subsystem: "pipeline",
		// Stage durations are dominated by network round trips and backoff.
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.pagesFetched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pages_fetched_total",
		Help:      "Total number of source pages fetched",
	})

	m.rowsFetched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_fetched_total",
		Help:      "Total number of raw session rows fetched",
	})

	m.duplicateEvents = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duplicate_events_total",
		Help:      "Raw rows dropped because their session id was already fetched in the same run",
	})

	m.ignoredEvents = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ignored_events_total",
		Help:      "Raw rows whose status contributes to no counter",
	})

	m.retries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "retries_total",
		Help:      "Retries after transient store failures by operation",
	}, []string{"operation"})

	m.queryErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "query_errors_total",
		Help:      "Store operations that failed after applicable retries",
	}, []string{"operation"})

	m.recordsComputed = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_computed",
		Help:      "Metrics records produced by the last run",
	})

	m.recordsUpserted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_upserted_total",
		Help:      "Metrics records written to the destination table",
	})

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})

	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_total",
		Help:      "Pipeline runs by outcome",
	}, []string{"status"})

	m.lastSuccessUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run",
	})

	m.lastRunDurationS = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_run_duration_seconds",
		Help:      "Wall time of the last run",
	})
}

// RecordPageFetched counts one fetched page and its rows.
func RecordPageFetched(rows int) {
	globalManager.pagesFetched.Inc()
	globalManager.rowsFetched.Add(float64(rows))
}

// RecordDuplicateEvent counts a dropped duplicate row.
func RecordDuplicateEvent() {
	globalManager.duplicateEvents.Inc()
}

// RecordIgnoredEvents counts rows with a status that feeds no counter.
func RecordIgnoredEvents(n int) {
	globalManager.ignoredEvents.Add(float64(n))
}

// RecordRetry counts a retry of the given operation.
func RecordRetry(operation string) {
	globalManager.retries.WithLabelValues(operation).Inc()
}

// RecordQueryError counts a failed store operation.
func RecordQueryError(operation string) {
	globalManager.queryErrors.WithLabelValues(operation).Inc()
}

// UpdateRecordsComputed sets the record count of the current run.
func UpdateRecordsComputed(n int) {
	globalManager.recordsComputed.Set(float64(n))
}

// RecordRecordsUpserted counts written records.
func RecordRecordsUpserted(n int) {
	globalManager.recordsUpserted.Add(float64(n))
}

// ObserveStageDuration records how long a stage took.
func ObserveStageDuration(stage string, d time.Duration) {
	globalManager.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun counts a finished run. Successful runs also update the
// last-success timestamp.
func RecordRun(success bool, finishedAt time.Time, d time.Duration) {
	globalManager.lastRunDurationS.Set(d.Seconds())
	if success {
		globalManager.runs.WithLabelValues("success").Inc()
		globalManager.lastSuccessUnix.Set(float64(finishedAt.Unix()))
		return
	}
	globalManager.runs.WithLabelValues("failure").Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
