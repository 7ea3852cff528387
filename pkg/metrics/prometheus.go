// Package metrics provides Prometheus metrics for the matchwire event pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the matchwire services.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion Metrics - What enters the pipeline
	eventsAccepted prometheus.Counter
	eventsRejected *prometheus.CounterVec
	publishErrors  prometheus.Counter
	publishLatency prometheus.Histogram

	// Consumer Metrics - Batch polling and indexing
	batchesPolled   prometheus.Counter
	batchSize       prometheus.Histogram
	recordsIndexed  prometheus.Counter
	duplicateWrites prometheus.Counter
	indexLatency    prometheus.Histogram
	commitLatency   prometheus.Histogram
	deadLetters     *prometheus.CounterVec
	storeRetries    prometheus.Counter
	handlerErrors   prometheus.Counter

	// Query Metrics - Read path performance
	queriesServed *prometheus.CounterVec
	queryLatency  prometheus.Histogram
	rowsReturned  prometheus.Histogram

	// Operational Health Metrics
	workerCount       prometheus.Gauge
	workerHalts       prometheus.Counter
	consumerLag       *prometheus.GaugeVec
	storeRecordsTotal prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System Metrics - Runtime health
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "matchwire",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Ingestion Metrics - Everything that enters through POST /events
	m.eventsAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_accepted_total",
		Help:      "Total number of events validated and handed to the stream",
	})

	m.eventsRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_rejected_total",
			Help:      "Total number of events rejected at ingestion, labelled by the offending field",
		},
		[]string{"field"},
	)

	m.publishErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "publish_errors_total",
		Help:      "Total number of failed publishes to the event stream",
	})

	m.publishLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "publish_latency_milliseconds",
		Help:      "Histogram of stream publish latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Consumer Metrics - Batch polling and indexing throughput
	m.batchesPolled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_polled_total",
		Help:      "Total number of record batches polled from the stream",
	})

	m.batchSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_size_records",
		Help:      "Histogram of records per polled batch",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
	})

	m.recordsIndexed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_indexed_total",
		Help:      "Total number of records written to the match event store",
	})

	m.duplicateWrites = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duplicate_writes_total",
		Help:      "Total number of upserts that replaced an existing row (redelivery indicator)",
	})

	m.indexLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "index_latency_milliseconds",
		Help:      "Histogram of per-record indexing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.commitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commit_latency_milliseconds",
		Help:      "Histogram of offset commit latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.deadLetters = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "dead_letters_total",
			Help:      "Total number of records parked in the dead letter sink, labelled by reason",
		},
		[]string{"reason"},
	)

	m.storeRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_retries_total",
		Help:      "Total number of retried store writes",
	})

	m.handlerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "handler_errors_total",
		Help:      "Total number of consumer handler errors",
	})

	// Query Metrics - Read path performance
	m.queriesServed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "queries_served_total",
			Help:      "Total number of timeline queries served, labelled by scope",
		},
		[]string{"scope"},
	)

	m.queryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "query_latency_milliseconds",
		Help:      "Histogram of timeline query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.rowsReturned = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_returned",
		Help:      "Histogram of rows returned per timeline query",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	// Operational Health Metrics - System stability indicators
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Current number of indexer workers (processing capacity)",
	})

	m.workerHalts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_halts_total",
		Help:      "Total number of indexer workers halted by unrecoverable store failures",
	})

	m.consumerLag = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "consumer_lag_records",
			Help:      "Uncommitted records behind the head of each partition",
		},
		[]string{"partition"},
	)

	m.storeRecordsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_records_total",
		Help:      "Total number of match event rows in the store",
	})

	// HTTP Performance Metrics - User experience indicators
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds (user experience)",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// System Metrics - Runtime health indicators
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current heap allocation in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Histogram of garbage collector pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Enhanced Error Metrics - Detailed error tracking
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)
}

// Ingestion Metrics Functions.

// RecordEventAccepted increments the accepted events counter.
func RecordEventAccepted() {
	globalManager.eventsAccepted.Inc()
}

// RecordEventRejected increments the rejected events counter for a field.
func RecordEventRejected(field string) {
	globalManager.eventsRejected.WithLabelValues(field).Inc()
}

// RecordPublishError increments the stream publish error counter.
func RecordPublishError() {
	globalManager.publishErrors.Inc()
}

// RecordPublishLatency records stream publish latency in milliseconds.
func RecordPublishLatency(latencyMs float64) {
	globalManager.publishLatency.Observe(latencyMs)
}

// Consumer Metrics Functions.

// RecordBatchPolled records one polled batch and its record count.
func RecordBatchPolled(records int) {
	globalManager.batchesPolled.Inc()
	globalManager.batchSize.Observe(float64(records))
}

// RecordRecordIndexed increments the indexed records counter.
func RecordRecordIndexed() {
	globalManager.recordsIndexed.Inc()
}

// RecordDuplicateWrite increments the duplicate upsert counter.
func RecordDuplicateWrite() {
	globalManager.duplicateWrites.Inc()
}

// RecordIndexLatency records per-record indexing latency in milliseconds.
func RecordIndexLatency(latencyMs float64) {
	globalManager.indexLatency.Observe(latencyMs)
}

// RecordCommitLatency records offset commit latency in milliseconds.
func RecordCommitLatency(latencyMs float64) {
	globalManager.commitLatency.Observe(latencyMs)
}

// RecordDeadLetter increments the dead letter counter for a reason.
func RecordDeadLetter(reason string) {
	globalManager.deadLetters.WithLabelValues(reason).Inc()
}

// RecordStoreRetry increments the retried store write counter.
func RecordStoreRetry() {
	globalManager.storeRetries.Inc()
}

// RecordHandlerError increments the consumer handler error counter.
func RecordHandlerError() {
	globalManager.handlerErrors.Inc()
}

// Query Metrics Functions.

// RecordQuery increments the served queries counter for a scope
// ("match" or "type").
func RecordQuery(scope string) {
	globalManager.queriesServed.WithLabelValues(scope).Inc()
}

// RecordQueryLatency records timeline query latency in milliseconds.
func RecordQueryLatency(latencyMs float64) {
	globalManager.queryLatency.Observe(latencyMs)
}

// RecordRowsReturned records the number of rows a query returned.
func RecordRowsReturned(rows int) {
	globalManager.rowsReturned.Observe(float64(rows))
}

// Operational Health Metrics Functions.

// UpdateWorkerCount sets the current indexer worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerHalt counts a worker stopping on an unrecoverable failure.
func RecordWorkerHalt() {
	globalManager.workerHalts.Inc()
}

// UpdateConsumerLag sets the uncommitted record lag for a partition.
func UpdateConsumerLag(partition string, lag float64) {
	globalManager.consumerLag.WithLabelValues(partition).Set(lag)
}

// UpdateStoreRecordsTotal sets the total number of rows in the store.
func UpdateStoreRecordsTotal(count int) {
	globalManager.storeRecordsTotal.Set(float64(count))
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the current heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records a GC pause duration in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// Enhanced Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
