// Package metrics provides Prometheus metrics for the betslip engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by callers.
const (
	ModeCold = "cold"
	ModeLive = "live"
)

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Market data cache
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheCoalesced *prometheus.CounterVec
	cacheKeys      prometheus.Gauge
	staleDiscards  prometheus.Counter
	staleServed    prometheus.Counter
	refreshTicks   prometheus.Counter

	// Provider fetches
	fetchesStarted *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	fetchErrors    *prometheus.CounterVec
	fetchTimeouts  prometheus.Counter
	decodeFailures prometheus.Counter
	hintMismatches prometheus.Counter

	// Snapshot mirror
	snapshotOps *prometheus.CounterVec

	// Bet slip
	slipUtilization prometheus.Gauge
	slipSelections  prometheus.Gauge
	slipOverExposed prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemory     prometheus.Gauge
	systemGoroutines prometheus.Gauge
	systemGCPause    prometheus.Gauge
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
		namespace:        "betslip",
		subsystem:        "engine",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 8000, 10000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.cacheHits = auto.NewCounterVec(
		m.counterOpts("cache_hits_total", "Reads served from a fresh cache entry"),
		[]string{"mode"},
	)
	m.cacheMisses = auto.NewCounterVec(
		m.counterOpts("cache_misses_total", "Reads that started a provider fetch"),
		[]string{"mode"},
	)
	m.cacheCoalesced = auto.NewCounterVec(
		m.counterOpts("cache_coalesced_total", "Reads that joined an in-flight fetch"),
		[]string{"mode"},
	)
	m.cacheKeys = auto.NewGauge(m.gaugeOpts("cache_keys", "Number of keys tracked by the cache"))
	m.staleDiscards = auto.NewCounter(m.counterOpts(
		"cache_stale_generation_discards_total",
		"Fetch results discarded because a newer generation already landed",
	))
	m.staleServed = auto.NewCounter(m.counterOpts(
		"cache_stale_served_total",
		"Failed fetches answered with previously cached data",
	))
	m.refreshTicks = auto.NewCounter(m.counterOpts("refresh_ticks_total", "Auto-refresh timer firings"))

	m.fetchesStarted = auto.NewCounterVec(
		m.counterOpts("fetches_total", "Provider fetches started"),
		[]string{"mode"},
	)
	m.fetchLatency = auto.NewHistogramVec(
		m.histogramOpts("fetch_latency_milliseconds", "Provider fetch latency in milliseconds"),
		[]string{"mode"},
	)
	m.fetchErrors = auto.NewCounterVec(
		m.counterOpts("fetch_errors_total", "Provider fetch failures by kind"),
		[]string{"kind"},
	)
	m.fetchTimeouts = auto.NewCounter(m.counterOpts("fetch_timeouts_total", "Provider fetches cut off by the timeout"))
	m.decodeFailures = auto.NewCounter(m.counterOpts(
		"provider_decode_failures_total",
		"Provider payloads rejected by validation",
	))
	m.hintMismatches = auto.NewCounter(m.counterOpts(
		"parlay_odds_hint_mismatches_total",
		"Parlays whose provider combined odds disagree with the leg product",
	))

	m.snapshotOps = auto.NewCounterVec(
		m.counterOpts("snapshot_operations_total", "Snapshot mirror operations by op and result"),
		[]string{"op", "result"},
	)

	m.slipUtilization = auto.NewGauge(m.gaugeOpts(
		"slip_bankroll_utilization_ratio",
		"Total slip risk divided by bankroll",
	))
	m.slipSelections = auto.NewGauge(m.gaugeOpts("slip_selections", "Selections currently on the slip"))
	m.slipOverExposed = auto.NewCounter(m.counterOpts(
		"slip_over_exposed_total",
		"Aggregations where utilization crossed the warning threshold",
	))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)

	m.systemMemory = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes allocated"))
	m.systemGoroutines = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of live goroutines"))
	m.systemGCPause = auto.NewGauge(m.gaugeOpts("system_gc_pause_avg_milliseconds", "Average GC pause in milliseconds"))
}

// RecordCacheHit counts a read served from a fresh entry.
func RecordCacheHit(mode string) {
	globalManager.cacheHits.WithLabelValues(mode).Inc()
}

// RecordCacheMiss counts a read that had to fetch.
func RecordCacheMiss(mode string) {
	globalManager.cacheMisses.WithLabelValues(mode).Inc()
}

// RecordCacheCoalesced counts a read that joined a pending fetch.
func RecordCacheCoalesced(mode string) {
	globalManager.cacheCoalesced.WithLabelValues(mode).Inc()
}

// UpdateCacheKeys sets the number of tracked cache keys.
func UpdateCacheKeys(n int) {
	globalManager.cacheKeys.Set(float64(n))
}

// RecordStaleDiscard counts a result dropped by the generation guard.
func RecordStaleDiscard() {
	globalManager.staleDiscards.Inc()
}

// RecordStaleServed counts a failure answered with older data.
func RecordStaleServed() {
	globalManager.staleServed.Inc()
}

// RecordRefreshTick counts an auto-refresh firing.
func RecordRefreshTick() {
	globalManager.refreshTicks.Inc()
}

// RecordFetchStarted counts a provider fetch.
func RecordFetchStarted(mode string) {
	globalManager.fetchesStarted.WithLabelValues(mode).Inc()
}

// RecordFetchLatency records provider latency in milliseconds.
func RecordFetchLatency(mode string, latencyMs float64) {
	globalManager.fetchLatency.WithLabelValues(mode).Observe(latencyMs)
}

// RecordFetchError counts a failed fetch by kind (timeout, http, network, decode, other).
func RecordFetchError(kind string) {
	globalManager.fetchErrors.WithLabelValues(kind).Inc()
}

// RecordFetchTimeout counts a fetch that hit the timeout.
func RecordFetchTimeout() {
	globalManager.fetchTimeouts.Inc()
}

// RecordDecodeFailure counts a rejected provider payload.
func RecordDecodeFailure() {
	globalManager.decodeFailures.Inc()
}

// RecordParlayHintMismatch counts a parlay whose provider odds disagree with its legs.
func RecordParlayHintMismatch() {
	globalManager.hintMismatches.Inc()
}

// RecordSnapshotOp counts a mirror operation; result is ok, miss or error.
func RecordSnapshotOp(op, result string) {
	globalManager.snapshotOps.WithLabelValues(op, result).Inc()
}

// UpdateSlipUtilization sets the current bankroll utilization ratio.
func UpdateSlipUtilization(ratio float64) {
	globalManager.slipUtilization.Set(ratio)
}

// UpdateSlipSelections sets the number of selections on the slip.
func UpdateSlipSelections(n int) {
	globalManager.slipSelections.Set(float64(n))
}

// RecordSlipOverExposed counts an aggregation above the warning threshold.
func RecordSlipOverExposed() {
	globalManager.slipOverExposed.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemory.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutines.Set(float64(n))
}

// UpdateSystemGCPauseTime sets the average GC pause.
func UpdateSystemGCPauseTime(ms float64) {
	globalManager.systemGCPause.Set(ms)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
