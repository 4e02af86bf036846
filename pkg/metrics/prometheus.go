// Package metrics provides Prometheus metrics for the winchain service.
package metrics

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the winchain service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          atomic.Bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Graph build metrics
	rebuildDuration   prometheus.Histogram
	rebuildsTotal     *prometheus.CounterVec
	gamesScanned      prometheus.Counter
	graphNodes        *prometheus.GaugeVec
	graphEdges        *prometheus.GaugeVec
	lastRebuildUnix   prometheus.Gauge
	serviceState      prometheus.Gauge
	snapshotLoads     *prometheus.CounterVec
	snapshotBytes     *prometheus.GaugeVec
	snapshotWrites    prometheus.Counter

	// Chain query metrics
	chainQueries *prometheus.CounterVec
	chainLatency *prometheus.HistogramVec
	chainLength  *prometheus.HistogramVec

	// Refresh pipeline metrics
	refreshQueueSize     prometheus.Gauge
	refreshQueueCapacity prometheus.Gauge
	refreshEnqueued      prometheus.Counter
	refreshEnqueueErrors prometheus.Counter
	refreshCoalesced     prometheus.Counter
	refreshDuplicates    prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "winchain",
		subsystem:        "graph",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	m.enabled.Store(true)

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.rebuildDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rebuild_duration_milliseconds",
		Help:        "Duration of full graph rebuilds in milliseconds",
		Buckets:     []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		ConstLabels: constLabels,
	})

	m.rebuildsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rebuilds_total",
		Help:        "Graph rebuilds by result (committed, failed)",
		ConstLabels: constLabels,
	}, []string{"result"})

	m.gamesScanned = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "games_scanned_total",
		Help:        "Game records read from storage by rebuilds",
		ConstLabels: constLabels,
	})

	m.graphNodes = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "nodes",
		Help:        "Players in the live graph by kind",
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.graphEdges = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "edges",
		Help:        "Edges in the live graph by kind",
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.lastRebuildUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "last_swap_unix",
		Help:        "Unix timestamp of the last snapshot swap",
		ConstLabels: constLabels,
	})

	m.serviceState = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "state",
		Help:        "Service state: 0 uninitialized, 1 loaded, 2 rebuilding",
		ConstLabels: constLabels,
	})

	m.snapshotLoads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "snapshot_loads_total",
		Help:        "Snapshot load attempts by result (ok, not_found, corrupt, error)",
		ConstLabels: constLabels,
	}, []string{"result"})

	m.snapshotBytes = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "snapshot_bytes",
		Help:        "Encoded size of the last persisted snapshot by kind",
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.snapshotWrites = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "snapshot_writes_total",
		Help:        "Snapshots committed to the durable cache",
		ConstLabels: constLabels,
	})

	m.chainQueries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "chain_queries_total",
		Help:        "Chain queries by graph kind and outcome (found, unknown_player, no_path, unavailable)",
		ConstLabels: constLabels,
	}, []string{"kind", "outcome"})

	m.chainLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "chain_latency_milliseconds",
		Help:        "Shortest-path search latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.chainLength = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "chain_length_players",
		Help:        "Number of players in resolved chains",
		Buckets:     []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.refreshQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_queue_size",
		Help:        "Pending refresh requests",
		ConstLabels: constLabels,
	})

	m.refreshQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_queue_capacity",
		Help:        "Maximum pending refresh requests",
		ConstLabels: constLabels,
	})

	m.refreshEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_enqueued_total",
		Help:        "Refresh requests accepted into the queue",
		ConstLabels: constLabels,
	})

	m.refreshEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_enqueue_errors_total",
		Help:        "Refresh requests rejected by the queue",
		ConstLabels: constLabels,
	})

	m.refreshCoalesced = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_coalesced_total",
		Help:        "Refresh requests folded into a rebuild triggered by an earlier request",
		ConstLabels: constLabels,
	})

	m.refreshDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_duplicates_total",
		Help:        "Refresh requests ignored because their job id was already seen",
		ConstLabels: constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Total number of errors by component",
		ConstLabels: constLabels,
	}, []string{"component", "error_type"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_type_total",
		Help:        "Total number of errors by type",
		ConstLabels: constLabels,
	}, []string{"error_type", "severity"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_endpoint_total",
		Help:        "Total number of errors by endpoint",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_memory_usage_bytes",
		Help:        "Heap bytes allocated",
		ConstLabels: constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_goroutine_count",
		Help:        "Number of goroutines",
		ConstLabels: constLabels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: constLabels,
	})
}

// Graph build metrics.

// RecordRebuild observes one finished rebuild.
func RecordRebuild(committed bool, durationMs float64) {
	if !Enabled() {
		return
	}
	result := "committed"
	if !committed {
		result = "failed"
	}
	globalManager.rebuildsTotal.WithLabelValues(result).Inc()
	globalManager.rebuildDuration.Observe(durationMs)
}

// AddGamesScanned adds n game records to the scan counter.
func AddGamesScanned(n int) {
	if !Enabled() {
		return
	}
	globalManager.gamesScanned.Add(float64(n))
}

// UpdateGraphSize sets node and edge gauges for a graph kind.
func UpdateGraphSize(kind string, nodes, edges int) {
	if !Enabled() {
		return
	}
	globalManager.graphNodes.WithLabelValues(kind).Set(float64(nodes))
	globalManager.graphEdges.WithLabelValues(kind).Set(float64(edges))
}

// MarkSwap records the time of a snapshot swap.
func MarkSwap(at time.Time) {
	if !Enabled() {
		return
	}
	globalManager.lastRebuildUnix.Set(float64(at.Unix()))
}

// UpdateServiceState sets the service state gauge.
func UpdateServiceState(state int) {
	if !Enabled() {
		return
	}
	globalManager.serviceState.Set(float64(state))
}

// RecordSnapshotLoad counts a snapshot load attempt.
func RecordSnapshotLoad(result string) {
	if !Enabled() {
		return
	}
	globalManager.snapshotLoads.WithLabelValues(result).Inc()
}

// RecordSnapshotWrite counts a committed snapshot and its encoded sizes.
func RecordSnapshotWrite(winsBytes, netBytes int) {
	if !Enabled() {
		return
	}
	globalManager.snapshotWrites.Inc()
	globalManager.snapshotBytes.WithLabelValues("wins").Set(float64(winsBytes))
	globalManager.snapshotBytes.WithLabelValues("net").Set(float64(netBytes))
}

// Chain query metrics.

// RecordChainQuery counts a chain query outcome.
func RecordChainQuery(kind, outcome string) {
	if !Enabled() {
		return
	}
	globalManager.chainQueries.WithLabelValues(kind, outcome).Inc()
}

// RecordChainLatency observes shortest-path latency.
func RecordChainLatency(kind string, latencyMs float64) {
	if !Enabled() {
		return
	}
	globalManager.chainLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordChainLength observes the number of players in a resolved chain.
func RecordChainLength(kind string, players int) {
	if !Enabled() {
		return
	}
	globalManager.chainLength.WithLabelValues(kind).Observe(float64(players))
}

// Refresh pipeline metrics.

// UpdateRefreshQueueSize sets the pending refresh request count.
func UpdateRefreshQueueSize(size int) {
	if !Enabled() {
		return
	}
	globalManager.refreshQueueSize.Set(float64(size))
}

// UpdateRefreshQueueCapacity sets the refresh queue capacity.
func UpdateRefreshQueueCapacity(capacity int) {
	if !Enabled() {
		return
	}
	globalManager.refreshQueueCapacity.Set(float64(capacity))
}

// RecordRefreshEnqueued counts an accepted refresh request.
func RecordRefreshEnqueued() {
	if !Enabled() {
		return
	}
	globalManager.refreshEnqueued.Inc()
}

// RecordRefreshEnqueueError counts a rejected refresh request.
func RecordRefreshEnqueueError() {
	if !Enabled() {
		return
	}
	globalManager.refreshEnqueueErrors.Inc()
}

// AddRefreshCoalesced counts refresh requests served by a shared rebuild.
func AddRefreshCoalesced(n int) {
	if !Enabled() {
		return
	}
	globalManager.refreshCoalesced.Add(float64(n))
}

// RecordRefreshDuplicate counts a refresh request with an already seen job id.
func RecordRefreshDuplicate() {
	if !Enabled() {
		return
	}
	globalManager.refreshDuplicates.Inc()
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !Enabled() {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !Enabled() {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if !Enabled() {
		return
	}
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	if !Enabled() {
		return
	}
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !Enabled() {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !Enabled() {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if !Enabled() {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if !Enabled() {
		return
	}
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// SetEnabled turns recording on or off. Disabled helpers are no-ops;
// registered collectors keep their last values.
func SetEnabled(enabled bool) {
	globalManager.enabled.Store(enabled)
}

// Enabled reports whether the package-level helpers record anything.
func Enabled() bool {
	return globalManager.enabled.Load()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Register adds an extra collector to the service registry.
func Register(c prometheus.Collector) error {
	if err := customRegistry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return fmt.Errorf("%w: %v", ErrCollectorRegistered, err)
		}
		return err
	}
	return nil
}
