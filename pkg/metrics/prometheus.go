// Package metrics provides Prometheus metrics for the trajguard service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// frameLatencyBuckets are in microseconds; a frame update is expected to stay
// well under a display refresh.
var frameLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}

// Manager owns every collector exported by trajguard.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Validation core
	framesProcessed   prometheus.Counter
	frameLatency      prometheus.Histogram
	validatorFailures *prometheus.CounterVec
	contractErrors    *prometheus.CounterVec
	lineTouches       prometheus.Counter
	timelineOps       *prometheus.CounterVec
	trialOutcomes     *prometheus.CounterVec
	trialsDuplicate   prometheus.Counter
	storedResults     prometheus.Gauge

	// Replay queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    prometheus.Counter

	// Replay workers
	workerCount      prometheus.Gauge
	workerActive     prometheus.Gauge
	workerLatency    prometheus.Histogram
	workerErrors     prometheus.Counter
	replayThroughput prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Runtime
	goroutines  prometheus.Gauge
	memoryBytes prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide collectors

// customRegistry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global collectors are registered once
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager. Collectors are registered on the
// configured registry, the default registerer when none is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "trajguard",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval is how often gauges fed by pollers should be updated.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Enabled reports whether recording functions are active.
func (m *Manager) Enabled() bool { return m.enabled }

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.framesProcessed = m.counter("frames_processed_total", "Total number of samples fed through a trial pipeline")
	m.frameLatency = m.histogram("frame_latency_microseconds", "Time spent evaluating one frame", frameLatencyBuckets)
	m.validatorFailures = m.counterVec("validator_failures_total", "Failed verdicts by validator and code", "validator", "code")
	m.contractErrors = m.counterVec("contract_errors_total", "Caller contract violations by component", "component")
	m.lineTouches = m.counter("line_touches_total", "Number of trials in which the target line was touched")
	m.timelineOps = m.counterVec("timeline_operations_total", "Scheduled operations by final state", "state")
	m.trialOutcomes = m.counterVec("trial_outcomes_total", "Completed trials by outcome", "outcome")
	m.trialsDuplicate = m.counter("trials_duplicate_total", "Trajectories rejected because their trial id was already seen")
	m.storedResults = m.gauge("stored_results", "Number of trial results held in memory")

	m.queueSize = m.gauge("queue_size", "Trajectories waiting for a replay worker")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum replay queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Replay queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Trajectories enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Trajectories dequeued")
	m.queueRejected = m.counter("queue_enqueue_errors_total", "Trajectories rejected by the queue")

	m.workerCount = m.gauge("worker_count", "Configured replay workers")
	m.workerActive = m.gauge("worker_active_count", "Replay workers currently evaluating a trial")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Time to replay one trajectory", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Replays aborted by a contract error")
	m.replayThroughput = m.gauge("worker_trials_per_second", "Trials replayed per second since start")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_request_duration_milliseconds", Help: "HTTP request duration in milliseconds",
		ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.goroutines = m.gauge("system_goroutine_count", "Number of goroutines")
	m.memoryBytes = m.gauge("system_memory_usage_bytes", "Heap bytes in use")
}

// RecordFrames counts n evaluated frames that took elapsed in total and
// observes the mean per-frame latency.
func RecordFrames(n int, elapsed time.Duration) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.framesProcessed.Add(float64(n))
	globalManager.frameLatency.Observe(float64(elapsed.Microseconds()) / float64(n))
}

// RecordValidatorFailure counts a failed verdict.
func RecordValidatorFailure(validator, code string) {
	if !globalManager.enabled {
		return
	}
	globalManager.validatorFailures.WithLabelValues(validator, code).Inc()
}

// RecordContractError counts a caller contract violation.
func RecordContractError(component string) {
	if !globalManager.enabled {
		return
	}
	globalManager.contractErrors.WithLabelValues(component).Inc()
}

// RecordLineTouch counts a line touch.
func RecordLineTouch() {
	if !globalManager.enabled {
		return
	}
	globalManager.lineTouches.Inc()
}

// RecordTimelineOperation counts a scheduled operation reaching state
// "fired" or "cancelled".
func RecordTimelineOperation(state string) {
	if !globalManager.enabled {
		return
	}
	globalManager.timelineOps.WithLabelValues(state).Inc()
}

// RecordTrialOutcome counts a finished trial ("succeeded", "failed", "aborted", "incomplete").
func RecordTrialOutcome(outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.trialOutcomes.WithLabelValues(outcome).Inc()
}

// RecordTrialDuplicate counts a rejected duplicate trajectory.
func RecordTrialDuplicate() {
	if !globalManager.enabled {
		return
	}
	globalManager.trialsDuplicate.Inc()
}

// UpdateStoredResults sets the number of results held in memory.
func UpdateStoredResults(n int) { globalManager.storedResults.Set(float64(n)) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(ratio float64) { globalManager.queueUtilization.Set(ratio) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError() { globalManager.queueRejected.Inc() }

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(n int) { globalManager.workerCount.Set(float64(n)) }

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(n int) { globalManager.workerActive.Set(float64(n)) }

// RecordWorkerProcessingLatency records replay latency in milliseconds.
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerLatency.Observe(ms) }

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// UpdateReplayThroughput sets the trials per second gauge.
func UpdateReplayThroughput(rate float64) { globalManager.replayThroughput.Set(rate) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(n int) { globalManager.goroutines.Set(float64(n)) }

// UpdateSystemMemoryUsage sets heap bytes in use.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.memoryBytes.Set(float64(bytes)) }

// Default returns the process-wide manager.
func Default() *Manager { return globalManager }

// GetRegistry returns the registry backing the process-wide manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
