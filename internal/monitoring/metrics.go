package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Remote knowledge service metrics
	KnowledgeCallsTotal  *prometheus.CounterVec
	KnowledgeCallLatency *prometheus.HistogramVec
	RetryAttemptsTotal   *prometheus.CounterVec

	// Ingestion pipeline metrics
	IngestionsTotal    *prometheus.CounterVec
	IngestionDuration  prometheus.Histogram
	IndexPollDuration  prometheus.Histogram
	IndexOutcomesTotal *prometheus.CounterVec

	// Orphan ledger metrics
	OrphansRecorded   prometheus.Counter
	OrphansReconciled prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

var metrics *Metrics

// Init initializes all Prometheus metrics
func Init() *Metrics {
	if metrics != nil {
		return metrics
	}

	metrics = &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 90},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		KnowledgeCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knowledge_calls_total",
				Help: "Total number of calls to the remote knowledge service",
			},
			[]string{"operation", "status"},
		),
		KnowledgeCallLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "knowledge_call_latency_seconds",
				Help:    "Remote knowledge service call latency in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"operation"},
		),
		RetryAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knowledge_retry_attempts_total",
				Help: "Total number of retry attempts against the remote knowledge service",
			},
			[]string{"operation"},
		),

		IngestionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestions_total",
				Help: "Total number of document ingestions",
			},
			[]string{"status", "reason"},
		),
		IngestionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingestion_duration_seconds",
				Help:    "End-to-end ingestion pipeline duration in seconds",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 90, 120},
			},
		),
		IndexPollDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_poll_duration_seconds",
				Help:    "Time spent polling an indexing job to a terminal state",
				Buckets: []float64{1, 3, 6, 12, 24, 48, 60, 90},
			},
		),
		IndexOutcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_outcomes_total",
				Help: "Terminal states reached by indexing jobs",
			},
			[]string{"state"},
		),

		OrphansRecorded: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "orphan_documents_recorded_total",
				Help: "Documents uploaded remotely but never linked to an agent",
			},
		),
		OrphansReconciled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "orphan_documents_reconciled_total",
				Help: "Orphan documents successfully linked by the reconciler",
			},
		),

		DBConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	if metrics == nil {
		return Init()
	}
	return metrics
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordKnowledgeCall records one call against the remote knowledge service
func RecordKnowledgeCall(operation, status string, duration time.Duration) {
	m := Get()
	m.KnowledgeCallsTotal.WithLabelValues(operation, status).Inc()
	m.KnowledgeCallLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRetryAttempt records a retry of a remote operation
func RecordRetryAttempt(operation string) {
	Get().RetryAttemptsTotal.WithLabelValues(operation).Inc()
}

// RecordIngestion records the outcome of an ingestion pipeline run
func RecordIngestion(status, reason string, duration time.Duration) {
	m := Get()
	m.IngestionsTotal.WithLabelValues(status, reason).Inc()
	m.IngestionDuration.Observe(duration.Seconds())
}

// RecordIndexOutcome records the terminal state of an indexing job
func RecordIndexOutcome(state string, pollDuration time.Duration) {
	m := Get()
	m.IndexOutcomesTotal.WithLabelValues(state).Inc()
	m.IndexPollDuration.Observe(pollDuration.Seconds())
}

// RecordOrphan records a document left uploaded-but-unlinked
func RecordOrphan() {
	Get().OrphansRecorded.Inc()
}

// RecordOrphanReconciled records an orphan successfully linked
func RecordOrphanReconciled() {
	Get().OrphansReconciled.Inc()
}

// SetDBConnections sets database connection metrics
func SetDBConnections(active, idle int) {
	Get().DBConnectionsActive.Set(float64(active))
	Get().DBConnectionsIdle.Set(float64(idle))
}
