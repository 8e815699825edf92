package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Reassignment engine metrics
	ReassignmentsTotal     *prometheus.CounterVec
	ReassignmentDuration   prometheus.Histogram
	ReassignmentTxDuration prometheus.Histogram
	AuditRecordsTotal      prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	DBWaitCount         prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gable_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gable_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ReassignmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gable_role_reassignments_total",
				Help: "Role reassignment attempts by outcome code",
			},
			[]string{"outcome"},
		),
		ReassignmentDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gable_role_reassignment_duration_seconds",
				Help:    "End-to-end duration of a reassignment request",
				Buckets: prometheus.DefBuckets,
			},
		),
		ReassignmentTxDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gable_role_reassignment_tx_duration_seconds",
				Help:    "Duration of the atomic user-update plus audit-insert transaction",
				Buckets: prometheus.DefBuckets,
			},
		),
		AuditRecordsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gable_audit_records_total",
				Help: "Audit records committed alongside reassignments",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gable_db_connections_active",
				Help: "Open database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gable_db_connections_idle",
				Help: "Idle database connections",
			},
		),
		DBWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gable_db_wait_count",
				Help: "Cumulative count of connection waits",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReassignmentsTotal,
		m.ReassignmentDuration,
		m.ReassignmentTxDuration,
		m.AuditRecordsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBWaitCount,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReassignment records a reassignment outcome and its duration
func (m *Metrics) ObserveReassignment(outcome string, duration time.Duration) {
	m.ReassignmentsTotal.WithLabelValues(outcome).Inc()
	m.ReassignmentDuration.Observe(duration.Seconds())
}

// ObserveCommit records a committed reassignment transaction. Every commit
// carries exactly one audit record, so the counter advances with it.
func (m *Metrics) ObserveCommit(duration time.Duration) {
	m.ReassignmentTxDuration.Observe(duration.Seconds())
	m.AuditRecordsTotal.Inc()
}

// CollectDBStats copies connection pool stats into gauges
func (m *Metrics) CollectDBStats(db *sql.DB) {
	stats := db.Stats()
	m.DBConnectionsActive.Set(float64(stats.OpenConnections))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBWaitCount.Set(float64(stats.WaitCount))
}

// InstrumentHandler wraps an HTTP handler with request metrics
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration.Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
