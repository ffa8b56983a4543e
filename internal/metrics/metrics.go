package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "secrets"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics owns a private registry and the collectors the service reports.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	StoreOperationsTotal          *prometheus.CounterVec
	StoreOperationDurationSeconds *prometheus.HistogramVec
	AuditWriteFailuresTotal       prometheus.Counter
	AuthAttemptsTotal             *prometheus.CounterVec
	HTTPRequestsTotal             *prometheus.CounterVec
	HTTPRequestDurationSeconds    *prometheus.HistogramVec
}

// New builds the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StoreOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by operation and result.",
		}, []string{"operation", "result"}),
		StoreOperationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		AuditWriteFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "audit_write_failures_total",
			Help:      "Audit log writes that failed without failing the primary operation.",
		}),
		AuthAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "auth_attempts_total",
			Help:      "Credential checks by outcome.",
		}, []string{"result"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.StoreOperationsTotal,
		m.StoreOperationDurationSeconds,
		m.AuditWriteFailuresTotal,
		m.AuthAttemptsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
	)
	return m
}

// ObserveStore records one store call that started at start.
func (m *Metrics) ObserveStore(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.StoreOperationsTotal.WithLabelValues(operation, result).Inc()
	m.StoreOperationDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// AuditWriteFailed counts an audit insert that was rolled back.
func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.AuditWriteFailuresTotal.Inc()
}

// AuthAttempt counts a credential check with the given outcome label.
func (m *Metrics) AuthAttempt(result string) {
	if m == nil {
		return
	}
	m.AuthAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTP records a served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
