// Package metrics holds the Prometheus series exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	ResultsSaved        *prometheus.CounterVec
	SaveConflicts       prometheus.Counter
	StoreRetries        *prometheus.CounterVec
	StoreUnavailable    *prometheus.CounterVec
	AuditWritten        prometheus.Counter
	AuditDropped        *prometheus.CounterVec
	CalculatorFallbacks prometheus.Counter
	CalculatorBreaker   prometheus.Gauge
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// New creates and registers all metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		ResultsSaved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unisemi_results_saved_total",
			Help: "Total number of semester results saved, by whether the record was new",
		}, []string{"kind"}),
		SaveConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "unisemi_save_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts retried by saves",
		}),
		StoreRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unisemi_store_reconnect_retries_total",
			Help: "Total number of store operations retried after a connectivity failure",
		}, []string{"op"}),
		StoreUnavailable: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unisemi_store_unavailable_total",
			Help: "Total number of store operations that failed after the retry",
		}, []string{"op"}),
		AuditWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "unisemi_audit_written_total",
			Help: "Total number of audit entries persisted",
		}),
		AuditDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unisemi_audit_dropped_total",
			Help: "Total number of audit entries dropped, by reason",
		}, []string{"reason"}),
		CalculatorFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "unisemi_calculator_fallbacks_total",
			Help: "Total number of CGPA computations that fell back to the in-process calculator",
		}),
		CalculatorBreaker: f.NewGauge(prometheus.GaugeOpts{
			Name: "unisemi_calculator_circuit_breaker_state",
			Help: "External calculator circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unisemi_http_requests_total",
			Help: "Total number of HTTP requests, by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unisemi_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// IncResultSaved counts a save; created reports whether the record was new.
func (m *Metrics) IncResultSaved(created bool) {
	if m == nil {
		return
	}
	kind := "update"
	if created {
		kind = "new"
	}
	m.ResultsSaved.WithLabelValues(kind).Inc()
}

// IncSaveConflict increments the conflict counter.
func (m *Metrics) IncSaveConflict() {
	if m == nil {
		return
	}
	m.SaveConflicts.Inc()
}

// IncStoreRetry counts a reconnect retry of op.
func (m *Metrics) IncStoreRetry(op string) {
	if m == nil {
		return
	}
	m.StoreRetries.WithLabelValues(op).Inc()
}

// IncStoreUnavailable counts an op that stayed unreachable.
func (m *Metrics) IncStoreUnavailable(op string) {
	if m == nil {
		return
	}
	m.StoreUnavailable.WithLabelValues(op).Inc()
}

// IncAuditWritten increments the persisted audit counter.
func (m *Metrics) IncAuditWritten() {
	if m == nil {
		return
	}
	m.AuditWritten.Inc()
}

// IncAuditDropped counts a dropped audit entry.
func (m *Metrics) IncAuditDropped(reason string) {
	if m == nil {
		return
	}
	m.AuditDropped.WithLabelValues(reason).Inc()
}

// IncCalculatorFallback increments the calculator fallback counter.
func (m *Metrics) IncCalculatorFallback() {
	if m == nil {
		return
	}
	m.CalculatorFallbacks.Inc()
}

// SetCalculatorBreakerState records the breaker state.
func (m *Metrics) SetCalculatorBreakerState(state int) {
	if m == nil {
		return
	}
	m.CalculatorBreaker.Set(float64(state))
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
