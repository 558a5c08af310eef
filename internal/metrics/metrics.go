// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Classifier outcome labels.
const (
	OutcomeOK                  = "ok"
	OutcomeCacheHit            = "cache_hit"
	OutcomeFallbackUnparseable = "fallback_unparseable"
	OutcomeFallbackUnknownID   = "fallback_unknown_id"
	OutcomeFallbackError       = "fallback_error"
)

// Metrics bundles the application collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	classifications   *prometheus.CounterVec
	inferenceDuration prometheus.Histogram
	expensesCreated   *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec
	rowsExported      *prometheus.CounterVec

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	rateLimited        prometheus.Counter
	suspiciousRequests prometheus.Counter
}

// New creates a registry with Go and process collectors plus the
// application metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spartispese",
			Subsystem: "classifier",
			Name:      "classifications_total",
			Help:      "Title classifications by outcome.",
		}, []string{"outcome"}),
		inferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spartispese",
			Subsystem: "classifier",
			Name:      "inference_duration_seconds",
			Help:      "Latency of outbound inference calls.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		}),
		expensesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spartispese",
			Name:      "expenses_created_total",
			Help:      "Expenses persisted, by how the category was chosen.",
		}, []string{"category_source"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spartispese",
			Subsystem: "amqp",
			Name:      "events_published_total",
			Help:      "Expense events published, by result.",
		}, []string{"result"}),
		rowsExported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spartispese",
			Subsystem: "worker",
			Name:      "rows_exported_total",
			Help:      "Ledger rows appended by the export worker, by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spartispese",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spartispese",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spartispese",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		suspiciousRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spartispese",
			Subsystem: "http",
			Name:      "suspicious_requests_total",
			Help:      "Requests matching a known attack pattern.",
		}),
	}
	reg.MustRegister(
		m.classifications, m.inferenceDuration, m.expensesCreated, m.eventsPublished, m.rowsExported,
		m.httpRequests, m.httpDuration, m.rateLimited, m.suspiciousRequests,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Classification counts one classifier outcome. Nil receivers are no-ops so
// callers can run without metrics.
func (m *Metrics) Classification(outcome string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(outcome).Inc()
}

// ObserveInference records the duration of one outbound inference call.
func (m *Metrics) ObserveInference(d time.Duration) {
	if m == nil {
		return
	}
	m.inferenceDuration.Observe(d.Seconds())
}

// ExpenseCreated counts a persisted expense. source is "user", "classifier"
// or "fallback".
func (m *Metrics) ExpenseCreated(source string) {
	if m == nil {
		return
	}
	m.expensesCreated.WithLabelValues(source).Inc()
}

// EventPublished counts a publish attempt.
func (m *Metrics) EventPublished(err error) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(result(err)).Inc()
}

// RowExported counts an export attempt.
func (m *Metrics) RowExported(err error) {
	if m == nil {
		return
	}
	m.rowsExported.WithLabelValues(result(err)).Inc()
}

// HTTPRequest records one served request. route is the router pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) SuspiciousRequest() {
	if m == nil {
		return
	}
	m.suspiciousRequests.Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
