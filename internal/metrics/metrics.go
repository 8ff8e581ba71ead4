// Package metrics holds the Prometheus collectors exported by dnsdash.
//
// Every Metrics value owns its registry so tests and multiple servers in one
// process never collide on the default registerer. All recording methods are
// safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for refresh ticks.
const (
	TickRun     = "run"
	TickSkipped = "skipped"
)

// Result labels for backend requests.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds all Prometheus metrics for dnsdash.
type Metrics struct {
	// Backend gateway
	BackendRequestsTotal          *prometheus.CounterVec
	BackendRequestDurationSeconds *prometheus.HistogramVec

	// Dashboard coordination
	RefreshTicksTotal   *prometheus.CounterVec
	StaleResponsesTotal *prometheus.CounterVec

	// Viewer sessions
	SessionsActive prometheus.Gauge

	// HTTP API
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with all collectors registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		BackendRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dnsdash_backend_requests_total",
				Help: "Total number of requests sent to the telemetry backend",
			},
			[]string{"endpoint", "result"},
		),
		BackendRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dnsdash_backend_request_duration_seconds",
				Help:    "Telemetry backend request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		RefreshTicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dnsdash_refresh_ticks_total",
				Help: "Auto-refresh ticks by outcome (run or skipped while a batch was loading)",
			},
			[]string{"outcome"},
		),
		StaleResponsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dnsdash_stale_responses_total",
				Help: "Responses discarded because a newer request or selection superseded them",
			},
			[]string{"kind"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dnsdash_sessions_active",
				Help: "Number of open viewer sessions",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dnsdash_http_requests_total",
				Help: "Total number of dashboard HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dnsdash_http_request_duration_seconds",
				Help:    "Dashboard HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.BackendRequestsTotal,
		m.BackendRequestDurationSeconds,
		m.RefreshTicksTotal,
		m.StaleResponsesTotal,
		m.SessionsActive,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBackend records one backend request.
func (m *Metrics) ObserveBackend(endpoint string, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.BackendRequestsTotal.WithLabelValues(endpoint, result).Inc()
	m.BackendRequestDurationSeconds.WithLabelValues(endpoint).Observe(took.Seconds())
}

// RefreshTick counts an auto-refresh tick with outcome TickRun or TickSkipped.
func (m *Metrics) RefreshTick(outcome string) {
	if m == nil {
		return
	}
	m.RefreshTicksTotal.WithLabelValues(outcome).Inc()
}

// StaleResponse counts a discarded response of the given kind.
func (m *Metrics) StaleResponse(kind string) {
	if m == nil {
		return
	}
	m.StaleResponsesTotal.WithLabelValues(kind).Inc()
}

// SetSessions sets the active session gauge.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// ObserveHTTP records one dashboard HTTP request.
func (m *Metrics) ObserveHTTP(method, route, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(took.Seconds())
}
