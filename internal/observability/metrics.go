package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	reconciliationsTotal *prometheus.CounterVec
	autoMatchRuns        prometheus.Counter
	autoMatchMatched     prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linehaul_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linehaul_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linehaul_reconciliations_total",
		Help: "Manual reconciliation attempts by outcome.",
	}, []string{"outcome"})
	autoRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linehaul_automatch_runs_total",
		Help: "Auto-match batch runs.",
	})
	autoMatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linehaul_automatch_matched_total",
		Help: "Payments settled by the auto-matcher.",
	})
	registry.MustRegister(requests, duration, reconciliations, autoRuns, autoMatched)
	return &Metrics{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:        requests,
		requestDuration:      duration,
		reconciliationsTotal: reconciliations,
		autoMatchRuns:        autoRuns,
		autoMatchMatched:     autoMatched,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveReconciliation counts a manual reconciliation attempt.
func (m *Metrics) ObserveReconciliation(outcome string) {
	if m == nil {
		return
	}
	m.reconciliationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAutoMatchRun counts a batch run and the payments it settled.
func (m *Metrics) ObserveAutoMatchRun(matched int) {
	if m == nil {
		return
	}
	m.autoMatchRuns.Inc()
	m.autoMatchMatched.Add(float64(matched))
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
