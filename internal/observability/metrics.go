package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
)

// Metrics collects Prometheus metrics for the HTTP server and the ledger.
// Job collectors register on the same registry through Registerer.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	postingsTotal   *prometheus.CounterVec
	unbalanced      prometheus.Counter
	negativeStock   prometheus.Counter
	kardexDrift     prometheus.Counter
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_postings_total",
		Help: "Journal entries posted by source type.",
	}, []string{"source"})
	unbalanced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_ledger_unbalanced_total",
		Help: "Trial balances computed with debits != credits.",
	})
	negative := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_inventory_negative_stock_total",
		Help: "Stock issues that left a product below zero.",
	})
	drift := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_inventory_kardex_drift_total",
		Help: "Kardex replays that disagree with the live product.",
	})
	registry.MustRegister(requests, duration, postings, unbalanced, negative, drift)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		postingsTotal:   postings,
		unbalanced:      unbalanced,
		negativeStock:   negative,
		kardexDrift:     drift,
	}
}

// Handler returns the /metrics endpoint.
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

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Posted counts a journal entry for source.
func (m *Metrics) Posted(source string) {
	if m == nil {
		return
	}
	m.postingsTotal.WithLabelValues(source).Inc()
}

// Unbalanced counts an unbalanced trial balance.
func (m *Metrics) Unbalanced(reports.UnbalancedWarning) {
	if m == nil {
		return
	}
	m.unbalanced.Inc()
}

// NegativeStock counts an issue that drove stock below zero.
func (m *Metrics) NegativeStock(inventory.NegativeStockWarning) {
	if m == nil {
		return
	}
	m.negativeStock.Inc()
}

// KardexDrift counts a Kardex that disagrees with its product.
func (m *Metrics) KardexDrift(inventory.Kardex) {
	if m == nil {
		return
	}
	m.kardexDrift.Inc()
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
