// Package metrics exposes dev server counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route labels besides the router kinds.
const (
	RouteEndpoint = "endpoint"
)

// Metrics holds the collectors of one server. Each instance has its own
// registry so tests do not share state.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	reloadsTotal     prometheus.Counter
	registryWarnings prometheus.Gauge
	registrySize     prometheus.Gauge
	rewriteDuration  prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fmsite_requests_total",
				Help: "Number of requests by route kind.",
			},
			[]string{"route"},
		),
		reloadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fmsite_registry_reloads_total",
				Help: "Number of times the solution registry was rebuilt.",
			},
		),
		registryWarnings: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fmsite_registry_warnings",
				Help: "Number of drift warnings in the current registry.",
			},
		),
		registrySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fmsite_registry_solutions",
				Help: "Number of solutions in the current registry.",
			},
		),
		rewriteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fmsite_html_rewrite_seconds",
				Help:    "Time taken to rewrite asset URLs in one HTML document.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.reloadsTotal,
		m.registryWarnings,
		m.registrySize,
		m.rewriteDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Request counts one request for route.
func (m *Metrics) Request(route string) {
	m.requestsTotal.WithLabelValues(route).Inc()
}

// RegistryChanged records a registry rebuild.
func (m *Metrics) RegistryChanged(solutions, warnings int) {
	m.reloadsTotal.Inc()
	m.registrySize.Set(float64(solutions))
	m.registryWarnings.Set(float64(warnings))
}

// ObserveRewrite records the duration of one HTML rewrite.
func (m *Metrics) ObserveRewrite(d time.Duration) {
	m.rewriteDuration.Observe(d.Seconds())
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
