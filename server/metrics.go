package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedPath is the label used for requests that resolve to no configured
// calendar, keeping metric cardinality bounded.
const unmatchedPath = "unmatched"

// Metrics holds the proxy's Prometheus metrics on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstreamFetches *prometheus.CounterVec
	scrubFailures   *prometheus.CounterVec
}

// NewMetrics creates and registers the proxy metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "icalmask",
			Name:      "requests_total",
			Help:      "HTTP requests served, by calendar path and status.",
		},
		[]string{"path", "status"},
	)
	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "icalmask",
			Name:      "request_duration_seconds",
			Help:      "End-to-end request duration in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"path"},
	)
	m.upstreamFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "icalmask",
			Name:      "upstream_fetch_total",
			Help:      "Upstream feed fetches, by result.",
		},
		[]string{"result"},
	)
	m.scrubFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "icalmask",
			Name:      "scrub_failures_total",
			Help:      "Documents that failed to parse or transform, by kind.",
		},
		[]string{"kind"},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.upstreamFetches,
		m.scrubFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
