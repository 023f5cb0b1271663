// Package metrics defines the Prometheus metric collectors used by the
// channel search service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	SearchQueriesTotal     *prometheus.CounterVec
	SearchLatency          *prometheus.HistogramVec
	SearchResultsCount     prometheus.Histogram
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	CatalogReloadsTotal    *prometheus.CounterVec
	CatalogReloadDuration  prometheus.Histogram
	CatalogLoadRetries     prometheus.Counter
	IndexedChannels        prometheus.Gauge
	IndexedTerms           prometheus.Gauge
	IndexGeneration        prometheus.Gauge
	CircuitBreakerState    *prometheus.GaugeVec
	AnalyticsEventsDropped prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with reg. When reg is also a
// Gatherer (a *prometheus.Registry), Handler serves exactly its metrics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "channel_search_queries_total",
				Help: "Total channel searches by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "channel_search_latency_seconds",
				Help:    "Channel search latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "channel_search_results_count",
				Help:    "Total matching channels per search before pagination.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 10000},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of response cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of response cache misses.",
			},
		),
		CatalogReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_reloads_total",
				Help: "Total channel catalog reloads by status.",
			},
			[]string{"status"},
		),
		CatalogReloadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_reload_duration_seconds",
				Help:    "Time to fetch the catalog and rebuild the index.",
				Buckets: prometheus.DefBuckets,
			},
		),
		CatalogLoadRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_load_retries_total",
				Help: "Catalog load attempts retried after a failure.",
			},
		),
		IndexedChannels: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "channel_index_channels",
				Help: "Number of channels in the served snapshot.",
			},
		),
		IndexedTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "channel_index_terms",
				Help: "Number of distinct terms in the inverted index.",
			},
		),
		IndexGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "channel_index_generation",
				Help: "Generation of the served snapshot.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		AnalyticsEventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Search analytics events dropped because the buffer was full.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CatalogReloadsTotal,
		m.CatalogReloadDuration,
		m.CatalogLoadRetries,
		m.IndexedChannels,
		m.IndexedTerms,
		m.IndexGeneration,
		m.CircuitBreakerState,
		m.AnalyticsEventsDropped,
	)

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// Handler returns the Prometheus scrape handler for the registry m was
// created with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
