// Package metrics defines the Prometheus collectors used by the matcher
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	MatchQueriesTotal    *prometheus.CounterVec
	MatchLatency         *prometheus.HistogramVec
	MatchResultsCount    prometheus.Histogram
	BestMatchScore       prometheus.Histogram
	HighlightOutcomes    *prometheus.CounterVec
	HighlightedChoices   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CorpusRecords        prometheus.Gauge
	CorpusChangesTotal   *prometheus.CounterVec
	SelectionUpdates     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg uses the
// default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
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
		MatchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "match_queries_total",
				Help: "Total match queries by policy and result type (hit, zero_result, error).",
			},
			[]string{"policy", "result_type"},
		),
		MatchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "match_latency_seconds",
				Help:    "Ranking latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"cache_status"},
		),
		MatchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "match_results_count",
				Help:    "Number of results returned per match query.",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 25, 50},
			},
		),
		BestMatchScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "best_match_score",
				Help:    "Score of the best record chosen for highlighting.",
				Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
		),
		HighlightOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "highlight_outcomes_total",
				Help: "Highlight requests by outcome status.",
			},
			[]string{"status"},
		),
		HighlightedChoices: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "highlighted_choices",
				Help:    "Number of answer choices marked per highlighted page.",
				Buckets: []float64{0, 1, 2, 3, 4, 6, 10},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		CorpusRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_records",
				Help: "Number of question/answer records in the corpus.",
			},
		),
		CorpusChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_changes_total",
				Help: "Corpus mutations by operation.",
			},
			[]string{"op"},
		),
		SelectionUpdates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "selection_updates_total",
				Help: "Number of distinct selections observed by the poller.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.MatchQueriesTotal,
		m.MatchLatency,
		m.MatchResultsCount,
		m.BestMatchScore,
		m.HighlightOutcomes,
		m.HighlightedChoices,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CorpusRecords,
		m.CorpusChangesTotal,
		m.SelectionUpdates,
		m.CircuitBreakerState,
	)

	return m
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors, for services that keep their metrics off the global registry.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the scrape handler for gatherer, or the default registry
// when gatherer is nil.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
