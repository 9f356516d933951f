// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// GenerationDuration tracks end-to-end bundle generation duration.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_duration_seconds",
			Help:    "Bundle generation pipeline duration",
			Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 45, 60, 90},
		},
		[]string{"outcome"},
	)

	// GenerationsTotal tracks generation pipeline outcomes.
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_total",
			Help: "Total generation requests by outcome",
		},
		[]string{"outcome"},
	)

	// ProviderSearchDuration tracks product provider search call duration.
	ProviderSearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_search_duration_seconds",
			Help:    "Product provider search call duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20},
		},
		[]string{"provider", "status"},
	)

	// ProviderRetriesTotal tracks retries against rate-limited providers.
	ProviderRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_retries_total",
			Help: "Total retry attempts against product providers",
		},
		[]string{"provider"},
	)

	// ProductsFound tracks candidate products surfaced per search run.
	ProductsFound = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "products_found_per_concept",
			Help:    "Deduplicated candidate products found per concept",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"provider"},
	)

	// DuplicatesRemovedTotal tracks products discarded by deduplication.
	DuplicatesRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "product_duplicates_removed_total",
			Help: "Products removed by identity deduplication",
		},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// EnrichmentsTotal tracks enrichment pass outcomes.
	EnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichments_total",
			Help: "Product enrichment pass outcomes",
		},
		[]string{"status"},
	)

	// AnalyticsQueueDepth tracks the backlog of unrecorded analytics events.
	AnalyticsQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analytics_queue_depth",
			Help: "Analytics events waiting to be recorded",
		},
	)

	// AnalyticsDroppedTotal tracks analytics events dropped on a full queue.
	AnalyticsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_events_dropped_total",
			Help: "Analytics events dropped because the queue was full",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordGeneration records metrics for one generation pipeline run.
func RecordGeneration(outcome string, duration float64) {
	GenerationDuration.WithLabelValues(outcome).Observe(duration)
	GenerationsTotal.WithLabelValues(outcome).Inc()
}

// RecordProviderSearch records metrics for one provider search call.
func RecordProviderSearch(provider, status string, duration float64) {
	ProviderSearchDuration.WithLabelValues(provider, status).Observe(duration)
}

// RecordLLMTokens records token usage for an LLM call.
func RecordLLMTokens(model string, tokensIn, tokensOut int) {
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}
