package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disha_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "disha_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disha_turns_total",
			Help: "Total number of conversation turns processed.",
		},
		[]string{"status"},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "disha_generation_duration_seconds",
			Help:    "Language model generation latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	GenerationTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disha_generation_tokens_total",
			Help: "Tokens reported by the language model provider.",
		},
		[]string{"provider"},
	)

	HistoryTruncatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "disha_history_truncated_total",
			Help: "Turns whose history was cut to fit the token budget.",
		},
	)

	FactsExtractedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "disha_facts_extracted_total",
			Help: "Facts stored by background extraction.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TurnsTotal,
		GenerationDuration,
		GenerationTokens,
		HistoryTruncatedTotal,
		FactsExtractedTotal,
	)
}
