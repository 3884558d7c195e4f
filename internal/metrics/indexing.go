package metrics

import "github.com/prometheus/client_golang/prometheus"

// Index propagation and query Prometheus metrics.
var (
	IndexPropagationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kedb",
			Name:      "index_propagation_failures_total",
			Help:      "Index writes that failed after a successful store write",
		},
		[]string{"index", "op"}, // op: "upsert" / "delete"
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kedb",
			Name:      "search_requests_total",
			Help:      "Total number of search queries",
		},
		[]string{"index", "status"},
	)

	SearchRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kedb",
			Name:      "search_request_duration_seconds",
			Help:      "Search query duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"index"},
	)

	ReindexDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kedb",
			Name:      "reindex_documents_total",
			Help:      "Documents processed by reindex sweeps",
		},
		[]string{"index", "status"},
	)
)

var indexingMetricsRegistered bool

// RegisterIndexingMetrics registers the indexing metrics. Must be called
// once from main.
func RegisterIndexingMetrics() {
	if indexingMetricsRegistered {
		return
	}
	prometheus.MustRegister(IndexPropagationFailures)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchRequestDuration)
	prometheus.MustRegister(ReindexDocumentsTotal)
	indexingMetricsRegistered = true
}
