package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every pipeline collector. It is separate from the global
// default registry so tests can read values without process-wide state.
var Registry = prometheus.NewRegistry()

// Prometheus metrics
var (
	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mmrag_chunks_indexed_total",
			Help: "Total number of chunks upserted into the vector store",
		},
	)
	ChunksPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mmrag_chunks_pruned_total",
			Help: "Total number of chunks removed by prune or prefix delete",
		},
	)
	EmbeddingFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mmrag_embedding_failures_total",
			Help: "Total number of failed or mismatched embedding batches",
		},
	)
	FilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmrag_files_total",
			Help: "Total number of ingested inputs by outcome",
		},
		[]string{"outcome"},
	)
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmrag_queries_total",
			Help: "Total number of questions by outcome",
		},
		[]string{"outcome"},
	)
	SynthesisFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mmrag_synthesis_fallbacks_total",
			Help: "Total number of remote answers replaced by the extractive answer",
		},
	)
	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mmrag_query_duration_seconds",
			Help:    "Duration of question answering in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
	)
)

func init() {
	Registry.MustRegister(ChunksIndexed, ChunksPruned, EmbeddingFailures, FilesTotal,
		QueriesTotal, SynthesisFallbacks, QueryDuration)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
