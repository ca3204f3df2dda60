package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline metrics, labelled by stage: rewrite, expand, retrieve, fuse, pool, rerank, rerank2, persist.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "castrank",
			Name:      "stage_duration_seconds",
			Help:      "Time spent per pipeline stage and query",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "castrank",
			Name:      "queries_total",
			Help:      "Queries processed, by outcome",
		},
		[]string{"status"}, // "ok" / "error"
	)

	Candidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "castrank",
			Name:      "candidates",
			Help:      "Ranking size after each stage",
			Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"stage"},
	)

	PoolExpandedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "castrank",
			Name:      "pool_expanded_total",
			Help:      "Documents added to a turn's pool from previous turns",
		},
	)

	ScorerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "castrank",
			Name:      "scorer_requests_total",
			Help:      "Calls to external relevance scorers",
		},
		[]string{"scorer", "status"},
	)
)

var registerPipeline sync.Once

// RegisterPipelineMetrics registers the pipeline and scorer metrics. Idempotent.
func RegisterPipelineMetrics() {
	registerPipeline.Do(func() {
		prometheus.MustRegister(StageDuration, QueriesTotal, Candidates, PoolExpandedTotal, ScorerRequestsTotal)
	})
}
