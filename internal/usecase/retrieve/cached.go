package retrieve

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/castrank/internal/domain/query"
	"github.com/kailas-cloud/castrank/internal/domain/ranking"
	"github.com/kailas-cloud/castrank/internal/logger"
)

// Cached replays a previously saved run instead of querying an index.
type Cached struct {
	run *ranking.Run
}

// NewCached creates a retriever over a loaded TSV or TREC run.
func NewCached(run *ranking.Run) *Cached {
	return &Cached{run: run}
}

// Retrieve returns the saved top-k for q's id. When the run stored the query
// text (TSV runs), the returned query carries that text instead of q's.
// An id absent from the run yields an empty ranking.
func (r *Cached) Retrieve(ctx context.Context, q query.Query, k int) (query.Query, *ranking.Ranking, error) {
	rk, ok := r.run.Get(q.ID())
	if !ok {
		logger.FromContext(ctx).Warn("query not in cached run", zap.String("query_id", q.ID()))
		return q, ranking.New(q.ID()), nil
	}

	out := q
	if stored, ok := r.run.Question(q.ID()); ok && stored != "" && stored != q.Question() {
		logger.FromContext(ctx).Debug("cached run used a different query text",
			zap.String("query_id", q.ID()),
			zap.String("stored", stored),
		)
		out = q.WithQuestion(stored)
	}
	return out, ranking.FromEntries(q.ID(), rk.TopK(k)), nil
}
