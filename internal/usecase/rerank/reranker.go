// Package rerank re-scores a candidate window with an external relevance scorer.
package rerank

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/castrank/internal/domain"
	"github.com/kailas-cloud/castrank/internal/domain/query"
	"github.com/kailas-cloud/castrank/internal/domain/ranking"
	"github.com/kailas-cloud/castrank/internal/logger"
	"github.com/kailas-cloud/castrank/internal/metrics"
)

// DefaultBatchSize is the number of passages sent to a scorer per call.
const DefaultBatchSize = 32

// Reranker re-scores the top topK documents of r for q. topK <= 0 re-scores all of them.
// Documents outside the window are not part of the result.
type Reranker interface {
	Rerank(ctx context.Context, q query.Query, r *ranking.Ranking, topK int) (*ranking.Ranking, error)
}

// Scorer returns one relevance score per passage, aligned with passages.
type Scorer interface {
	Name() string
	Score(ctx context.Context, question string, passages []string) ([]float64, error)
}

// Scoring is a Reranker over any Scorer.
type Scoring struct {
	scorer    Scorer
	batchSize int
	resolver  ranking.ContentResolver
}

// NewScoring creates a reranker. resolver fills passages the ranking has no content for.
func NewScoring(s Scorer, batchSize int, resolver ranking.ContentResolver) *Scoring {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Scoring{scorer: s, batchSize: batchSize, resolver: resolver}
}

// Rerank implements Reranker. The result keeps the window's ids and content with new scores,
// in window order.
func (s *Scoring) Rerank(ctx context.Context, q query.Query, r *ranking.Ranking, topK int) (*ranking.Ranking, error) {
	window := r.Sorted()
	if topK > 0 {
		window = r.TopK(topK)
	}
	if len(window) == 0 {
		return ranking.New(r.QueryID()), nil
	}

	win, err := s.resolve(ctx, ranking.FromEntries(r.QueryID(), window))
	if err != nil {
		return nil, err
	}
	entries := win.Entries()
	_, passages := win.Documents()

	start := time.Now()
	scores := make([]float64, 0, len(entries))
	for off := 0; off < len(passages); off += s.batchSize {
		end := min(off+s.batchSize, len(passages))
		batch, err := s.scorer.Score(ctx, q.Question(), passages[off:end])
		if err != nil {
			metrics.ScorerRequestsTotal.WithLabelValues(s.scorer.Name(), "error").Inc()
			return nil, fmt.Errorf("%s rerank %s: %w", s.scorer.Name(), q.ID(), err)
		}
		metrics.ScorerRequestsTotal.WithLabelValues(s.scorer.Name(), "ok").Inc()
		if len(batch) != end-off {
			return nil, fmt.Errorf("%s rerank %s: %d scores for %d passages", s.scorer.Name(), q.ID(), len(batch), end-off)
		}
		scores = append(scores, batch...)
	}

	out := ranking.New(r.QueryID())
	for i, e := range entries {
		out.Add(e.WithScore(scores[i]))
	}

	logger.FromContext(ctx).Debug("reranked",
		zap.String("scorer", s.scorer.Name()),
		zap.Int("window", len(entries)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func (s *Scoring) resolve(ctx context.Context, win *ranking.Ranking) (*ranking.Ranking, error) {
	if s.resolver != nil {
		out, err := ranking.Resolve(ctx, win, s.resolver)
		if err != nil {
			return nil, fmt.Errorf("rerank content: %w", err)
		}
		return out, nil
	}
	for _, e := range win.Entries() {
		if _, ok := e.Content(); !ok {
			return nil, fmt.Errorf("rerank content: %w", domain.NewResolutionError(e.DocID()))
		}
	}
	return win, nil
}
