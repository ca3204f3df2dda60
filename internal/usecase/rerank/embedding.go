package rerank

import (
	"context"
	"fmt"
	"math"

	"github.com/kailas-cloud/castrank/internal/domain"
)

// EmbeddingScorer scores passages by cosine similarity to the question embedding.
// Query and passage embedders may differ only in their instruction prefix.
type EmbeddingScorer struct {
	queries  domain.Embedder
	passages domain.Embedder
}

// NewEmbeddingScorer creates a scorer. passages usually sits behind the embedding cache.
func NewEmbeddingScorer(queries, passages domain.Embedder) *EmbeddingScorer {
	return &EmbeddingScorer{queries: queries, passages: passages}
}

// Name implements Scorer.
func (s *EmbeddingScorer) Name() string { return "embedding" }

// Score implements Scorer.
func (s *EmbeddingScorer) Score(ctx context.Context, question string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	qv, err := s.queries.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	pv, err := domain.BatchEmbedAny(ctx, s.passages, passages)
	if err != nil {
		return nil, fmt.Errorf("embed passages: %w", err)
	}
	if len(pv.Embeddings) != len(passages) {
		return nil, fmt.Errorf("got %d passage vectors for %d passages: %w",
			len(pv.Embeddings), len(passages), domain.ErrEmbeddingProviderError)
	}

	out := make([]float64, len(passages))
	for i, v := range pv.Embeddings {
		out[i] = Cosine(qv.Embedding, v)
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector
// or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
