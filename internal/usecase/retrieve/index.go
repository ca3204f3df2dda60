package retrieve

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/castrank/internal/domain/query"
	"github.com/kailas-cloud/castrank/internal/domain/ranking"
)

// Index retrieves with BM25 over the passage index.
type Index struct {
	searcher LexicalSearcher
}

// NewIndex creates a BM25 retriever.
func NewIndex(s LexicalSearcher) *Index {
	return &Index{searcher: s}
}

// Retrieve returns the k best BM25 matches. A blank query yields an empty ranking.
func (r *Index) Retrieve(ctx context.Context, q query.Query, k int) (query.Query, *ranking.Ranking, error) {
	if k <= 0 || (!q.IsExpanded() && strings.TrimSpace(q.Question()) == "") {
		return q, ranking.New(q.ID()), nil
	}
	rk, err := r.searcher.SearchBM25(ctx, q, k)
	if err != nil {
		return q, nil, fmt.Errorf("bm25 retrieve: %w", err)
	}
	return q, rk, nil
}

// Dense retrieves by embedding the question and running a KNN search.
// Weighted terms are ignored: the vector is built from the question text.
type Dense struct {
	embedder Embedder
	searcher VectorSearcher
}

// NewDense creates a dense retriever. Query instructions belong on the embedder.
func NewDense(e Embedder, s VectorSearcher) *Dense {
	return &Dense{embedder: e, searcher: s}
}

// Retrieve embeds q's question and returns its k nearest passages.
func (r *Dense) Retrieve(ctx context.Context, q query.Query, k int) (query.Query, *ranking.Ranking, error) {
	if k <= 0 || strings.TrimSpace(q.Question()) == "" {
		return q, ranking.New(q.ID()), nil
	}
	emb, err := r.embedder.Embed(ctx, q.Question())
	if err != nil {
		return q, nil, fmt.Errorf("embed query %s: %w", q.ID(), err)
	}
	rk, err := r.searcher.SearchKNN(ctx, q.ID(), emb.Embedding, k)
	if err != nil {
		return q, nil, fmt.Errorf("dense retrieve: %w", err)
	}
	return q, rk, nil
}
