package retrieve

import (
	"context"

	"github.com/kailas-cloud/castrank/internal/domain"
	"github.com/kailas-cloud/castrank/internal/domain/query"
	"github.com/kailas-cloud/castrank/internal/domain/ranking"
)

// Retriever produces the first candidate set for a query.
// The returned query is the one downstream stages must use: a replayed run
// may carry a different question than the caller's.
type Retriever interface {
	Retrieve(ctx context.Context, q query.Query, k int) (query.Query, *ranking.Ranking, error)
}

// LexicalSearcher runs a BM25 search over the passage index.
type LexicalSearcher interface {
	SearchBM25(ctx context.Context, q query.Query, k int) (*ranking.Ranking, error)
}

// VectorSearcher runs a KNN search over the passage index.
type VectorSearcher interface {
	SearchKNN(ctx context.Context, queryID string, vec []float32, k int) (*ranking.Ranking, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
