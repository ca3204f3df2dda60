package pipeline

import (
	"context"

	"github.com/kailas-cloud/castrank/internal/domain/query"
	"github.com/kailas-cloud/castrank/internal/domain/ranking"
	"github.com/kailas-cloud/castrank/internal/usecase/fusion"
)

// Rewriter resolves a question against the conversation so far.
type Rewriter interface {
	Rewrite(ctx context.Context, q query.Query, history query.Context) (query.Query, error)
}

// Expander turns a query into a weighted-term query.
type Expander interface {
	Expand(ctx context.Context, q query.Query) (query.Query, error)
}

// Retriever produces a first-stage candidate set and the query downstream stages must use.
type Retriever interface {
	Retrieve(ctx context.Context, q query.Query, k int) (query.Query, *ranking.Ranking, error)
}

// Reranker re-scores the top topK candidates.
type Reranker interface {
	Rerank(ctx context.Context, q query.Query, r *ranking.Ranking, topK int) (*ranking.Ranking, error)
}

// Pool adds the previous turns' candidates of a topic to the current ranking.
// Expand only reads; Commit records a turn once it has succeeded.
type Pool interface {
	Expand(topicID string, current *ranking.Ranking) *ranking.Ranking
	Commit(topicID string, retrieved *ranking.Ranking)
}

// Fuser merges several rankings of the same query.
type Fuser interface {
	Fuse(inputs []fusion.Named) *ranking.Ranking
}

// Sink persists the final ranking of a query.
type Sink interface {
	Write(ctx context.Context, r *ranking.Ranking, queryText string) error
}
