// Package search turns FT.SEARCH hits over the passage index into rankings.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/castrank/internal/db"
	"github.com/kailas-cloud/castrank/internal/domain/query"
	"github.com/kailas-cloud/castrank/internal/domain/ranking"
)

const contentField = "content"

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo runs lexical and vector searches over one passage index.
type Repo struct {
	store     store
	index     string
	keyPrefix string
}

// New creates a search repository over index, whose documents live under keyPrefix.
func New(s store, index, keyPrefix string) *Repo {
	return &Repo{store: s, index: index, keyPrefix: keyPrefix}
}

// SearchBM25 ranks passages for q with BM25. An expanded query sends its weighted
// terms; otherwise the question text is matched as is.
func (r *Repo) SearchBM25(ctx context.Context, q query.Query, k int) (*ranking.Ranking, error) {
	terms := bm25Terms(q)
	if len(terms) == 0 {
		return ranking.New(q.ID()), nil
	}

	sr, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    r.index,
		Field:        contentField,
		Terms:        terms,
		TopK:         k,
		ReturnFields: []string{contentField},
	})
	if err != nil {
		return nil, fmt.Errorf("bm25 search %s: %w", q.ID(), err)
	}
	return r.toRanking(q.ID(), sr), nil
}

// SearchKNN ranks passages by cosine similarity to vec.
func (r *Repo) SearchKNN(ctx context.Context, queryID string, vec []float32, k int) (*ranking.Ranking, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.index,
		Vector:       vec,
		K:            k,
		ReturnFields: []string{contentField},
	})
	if err != nil {
		return nil, fmt.Errorf("knn search %s: %w", queryID, err)
	}
	return r.toRanking(queryID, sr), nil
}

func bm25Terms(q query.Query) []db.WeightedTerm {
	if !q.IsExpanded() {
		if strings.TrimSpace(q.Question()) == "" {
			return nil
		}
		return []db.WeightedTerm{{Text: q.Question()}}
	}

	terms := q.Terms()
	out := make([]db.WeightedTerm, 0, len(terms))
	for _, t := range terms {
		if t.Weight <= 0 {
			continue
		}
		out = append(out, db.WeightedTerm{Text: t.Text, Weight: t.Weight})
	}
	return out
}

// toRanking keeps the engine's order; content is attached when the hit carries it.
func (r *Repo) toRanking(queryID string, sr *db.SearchResult) *ranking.Ranking {
	out := ranking.New(queryID)
	if sr == nil {
		return out
	}
	for _, hit := range sr.Entries {
		e := ranking.Scored(strings.TrimPrefix(hit.Key, r.keyPrefix), hit.Score)
		if c, ok := hit.Fields[contentField]; ok {
			e = e.WithContent(c)
		}
		out.Add(e)
	}
	return out
}
