// Package expand adds pseudo-relevance feedback terms to a query.
package expand

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/castrank/internal/domain/query"
	"github.com/kailas-cloud/castrank/internal/domain/ranking"
	"github.com/kailas-cloud/castrank/internal/logger"
)

// Defaults for the feedback model.
const (
	DefaultDocs  = 10
	DefaultTerms = 10
	DefaultAlpha = 0.5
)

// Expander rewrites a query into a weighted-term representation.
type Expander interface {
	Expand(ctx context.Context, q query.Query) (query.Query, error)
}

// retriever is the consumer interface for the feedback retrieval (ISP).
type retriever interface {
	Retrieve(ctx context.Context, q query.Query, k int) (query.Query, *ranking.Ranking, error)
}

// Config tunes the feedback model. Zero Docs and Terms take the defaults.
type Config struct {
	Docs  int
	Terms int
	// Alpha is the weight of the original query: 0 keeps feedback terms only,
	// 1 disables feedback. Values outside [0, 1] fall back to DefaultAlpha.
	Alpha float64
}

// PRF is an RM3-style expander: it retrieves feedback documents, estimates a
// relevance model from their term statistics and interpolates it with the
// original query's term weights.
type PRF struct {
	retriever retriever
	resolver  ranking.ContentResolver
	docs      int
	terms     int
	alpha     float64
}

// NewPRF creates an expander over r. resolver fills feedback documents whose
// content the retriever did not return; it may be nil when r always does.
func NewPRF(r retriever, resolver ranking.ContentResolver, cfg Config) *PRF {
	p := &PRF{retriever: r, resolver: resolver, docs: cfg.Docs, terms: cfg.Terms, alpha: cfg.Alpha}
	if p.docs <= 0 {
		p.docs = DefaultDocs
	}
	if p.terms <= 0 {
		p.terms = DefaultTerms
	}
	if p.alpha < 0 || p.alpha > 1 {
		p.alpha = DefaultAlpha
	}
	return p
}

// Expand returns q carrying the interpolated term weights. Without feedback
// documents q is returned unchanged.
func (p *PRF) Expand(ctx context.Context, q query.Query) (query.Query, error) {
	_, rk, err := p.retriever.Retrieve(ctx, q, p.docs)
	if err != nil {
		return q, fmt.Errorf("feedback retrieval: %w", err)
	}
	top := ranking.FromEntries(q.ID(), rk.TopK(p.docs))
	if top.Len() == 0 {
		logger.FromContext(ctx).Debug("no feedback documents", zap.String("query_id", q.ID()))
		return q, nil
	}
	if p.resolver != nil {
		if top, err = ranking.Resolve(ctx, top, p.resolver); err != nil {
			return q, fmt.Errorf("feedback content: %w", err)
		}
	}

	feedback := p.relevanceModel(top.Sorted())
	original := normalize(filterWeights(q.TermWeights()))

	merged := make(map[string]float64, len(original)+len(feedback))
	if p.alpha > 0 {
		for t, w := range original {
			merged[t] += p.alpha * w
		}
	}
	if p.alpha < 1 {
		for t, w := range feedback {
			merged[t] += (1 - p.alpha) * w
		}
	}
	if len(merged) == 0 {
		return q, nil
	}
	return q.WithTerms(sortedTerms(merged)), nil
}

// relevanceModel scores every term by sum_d p(d) * tf(t,d)/|d| and keeps the best p.terms, normalized.
func (p *PRF) relevanceModel(docs []ranking.Entry) map[string]float64 {
	prior := docPriors(docs)
	scores := make(map[string]float64)
	for i, d := range docs {
		content, _ := d.Content()
		var toks []string
		for _, tok := range query.Tokenize(content) {
			if keep(tok) {
				toks = append(toks, tok)
			}
		}
		if len(toks) == 0 {
			continue
		}
		inc := prior[i] / float64(len(toks))
		for _, tok := range toks {
			scores[tok] += inc
		}
	}

	best := sortedTerms(scores)
	if len(best) > p.terms {
		best = best[:p.terms]
	}
	out := make(map[string]float64, len(best))
	for _, t := range best {
		out[t.Text] = t.Weight
	}
	return normalize(out)
}

// docPriors normalizes retrieval scores into p(d). Missing or non-positive scores fall back to uniform.
func docPriors(docs []ranking.Entry) []float64 {
	prior := make([]float64, len(docs))
	var sum float64
	uniform := false
	for i, d := range docs {
		s, ok := d.Score()
		if !ok || s <= 0 {
			uniform = true
			break
		}
		prior[i] = s
		sum += s
	}
	if uniform || sum == 0 {
		for i := range prior {
			prior[i] = 1 / float64(len(docs))
		}
		return prior
	}
	for i := range prior {
		prior[i] /= sum
	}
	return prior
}

// filterWeights drops stopwords from the original weights unless nothing would remain.
func filterWeights(w map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for t, v := range w {
		if keep(t) {
			out[t] = v
		}
	}
	if len(out) == 0 {
		return w
	}
	return out
}

func normalize(w map[string]float64) map[string]float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		return w
	}
	out := make(map[string]float64, len(w))
	for t, v := range w {
		out[t] = v / sum
	}
	return out
}

// sortedTerms orders by weight descending, then text, so output is deterministic.
func sortedTerms(w map[string]float64) []query.Term {
	out := make([]query.Term, 0, len(w))
	for t, v := range w {
		out = append(out, query.Term{Text: t, Weight: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Text < out[j].Text
	})
	return out
}
