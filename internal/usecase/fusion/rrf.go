// Package fusion merges several rankings of the same query into one.
package fusion

import (
	"github.com/kailas-cloud/castrank/internal/domain/ranking"
)

// DefaultK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const DefaultK = 60

// Named is one input ranking tagged with the retriever that produced it.
type Named struct {
	Name    string
	Ranking *ranking.Ranking
}

// RRF fuses rankings via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
type RRF struct {
	K int
}

// NewRRF returns an RRF fuser. Non-positive k falls back to DefaultK.
func NewRRF(k int) *RRF {
	if k <= 0 {
		k = DefaultK
	}
	return &RRF{K: k}
}

// Fuse merges inputs into a single ranking with fused scores.
//
// Each input is ranked 1..N by descending score, ties in insertion order.
// A document repeated within one input counts once, at its best rank.
// Content comes from the first input (in argument order) that carries it.
// Documents appear in the output in first-seen order; TopK gives the fused order.
// The query id is taken from the first non-nil input.
func (f *RRF) Fuse(inputs []Named) *ranking.Ranking {
	type fused struct {
		score    float64
		content  string
		resolved bool
	}

	k := f.K
	if k <= 0 {
		k = DefaultK
	}

	queryID := ""
	merged := make(map[string]*fused)
	var order []string

	for _, in := range inputs {
		if in.Ranking == nil {
			continue
		}
		if queryID == "" {
			queryID = in.Ranking.QueryID()
		}

		seen := make(map[string]struct{}, in.Ranking.Len())
		for rank, e := range in.Ranking.Sorted() {
			if _, dup := seen[e.DocID()]; dup {
				continue
			}
			seen[e.DocID()] = struct{}{}
			s := 1.0 / float64(k+rank+1)

			cur, ok := merged[e.DocID()]
			if !ok {
				cur = &fused{}
				merged[e.DocID()] = cur
				order = append(order, e.DocID())
			}
			cur.score += s

			if !cur.resolved {
				if c, ok := e.Content(); ok {
					cur.content, cur.resolved = c, true
				}
			}
		}
	}

	out := ranking.New(queryID)
	for _, id := range order {
		m := merged[id]
		e := ranking.Scored(id, m.score)
		if m.resolved {
			e = e.WithContent(m.content)
		}
		out.Add(e)
	}
	return out
}
