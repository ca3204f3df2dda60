// Package rewrite resolves a conversational question against the turns before it.
package rewrite

import (
	"context"

	"github.com/kailas-cloud/castrank/internal/domain/query"
	"github.com/kailas-cloud/castrank/internal/domain/topic"
)

// Rewriter turns q into a self-contained query. The result depends only on q and history.
type Rewriter interface {
	Rewrite(ctx context.Context, q query.Query, history query.Context) (query.Query, error)
}

// Passthrough returns the query unchanged.
type Passthrough struct{}

// Rewrite implements Rewriter.
func (Passthrough) Rewrite(_ context.Context, q query.Query, _ query.Context) (query.Query, error) {
	return q, nil
}

// Table looks rewrites up in a precomputed query id -> text table.
type Table struct {
	rewrites map[string]string
}

// NewTable creates a table rewriter. The map is copied.
func NewTable(rewrites map[string]string) *Table {
	cp := make(map[string]string, len(rewrites))
	for k, v := range rewrites {
		cp[k] = v
	}
	return &Table{rewrites: cp}
}

// Rewrite returns the stored rewrite for q's id, or q itself when the table has none.
func (t *Table) Rewrite(_ context.Context, q query.Query, _ query.Context) (query.Query, error) {
	text, ok := t.rewrites[q.ID()]
	if !ok || text == "" {
		return q, nil
	}
	return q.WithQuestion(text), nil
}

// Len returns the number of rewrites in the table.
func (t *Table) Len() int { return len(t.rewrites) }

// FromTopics builds a table from the manual or automatic rewrites shipped with the topics.
// Turns without that form are left out so they pass through unchanged.
func FromTopics(topics []topic.Topic, kind topic.UtteranceKind) *Table {
	t := &Table{rewrites: make(map[string]string)}
	for _, tp := range topics {
		for _, turn := range tp.Turns {
			var text string
			switch kind {
			case topic.Manual:
				text = turn.Manual
			case topic.Automatic:
				text = turn.Automatic
			}
			if text != "" {
				t.rewrites[topic.QueryID(tp.ID, turn.Number)] = text
			}
		}
	}
	return t
}
