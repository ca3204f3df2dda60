// Package query holds the conversational query value and the turn history it is rewritten against.
package query

import (
	"strings"
	"unicode"
)

// Term is one weighted term of an expanded query.
type Term struct {
	Text   string
	Weight float64
}

// Query is an immutable (query id, question) pair, optionally carrying a weighted-term representation.
// Every rewrite produces a new value.
type Query struct {
	id       string
	question string
	terms    []Term
}

// New creates a query. id is "<topic>_<turn>" with an optional "|<leaf>" suffix.
func New(id, question string) Query {
	return Query{id: id, question: question}
}

// ID returns the query identifier.
func (q Query) ID() string { return q.id }

// Question returns the query text.
func (q Query) Question() string { return q.question }

// Terms returns a copy of the weighted terms; empty when the query was never expanded.
func (q Query) Terms() []Term {
	if len(q.terms) == 0 {
		return nil
	}
	out := make([]Term, len(q.terms))
	copy(out, q.terms)
	return out
}

// IsExpanded reports whether the query carries weighted terms.
func (q Query) IsExpanded() bool { return len(q.terms) > 0 }

// WithQuestion returns a copy with a new question. Weighted terms are dropped: they described the old text.
func (q Query) WithQuestion(question string) Query {
	return Query{id: q.id, question: question}
}

// WithTerms returns a copy carrying the given weighted terms.
func (q Query) WithTerms(terms []Term) Query {
	cp := make([]Term, len(terms))
	copy(cp, terms)
	return Query{id: q.id, question: q.question, terms: cp}
}

// TopicID returns the part of the id before the first underscore.
func (q Query) TopicID() string {
	topic, _, _ := strings.Cut(q.id, "_")
	return topic
}

// TurnID returns the part of the id after the first underscore, without the leaf suffix.
func (q Query) TurnID() string {
	_, rest, ok := strings.Cut(q.id, "_")
	if !ok {
		return ""
	}
	turn, _, _ := strings.Cut(rest, "|")
	return turn
}

// LeafID returns the mixed-initiative branch suffix after "|", or "".
func (q Query) LeafID() string {
	_, leaf, _ := strings.Cut(q.id, "|")
	return leaf
}

// TermWeights returns the expanded terms as a map, or the question's
// normalized term frequencies when the query was never expanded.
func (q Query) TermWeights() map[string]float64 {
	weights := make(map[string]float64)
	if len(q.terms) > 0 {
		for _, t := range q.terms {
			weights[t.Text] += t.Weight
		}
		return weights
	}

	tokens := Tokenize(q.question)
	if len(tokens) == 0 {
		return weights
	}
	inc := 1.0 / float64(len(tokens))
	for _, tok := range tokens {
		weights[tok] += inc
	}
	return weights
}

// Tokenize lowercases text and splits it on anything that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
