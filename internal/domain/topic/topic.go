// Package topic models CAsT conversations: a topic is an ordered list of 1-indexed turns.
package topic

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/castrank/internal/domain/query"
)

// UtteranceKind selects which form of a turn's utterance becomes the query text.
type UtteranceKind string

const (
	// Raw is the utterance as the user typed it.
	Raw UtteranceKind = "raw"
	// Manual is the human-resolved rewrite.
	Manual UtteranceKind = "manual"
	// Automatic is the organizer-provided automatic rewrite.
	Automatic UtteranceKind = "automatic"
)

// ParseUtteranceKind validates a configured utterance kind.
func ParseUtteranceKind(s string) (UtteranceKind, error) {
	switch k := UtteranceKind(s); k {
	case Raw, Manual, Automatic:
		return k, nil
	case "":
		return Raw, nil
	default:
		return "", fmt.Errorf("unknown utterance kind %q", s)
	}
}

// Turn is one utterance of a conversation.
type Turn struct {
	Number            int
	Raw               string
	Manual            string
	Automatic         string
	CanonicalResultID string
}

// Utterance returns the requested form, falling back to the raw utterance when it is empty.
func (t Turn) Utterance(kind UtteranceKind) string {
	switch kind {
	case Manual:
		if t.Manual != "" {
			return t.Manual
		}
	case Automatic:
		if t.Automatic != "" {
			return t.Automatic
		}
	}
	return t.Raw
}

// Topic is one conversation. Loaded once and read-only afterwards.
type Topic struct {
	ID    string
	Turns []Turn
}

// QueryID builds the "<topic>_<turn>" identifier.
func QueryID(topicID string, turn int) string {
	return topicID + "_" + strconv.Itoa(turn)
}

// Queries returns the topic's turns as queries, in turn order.
func (t Topic) Queries(kind UtteranceKind) []query.Query {
	out := make([]query.Query, len(t.Turns))
	for i, turn := range t.Turns {
		out[i] = query.New(QueryID(t.ID, turn.Number), turn.Utterance(kind))
	}
	return out
}
