package ranking

import "strconv"

// Entry is one candidate of a ranking: a document id with an optional score and optional content.
// Missing content means "not resolved yet", not an error.
type Entry struct {
	docID    string
	score    float64
	scored   bool
	content  string
	resolved bool
}

// Scored creates an entry with a score and no content.
func Scored(docID string, score float64) Entry {
	return Entry{docID: docID, score: score, scored: true}
}

// Unscored creates an entry without a score. Unscored entries sort after every scored one.
func Unscored(docID string) Entry {
	return Entry{docID: docID}
}

// WithContent returns a copy with resolved content.
func (e Entry) WithContent(content string) Entry {
	e.content = content
	e.resolved = true
	return e
}

// WithScore returns a copy with the given score.
func (e Entry) WithScore(score float64) Entry {
	e.score = score
	e.scored = true
	return e
}

// DocID returns the document identifier.
func (e Entry) DocID() string { return e.docID }

// Score returns the score and whether the entry has one.
func (e Entry) Score() (float64, bool) { return e.score, e.scored }

// Content returns the content and whether it has been resolved.
func (e Entry) Content() (string, bool) { return e.content, e.resolved }

// FormatScore renders a score as its raw decimal value, without exponent or trailing zeros.
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
