// Package ranking is the candidate-set container every pipeline stage consumes and produces.
//
// A Ranking owns a query id and an unordered multiset of entries. Insertion order
// only matters as the tie-break: reads through TopK are always score-ordered,
// highest first, with equal scores kept in insertion order. Duplicated document
// ids are kept as separate entries unless a stage deduplicates them.
//
// Rankings are handed from stage to stage. A stage that needs a different
// candidate set builds a new Ranking instead of editing one it received.
package ranking

import "sort"

// Ranking is the scored candidate set for one query.
type Ranking struct {
	queryID string
	entries []Entry
}

// New creates an empty ranking for queryID.
func New(queryID string) *Ranking {
	return &Ranking{queryID: queryID}
}

// FromEntries creates a ranking holding entries in the given order.
func FromEntries(queryID string, entries []Entry) *Ranking {
	r := &Ranking{queryID: queryID, entries: make([]Entry, len(entries))}
	copy(r.entries, entries)
	return r
}

// QueryID returns the query the ranking belongs to.
func (r *Ranking) QueryID() string {
	if r == nil {
		return ""
	}
	return r.queryID
}

// Len returns the number of entries, duplicates included.
func (r *Ranking) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Add appends one entry. No uniqueness check.
func (r *Ranking) Add(e Entry) {
	r.entries = append(r.entries, e)
}

// AddMany appends entries in order.
func (r *Ranking) AddMany(entries ...Entry) {
	r.entries = append(r.entries, entries...)
}

// TopK returns at most k entries sorted by score descending. Unscored entries
// come last; ties keep insertion order. k <= 0 yields an empty slice.
func (r *Ranking) TopK(k int) []Entry {
	if k <= 0 || r.Len() == 0 {
		return []Entry{}
	}

	sorted := r.Entries()
	sort.SliceStable(sorted, func(i, j int) bool {
		return before(sorted[i], sorted[j])
	})

	if k < len(sorted) {
		sorted = sorted[:k]
	}
	return sorted
}

// Sorted returns every entry in TopK order.
func (r *Ranking) Sorted() []Entry {
	return r.TopK(r.Len())
}

// Entries returns a copy of the entries in raw insertion order.
func (r *Ranking) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Documents returns ids and contents as parallel slices in raw insertion order.
// Unresolved content is returned as "".
func (r *Ranking) Documents() (ids, contents []string) {
	if r == nil {
		return nil, nil
	}
	ids = make([]string, len(r.entries))
	contents = make([]string, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.docID
		contents[i] = e.content
	}
	return ids, contents
}

// DocIDs returns the document ids in raw insertion order.
func (r *Ranking) DocIDs() []string {
	ids, _ := r.Documents()
	return ids
}

// Clone returns an independent copy.
func (r *Ranking) Clone() *Ranking {
	if r == nil {
		return nil
	}
	return FromEntries(r.queryID, r.entries)
}

// before orders scored entries by descending score, then unscored entries.
func before(a, b Entry) bool {
	if a.scored != b.scored {
		return a.scored
	}
	if !a.scored {
		return false
	}
	return a.score > b.score
}
