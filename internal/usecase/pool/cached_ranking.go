// Package pool widens a turn's candidate set with documents retrieved in earlier turns of the same topic.
package pool

import (
	"sync"

	"github.com/kailas-cloud/castrank/internal/domain/ranking"
)

// CachedRanking keeps, per topic, the doc id sets of the last N committed turns.
// Commit must be called once per successful turn, in turn order within a topic.
// Out-of-order calls are not detected; the history simply records commits as they arrive.
type CachedRanking struct {
	window int

	mu      sync.Mutex
	history map[string][][]string
}

// New creates a pool with a history of window turns per topic.
// A window of 0 disables pooling and Expand returns a deduplicated copy of its input.
func New(window int) *CachedRanking {
	if window < 0 {
		window = 0
	}
	return &CachedRanking{
		window:  window,
		history: make(map[string][][]string),
	}
}

// Window returns the number of previous turns that feed the pool.
func (c *CachedRanking) Window() int { return c.window }

// Expand returns current extended with every document committed in the last
// window turns of topicID. It does not record anything.
//
// Documents of current keep their entries; pooled documents are appended unscored
// and without content, so they sort after every scored candidate. No doc id appears twice.
// The input ranking is not modified.
func (c *CachedRanking) Expand(topicID string, current *ranking.Ranking) *ranking.Ranking {
	out := ranking.New(current.QueryID())
	seen := make(map[string]struct{}, current.Len())

	for _, e := range current.Entries() {
		if _, ok := seen[e.DocID()]; ok {
			continue
		}
		seen[e.DocID()] = struct{}{}
		out.Add(e)
	}

	if c.window == 0 {
		return out
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, turn := range c.history[topicID] {
		for _, id := range turn {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out.Add(ranking.Unscored(id))
		}
	}
	return out
}

// Commit records the doc ids of retrieved as the newest turn of topicID,
// evicting the oldest turn once the window is full. retrieved is the turn's
// own candidate set, before pooling.
func (c *CachedRanking) Commit(topicID string, retrieved *ranking.Ranking) {
	if c.window == 0 {
		return
	}
	seen := make(map[string]struct{}, retrieved.Len())
	ids := make([]string, 0, retrieved.Len())
	for _, e := range retrieved.Entries() {
		if _, ok := seen[e.DocID()]; ok {
			continue
		}
		seen[e.DocID()] = struct{}{}
		ids = append(ids, e.DocID())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := append(c.history[topicID], ids)
	if len(prev) > c.window {
		prev = prev[len(prev)-c.window:]
	}
	c.history[topicID] = prev
}

// Reset forgets the history of topicID.
func (c *CachedRanking) Reset(topicID string) {
	c.mu.Lock()
	delete(c.history, topicID)
	c.mu.Unlock()
}

// Topics returns the number of topics with recorded history.
func (c *CachedRanking) Topics() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}
