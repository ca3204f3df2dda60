// Package passage stores passage text in Redis hashes and resolves doc ids to content.
package passage

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kailas-cloud/castrank/internal/db"
	"github.com/kailas-cloud/castrank/internal/domain"
)

// Hash fields of a stored passage.
const (
	FieldContent    = "content"
	FieldCollection = "collection"
	FieldVector     = "vector"
)

// store is the consumer interface for passage storage (ISP).
type store interface {
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
}

// Passage is one retrievable unit of the collection.
type Passage struct {
	ID      string
	Content string
	Vector  []float32 // optional
}

// Repo resolves passage content with an in-process LRU in front of Redis.
type Repo struct {
	store  store
	prefix string
	memo   *lru.Cache[string, string]
}

// New creates a passage repository. Keys are "<prefix>passage:<id>"; an empty
// prefix falls back to domain.KeyPrefix. memoSize <= 0 disables the LRU.
func New(s store, prefix string, memoSize int) (*Repo, error) {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	r := &Repo{store: s, prefix: prefix + "passage:"}
	if memoSize > 0 {
		memo, err := lru.New[string, string](memoSize)
		if err != nil {
			return nil, fmt.Errorf("passage memo: %w", err)
		}
		r.memo = memo
	}
	return r, nil
}

// KeyPrefix is the key prefix every passage hash carries. The FT index is declared over it.
func (r *Repo) KeyPrefix() string { return r.prefix }

// Key returns the hash key of a passage.
func (r *Repo) Key(id string) string { return r.prefix + id }

// DocID strips the key prefix from a hash key.
func (r *Repo) DocID(key string) string { return strings.TrimPrefix(key, r.prefix) }

// Get returns the content of one passage.
func (r *Repo) Get(ctx context.Context, id string) (string, error) {
	out, err := r.MGet(ctx, []string{id})
	if err != nil {
		return "", err
	}
	return out[0], nil
}

// MGet returns the contents of ids in the same order.
// Memoized ids are served locally; the rest are fetched in one round-trip.
// An id without a stored passage fails the call with a *domain.ResolutionError.
func (r *Repo) MGet(ctx context.Context, ids []string) ([]string, error) {
	out := make([]string, len(ids))
	var missKeys []string
	var missIdx []int

	for i, id := range ids {
		if r.memo != nil {
			if c, ok := r.memo.Get(id); ok {
				out[i] = c
				continue
			}
		}
		missIdx = append(missIdx, i)
		missKeys = append(missKeys, r.Key(id))
	}
	if len(missKeys) == 0 {
		return out, nil
	}

	hashes, err := r.store.HGetAllMulti(ctx, missKeys)
	if err != nil {
		return nil, fmt.Errorf("fetch %d passages: %w", len(missKeys), err)
	}
	if len(hashes) != len(missKeys) {
		return nil, fmt.Errorf("fetch passages: got %d hashes for %d keys", len(hashes), len(missKeys))
	}

	for j, i := range missIdx {
		content, ok := hashes[j][FieldContent]
		if !ok {
			return nil, domain.NewResolutionError(ids[i])
		}
		out[i] = content
		if r.memo != nil {
			r.memo.Add(ids[i], content)
		}
	}
	return out, nil
}

// Put writes passages in one pipelined batch.
func (r *Repo) Put(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(passages))
	for i, p := range passages {
		fields := map[string]string{
			FieldContent:    p.Content,
			FieldCollection: Collection(p.ID),
		}
		if len(p.Vector) > 0 {
			fields[FieldVector] = db.EncodeVector(p.Vector)
		}
		items[i] = db.HashSetItem{Key: r.Key(p.ID), Fields: fields}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("store %d passages: %w", len(passages), err)
	}
	if r.memo != nil {
		for _, p := range passages {
			r.memo.Remove(p.ID)
		}
	}
	return nil
}

// Collection returns the source collection encoded in a CAsT doc id ("MARCO_123" → "MARCO"),
// or "" when the id has no such prefix.
func Collection(id string) string {
	before, _, ok := strings.Cut(id, "_")
	if !ok {
		return ""
	}
	return before
}
