package ranking

import (
	"context"
	"fmt"
)

// Resolve returns a copy of r where every entry without content has been filled
// through resolver. Entries that already carry content are left untouched and
// each unresolved id is requested once.
func Resolve(ctx context.Context, r *Ranking, resolver ContentResolver) (*Ranking, error) {
	out := r.Clone()
	if out == nil {
		return nil, nil
	}

	var missing []string
	seen := make(map[string]struct{})
	for _, e := range out.entries {
		if e.resolved {
			continue
		}
		if _, ok := seen[e.docID]; ok {
			continue
		}
		seen[e.docID] = struct{}{}
		missing = append(missing, e.docID)
	}
	if len(missing) == 0 {
		return out, nil
	}

	contents, err := resolver.MGet(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("resolve content: %w", err)
	}
	if len(contents) != len(missing) {
		return nil, fmt.Errorf("resolve content: got %d passages for %d ids", len(contents), len(missing))
	}

	byID := make(map[string]string, len(missing))
	for i, id := range missing {
		byID[id] = contents[i]
	}
	for i, e := range out.entries {
		if !e.resolved {
			out.entries[i] = e.WithContent(byID[e.docID])
		}
	}
	return out, nil
}
