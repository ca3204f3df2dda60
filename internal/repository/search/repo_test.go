package search

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/castrank/internal/db"
	"github.com/kailas-cloud/castrank/internal/domain/query"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn  func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchBM25Fn func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchBM25Fn != nil {
		return m.searchBM25Fn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "castrank:passages:idx", "castrank:passage:"), ms
}

func hits() *db.SearchResult {
	return &db.SearchResult{
		Total: 2,
		Entries: []db.SearchEntry{
			{Key: "castrank:passage:MARCO_1", Score: 12.5, Fields: map[string]string{"content": "first"}},
			{Key: "castrank:passage:CAR_x-2", Score: 8, Fields: map[string]string{}},
		},
	}
}

func TestSearchBM25_Question(t *testing.T) {
	repo, ms := newTestRepo(t)

	var got *db.TextQuery
	ms.searchBM25Fn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		got = q
		return hits(), nil
	}

	r, err := repo.SearchBM25(context.Background(), query.New("31_1", "what is throat cancer"), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.IndexName != "castrank:passages:idx" || got.TopK != 100 {
		t.Errorf("unexpected query %+v", got)
	}
	if len(got.Terms) != 1 || got.Terms[0].Text != "what is throat cancer" || got.Terms[0].Weight != 0 {
		t.Errorf("expected the question as one unweighted term, got %+v", got.Terms)
	}

	if r.QueryID() != "31_1" || r.Len() != 2 {
		t.Fatalf("unexpected ranking %s/%d", r.QueryID(), r.Len())
	}
	top := r.TopK(2)
	if top[0].DocID() != "MARCO_1" {
		t.Errorf("key prefix not stripped: %s", top[0].DocID())
	}
	if c, ok := top[0].Content(); !ok || c != "first" {
		t.Errorf("content = %q, %v", c, ok)
	}
	if _, ok := top[1].Content(); ok {
		t.Error("hit without content field should stay unresolved")
	}
}

func TestSearchBM25_WeightedTerms(t *testing.T) {
	repo, ms := newTestRepo(t)

	var got *db.TextQuery
	ms.searchBM25Fn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{}, nil
	}

	q := query.New("31_1", "throat cancer").WithTerms([]query.Term{
		{Text: "throat", Weight: 0.6},
		{Text: "dropped", Weight: 0},
		{Text: "cancer", Weight: 0.4},
	})
	if _, err := repo.SearchBM25(context.Background(), q, 10); err != nil {
		t.Fatal(err)
	}
	if len(got.Terms) != 2 || got.Terms[0].Text != "throat" || got.Terms[1].Weight != 0.4 {
		t.Errorf("unexpected terms %+v", got.Terms)
	}
}

func TestSearchBM25_EmptyQuestion(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchBM25Fn = func(context.Context, *db.TextQuery) (*db.SearchResult, error) {
		t.Fatal("store should not be called")
		return nil, nil
	}

	r, err := repo.SearchBM25(context.Background(), query.New("1_1", "  "), 10)
	if err != nil || r.Len() != 0 {
		t.Fatalf("expected empty ranking, got %v %v", r, err)
	}
}

func TestSearchBM25_Error(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchBM25Fn = func(context.Context, *db.TextQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: errors.New("boom")}
	}

	if _, err := repo.SearchBM25(context.Background(), query.New("1_1", "x"), 10); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearchKNN(t *testing.T) {
	repo, ms := newTestRepo(t)

	var got *db.KNNQuery
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		got = q
		return hits(), nil
	}

	r, err := repo.SearchKNN(context.Background(), "1_2", []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got.K != 5 || len(got.Vector) != 2 {
		t.Errorf("unexpected query %+v", got)
	}
	if r.QueryID() != "1_2" || r.DocIDs()[1] != "CAR_x-2" {
		t.Errorf("unexpected ranking %v", r.DocIDs())
	}
}
