package crossencoder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kailas-cloud/castrank/internal/domain"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&Config{BaseURL: srv.URL + "/", Model: "ms-marco-MiniLM", Timeout: 5 * time.Second})
}

func TestClient_Score(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rerank" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q", r.Header.Get("Content-Type"))
		}
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Query != "throat cancer symptoms" || len(req.Texts) != 3 || req.Model != "ms-marco-MiniLM" {
			t.Errorf("unexpected payload: %+v", req)
		}
		// Results come back sorted by score, not by input position.
		_ = json.NewEncoder(w).Encode(rerankResponse{
			Results: []rerankResult{{Index: 1, Score: 9.5}, {Index: 2, Score: 1.25}, {Index: 0, Score: -3}},
			Model:   "ms-marco-MiniLM",
		})
	})

	scores, err := c.Score(context.Background(), "throat cancer symptoms", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	want := []float64{-3, 9.5, 1.25}
	for i := range want {
		if scores[i] != want[i] {
			t.Errorf("scores[%d] = %v, want %v", i, scores[i], want[i])
		}
	}
}

func TestClient_Score_Empty(t *testing.T) {
	c := NewClient(&Config{BaseURL: "http://unused"})
	scores, err := c.Score(context.Background(), "q", nil)
	if err != nil || scores != nil {
		t.Fatalf("Score(nil) = %v, %v", scores, err)
	}
}

func TestClient_Score_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model not loaded", http.StatusServiceUnavailable)
			},
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("{"))
			},
		},
		{
			name: "index out of range",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(rerankResponse{Results: []rerankResult{{Index: 0, Score: 1}, {Index: 5, Score: 2}}})
			},
		},
		{
			name: "missing score",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(rerankResponse{Results: []rerankResult{{Index: 0, Score: 1}}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, tt.handler)
			_, err := c.Score(context.Background(), "q", []string{"a", "b"})
			if !errors.Is(err, domain.ErrScorerProvider) {
				t.Fatalf("expected ErrScorerProvider, got %v", err)
			}
		})
	}
}

func TestClient_HealthCheck(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusServiceUnavailable} {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				t.Errorf("path = %s", r.URL.Path)
			}
			w.WriteHeader(status)
		})
		err := c.HealthCheck(context.Background())
		if (err == nil) != (status == http.StatusOK) {
			t.Errorf("status %d: err = %v", status, err)
		}
	}
}
