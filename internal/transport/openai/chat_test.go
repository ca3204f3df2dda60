package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/castrank/internal/domain"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

func chatServer(t *testing.T, reply string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-chat",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatGenerator_Generate(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, "  what are the symptoms of throat cancer?\n", &seen)

	g := NewChatGenerator(&ChatConfig{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		Model:        "test-chat",
		Temperature:  0.2,
		MaxTokens:    64,
		SystemPrompt: "rewrite queries",
		Logger:       zap.NewNop(),
	})

	got, err := g.Generate(context.Background(), "what are its symptoms?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "what are the symptoms of throat cancer?" {
		t.Errorf("Generate = %q", got)
	}

	if seen.Model != "test-chat" {
		t.Errorf("model = %q", seen.Model)
	}
	if seen.MaxTokens != 64 {
		t.Errorf("max_tokens = %d", seen.MaxTokens)
	}
	if len(seen.Messages) != 2 || seen.Messages[0].Role != "system" || seen.Messages[1].Content != "what are its symptoms?" {
		t.Errorf("messages = %+v", seen.Messages)
	}
}

func TestChatGenerator_NoSystemPrompt(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, "ok", &seen)

	g := NewChatGenerator(&ChatConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	if _, err := g.Generate(context.Background(), "prompt"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(seen.Messages) != 1 || seen.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", seen.Messages)
	}
}

func TestChatGenerator_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "overloaded", "type": "server_error"},
		})
	}))
	defer srv.Close()

	g := NewChatGenerator(&ChatConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	_, err := g.Generate(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrScorerProvider) {
		t.Fatalf("expected ErrScorerProvider, got %v", err)
	}
}

func TestChatGenerator_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "x", "choices": []any{}})
	}))
	defer srv.Close()

	g := NewChatGenerator(&ChatConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	_, err := g.Generate(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrScorerProvider) {
		t.Fatalf("expected ErrScorerProvider, got %v", err)
	}
}
