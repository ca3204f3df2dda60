package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/castrank/internal/domain"
)

const maxPassageChars = 1000

type relevanceScore struct {
	DocIndex int     `json:"doc_index"`
	Score    float64 `json:"score"`
}

type relevanceResponse struct {
	Scores []relevanceScore `json:"scores"`
}

// LLMScorer asks a text generator to grade every passage of a batch in one JSON reply.
type LLMScorer struct {
	gen domain.Generator
}

// NewLLMScorer creates a generator-backed scorer.
func NewLLMScorer(gen domain.Generator) *LLMScorer {
	return &LLMScorer{gen: gen}
}

// Name implements Scorer.
func (s *LLMScorer) Name() string { return "llm" }

// Score implements Scorer. A reply that is not the expected JSON, or that leaves a passage
// unscored, fails with domain.ErrScorerProvider.
func (s *LLMScorer) Score(ctx context.Context, question string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	reply, err := s.gen.Generate(ctx, buildPrompt(question, passages))
	if err != nil {
		return nil, fmt.Errorf("generate relevance: %w", err)
	}
	return parseScores(reply, len(passages))
}

func buildPrompt(question string, passages []string) string {
	var sb strings.Builder
	sb.WriteString("You are a relevance grader. Score how well each passage answers the question.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nPassages:\n")
	for i, p := range passages {
		if utf8.RuneCountInString(p) > maxPassageChars {
			p = string([]rune(p)[:maxPassageChars]) + "..."
		}
		fmt.Fprintf(&sb, "[Doc %d]: %s\n\n", i, p)
	}
	sb.WriteString(`Score every passage from 0.0 (irrelevant) to 1.0 (fully answers the question).
Output ONLY valid JSON in this exact format:
{"scores": [{"doc_index": 0, "score": 0.9}, {"doc_index": 1, "score": 0.3}]}`)
	return sb.String()
}

// parseScores reads the JSON reply, optionally wrapped in a markdown code block.
func parseScores(reply string, n int) ([]float64, error) {
	body := strings.TrimSpace(reply)
	if i := strings.Index(body, "```"); i != -1 {
		rest := strings.TrimPrefix(body[i+3:], "json")
		if j := strings.Index(rest, "```"); j != -1 {
			body = strings.TrimSpace(rest[:j])
		}
	}
	if i, j := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}'); i >= 0 && j > i {
		body = body[i : j+1]
	}

	var parsed relevanceResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("parse relevance reply: %w: %w", err, domain.ErrScorerProvider)
	}

	scores := make([]float64, n)
	seen := make([]bool, n)
	for _, s := range parsed.Scores {
		if s.DocIndex < 0 || s.DocIndex >= n {
			return nil, fmt.Errorf("relevance reply doc_index %d out of range for %d passages: %w",
				s.DocIndex, n, domain.ErrScorerProvider)
		}
		scores[s.DocIndex] = min(max(s.Score, 0), 1)
		seen[s.DocIndex] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("relevance reply has no score for passage %d: %w", i, domain.ErrScorerProvider)
		}
	}
	return scores, nil
}
