package rewrite

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/castrank/internal/domain"
	"github.com/kailas-cloud/castrank/internal/domain/query"
	"github.com/kailas-cloud/castrank/internal/logger"
)

// DefaultMaxResponseChars bounds the previous response passage quoted in the prompt.
const DefaultMaxResponseChars = 500

const instructions = "Rewrite the last question of the conversation so that it can be understood " +
	"without the conversation. Resolve pronouns and omitted topics using the earlier questions " +
	"and the last answer. Reply with the rewritten question only."

// LLM rewrites with a text generator prompted with the conversation so far.
type LLM struct {
	gen      domain.Generator
	maxChars int
}

// NewLLM creates a generator-backed rewriter. maxChars <= 0 uses DefaultMaxResponseChars.
func NewLLM(gen domain.Generator, maxChars int) *LLM {
	if maxChars <= 0 {
		maxChars = DefaultMaxResponseChars
	}
	return &LLM{gen: gen, maxChars: maxChars}
}

// Rewrite asks the generator for a standalone question. The first turn of a
// conversation and empty generations return q unchanged.
func (r *LLM) Rewrite(ctx context.Context, q query.Query, history query.Context) (query.Query, error) {
	if len(history) == 0 || strings.TrimSpace(q.Question()) == "" {
		return q, nil
	}

	out, err := r.gen.Generate(ctx, r.Prompt(q, history))
	if err != nil {
		return q, fmt.Errorf("rewrite %s: %w", q.ID(), err)
	}

	text := cleanGeneration(out)
	if text == "" {
		logger.FromContext(ctx).Warn("empty rewrite, keeping original", zap.String("query_id", q.ID()))
		return q, nil
	}
	return q.WithQuestion(text), nil
}

// Prompt renders the generator input for q.
func (r *LLM) Prompt(q query.Query, history query.Context) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nConversation:\n")
	for i, ex := range history {
		fmt.Fprintf(&b, "Q%d: %s\n", i+1, ex.Query.Question())
	}
	if last, ok := history.Last(); ok && len(last.Documents) > 0 && last.Documents[0] != "" {
		fmt.Fprintf(&b, "A%d: %s\n", len(history), truncate(last.Documents[0], r.maxChars))
	}
	fmt.Fprintf(&b, "Q%d: %s\n\nRewritten question:", len(history)+1, q.Question())
	return b.String()
}

// cleanGeneration keeps the first non-empty line without surrounding quotes.
func cleanGeneration(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "Rewritten question:")
		line = strings.Trim(strings.TrimSpace(line), "\"'`")
		if line != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// truncate cuts s to at most n runes, backing off to the last space when there is one.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)[:n]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + " ..."
}
