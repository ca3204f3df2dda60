package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/castrank/internal/domain"
)

const errBodyLimit = 512

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
	Model   string         `json:"model"`
}

// Config holds the cross-encoder service settings.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// Client scores query/passage pairs through a cross-encoder HTTP service.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a cross-encoder client.
func NewClient(cfg *Config) *Client {
	c := cfg.HTTPClient
	if c == nil {
		c = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		http:    c,
		logger:  logger,
	}
}

// Name identifies the scorer in metrics and logs.
func (c *Client) Name() string { return "crossencoder" }

// Score returns one relevance score per text, aligned with texts.
func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(rerankRequest{Query: query, Texts: texts, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call rerank endpoint: %w: %w", err, domain.ErrScorerProvider)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		c.logger.Warn("rerank request failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(body)),
			zap.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("rerank endpoint returned %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrScorerProvider)
	}

	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w: %w", err, domain.ErrScorerProvider)
	}

	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, r := range out.Results {
		if r.Index < 0 || r.Index >= len(texts) {
			return nil, fmt.Errorf("result index %d out of range for %d texts: %w",
				r.Index, len(texts), domain.ErrScorerProvider)
		}
		scores[r.Index] = r.Score
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("no score for text %d: %w", i, domain.ErrScorerProvider)
		}
	}

	c.logger.Debug("rerank completed",
		zap.Int("texts", len(texts)),
		zap.String("model", out.Model),
		zap.Duration("elapsed", time.Since(start)))
	return scores, nil
}

// HealthCheck probes GET <base>/health.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cross-encoder health: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cross-encoder health: status %d", resp.StatusCode)
	}
	return nil
}
