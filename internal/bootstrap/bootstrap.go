// Package bootstrap builds the collaborators both commands share from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/castrank/internal/config"
	dbRedis "github.com/kailas-cloud/castrank/internal/db/redis"
	"github.com/kailas-cloud/castrank/internal/domain"
	"github.com/kailas-cloud/castrank/internal/metrics"
	"github.com/kailas-cloud/castrank/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/castrank/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/castrank/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/castrank/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/castrank/internal/usecase/health"
)

// OpenStore connects to Redis and waits until it answers.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("store not ready: %w", err)
	}
	logger.Info("Connected to database", zap.Strings("addrs", cfg.Addrs))
	return store, nil
}

// Embedders is the embedding chain for one provider: a shared base client and
// the query/document views with their instruction prefixes.
type Embedders struct {
	Base     *openaiTransport.Embedder
	Query    domain.Embedder
	Document domain.Embedder
}

// BuildEmbedders assembles OpenAI -> Cached -> Instrumented -> Instruction for
// queries and documents. cache may be nil.
func BuildEmbedders(cfg config.EmbeddingConfig, cache *dbRedis.Store, logger *zap.Logger) Embedders {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cache != nil {
		embedder = embcache.New(base, cache, time.Duration(cfg.CacheTTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger)
	}

	opts := []embeddinguc.Option{embeddinguc.WithDimensions(cfg.Dimensions)}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddinguc.WithBatchSize(cfg.BatchSize))
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger, opts...)

	// instruction is outermost so the cache key includes it
	withInstruction := func(instruction string) domain.Embedder {
		if instruction == "" {
			return embedder
		}
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return Embedders{
		Base:     base,
		Query:    withInstruction(cfg.QueryInstruction),
		Document: withInstruction(cfg.DocumentInstruction),
	}
}

// ChatGenerator builds the chat model client.
func ChatGenerator(cfg config.LLMConfig, logger *zap.Logger) *openaiTransport.ChatGenerator {
	return openaiTransport.NewChatGenerator(&openaiTransport.ChatConfig{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		SystemPrompt: cfg.SystemPrompt,
		Logger:       logger,
	})
}

// StartHTTP serves health and metrics until the returned stop function is called.
// Port 0 disables the listener and stop is a no-op.
func StartHTTP(cfg config.HTTPConfig, health *healthuc.Service, runID string, logger *zap.Logger) (stop func()) {
	if cfg.Port == 0 {
		return func() {}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewServer(health, runID, logger).Handler(),
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownSec)*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	}
}
