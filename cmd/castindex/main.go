package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/castrank/internal/bootstrap"
	"github.com/kailas-cloud/castrank/internal/config"
	"github.com/kailas-cloud/castrank/internal/domain"
	logpkg "github.com/kailas-cloud/castrank/internal/logger"
	"github.com/kailas-cloud/castrank/internal/metrics"
	passagerepo "github.com/kailas-cloud/castrank/internal/repository/passage"
	healthuc "github.com/kailas-cloud/castrank/internal/usecase/health"
	indexuc "github.com/kailas-cloud/castrank/internal/usecase/index"
	"github.com/kailas-cloud/castrank/internal/version"
)

func main() {
	env := config.GetEnv()

	var (
		cfg config.Config
		err error
	)
	if path := os.Getenv("CASTRANK_CONFIG"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(logpkg.Config{Env: env, Level: cfg.Logging.Level})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	_ = logger.Sync()
	if err != nil {
		logger.Error("Indexing failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if err := cfg.ValidateIndex(); err != nil {
		return err
	}
	logger.Info("Starting castrank indexer",
		append(version.Fields(),
			zap.String("collection", cfg.Index.CollectionFile),
			zap.String("index", cfg.Database.IndexName),
			zap.Bool("embed_passages", cfg.Index.EmbedPassages),
		)...)

	metrics.RegisterEmbeddingMetrics()

	store, err := bootstrap.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	passages, err := passagerepo.New(store, cfg.Database.KeyPrefix, 0)
	if err != nil {
		return err
	}

	var (
		embedder  domain.Embedder
		providers = map[string]healthuc.Checker{}
	)
	if cfg.Index.EmbedPassages {
		emb := bootstrap.BuildEmbedders(cfg.Embedding, nil, logger)
		embedder = emb.Document
		providers["embedding"] = emb.Base
	}

	svc, err := indexuc.New(indexuc.Config{
		IndexName:          cfg.Database.IndexName,
		BatchSize:          cfg.Index.BatchSize,
		EmbedPassages:      cfg.Index.EmbedPassages,
		Dimensions:         cfg.Embedding.Dimensions,
		HNSWM:              cfg.Index.HNSWM,
		HNSWEfConstruction: cfg.Index.HNSWEFConstruct,
	}, passages, store, embedder, logger)
	if err != nil {
		return err
	}

	stopHTTP := bootstrap.StartHTTP(cfg.HTTP, healthuc.New(store, providers), "castindex", logger)
	defer stopHTTP()

	start := time.Now()
	stats, err := svc.LoadFile(ctx, cfg.Index.CollectionFile)
	if err != nil {
		return err
	}
	created, err := svc.EnsureIndex(ctx, cfg.Index.Recreate)
	if err != nil {
		return err
	}
	size, err := store.IndexSize(ctx, cfg.Database.IndexName)
	if err != nil {
		logger.Warn("Could not read index size", zap.Error(err))
	}

	logger.Info("Collection indexed",
		zap.Int("passages", stats.Passages),
		zap.Int("skipped_lines", stats.Skipped),
		zap.Int("embedding_tokens", stats.Tokens),
		zap.Bool("index_created", created),
		zap.Int("index_size", size),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
