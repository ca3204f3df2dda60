package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kailas-cloud/castrank/internal/bootstrap"
	"github.com/kailas-cloud/castrank/internal/config"
	"github.com/kailas-cloud/castrank/internal/domain"
	logpkg "github.com/kailas-cloud/castrank/internal/logger"
	"github.com/kailas-cloud/castrank/internal/metrics"
	passagerepo "github.com/kailas-cloud/castrank/internal/repository/passage"
	"github.com/kailas-cloud/castrank/internal/repository/runfile"
	searchrepo "github.com/kailas-cloud/castrank/internal/repository/search"
	topicsrepo "github.com/kailas-cloud/castrank/internal/repository/topics"
	"github.com/kailas-cloud/castrank/internal/usecase/pipeline"
	"github.com/kailas-cloud/castrank/internal/version"
)

// Exit codes.
const (
	exitFailed        = 1
	exitConfiguration = 2
)

func main() {
	env := config.GetEnv()

	cfg, err := loadConfig(env)
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

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrConfiguration):
		logger.Error("Invalid run configuration", zap.Error(err))
		os.Exit(exitConfiguration)
	default:
		logger.Error("Run failed", zap.Error(err))
		os.Exit(exitFailed)
	}
}

// loadConfig reads CASTRANK_CONFIG when set, else config/<env>.yaml.
func loadConfig(env string) (config.Config, error) {
	if path := os.Getenv("CASTRANK_CONFIG"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load(env)
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (err error) {
	if err := cfg.ValidateRun(); err != nil {
		return err
	}
	p := cfg.Pipeline

	logger.Info("Starting castrank run",
		append(version.Fields(),
			zap.String("year", p.Year),
			zap.String("output_name", p.OutputName),
			zap.Strings("retrievers", p.Retrievers),
			zap.String("rewriter", p.Rewriter),
			zap.String("expander", p.Expander),
			zap.String("reranker", p.Reranker),
			zap.String("reranker2", p.Reranker2),
		)...)

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	topics, err := topicsrepo.LoadFile(p.TopicsFile)
	if err != nil {
		return err
	}

	store, err := bootstrap.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	passages, err := passagerepo.New(store, cfg.Database.KeyPrefix, cfg.Database.PassageMemoSize)
	if err != nil {
		return err
	}
	search := searchrepo.New(store, cfg.Database.IndexName, passages.KeyPrefix())

	b := &builder{cfg: cfg, store: store, passages: passages, search: search, logger: logger}
	stages, turns, err := b.build(ctx, topics)
	if err != nil {
		return err
	}

	out, err := runfile.Create(p.OutputDir, p.Year, p.OutputName, runfile.Options{
		K:              p.K,
		RunID:          p.OutputName,
		StripPassageID: p.StripPassageID,
	}, passages)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(err == nil); cerr != nil && err == nil {
			err = cerr
		}
	}()
	stages.Sink = out

	runner, err := pipeline.New(pipeline.Config{
		K:               p.K,
		RerankTopK:      p.RerankTopK,
		Rerank2TopK:     p.Rerank2TopK,
		ContextSource:   pipeline.ContextSource(p.ContextSource),
		Parallelism:     p.Parallelism,
		ContinueOnError: p.ContinueOnError,
	}, stages, logger.With(zap.String("output_name", p.OutputName)))
	if err != nil {
		return err
	}

	stopHTTP := bootstrap.StartHTTP(cfg.HTTP, b.health(), runner.RunID(), logger)
	defer stopHTTP()

	if err := runner.Run(ctx, turns); err != nil {
		return err
	}

	tsv, trec := out.Paths()
	logger.Info("Run written", zap.String("tsv", tsv), zap.String("trec", trec), zap.Int("queries", len(turns)))
	return nil
}
