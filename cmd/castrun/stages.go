package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/castrank/internal/bootstrap"
	"github.com/kailas-cloud/castrank/internal/config"
	dbRedis "github.com/kailas-cloud/castrank/internal/db/redis"
	"github.com/kailas-cloud/castrank/internal/domain"
	"github.com/kailas-cloud/castrank/internal/domain/ranking"
	"github.com/kailas-cloud/castrank/internal/domain/topic"
	passagerepo "github.com/kailas-cloud/castrank/internal/repository/passage"
	"github.com/kailas-cloud/castrank/internal/repository/rewrites"
	searchrepo "github.com/kailas-cloud/castrank/internal/repository/search"
	"github.com/kailas-cloud/castrank/internal/transport/crossencoder"
	openaiTransport "github.com/kailas-cloud/castrank/internal/transport/openai"
	"github.com/kailas-cloud/castrank/internal/usecase/expand"
	"github.com/kailas-cloud/castrank/internal/usecase/fusion"
	healthuc "github.com/kailas-cloud/castrank/internal/usecase/health"
	"github.com/kailas-cloud/castrank/internal/usecase/pipeline"
	"github.com/kailas-cloud/castrank/internal/usecase/pool"
	"github.com/kailas-cloud/castrank/internal/usecase/rerank"
	"github.com/kailas-cloud/castrank/internal/usecase/retrieve"
	"github.com/kailas-cloud/castrank/internal/usecase/rewrite"
)

// builder turns the pipeline section into stages. Providers are created only
// when a selected stage needs them.
type builder struct {
	cfg      config.Config
	store    *dbRedis.Store
	passages *passagerepo.Repo
	search   *searchrepo.Repo
	logger   *zap.Logger

	embedders *bootstrap.Embedders
	chat      *openaiTransport.ChatGenerator
	cross     *crossencoder.Client
}

func (b *builder) build(ctx context.Context, topics []topic.Topic) (pipeline.Stages, []pipeline.Turn, error) {
	p := b.cfg.Pipeline

	kind, err := topic.ParseUtteranceKind(p.Utterance)
	if err != nil {
		return pipeline.Stages{}, nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	turns := turnsFromTopics(topics, kind)

	var st pipeline.Stages
	st.Resolver = b.passages

	if st.Rewriter, err = b.rewriter(topics); err != nil {
		return st, nil, err
	}
	for _, name := range p.Retrievers {
		r, err := b.retriever(ctx, name)
		if err != nil {
			return st, nil, err
		}
		st.Retrievers = append(st.Retrievers, pipeline.NamedRetriever{Name: name, Retriever: r})
	}
	if len(st.Retrievers) == 0 {
		return st, nil, fmt.Errorf("%w: no retriever configured", domain.ErrConfiguration)
	}
	if len(st.Retrievers) > 1 {
		st.Fuser = fusion.NewRRF(p.RRFK)
	}
	if p.NumPrevTurns > 0 {
		st.Pool = pool.New(p.NumPrevTurns)
	}
	st.Expander = b.expander(st.Retrievers[0].Retriever)
	if st.Reranker, err = b.reranker(p.Reranker); err != nil {
		return st, nil, err
	}
	if st.Reranker2, err = b.reranker(p.Reranker2); err != nil {
		return st, nil, err
	}

	b.logger.Info("Pipeline assembled",
		zap.Int("topics", len(topics)),
		zap.Int("queries", len(turns)),
		zap.String("utterance", string(kind)),
	)
	return st, turns, nil
}

// expander feeds PRF from the first configured retriever, so a cached or dense
// run draws its feedback documents from the same candidates it ranks.
func (b *builder) expander(first pipeline.Retriever) pipeline.Expander {
	p := b.cfg.Pipeline
	if p.Expander != "prf" {
		return nil
	}
	return expand.NewPRF(first, b.passages, expand.Config{
		Docs:  p.PRFDocs,
		Terms: p.PRFTerms,
		Alpha: *p.PRFAlpha,
	})
}

// turnsFromTopics flattens topics into turns in conversation order.
func turnsFromTopics(topics []topic.Topic, kind topic.UtteranceKind) []pipeline.Turn {
	var turns []pipeline.Turn
	for _, t := range topics {
		qs := t.Queries(kind)
		for i, q := range qs {
			turns = append(turns, pipeline.Turn{Query: q, CanonicalResultID: t.Turns[i].CanonicalResultID})
		}
	}
	return turns
}

// rewriter returns nil for "none"; the runner passes queries through.
func (b *builder) rewriter(topics []topic.Topic) (pipeline.Rewriter, error) {
	p := b.cfg.Pipeline
	switch p.Rewriter {
	case "none":
		return nil, nil
	case "manual":
		return rewrite.FromTopics(topics, topic.Manual), nil
	case "automatic":
		return rewrite.FromTopics(topics, topic.Automatic), nil
	case "table":
		table, err := rewrites.LoadFile(p.RewritesFile)
		if err != nil {
			return nil, err
		}
		t := rewrite.NewTable(table)
		b.logger.Info("Rewrite table loaded", zap.Int("rewrites", t.Len()))
		return t, nil
	case "llm":
		return rewrite.NewLLM(b.chatGenerator(), b.cfg.LLM.MaxResponseChars), nil
	default:
		return nil, fmt.Errorf("%w: unknown rewriter %q", domain.ErrConfiguration, p.Rewriter)
	}
}

func (b *builder) retriever(ctx context.Context, name string) (pipeline.Retriever, error) {
	switch name {
	case "bm25":
		return retrieve.NewIndex(b.search), nil
	case "dense":
		return retrieve.NewDense(b.embeddingChain().Query, b.search), nil
	case "cached":
		run, err := loadCachedRun(ctx, b.cfg.Pipeline.CachedRunFile, b.passages)
		if err != nil {
			return nil, err
		}
		b.logger.Info("Cached run loaded",
			zap.String("file", b.cfg.Pipeline.CachedRunFile), zap.Int("queries", run.Len()))
		return retrieve.NewCached(run), nil
	default:
		return nil, fmt.Errorf("%w: unknown retriever %q", domain.ErrConfiguration, name)
	}
}

// loadCachedRun reads a TSV run or, for any other extension, a TREC run whose
// passage text is resolved from the store.
func loadCachedRun(ctx context.Context, path string, resolver ranking.ContentResolver) (*ranking.Run, error) {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return ranking.LoadTSVFile(path)
	}
	return ranking.LoadTRECRunFile(ctx, path, resolver)
}

// reranker returns nil for "none".
func (b *builder) reranker(name string) (pipeline.Reranker, error) {
	var (
		scorer    rerank.Scorer
		batchSize int
	)
	switch name {
	case "none":
		return nil, nil
	case "embedding":
		e := b.embeddingChain()
		scorer = rerank.NewEmbeddingScorer(e.Query, e.Document)
	case "llm":
		scorer = rerank.NewLLMScorer(b.chatGenerator())
	case "crossencoder":
		scorer = b.crossEncoder()
		batchSize = b.cfg.CrossEncoder.BatchSize
	default:
		return nil, fmt.Errorf("%w: unknown reranker %q", domain.ErrConfiguration, name)
	}
	return rerank.NewScoring(scorer, batchSize, b.passages), nil
}

func (b *builder) embeddingChain() bootstrap.Embedders {
	if b.embedders == nil {
		e := bootstrap.BuildEmbedders(b.cfg.Embedding, b.store, b.logger)
		b.embedders = &e
		b.logger.Info("Embedders created",
			zap.String("provider", b.cfg.Embedding.Provider),
			zap.String("model", b.cfg.Embedding.Model),
			zap.Int("dimensions", b.cfg.Embedding.Dimensions))
	}
	return *b.embedders
}

func (b *builder) chatGenerator() *openaiTransport.ChatGenerator {
	if b.chat == nil {
		b.chat = bootstrap.ChatGenerator(b.cfg.LLM, b.logger)
	}
	return b.chat
}

func (b *builder) crossEncoder() *crossencoder.Client {
	if b.cross == nil {
		b.cross = crossencoder.NewClient(&crossencoder.Config{
			BaseURL: b.cfg.CrossEncoder.BaseURL,
			Model:   b.cfg.CrossEncoder.Model,
			Timeout: time.Duration(b.cfg.CrossEncoder.TimeoutSec) * time.Second,
			Logger:  b.logger,
		})
	}
	return b.cross
}

// health checks the store and whichever providers the run created.
func (b *builder) health() *healthuc.Service {
	providers := map[string]healthuc.Checker{}
	if b.embedders != nil {
		providers["embedding"] = b.embedders.Base
	}
	if b.chat != nil {
		providers["llm"] = b.chat
	}
	if b.cross != nil {
		providers["crossencoder"] = b.cross
	}
	return healthuc.New(b.store, providers)
}
