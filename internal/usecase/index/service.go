// Package index loads a passage collection into the store and declares the search index over it.
package index

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/castrank/internal/db"
	"github.com/kailas-cloud/castrank/internal/domain"
	"github.com/kailas-cloud/castrank/internal/repository/passage"
)

// Defaults for Config.
const (
	DefaultBatchSize          = 500
	DefaultHNSWM              = 16
	DefaultHNSWEfConstruction = 200
	maxLineBytes              = 16 << 20
)

// Config describes the index and how passages are loaded.
type Config struct {
	IndexName          string
	BatchSize          int
	EmbedPassages      bool
	Dimensions         int // vector width; required with EmbedPassages
	HNSWM              int
	HNSWEfConstruction int
}

// Stats summarizes a load.
type Stats struct {
	Passages int
	Batches  int
	Skipped  int // blank lines
	Tokens   int // embedding tokens billed
}

// Service loads collections. The embedder is only used with Config.EmbedPassages.
type Service struct {
	cfg      Config
	passages PassageWriter
	indexes  IndexManager
	embedder domain.Embedder
	logger   *zap.Logger
}

// New creates an index service.
func New(cfg Config, passages PassageWriter, indexes IndexManager, embedder domain.Embedder, logger *zap.Logger) (*Service, error) {
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("%w: index name is required", domain.ErrConfiguration)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.HNSWM <= 0 {
		cfg.HNSWM = DefaultHNSWM
	}
	if cfg.HNSWEfConstruction <= 0 {
		cfg.HNSWEfConstruction = DefaultHNSWEfConstruction
	}
	if cfg.EmbedPassages && (embedder == nil || cfg.Dimensions <= 0) {
		return nil, fmt.Errorf("%w: embedding passages needs an embedder and positive dimensions", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, passages: passages, indexes: indexes, embedder: embedder, logger: logger}, nil
}

// Definition returns the FT index schema over the passage hashes.
func (s *Service) Definition() (*db.IndexDefinition, error) {
	b := db.NewIndex(s.cfg.IndexName).
		Prefix(s.passages.KeyPrefix()).
		Text(passage.FieldContent).
		Tag(passage.FieldCollection)
	if s.cfg.EmbedPassages {
		b = b.VectorHNSW(passage.FieldVector, s.cfg.Dimensions, db.DistanceCosine, s.cfg.HNSWM, s.cfg.HNSWEfConstruction)
	}
	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build index definition: %w", err)
	}
	return def, nil
}

// EnsureIndex creates the index unless it exists. With recreate an existing index is dropped first;
// the passages stay in place and are re-indexed.
func (s *Service) EnsureIndex(ctx context.Context, recreate bool) (bool, error) {
	exists, err := s.indexes.IndexExists(ctx, s.cfg.IndexName)
	if err != nil {
		return false, fmt.Errorf("check index: %w", err)
	}
	if exists && !recreate {
		return false, nil
	}
	if exists {
		if err := s.indexes.DropIndex(ctx, s.cfg.IndexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return false, fmt.Errorf("drop index: %w", err)
		}
	}

	def, err := s.Definition()
	if err != nil {
		return false, err
	}
	if err := s.indexes.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index: %w", err)
	}
	s.logger.Info("index created", zap.String("index", def.String()))
	return true, nil
}

// LoadFile loads a collection file.
func (s *Service) LoadFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return Stats{}, fmt.Errorf("open collection: %w", err)
	}
	defer func() { _ = f.Close() }()
	return s.load(ctx, f, path)
}

// Load reads "doc_id<TAB>text" lines from r and stores them in batches.
// A line without a tab or with an empty id is a FormatError; batches written
// before it stay in the store.
func (s *Service) Load(ctx context.Context, r io.Reader) (Stats, error) {
	return s.load(ctx, r, "collection")
}

func (s *Service) load(ctx context.Context, r io.Reader, source string) (Stats, error) {
	start := time.Now()
	var st Stats
	batch := make([]passage.Passage, 0, s.cfg.BatchSize)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			st.Skipped++
			continue
		}
		id, content, ok := strings.Cut(text, "\t")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return st, domain.NewFormatError(source, line, "expected doc_id<TAB>text")
		}
		batch = append(batch, passage.Passage{ID: id, Content: content})

		if len(batch) == s.cfg.BatchSize {
			if err := s.flush(ctx, batch, &st); err != nil {
				return st, err
			}
			batch = batch[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return st, fmt.Errorf("read %s: %w", source, err)
	}
	if err := s.flush(ctx, batch, &st); err != nil {
		return st, err
	}

	s.logger.Info("collection loaded",
		zap.String("source", source),
		zap.Int("passages", st.Passages),
		zap.Int("batches", st.Batches),
		zap.Int("embedding_tokens", st.Tokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return st, nil
}

func (s *Service) flush(ctx context.Context, batch []passage.Passage, st *Stats) error {
	if len(batch) == 0 {
		return nil
	}
	if s.cfg.EmbedPassages {
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.Content
		}
		res, err := domain.BatchEmbedAny(ctx, s.embedder, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d: %w", st.Batches, err)
		}
		if len(res.Embeddings) != len(batch) {
			return fmt.Errorf("embed batch %d: got %d vectors for %d passages: %w",
				st.Batches, len(res.Embeddings), len(batch), domain.ErrEmbeddingProviderError)
		}
		for i := range batch {
			batch[i].Vector = res.Embeddings[i]
		}
		st.Tokens += res.TotalTokens
	}

	if err := s.passages.Put(ctx, batch); err != nil {
		return fmt.Errorf("write batch %d: %w", st.Batches, err)
	}
	st.Passages += len(batch)
	st.Batches++
	s.logger.Debug("batch stored", zap.Int("batch", st.Batches), zap.Int("passages", st.Passages))
	return nil
}
