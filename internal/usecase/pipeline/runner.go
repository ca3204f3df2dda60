// Package pipeline runs conversational queries through rewrite, expansion,
// retrieval, fusion, pooling and reranking, and hands each final ranking to a sink.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/castrank/internal/domain"
	"github.com/kailas-cloud/castrank/internal/domain/query"
	"github.com/kailas-cloud/castrank/internal/domain/ranking"
	"github.com/kailas-cloud/castrank/internal/logger"
	"github.com/kailas-cloud/castrank/internal/metrics"
	"github.com/kailas-cloud/castrank/internal/usecase/fusion"
)

// Stage names used in metrics and logs.
const (
	StageRewrite  = "rewrite"
	StageExpand   = "expand"
	StageRetrieve = "retrieve"
	StageFuse     = "fuse"
	StagePool     = "pool"
	StageRerank   = "rerank"
	StageRerank2  = "rerank2"
	StagePersist  = "persist"
)

// ContextSource selects which passage is remembered as a turn's response.
type ContextSource string

const (
	// ContextCanonical uses the turn's canonical result when it has one, else the top-ranked passage.
	ContextCanonical ContextSource = "canonical"
	// ContextRanked uses the top-ranked passage.
	ContextRanked ContextSource = "ranked"
	// ContextNone records the questions only.
	ContextNone ContextSource = "none"
)

// Turn is one query of the run, in conversation order.
type Turn struct {
	Query             query.Query
	CanonicalResultID string
}

// NamedRetriever tags a retriever for fusion and logs.
type NamedRetriever struct {
	Name      string
	Retriever Retriever
}

// Config holds the numeric and behavioral knobs of a run.
type Config struct {
	K               int // candidates requested from each retriever
	RerankTopK      int // window of the first reranker; <= 0 means all
	Rerank2TopK     int // window of the second reranker; <= 0 means all
	ContextSource   ContextSource
	Parallelism     int // topics processed concurrently
	ContinueOnError bool
	RunID           string // generated when empty
}

// Stages are the collaborators of a run. Nil optional stages are skipped.
type Stages struct {
	Rewriter   Rewriter // nil passes queries through
	Expander   Expander
	Retrievers []NamedRetriever // at least one
	Fuser      Fuser            // required with more than one retriever
	Pool       Pool
	Reranker   Reranker
	Reranker2  Reranker
	Resolver   ranking.ContentResolver // response passages for the conversation context
	Sink       Sink
}

// Runner executes a run. Not reusable across runs that share a Pool.
type Runner struct {
	cfg    Config
	st     Stages
	logger *zap.Logger
}

// New validates the configuration and creates a runner. Every problem is reported
// as domain.ErrConfiguration before any query runs.
func New(cfg Config, st Stages, logger *zap.Logger) (*Runner, error) {
	if cfg.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrConfiguration, cfg.K)
	}
	if len(st.Retrievers) == 0 {
		return nil, fmt.Errorf("%w: at least one retriever is required", domain.ErrConfiguration)
	}
	for i, r := range st.Retrievers {
		if r.Retriever == nil {
			return nil, fmt.Errorf("%w: retriever %d (%s) is nil", domain.ErrConfiguration, i, r.Name)
		}
	}
	if len(st.Retrievers) > 1 && st.Fuser == nil {
		return nil, fmt.Errorf("%w: %d retrievers need a fuser", domain.ErrConfiguration, len(st.Retrievers))
	}
	if st.Sink == nil {
		return nil, fmt.Errorf("%w: sink is required", domain.ErrConfiguration)
	}

	switch cfg.ContextSource {
	case "":
		cfg.ContextSource = ContextRanked
	case ContextCanonical, ContextRanked, ContextNone:
	default:
		return nil, fmt.Errorf("%w: unknown context source %q", domain.ErrConfiguration, cfg.ContextSource)
	}
	if cfg.ContextSource != ContextNone && st.Resolver == nil {
		return nil, fmt.Errorf("%w: context source %q needs a content resolver", domain.ErrConfiguration, cfg.ContextSource)
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{cfg: cfg, st: st, logger: logger.With(zap.String("run_id", cfg.RunID))}, nil
}

// RunID identifies the run in logs.
func (r *Runner) RunID() string { return r.cfg.RunID }

// Run processes turns and persists each successful ranking in input order.
//
// Turns of one topic run sequentially in input order; different topics may run
// concurrently up to Parallelism. A failed query writes nothing. Without
// ContinueOnError the run stops at the first failure; otherwise every query is
// attempted and the failures are returned joined. Sink errors always stop the run.
func (r *Runner) Run(ctx context.Context, turns []Turn) error {
	start := time.Now()
	groups := groupByTopic(turns)
	r.logger.Info("run started",
		zap.Int("queries", len(turns)),
		zap.Int("topics", len(groups)),
		zap.Int("parallelism", r.cfg.Parallelism),
	)

	out := newOrderedSink(r.st.Sink, len(turns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallelism)

	for _, grp := range groups {
		g.Go(func() error {
			return r.runTopic(gctx, grp, turns, out)
		})
	}

	err := g.Wait()
	if err == nil {
		err = out.failures()
	}

	r.logger.Info("run finished",
		zap.Int("written", out.written()),
		zap.Int("failed", out.failedCount()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	return err
}

// topicGroup is the input positions of one topic's turns, in input order.
type topicGroup struct {
	topicID string
	indexes []int
}

func groupByTopic(turns []Turn) []topicGroup {
	var groups []topicGroup
	pos := make(map[string]int)
	for i, t := range turns {
		id := t.Query.TopicID()
		gi, ok := pos[id]
		if !ok {
			gi = len(groups)
			pos[id] = gi
			groups = append(groups, topicGroup{topicID: id})
		}
		groups[gi].indexes = append(groups[gi].indexes, i)
	}
	return groups
}

func (r *Runner) runTopic(ctx context.Context, grp topicGroup, turns []Turn, out *orderedSink) error {
	var history query.Context
	for _, i := range grp.indexes {
		if err := ctx.Err(); err != nil {
			return err
		}
		turn := turns[i]
		qlog := r.logger.With(
			zap.String("query_id", turn.Query.ID()),
			zap.String("topic_id", grp.topicID),
		)
		qctx := logger.ContextWithLogger(ctx, qlog)

		res, err := r.processTurn(qctx, turn, history, qlog)
		if err != nil {
			metrics.QueriesTotal.WithLabelValues("error").Inc()
			qerr := fmt.Errorf("query %s: %w", turn.Query.ID(), err)
			if werr := out.fail(qctx, i, qerr); werr != nil {
				return werr
			}
			if !r.cfg.ContinueOnError {
				return qerr
			}
			// The failed turn still counts as asked.
			history = history.Append(query.Exchange{Query: turn.Query})
			continue
		}
		metrics.QueriesTotal.WithLabelValues("ok").Inc()

		persistStart := time.Now()
		werr := out.complete(qctx, i, res.ranking, res.query.Question())
		metrics.StageDuration.WithLabelValues(StagePersist).Observe(time.Since(persistStart).Seconds())
		if werr != nil {
			return werr
		}
		if r.st.Pool != nil {
			r.st.Pool.Commit(grp.topicID, res.retrieved)
		}

		history = history.Append(query.Exchange{Query: res.query, Documents: res.response})
	}
	return nil
}

type turnResult struct {
	query     query.Query
	ranking   *ranking.Ranking
	retrieved *ranking.Ranking // candidates before pooling, committed to the pool on success
	response  []string
}

// processTurn runs every stage for one turn. It only reads shared state;
// runTopic commits the turn to the pool once it has been persisted.
func (r *Runner) processTurn(ctx context.Context, turn Turn, history query.Context, qlog *zap.Logger) (turnResult, error) {
	tr := newTrace()
	q := turn.Query

	err := tr.stage(StageRewrite, func() error {
		if r.st.Rewriter == nil {
			return nil
		}
		rq, err := r.st.Rewriter.Rewrite(ctx, q, history)
		if err != nil {
			return err
		}
		q = rq
		return nil
	})
	if err != nil {
		return r.failed(qlog, tr, StageRewrite, err)
	}
	// The exchange remembers the resolved question, not its expansion.
	asked := q

	if r.st.Expander != nil {
		err = tr.stage(StageExpand, func() error {
			eq, err := r.st.Expander.Expand(ctx, q)
			if err != nil {
				return err
			}
			q = eq
			return nil
		})
		if err != nil {
			return r.failed(qlog, tr, StageExpand, err)
		}
	}

	var retrieved []fusion.Named
	err = tr.stage(StageRetrieve, func() error {
		for i, nr := range r.st.Retrievers {
			rq, rk, err := nr.Retriever.Retrieve(ctx, q, r.cfg.K)
			if err != nil {
				return fmt.Errorf("%s: %w", nr.Name, err)
			}
			if i == 0 {
				q = rq
			}
			retrieved = append(retrieved, fusion.Named{Name: nr.Name, Ranking: rk})
			tr.count(StageRetrieve+"_"+nr.Name, rk.Len())
		}
		return nil
	})
	if err != nil {
		return r.failed(qlog, tr, StageRetrieve, err)
	}
	if q.Question() != asked.Question() {
		asked = q.WithQuestion(q.Question())
	}

	current := retrieved[0].Ranking
	if len(retrieved) > 1 {
		_ = tr.stage(StageFuse, func() error {
			current = r.st.Fuser.Fuse(retrieved)
			return nil
		})
		tr.count(StageFuse, current.Len())
	}
	if current == nil {
		current = ranking.New(q.ID())
	}

	retrievedSet := current
	if r.st.Pool != nil {
		before := current.Len()
		_ = tr.stage(StagePool, func() error {
			current = r.st.Pool.Expand(q.TopicID(), current)
			return nil
		})
		if added := current.Len() - before; added > 0 {
			metrics.PoolExpandedTotal.Add(float64(added))
		}
		tr.count(StagePool, current.Len())
	}

	for _, rr := range []struct {
		name string
		r    Reranker
		topK int
	}{
		{StageRerank, r.st.Reranker, r.cfg.RerankTopK},
		{StageRerank2, r.st.Reranker2, r.cfg.Rerank2TopK},
	} {
		if rr.r == nil {
			continue
		}
		err = tr.stage(rr.name, func() error {
			out, err := rr.r.Rerank(ctx, q, current, rr.topK)
			if err != nil {
				return err
			}
			current = out
			return nil
		})
		if err != nil {
			return r.failed(qlog, tr, rr.name, err)
		}
		tr.count(rr.name, current.Len())
	}

	response, err := r.response(ctx, turn, current)
	if err != nil {
		return r.failed(qlog, tr, "context", err)
	}

	tr.observe()
	qlog.Info("query_processed", append(tr.fields(), zap.String("status", "ok"), zap.Int("candidates", current.Len()))...)
	return turnResult{query: asked, ranking: current, retrieved: retrievedSet, response: response}, nil
}

// response returns the passage remembered for this turn.
func (r *Runner) response(ctx context.Context, turn Turn, rk *ranking.Ranking) ([]string, error) {
	switch r.cfg.ContextSource {
	case ContextNone:
		return nil, nil
	case ContextCanonical:
		if turn.CanonicalResultID != "" {
			texts, err := r.st.Resolver.MGet(ctx, []string{turn.CanonicalResultID})
			if err != nil {
				return nil, fmt.Errorf("canonical response: %w", err)
			}
			return texts, nil
		}
	}

	top := rk.TopK(1)
	if len(top) == 0 {
		return nil, nil
	}
	if c, ok := top[0].Content(); ok {
		return []string{c}, nil
	}
	texts, err := r.st.Resolver.MGet(ctx, []string{top[0].DocID()})
	if err != nil {
		return nil, fmt.Errorf("ranked response: %w", err)
	}
	return texts, nil
}

func (r *Runner) failed(qlog *zap.Logger, tr *trace, stage string, err error) (turnResult, error) {
	tr.observe()
	qlog.Warn("query_processed", append(tr.fields(),
		zap.String("status", "error"),
		zap.String("failed_stage", stage),
		zap.Error(err),
	)...)
	return turnResult{}, fmt.Errorf("%s: %w", stage, err)
}
