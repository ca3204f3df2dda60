package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/castrank/internal/metrics"
)

// trace collects stage timings and candidate counts for one query's log line.
type trace struct {
	durations []stageDuration
	counts    []stageCount
}

type stageDuration struct {
	stage string
	d     time.Duration
}

type stageCount struct {
	stage string
	n     int
}

func newTrace() *trace { return &trace{} }

func (t *trace) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	t.durations = append(t.durations, stageDuration{stage: name, d: time.Since(start)})
	return err
}

func (t *trace) count(stage string, n int) {
	t.counts = append(t.counts, stageCount{stage: stage, n: n})
}

// observe records the collected values in the stage metrics.
func (t *trace) observe() {
	for _, d := range t.durations {
		metrics.StageDuration.WithLabelValues(d.stage).Observe(d.d.Seconds())
	}
	for _, c := range t.counts {
		metrics.Candidates.WithLabelValues(c.stage).Observe(float64(c.n))
	}
}

func (t *trace) fields() []zap.Field {
	fields := make([]zap.Field, 0, len(t.durations)+len(t.counts))
	for _, d := range t.durations {
		fields = append(fields, zap.Duration(d.stage+"_duration", d.d))
	}
	for _, c := range t.counts {
		fields = append(fields, zap.Int(c.stage+"_candidates", c.n))
	}
	return fields
}
