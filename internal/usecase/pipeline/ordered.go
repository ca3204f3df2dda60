package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/kailas-cloud/castrank/internal/domain/ranking"
)

// orderedSink releases results to the sink in input order, whatever order topics finish in.
// A slot is filled exactly once, either with a ranking or with a failure.
type orderedSink struct {
	sink Sink

	mu      sync.Mutex
	slots   []slot
	next    int
	nWrite  int
	errs    []error
	sinkErr error
}

type slot struct {
	done     bool
	ranking  *ranking.Ranking
	question string
}

func newOrderedSink(s Sink, n int) *orderedSink {
	return &orderedSink{sink: s, slots: make([]slot, n)}
}

// complete stores a successful ranking and flushes every ready prefix.
func (o *orderedSink) complete(ctx context.Context, i int, r *ranking.Ranking, question string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.slots[i] = slot{done: true, ranking: r, question: question}
	return o.flush(ctx)
}

// fail marks slot i as failed so later results are not held back by it.
func (o *orderedSink) fail(ctx context.Context, i int, err error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.slots[i] = slot{done: true}
	o.errs = append(o.errs, err)
	return o.flush(ctx)
}

func (o *orderedSink) flush(ctx context.Context) error {
	if o.sinkErr != nil {
		return o.sinkErr
	}
	for o.next < len(o.slots) && o.slots[o.next].done {
		s := o.slots[o.next]
		if s.ranking != nil {
			if err := o.sink.Write(ctx, s.ranking, s.question); err != nil {
				o.sinkErr = err
				return err
			}
			o.nWrite++
		}
		o.slots[o.next] = slot{done: true}
		o.next++
	}
	return nil
}

// failures joins every query error recorded so far.
func (o *orderedSink) failures() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return errors.Join(o.errs...)
}

func (o *orderedSink) written() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.nWrite
}

func (o *orderedSink) failedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.errs)
}
