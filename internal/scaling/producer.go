package scaling

import (
	"context"
	"sync"
)

// Producer is a deferred, single-shot computation yielding a variant's
// bytes. The first Produce call runs the computation; every later call
// returns the same terminal result, successful or not. The context of the
// first caller governs the run.
type Producer struct {
	once sync.Once
	blob Blob
	err  error
	run  func(context.Context) (Blob, error)
}

// NewProducer wraps a computation in a Producer.
func NewProducer(run func(context.Context) (Blob, error)) *Producer {
	return &Producer{run: run}
}

// Resolved returns a producer already in its terminal state. Used for the
// untouched reference passthrough, which is materialized from the start.
func Resolved(blob Blob) *Producer {
	return NewProducer(func(context.Context) (Blob, error) {
		return blob, nil
	})
}

// Produce resolves the variant, running the underlying computation at most
// once.
func (p *Producer) Produce(ctx context.Context) (Blob, error) {
	p.once.Do(func() {
		p.blob, p.err = p.run(ctx)
	})
	return p.blob, p.err
}
