package features

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/ZanzyTHEbar/glue-features/gluefeat/dataset"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// BuildParallel is Build spread over a bounded worker pool, logging through
// the global zerolog logger.
func BuildParallel(ctx context.Context, examples []dataset.Example, labels LabelSpace, maxSeqLength int, tok Tokenizer, mode OutputMode, opts Options, workers int) ([]Feature, error) {
	feats, _, err := NewBuilder(opts, log.Logger).BuildParallel(ctx, examples, labels, maxSeqLength, tok, mode, workers)
	return feats, err
}

// BuildParallel converts examples on up to workers goroutines. Every task
// writes only to the slot of its input index, so the output order matches
// the input order. On failure the error of the lowest failing index is
// returned, the same one Build reports; examples after it are skipped. tok
// must be safe for concurrent use.
func (b *Builder) BuildParallel(ctx context.Context, examples []dataset.Example, labels LabelSpace, maxSeqLength int, tok Tokenizer, mode OutputMode, workers int) ([]Feature, *Stats, error) {
	if workers <= 1 {
		return b.Build(examples, labels, maxSeqLength, tok, mode)
	}
	c, err := b.prepare(examples, labels, maxSeqLength, tok, mode)
	if err != nil {
		return nil, nil, err
	}

	feats := make([]Feature, len(examples))
	outcomes := make([]outcome, len(examples))
	errs := make([]error, len(examples))
	var firstFailed atomic.Int64
	firstFailed.Store(math.MaxInt64)

	p := pool.New().
		WithMaxGoroutines(workers).
		WithContext(ctx).
		WithFirstError()
	for i := range examples {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if int64(i) > firstFailed.Load() {
				return nil
			}
			c.progress(i)
			f, o, err := c.convert(i, examples[i])
			if err != nil {
				errs[i] = err
				for cur := firstFailed.Load(); int64(i) < cur; cur = firstFailed.Load() {
					if firstFailed.CompareAndSwap(cur, int64(i)) {
						break
					}
				}
				return nil
			}
			feats[i], outcomes[i] = f, o
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}
	return feats, collectStats(outcomes), nil
}
