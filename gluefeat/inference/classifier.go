// Package inference runs a sequence classification model over built features.
package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/metrics"
)

// ErrUnavailable is returned when the binary was built without ONNX support.
var ErrUnavailable = errors.New("onnx classifier not available: build with -tags onnx")

// Classifier maps features to per-class logits.
type Classifier interface {
	// Logits returns one row per feature: the class scores, or a single
	// value for regression models.
	Logits(ctx context.Context, feats []features.Feature) ([][]float32, error)
	Close() error
}

// Options configures the ONNX runtime session.
type Options struct {
	BatchSize         int    `mapstructure:"batchSize"`
	ExecutionProvider string `mapstructure:"executionProvider"` // cpu, cuda, tensorrt, coreml, dml
	DeviceID          int    `mapstructure:"deviceID"`
}

const defaultBatchSize = 32

func (o Options) batchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return defaultBatchSize
}

func (o Options) provider() string {
	return strings.ToLower(strings.TrimSpace(o.ExecutionProvider))
}

// Predictions turns logits into metric inputs: the argmax class for
// classification, the first output for regression.
func Predictions(logits [][]float32, mode features.OutputMode) ([]float64, error) {
	out := make([]float64, len(logits))
	for i, row := range logits {
		if len(row) == 0 {
			return nil, fmt.Errorf("empty logits for feature %d", i)
		}
		if mode == features.Regression {
			out[i] = float64(row[0])
			continue
		}
		out[i] = float64(metrics.Argmax(row))
	}
	return out, nil
}

// batch is a [rows, seq] flattening of feature sequences.
type batch struct {
	rows, seq int
	ids       []int64
	mask      []int64
	segments  []int64
}

// flatten packs features of equal length into row-major tensors.
func flatten(feats []features.Feature) (batch, error) {
	if len(feats) == 0 {
		return batch{}, nil
	}
	seq := feats[0].Len()
	b := batch{
		rows:     len(feats),
		seq:      seq,
		ids:      make([]int64, 0, len(feats)*seq),
		mask:     make([]int64, 0, len(feats)*seq),
		segments: make([]int64, 0, len(feats)*seq),
	}
	for i, f := range feats {
		if err := f.Check(seq); err != nil {
			return batch{}, fmt.Errorf("feature %d: %w", i, err)
		}
		b.ids = append(b.ids, f.TokenIDs...)
		b.mask = append(b.mask, f.AttentionMask...)
		b.segments = append(b.segments, f.SegmentIDs...)
	}
	return b, nil
}

// chunks splits n items into consecutive [start, end) ranges of at most size.
func chunks(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}
