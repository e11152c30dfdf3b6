package inference

import (
	"testing"

	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictions(t *testing.T) {
	logits := [][]float32{{0.1, 2.0, -1}, {3, 3, 0}, {-0.5, -0.2, -0.9}}

	got, err := Predictions(logits, features.Classification)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1}, got)

	got, err = Predictions([][]float32{{4.25}, {0.5}}, features.Regression)
	require.NoError(t, err)
	assert.Equal(t, []float64{4.25, 0.5}, got)

	_, err = Predictions([][]float32{{1}, {}}, features.Classification)
	assert.Error(t, err)
}

func TestFlatten(t *testing.T) {
	feats := []features.Feature{
		{TokenIDs: []int64{101, 7, 102}, AttentionMask: []int64{1, 1, 1}, SegmentIDs: []int64{0, 0, 0}, AuxWeights: []float32{1, 1, 1}},
		{TokenIDs: []int64{101, 102, 0}, AttentionMask: []int64{1, 1, 0}, SegmentIDs: []int64{0, 0, 0}, AuxWeights: []float32{1, 1, 0}},
	}
	b, err := flatten(feats)
	require.NoError(t, err)
	assert.Equal(t, 2, b.rows)
	assert.Equal(t, 3, b.seq)
	assert.Equal(t, []int64{101, 7, 102, 101, 102, 0}, b.ids)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 0}, b.mask)
	assert.Len(t, b.segments, 6)

	feats[1].SegmentIDs = []int64{0}
	_, err = flatten(feats)
	assert.ErrorIs(t, err, features.ErrLengthInvariant)

	b, err = flatten(nil)
	require.NoError(t, err)
	assert.Zero(t, b.rows)
}

func TestChunks(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 32}, {32, 64}, {64, 70}}, chunks(70, 32))
	assert.Equal(t, [][2]int{{0, 3}}, chunks(3, 32))
	assert.Empty(t, chunks(0, 32))
}

func TestOptions(t *testing.T) {
	assert.Equal(t, defaultBatchSize, Options{}.batchSize())
	assert.Equal(t, 8, Options{BatchSize: 8}.batchSize())
	assert.Equal(t, "cuda", Options{ExecutionProvider: " CUDA "}.provider())
}
