package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/glue-features/gluefeat/config"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/dataset"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/tasks"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/tokenizer"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rteDev = "index\tsentence1\tsentence2\tlabel\n" +
	"0\tthe cat sat\tthe cat\tentailment\n" +
	"1\thello world\tthe world\tnot_entailment\n" +
	"2\tbroken row\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	vocab := writeFile(t, dir, "vocab.txt", strings.Join([]string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]", "the", "cat", "sat", "hello", "world", "happy",
	}, "\n"))
	data := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))
	writeFile(t, data, "dev.tsv", rteDev)

	skip := false
	textA, label := 0, 1
	cfg := &config.Config{
		Data:      config.DataConfig{Policy: "skip"},
		Tokenizer: tokenizer.Config{Kind: tokenizer.KindWordPiece, Vocab: vocab, Lowercase: true},
		Features: config.FeaturesConfig{
			MaxSeqLength: 8,
			Model:        "bert",
			Workers:      2,
			Options:      features.BERTOptions(),
		},
		Cache: config.CacheConfig{Enabled: true, DSN: filepath.Join(dir, "cache", "features.db")},
		Tasks: []config.TaskConfig{{
			Name:       "mood",
			Labels:     []string{"sad", "happy"},
			SkipHeader: &skip,
			TextA:      &textA,
			Label:      &label,
		}},
	}
	return cfg, data
}

func TestFeaturesUsesCache(t *testing.T) {
	cfg, data := testConfig(t)
	p, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()
	ctx := context.Background()

	first, err := p.Features(ctx, data, "RTE", dataset.SplitDev)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "rte", first.Task.Name)
	assert.Equal(t, 1, first.Skipped)
	require.Len(t, first.Features, 2)
	assert.Equal(t, 2, first.Stats.Examples)

	f := first.Features[0]
	assert.Equal(t, "dev-0", f.ExampleID)
	assert.Equal(t, []string{"[CLS]", "the", "cat", "sat", "[SEP]", "the", "cat", "[SEP]"}, f.Tokens)
	assert.Equal(t, []int64{2, 4, 5, 6, 3, 4, 5, 3}, f.TokenIDs)
	assert.Equal(t, 0, f.Label.Class)
	assert.Equal(t, 1, first.Features[1].Label.Class)

	second, err := p.Features(ctx, data, "rte", dataset.SplitDev)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Features, second.Features)
	assert.Equal(t, 0, second.Stats.TruncatedCount())
}

func TestFeaturesCacheKeyTracksLayout(t *testing.T) {
	cfg, data := testConfig(t)
	ctx := context.Background()
	run := func(mutate func(*config.Config)) *Result {
		t.Helper()
		c := *cfg
		mutate(&c)
		p, err := New(&c, zerolog.Nop())
		require.NoError(t, err)
		defer p.Close()
		res, err := p.Features(ctx, data, "rte", dataset.SplitDev)
		require.NoError(t, err)
		return res
	}

	bert := run(func(*config.Config) {})
	assert.False(t, bert.Cached)

	roberta := run(func(c *config.Config) { c.Features.Options = features.RoBERTaOptions() })
	assert.False(t, roberta.Cached)
	assert.Equal(t, []string{"<s>", "the", "cat", "</s>", "</s>", "the", "cat", "</s>"}, roberta.Features[0].Tokens)

	cased := run(func(c *config.Config) { c.Tokenizer.Lowercase = false })
	assert.False(t, cased.Cached)

	quiet := run(func(c *config.Config) { c.Features.Options.LogExamples = 0 })
	assert.True(t, quiet.Cached)
	assert.Equal(t, bert.Features, quiet.Features)

	again := run(func(c *config.Config) { c.Features.Options = features.RoBERTaOptions() })
	assert.True(t, again.Cached)
	assert.Equal(t, roberta.Features, again.Features)
}

func TestFeaturesCustomTask(t *testing.T) {
	cfg, data := testConfig(t)
	cfg.Cache.Enabled = false
	writeFile(t, data, "train.tsv", "happy world\thappy\nthe cat\tsad\n")

	p, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	res, err := p.Features(context.Background(), data, "mood", dataset.SplitTrain)
	require.NoError(t, err)
	require.Len(t, res.Features, 2)
	assert.Equal(t, "train-0", res.Features[0].ExampleID)
	assert.Equal(t, 1, res.Features[0].Label.Class)
	assert.Equal(t, 0, res.Features[1].Label.Class)
}

func TestFeaturesErrors(t *testing.T) {
	cfg, data := testConfig(t)
	cfg.Cache.Enabled = false
	cfg.Tokenizer.Vocab = ""
	p, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	_, err = p.Features(context.Background(), data, "rte", dataset.SplitDev)
	assert.ErrorIs(t, err, ErrNoTokenizer)

	_, err = p.Features(context.Background(), data, "rtf", dataset.SplitDev)
	assert.ErrorIs(t, err, tasks.ErrUnknownTask)

	_, err = p.Features(context.Background(), data, "rte", dataset.SplitTrain)
	assert.Error(t, err)

	p.Policy = dataset.PolicyFail
	_, err = p.Features(context.Background(), data, "rte", dataset.SplitDev)
	assert.ErrorIs(t, err, dataset.ErrMalformedRow)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.Data.Policy = "ignore"
	_, err := New(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, dataset.ErrUnknownPolicy)

	cfg, _ = testConfig(t)
	cfg.Tasks = append(cfg.Tasks, config.TaskConfig{Name: "cola"})
	_, err = New(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	cfg, data := testConfig(t)
	cfg.Cache.Enabled = false
	p, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	got, err := p.Evaluate(ctx, data, "rte", dataset.SplitDev, map[string]float64{"dev-0": 0, "dev-1": 0, "dev-9": 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got["acc"], 1e-9)

	_, err = p.Evaluate(ctx, data, "rte", dataset.SplitDev, map[string]float64{"dev-0": 0})
	assert.ErrorIs(t, err, ErrMissingPrediction)

	_, err = p.Evaluate(ctx, data, "rte", dataset.SplitTest, nil)
	assert.ErrorIs(t, err, ErrUnlabeledSplit)
}

type fakeClassifier struct {
	logits [][]float32
	err    error
}

func (f fakeClassifier) Logits(context.Context, []features.Feature) ([][]float32, error) {
	return f.logits, f.err
}

func (fakeClassifier) Close() error { return nil }

func TestPredict(t *testing.T) {
	cfg, data := testConfig(t)
	cfg.Cache.Enabled = false
	p, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	res, err := p.Features(ctx, data, "rte", dataset.SplitDev)
	require.NoError(t, err)

	preds, err := p.Predict(ctx, fakeClassifier{logits: [][]float32{{0.9, 0.1}, {0.2, 0.8}}}, res)
	require.NoError(t, err)
	assert.Equal(t, []Prediction{{ID: "dev-0", Prediction: 0}, {ID: "dev-1", Prediction: 1}}, preds)

	byID := make(map[string]float64)
	for _, pr := range preds {
		byID[pr.ID] = pr.Prediction
	}
	scores, err := p.Evaluate(ctx, data, "rte", dataset.SplitDev, byID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scores["acc"], 1e-9)

	_, err = p.Predict(ctx, fakeClassifier{logits: [][]float32{{1, 0}}}, res)
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = p.Predict(ctx, fakeClassifier{err: boom}, res)
	assert.ErrorIs(t, err, boom)
}
