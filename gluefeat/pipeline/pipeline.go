// Package pipeline wires the task registry, dataset reader, feature builder,
// feature cache and classifier into the operations exposed by the CLI.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/glue-features/gluefeat/cache"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/config"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/dataset"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/inference"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/metrics"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/tasks"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/tokenizer"

	"github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"
)

var (
	ErrMissingPrediction = errors.New("missing prediction")
	ErrNoTokenizer       = errors.New("no tokenizer configured")
	ErrUnlabeledSplit    = errors.New("split has no labels")
)

// Pipeline converts task datasets into features and evaluates predictions.
type Pipeline struct {
	Registry        *tasks.Registry
	Tokenizer       features.Tokenizer // needed only when features are built
	TokenizerConfig tokenizer.Config   // settings Tokenizer was built from, part of the cache key
	Cache           *cache.Store       // nil disables caching
	Logger          zerolog.Logger
	Options         features.Options
	MaxSeqLength    int
	Workers         int
	Model           string // model name in cache keys
	Policy          dataset.MalformedRowPolicy
}

// Result is the outcome of Features.
type Result struct {
	Task     tasks.Task
	Split    dataset.Split
	Examples []dataset.Example
	Features []features.Feature
	Stats    *features.Stats
	Skipped  int  // malformed rows dropped while reading
	Cached   bool // features came from the cache
}

// Prediction is one model output keyed by example id.
type Prediction struct {
	ID         string  `csv:"id"`
	Prediction float64 `csv:"prediction"`
}

// New builds a pipeline from configuration. Custom tasks are registered on
// top of the built-in ones; the tokenizer is loaded only when a vocab is set
// and the cache is opened only when enabled.
func New(cfg *config.Config, logger zerolog.Logger) (*Pipeline, error) {
	policy, err := dataset.ParsePolicy(cfg.Data.Policy)
	if err != nil {
		return nil, err
	}

	reg := tasks.Default()
	reg.Logger = logger
	for _, tc := range cfg.Tasks {
		if err := reg.Register(tc.Task()); err != nil {
			return nil, err
		}
	}

	p := &Pipeline{
		Registry:        reg,
		TokenizerConfig: cfg.Tokenizer,
		Logger:          logger,
		Options:         cfg.Features.Options,
		MaxSeqLength:    cfg.Features.MaxSeqLength,
		Workers:         cfg.Features.Workers,
		Model:           cfg.Features.Model,
		Policy:          policy,
	}
	if cfg.Tokenizer.Vocab != "" {
		if p.Tokenizer, err = tokenizer.New(cfg.Tokenizer); err != nil {
			return nil, err
		}
	}
	if cfg.Cache.Enabled {
		if p.Cache, err = cache.Open(cfg.Cache.DSN, logger); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Close releases the cache connection.
func (p *Pipeline) Close() error {
	if p.Cache == nil {
		return nil
	}
	return p.Cache.Close()
}

func (p *Pipeline) read(dataDir string, task tasks.Task, split dataset.Split) (*dataset.ReadResult, error) {
	r := dataset.NewReader(task.Schema)
	r.Policy = p.Policy
	r.Logger = p.Logger
	return r.ReadSplit(dataDir, split)
}

// Features reads a task split and converts it, consulting the cache first.
func (p *Pipeline) Features(ctx context.Context, dataDir, taskName string, split dataset.Split) (*Result, error) {
	task, err := p.Registry.Lookup(taskName)
	if err != nil {
		return nil, err
	}
	read, err := p.read(dataDir, task, split)
	if err != nil {
		return nil, err
	}
	res := &Result{Task: task, Split: split, Examples: read.Examples, Skipped: read.Skipped}

	var key cache.Key
	if p.Cache != nil {
		if key, err = p.cacheKey(task, split); err != nil {
			return nil, err
		}
		feats, ok, err := p.Cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok && len(feats) == len(res.Examples) {
			p.Logger.Info().Str("key", key.String()).Int("features", len(feats)).Msg("Loading features from cached file")
			res.Features = feats
			res.Stats = &features.Stats{Examples: len(feats), Truncated: roaring.New()}
			res.Cached = true
			return res, nil
		}
		if ok {
			p.Logger.Warn().Str("key", key.String()).Int("cached", len(feats)).Int("examples", len(res.Examples)).Msg("stale cache entry, rebuilding")
		}
	}

	if p.Tokenizer == nil {
		return nil, ErrNoTokenizer
	}
	labels, err := task.LabelSpace()
	if err != nil {
		return nil, err
	}
	p.Logger.Info().Str("task", task.Name).Str("split", string(split)).Msgf("Creating features from dataset file at %s", dataDir)
	b := features.NewBuilder(p.Options, p.Logger)
	res.Features, res.Stats, err = b.BuildParallel(ctx, res.Examples, labels, p.MaxSeqLength, p.Tokenizer, task.Mode, p.Workers)
	if err != nil {
		return nil, err
	}

	if p.Cache != nil {
		if _, err := p.Cache.Put(ctx, key, res.Features); err != nil {
			return nil, err
		}
		p.Logger.Info().Str("key", key.String()).Msg("Saving features into cached file")
	}
	return res, nil
}

// cacheKey identifies the features of a task split under the current builder
// options and tokenizer settings. Logging options do not change the features
// and are left out.
func (p *Pipeline) cacheKey(task tasks.Task, split dataset.Split) (cache.Key, error) {
	opts := p.Options
	opts.LogExamples, opts.ProgressEvery = 0, 0
	layout, err := cache.Fingerprint(opts, p.TokenizerConfig)
	if err != nil {
		return cache.Key{}, err
	}
	return cache.Key{
		Task:         task.Name,
		Split:        string(split),
		Model:        p.Model,
		MaxSeqLength: p.MaxSeqLength,
		Layout:       layout,
	}, nil
}

// Evaluate scores predictions keyed by example id against the gold labels
// of a split using the task's metric set.
func (p *Pipeline) Evaluate(ctx context.Context, dataDir, taskName string, split dataset.Split, preds map[string]float64) (map[string]float64, error) {
	if !split.Labeled() {
		return nil, fmt.Errorf("%w: %s", ErrUnlabeledSplit, split)
	}
	task, err := p.Registry.Lookup(taskName)
	if err != nil {
		return nil, err
	}
	read, err := p.read(dataDir, task, split)
	if err != nil {
		return nil, err
	}
	labels, err := task.LabelSpace()
	if err != nil {
		return nil, err
	}

	gold := make([]float64, 0, len(read.Examples))
	predicted := make([]float64, 0, len(read.Examples))
	for i, ex := range read.Examples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !ex.HasLabel {
			continue
		}
		pred, ok := preds[ex.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingPrediction, ex.ID)
		}
		v, err := features.ResolveLabel(ex.Label, labels, task.Mode)
		if err != nil {
			return nil, &features.ExampleError{Index: i, ID: ex.ID, Err: err}
		}
		gold = append(gold, v.Float(task.Mode))
		predicted = append(predicted, pred)
	}
	if extra := len(preds) - len(predicted); extra > 0 {
		p.Logger.Warn().Int("unused", extra).Msg("predictions without a matching example")
	}
	return metrics.Compute(task.Metrics, predicted, gold)
}

// Predict runs the classifier over built features.
func (p *Pipeline) Predict(ctx context.Context, c inference.Classifier, res *Result) ([]Prediction, error) {
	logits, err := c.Logits(ctx, res.Features)
	if err != nil {
		return nil, err
	}
	if len(logits) != len(res.Features) {
		return nil, fmt.Errorf("classifier returned %d rows for %d features", len(logits), len(res.Features))
	}
	values, err := inference.Predictions(logits, res.Task.Mode)
	if err != nil {
		return nil, err
	}
	out := make([]Prediction, len(values))
	for i, v := range values {
		out[i] = Prediction{ID: res.Features[i].ExampleID, Prediction: v}
	}
	return out, nil
}
