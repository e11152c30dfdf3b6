package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	internal "github.com/ZanzyTHEbar/glue-features/gluefeat"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/config"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/dataset"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/inference"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/pipeline"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog/log"
)

type tasksCmd struct{}

type dataArgs struct {
	Task    string `arg:"--task" help:"task name, see the tasks command"`
	DataDir string `arg:"--data-dir" help:"directory holding the split files"`
	Split   string `arg:"--split" help:"train, dev or test"`
}

type featuresCmd struct {
	dataArgs
	MaxSeqLength int    `arg:"--max-seq-length"`
	ModelType    string `arg:"--model-type" help:"bert, xlnet, roberta, xlm or distilbert"`
	Vocab        string `arg:"--vocab" help:"vocab.txt or a model directory"`
	Workers      int    `arg:"--workers"`
	NoCache      bool   `arg:"--no-cache"`
}

type evalCmd struct {
	dataArgs
	Predictions string `arg:"--predictions,required" help:"CSV or TSV file with id and prediction columns"`
	Out         string `arg:"--out" help:"metrics report path, stdout when empty"`
}

type predictCmd struct {
	featuresCmd
	Model string `arg:"--model" help:"ONNX sequence classification model"`
	Out   string `arg:"--out" help:"predictions path, stdout when empty"`
}

type args struct {
	Config   string       `arg:"--config" help:"config file"`
	LogLevel string       `arg:"--log-level"`
	Tasks    *tasksCmd    `arg:"subcommand:tasks" help:"list registered tasks"`
	Features *featuresCmd `arg:"subcommand:features" help:"build or load cached features"`
	Eval     *evalCmd     `arg:"subcommand:eval" help:"score predictions against gold labels"`
	Predict  *predictCmd  `arg:"subcommand:predict" help:"run the ONNX classifier (needs -tags onnx)"`
}

func fail(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("gluefeat failed")
	}
}

func main() {
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	log.Logger = internal.GetLogger()
	cfg, err := config.LoadConfig(a.Config)
	fail(err)
	if a.LogLevel != "" {
		cfg.Log.Level = a.LogLevel
	}
	log.Logger = internal.NewLogger(cfg.Log.Level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case a.Tasks != nil:
		fail(runTasks(cfg))
	case a.Features != nil:
		fail(runFeatures(ctx, cfg, a.Features))
	case a.Eval != nil:
		fail(runEval(ctx, cfg, a.Eval))
	case a.Predict != nil:
		fail(runPredict(ctx, cfg, a.Predict))
	}
}

// apply overrides configuration with the flags that were given.
func (d dataArgs) apply(cfg *config.Config) {
	if d.Task != "" {
		cfg.Data.Task = d.Task
	}
	if d.DataDir != "" {
		cfg.Data.Dir = d.DataDir
	}
	if d.Split != "" {
		cfg.Data.Split = d.Split
	}
}

func (f featuresCmd) apply(cfg *config.Config) error {
	f.dataArgs.apply(cfg)
	if f.MaxSeqLength > 0 {
		cfg.Features.MaxSeqLength = f.MaxSeqLength
	}
	if f.ModelType != "" {
		opts, err := features.PresetOptions(f.ModelType)
		if err != nil {
			return err
		}
		if cfg.Features.Model == cfg.Features.ModelType {
			cfg.Features.Model = f.ModelType
		}
		cfg.Features.ModelType = f.ModelType
		cfg.Features.Options = opts
	}
	if f.Vocab != "" {
		cfg.Tokenizer.Vocab = f.Vocab
	}
	if f.Workers > 0 {
		cfg.Features.Workers = f.Workers
	}
	if f.NoCache {
		cfg.Cache.Enabled = false
	}
	return nil
}

func runTasks(cfg *config.Config) error {
	p, err := pipeline.New(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer p.Close()
	return writeTasks(os.Stdout, p.Registry.Tasks())
}

func buildFeatures(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) (*pipeline.Result, error) {
	split, err := dataset.ParseSplit(cfg.Data.Split)
	if err != nil {
		return nil, err
	}
	res, err := p.Features(ctx, cfg.Data.Dir, cfg.Data.Task, split)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("task", res.Task.Name).
		Str("split", string(res.Split)).
		Int("features", len(res.Features)).
		Int("truncated", res.Stats.TruncatedCount()).
		Int("longest_input", res.Stats.LongestInput).
		Int("skipped_rows", res.Skipped).
		Bool("cached", res.Cached).
		Msg("features ready")
	return res, nil
}

func runFeatures(ctx context.Context, cfg *config.Config, cmd *featuresCmd) error {
	if err := cmd.apply(cfg); err != nil {
		return err
	}
	p, err := pipeline.New(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer p.Close()
	_, err = buildFeatures(ctx, cfg, p)
	return err
}

func runEval(ctx context.Context, cfg *config.Config, cmd *evalCmd) error {
	cmd.dataArgs.apply(cfg)
	split, err := dataset.ParseSplit(cfg.Data.Split)
	if err != nil {
		return err
	}
	preds, err := readPredictions(cmd.Predictions)
	if err != nil {
		return err
	}

	cfg.Tokenizer.Vocab = ""
	cfg.Cache.Enabled = false
	p, err := pipeline.New(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer p.Close()
	scores, err := p.Evaluate(ctx, cfg.Data.Dir, cfg.Data.Task, split, predictionMap(preds))
	if err != nil {
		return err
	}
	task, err := p.Registry.Lookup(cfg.Data.Task)
	if err != nil {
		return err
	}
	for k, v := range scores {
		log.Info().Str("task", task.Name).Float64(k, v).Msg("eval result")
	}
	return writeOutput(cmd.Out, func(f *os.File) error { return writeReport(f, task.Name, scores) })
}

func runPredict(ctx context.Context, cfg *config.Config, cmd *predictCmd) error {
	if err := cmd.featuresCmd.apply(cfg); err != nil {
		return err
	}
	if cmd.Model != "" {
		cfg.Inference.ModelPath = cmd.Model
	}
	classifier, err := inference.NewONNXClassifier(cfg.Inference.ModelPath, cfg.Inference.Options)
	if err != nil {
		return err
	}
	defer classifier.Close()

	p, err := pipeline.New(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer p.Close()
	res, err := buildFeatures(ctx, cfg, p)
	if err != nil {
		return err
	}
	preds, err := p.Predict(ctx, classifier, res)
	if err != nil {
		return err
	}
	return writeOutput(cmd.Out, func(f *os.File) error { return writePredictions(f, preds) })
}

// writeOutput runs write on path, or on stdout when path is empty.
func writeOutput(path string, write func(*os.File) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
