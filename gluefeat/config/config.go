package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	internal "github.com/ZanzyTHEbar/glue-features/gluefeat"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/dataset"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/inference"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/metrics"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/tasks"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/tokenizer"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Data      DataConfig       `mapstructure:"data"`
	Tokenizer tokenizer.Config `mapstructure:"tokenizer"`
	Features  FeaturesConfig   `mapstructure:"features"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Inference InferenceConfig  `mapstructure:"inference"`
	Tasks     []TaskConfig     `mapstructure:"tasks"`
	Log       LogConfig        `mapstructure:"log"`
}

// DataConfig locates the dataset.
type DataConfig struct {
	Dir    string `mapstructure:"dir"`
	Task   string `mapstructure:"task"`
	Split  string `mapstructure:"split"`
	Policy string `mapstructure:"policy"` // malformed row policy: skip or fail
}

// FeaturesConfig stores feature builder settings. Options holds the preset of
// ModelType with any fields under features.options applied on top.
type FeaturesConfig struct {
	MaxSeqLength int              `mapstructure:"maxSeqLength"`
	ModelType    string           `mapstructure:"modelType"`
	Model        string           `mapstructure:"model"` // model name used in cache keys, defaults to ModelType
	Workers      int              `mapstructure:"workers"`
	Options      features.Options `mapstructure:"-"`
}

// CacheConfig stores feature cache connection details.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// InferenceConfig stores classifier settings.
type InferenceConfig struct {
	ModelPath string            `mapstructure:"modelPath"`
	Options   inference.Options `mapstructure:",squash"`
}

// LogConfig stores logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TaskConfig declares a custom task. Omitted columns are absent from the
// dataset; omitted files default to train.tsv, dev.tsv and test.tsv.
type TaskConfig struct {
	Name       string   `mapstructure:"name"`
	Labels     []string `mapstructure:"labels"`
	Mode       string   `mapstructure:"mode"`
	Metrics    string   `mapstructure:"metrics"`
	TrainFile  string   `mapstructure:"trainFile"`
	DevFile    string   `mapstructure:"devFile"`
	TestFile   string   `mapstructure:"testFile"`
	SkipHeader *bool    `mapstructure:"skipHeader"`
	ID         *int     `mapstructure:"id"`
	TextA      *int     `mapstructure:"textA"`
	TextB      *int     `mapstructure:"textB"`
	Label      *int     `mapstructure:"label"`
}

// Task converts the declaration into a registry task.
func (c TaskConfig) Task() tasks.Task {
	col := func(p *int) int {
		if p == nil {
			return dataset.NoColumn
		}
		return *p
	}
	schema := dataset.DefaultFiles(dataset.Columns{
		ID:    col(c.ID),
		TextA: col(c.TextA),
		TextB: col(c.TextB),
		Label: col(c.Label),
	})
	if c.TrainFile != "" {
		schema.TrainFile = c.TrainFile
	}
	if c.DevFile != "" {
		schema.DevFile = c.DevFile
	}
	if c.TestFile != "" {
		schema.TestFile = c.TestFile
	}
	if c.SkipHeader != nil {
		schema.SkipHeader = *c.SkipHeader
	}

	mode := features.OutputMode(c.Mode)
	if mode == "" {
		mode = features.Classification
	}
	set := metrics.MetricSet(c.Metrics)
	if set == "" {
		set = metrics.Accuracy
	}
	return tasks.Task{Name: c.Name, Schema: schema, Labels: c.Labels, Mode: mode, Metrics: set}
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("data.dir", ".")
	v.SetDefault("data.task", "")
	v.SetDefault("data.split", string(dataset.SplitDev))
	v.SetDefault("data.policy", string(dataset.PolicySkip))

	v.SetDefault("tokenizer.kind", string(tokenizer.KindSugarme))
	v.SetDefault("tokenizer.vocab", "")
	v.SetDefault("tokenizer.lexicon", "")
	v.SetDefault("tokenizer.lowercase", true)
	v.SetDefault("tokenizer.unkToken", "[UNK]")

	v.SetDefault("features.maxSeqLength", internal.DefaultMaxSeqLength)
	v.SetDefault("features.modelType", internal.DefaultModelType)
	v.SetDefault("features.model", "") // empty follows modelType
	v.SetDefault("features.workers", runtime.NumCPU())

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.dsn", internal.DefaultCacheDSN)

	v.SetDefault("inference.modelPath", "")
	v.SetDefault("inference.batchSize", 32)
	v.SetDefault("inference.executionProvider", "cpu")
	v.SetDefault("inference.deviceID", 0)

	v.SetDefault("log.level", internal.DefaultLogLevel)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.AutomaticEnv()                                   // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // features.maxSeqLength becomes GLUEFEAT_FEATURES_MAXSEQLENGTH

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	opts, err := features.PresetOptions(cfg.Features.ModelType)
	if err != nil {
		return nil, err
	}
	if v.IsSet("features.options") {
		if err := v.UnmarshalKey("features.options", &opts); err != nil {
			return nil, fmt.Errorf("unable to decode feature options: %w", err)
		}
	}
	cfg.Features.Options = opts
	if cfg.Features.Model == "" {
		cfg.Features.Model = cfg.Features.ModelType
	}

	AppConfig = cfg
	return &AppConfig, nil
}
