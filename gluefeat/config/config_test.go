package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	internal "github.com/ZanzyTHEbar/glue-features/gluefeat"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/dataset"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/metrics"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/tasks"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/tokenizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()
	require.NoError(suite.T(), os.Chdir(suite.tempDir))
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) writeConfig(content string) string {
	path := filepath.Join(suite.tempDir, "config.yaml")
	require.NoError(suite.T(), os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), ".", cfg.Data.Dir)
	assert.Equal(suite.T(), "dev", cfg.Data.Split)
	assert.Equal(suite.T(), "skip", cfg.Data.Policy)
	assert.Equal(suite.T(), tokenizer.KindSugarme, cfg.Tokenizer.Kind)
	assert.True(suite.T(), cfg.Tokenizer.Lowercase)
	assert.Equal(suite.T(), "[UNK]", cfg.Tokenizer.UnkToken)
	assert.Equal(suite.T(), internal.DefaultMaxSeqLength, cfg.Features.MaxSeqLength)
	assert.Equal(suite.T(), "bert", cfg.Features.ModelType)
	assert.Equal(suite.T(), "bert", cfg.Features.Model)
	assert.Equal(suite.T(), runtime.NumCPU(), cfg.Features.Workers)
	assert.Equal(suite.T(), features.BERTOptions(), cfg.Features.Options)
	assert.False(suite.T(), cfg.Cache.Enabled)
	assert.Equal(suite.T(), internal.DefaultCacheDSN, cfg.Cache.DSN)
	assert.Equal(suite.T(), 32, cfg.Inference.Options.BatchSize)
	assert.Equal(suite.T(), "cpu", cfg.Inference.Options.ExecutionProvider)
	assert.Equal(suite.T(), "info", cfg.Log.Level)
	assert.Empty(suite.T(), cfg.Tasks)
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	path := suite.writeConfig(`
data:
  dir: ./glue/MRPC
  task: mrpc
  split: train
  policy: fail
tokenizer:
  kind: wordpiece
  vocab: ./model/vocab.txt
  lexicon: ./lexicon.tsv
  lowercase: false
features:
  maxSeqLength: 64
  modelType: xlnet
  model: xlnet-base-cased
  workers: 2
  options:
    padTokenID: 9
    logExamples: 0
cache:
  enabled: true
  dsn: file:./features.db
inference:
  modelPath: ./model/model.onnx
  batchSize: 8
  executionProvider: cuda
log:
  level: debug
tasks:
  - name: emotion
    labels: [joy, anger]
    textA: 1
    label: 0
    skipHeader: false
  - name: similarity
    mode: regression
    metrics: correlation
    id: 0
    textA: 1
    textB: 2
    label: -1
`)

	cfg, err := LoadConfig(path)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "./glue/MRPC", cfg.Data.Dir)
	assert.Equal(suite.T(), "mrpc", cfg.Data.Task)
	assert.Equal(suite.T(), "train", cfg.Data.Split)
	assert.Equal(suite.T(), "fail", cfg.Data.Policy)

	assert.Equal(suite.T(), tokenizer.KindWordPiece, cfg.Tokenizer.Kind)
	assert.Equal(suite.T(), "./model/vocab.txt", cfg.Tokenizer.Vocab)
	assert.Equal(suite.T(), "./lexicon.tsv", cfg.Tokenizer.Lexicon)
	assert.False(suite.T(), cfg.Tokenizer.Lowercase)

	assert.Equal(suite.T(), 64, cfg.Features.MaxSeqLength)
	assert.Equal(suite.T(), "xlnet-base-cased", cfg.Features.Model)
	assert.Equal(suite.T(), 2, cfg.Features.Workers)
	want := features.XLNetOptions()
	want.PadTokenID = 9
	want.LogExamples = 0
	assert.Equal(suite.T(), want, cfg.Features.Options)

	assert.True(suite.T(), cfg.Cache.Enabled)
	assert.Equal(suite.T(), "file:./features.db", cfg.Cache.DSN)
	assert.Equal(suite.T(), "./model/model.onnx", cfg.Inference.ModelPath)
	assert.Equal(suite.T(), 8, cfg.Inference.Options.BatchSize)
	assert.Equal(suite.T(), "cuda", cfg.Inference.Options.ExecutionProvider)
	assert.Equal(suite.T(), "debug", cfg.Log.Level)

	require.Len(suite.T(), cfg.Tasks, 2)
	emotion := cfg.Tasks[0].Task()
	assert.Equal(suite.T(), "emotion", emotion.Name)
	assert.Equal(suite.T(), dataset.SingleColumns(1, 0), emotion.Schema.Columns)
	assert.False(suite.T(), emotion.Schema.SkipHeader)
	assert.Equal(suite.T(), features.Classification, emotion.Mode)
	assert.Equal(suite.T(), metrics.Accuracy, emotion.Metrics)

	similarity := cfg.Tasks[1].Task()
	assert.Equal(suite.T(), dataset.PairColumns(0, 1, 2, -1), similarity.Schema.Columns)
	assert.True(suite.T(), similarity.Schema.SkipHeader)

	r := tasks.NewRegistry()
	for _, tc := range cfg.Tasks {
		require.NoError(suite.T(), r.Register(tc.Task()))
	}
	n, err := r.NumLabels("similarity")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, n)
}

func (suite *ConfigTestSuite) TestModelFollowsModelType() {
	path := suite.writeConfig("features:\n  modelType: roberta\n")
	cfg, err := LoadConfig(path)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "roberta", cfg.Features.Model)
	assert.Equal(suite.T(), features.RoBERTaOptions(), cfg.Features.Options)
}

func (suite *ConfigTestSuite) TestEnvironmentOverrides() {
	suite.T().Setenv("GLUEFEAT_FEATURES_MAXSEQLENGTH", "256")
	suite.T().Setenv("GLUEFEAT_DATA_TASK", "sst-2")
	suite.T().Setenv("GLUEFEAT_CACHE_ENABLED", "true")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 256, cfg.Features.MaxSeqLength)
	assert.Equal(suite.T(), "sst-2", cfg.Data.Task)
	assert.True(suite.T(), cfg.Cache.Enabled)
}

func (suite *ConfigTestSuite) TestUnknownModelType() {
	path := suite.writeConfig("features:\n  modelType: gpt9\n")
	_, err := LoadConfig(path)
	assert.ErrorIs(suite.T(), err, features.ErrConfiguration)
}

func (suite *ConfigTestSuite) TestInvalidConfigFile() {
	path := suite.writeConfig("features: [unclosed\n")
	_, err := LoadConfig(path)
	assert.Error(suite.T(), err)
}
