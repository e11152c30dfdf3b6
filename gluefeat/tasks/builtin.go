package tasks

import (
	"github.com/ZanzyTHEbar/glue-features/gluefeat/dataset"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/metrics"
)

const none = dataset.NoColumn

var binary = []string{"0", "1"}

// singleSentence is the "text<TAB>label" layout with a header row.
func singleSentence(name string, labels []string, set metrics.MetricSet) Task {
	return Task{
		Name:    name,
		Schema:  dataset.DefaultFiles(dataset.SingleColumns(0, 1)),
		Labels:  labels,
		Mode:    features.Classification,
		Metrics: set,
	}
}

func pair(name string, cols, test dataset.Columns, labels []string, set metrics.MetricSet) Task {
	schema := dataset.DefaultFiles(cols)
	schema.Test = &test
	return Task{Name: name, Schema: schema, Labels: labels, Mode: features.Classification, Metrics: set}
}

// Builtin returns the GLUE tasks and the additional sentence classification
// datasets.
func Builtin() []Task {
	cola := Task{
		Name: "cola",
		Schema: dataset.Schema{
			TrainFile: "train.tsv",
			DevFile:   "dev.tsv",
			Columns:   dataset.Columns{ID: none, TextA: 3, TextB: none, Label: 1},
		},
		Labels:  binary,
		Mode:    features.Classification,
		Metrics: metrics.MCC,
	}

	sst2 := singleSentence("sst-2", binary, metrics.Accuracy)
	sst2.Schema.Test = &dataset.Columns{ID: 0, TextA: 1, TextB: none, Label: none}

	mnli := pair("mnli",
		dataset.PairColumns(0, 8, 9, -1),
		dataset.PairColumns(0, 8, 9, none),
		[]string{"contradiction", "entailment", "neutral"}, metrics.Accuracy)
	mnli.Schema.DevFile = "dev_matched.tsv"
	mnli.Schema.TestFile = "test_matched.tsv"

	mnliMM := mnli
	mnliMM.Name = "mnli-mm"
	mnliMM.Schema.DevFile = "dev_mismatched.tsv"
	mnliMM.Schema.TestFile = "test_mismatched.tsv"

	stsb := pair("sts-b",
		dataset.PairColumns(0, 7, 8, -1),
		dataset.PairColumns(0, 7, 8, none),
		nil, metrics.Correlation)
	stsb.Mode = features.Regression

	entailment := []string{"entailment", "not_entailment"}

	return []Task{
		cola,
		mnli,
		mnliMM,
		pair("mrpc",
			dataset.Columns{ID: none, TextA: 3, TextB: 4, Label: 0},
			dataset.PairColumns(0, 3, 4, none),
			binary, metrics.AccuracyF1),
		sst2,
		stsb,
		pair("qqp",
			dataset.PairColumns(0, 3, 4, 5),
			dataset.PairColumns(0, 1, 2, none),
			binary, metrics.AccuracyF1),
		pair("qnli",
			dataset.PairColumns(0, 1, 2, -1),
			dataset.PairColumns(0, 1, 2, none),
			entailment, metrics.Accuracy),
		pair("rte",
			dataset.PairColumns(0, 1, 2, -1),
			dataset.PairColumns(0, 1, 2, none),
			entailment, metrics.Accuracy),
		pair("wnli",
			dataset.PairColumns(0, 1, 2, -1),
			dataset.PairColumns(0, 1, 2, none),
			binary, metrics.Accuracy),
		singleSentence("relation", []string{"advise", "effect", "int", "mechanism", "NAN"}, metrics.AccuracyF1),
		singleSentence("semeval5", binary, metrics.Accuracy),
		singleSentence("ciron", []string{"1", "2", "3", "4", "5"}, metrics.Accuracy),
		singleSentence("airrecord", []string{"0", "1", "2"}, metrics.Accuracy),
		singleSentence("liar", []string{"0", "1", "2", "3", "4", "5"}, metrics.Accuracy),
		singleSentence("mr", binary, metrics.Accuracy),
		singleSentence("spr2018", binary, metrics.Accuracy),
		singleSentence("ssst2", binary, metrics.Accuracy),
		singleSentence("subj", binary, metrics.Accuracy),
		singleSentence("trec", []string{"0", "1", "2", "3", "4", "5"}, metrics.Accuracy),
		singleSentence("twitter", binary, metrics.Accuracy),
	}
}
