package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/glue-features/gluefeat/pipeline"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/tasks"

	"github.com/gocarina/gocsv"
)

type taskRow struct {
	Name      string `csv:"task"`
	Mode      string `csv:"mode"`
	NumLabels int    `csv:"num_labels"`
	Metrics   string `csv:"metrics"`
	Labels    string `csv:"labels"`
}

type reportRow struct {
	Task   string  `csv:"task"`
	Metric string  `csv:"metric"`
	Value  float64 `csv:"value"`
}

func writeTasks(w io.Writer, ts []tasks.Task) error {
	rows := make([]taskRow, len(ts))
	for i, t := range ts {
		rows[i] = taskRow{
			Name:      t.Name,
			Mode:      string(t.Mode),
			NumLabels: t.NumLabels(),
			Metrics:   string(t.Metrics),
			Labels:    strings.Join(t.Labels, " "),
		}
	}
	return gocsv.Marshal(&rows, w)
}

// writeReport writes one task,metric,value row per score, sorted by metric.
func writeReport(w io.Writer, task string, scores map[string]float64) error {
	rows := make([]reportRow, 0, len(scores))
	for k, v := range scores {
		rows = append(rows, reportRow{Task: task, Metric: k, Value: v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Metric < rows[j].Metric })
	return gocsv.Marshal(&rows, w)
}

func writePredictions(w io.Writer, preds []pipeline.Prediction) error {
	return gocsv.Marshal(&preds, w)
}

// readPredictions loads id,prediction rows. Files ending in .tsv are tab
// separated.
func readPredictions(path string) ([]pipeline.Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		r.Comma = '\t'
		r.LazyQuotes = true
	}
	var preds []pipeline.Prediction
	if err := gocsv.UnmarshalCSV(r, &preds); err != nil {
		return nil, fmt.Errorf("read predictions %s: %w", path, err)
	}
	return preds, nil
}

func predictionMap(preds []pipeline.Prediction) map[string]float64 {
	m := make(map[string]float64, len(preds))
	for _, p := range preds {
		m[p.ID] = p.Prediction
	}
	return m
}
