// Package metrics computes the evaluation metrics reported for each task.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MetricSet names the group of metrics reported for a task.
type MetricSet string

const (
	Accuracy    MetricSet = "accuracy"
	AccuracyF1  MetricSet = "accuracy_f1"
	MCC         MetricSet = "mcc"
	Correlation MetricSet = "correlation"
)

var (
	ErrLengthMismatch   = errors.New("predictions and labels differ in length")
	ErrEmpty            = errors.New("no predictions")
	ErrUnknownMetricSet = errors.New("unknown metric set")
)

// ParseMetricSet validates a metric set name.
func ParseMetricSet(s string) (MetricSet, error) {
	switch m := MetricSet(strings.ToLower(strings.TrimSpace(s))); m {
	case Accuracy, AccuracyF1, MCC, Correlation:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetricSet, s)
	}
}

// Compute evaluates preds against labels. Classification sets compare class
// indices for exact equality; Correlation treats both as real scores.
//
// Result keys per set:
//
//	accuracy     acc
//	accuracy_f1  acc, f1 (macro), acc_and_f1
//	mcc          mcc
//	correlation  pearson, spearmanr, corr
func Compute(set MetricSet, preds, labels []float64) (map[string]float64, error) {
	if len(preds) != len(labels) {
		return nil, fmt.Errorf("%w: %d predictions, %d labels", ErrLengthMismatch, len(preds), len(labels))
	}
	if len(preds) == 0 {
		return nil, ErrEmpty
	}

	switch set {
	case Accuracy:
		return map[string]float64{"acc": accuracy(preds, labels)}, nil
	case AccuracyF1:
		acc := accuracy(preds, labels)
		f1 := MacroF1(preds, labels)
		return map[string]float64{"acc": acc, "f1": f1, "acc_and_f1": (acc + f1) / 2}, nil
	case MCC:
		return map[string]float64{"mcc": Matthews(preds, labels)}, nil
	case Correlation:
		p := stat.Correlation(preds, labels, nil)
		s := Spearman(preds, labels)
		return map[string]float64{"pearson": p, "spearmanr": s, "corr": (p + s) / 2}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetricSet, set)
	}
}

func accuracy(preds, labels []float64) float64 {
	hit := 0
	for i := range preds {
		if preds[i] == labels[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(preds))
}

// classes returns the sorted union of values seen in preds and labels.
func classes(preds, labels []float64) []float64 {
	seen := make(map[float64]struct{})
	for _, v := range preds {
		seen[v] = struct{}{}
	}
	for _, v := range labels {
		seen[v] = struct{}{}
	}
	out := make([]float64, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// MacroF1 is the unweighted mean of per-class F1 over every class present in
// preds or labels. A class with no true or predicted positives scores 0.
func MacroF1(preds, labels []float64) float64 {
	cls := classes(preds, labels)
	if len(cls) == 0 {
		return 0
	}
	scores := make([]float64, len(cls))
	for k, c := range cls {
		var tp, fp, fn float64
		for i := range preds {
			switch {
			case preds[i] == c && labels[i] == c:
				tp++
			case preds[i] == c:
				fp++
			case labels[i] == c:
				fn++
			}
		}
		if tp == 0 {
			continue
		}
		precision := tp / (tp + fp)
		recall := tp / (tp + fn)
		scores[k] = 2 * precision * recall / (precision + recall)
	}
	return stat.Mean(scores, nil)
}

// Matthews is the multiclass Matthews correlation coefficient. It is 0 when
// either preds or labels hold a single class.
func Matthews(preds, labels []float64) float64 {
	cls := classes(preds, labels)
	index := make(map[float64]int, len(cls))
	for i, c := range cls {
		index[c] = i
	}
	t := make([]float64, len(cls))
	p := make([]float64, len(cls))
	var correct float64
	for i := range preds {
		t[index[labels[i]]]++
		p[index[preds[i]]]++
		if preds[i] == labels[i] {
			correct++
		}
	}
	n := float64(len(preds))
	covTP := correct*n - floats.Dot(t, p)
	covPP := n*n - floats.Dot(p, p)
	covTT := n*n - floats.Dot(t, t)
	if covPP*covTT == 0 {
		return 0
	}
	return covTP / math.Sqrt(covTT*covPP)
}

// Spearman is the Pearson correlation of average ranks.
func Spearman(x, y []float64) float64 {
	return stat.Correlation(Ranks(x), Ranks(y), nil)
}

// Ranks assigns 1-based ranks, giving tied values the mean of their ranks.
func Ranks(x []float64) []float64 {
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return x[order[a]] < x[order[b]] })

	ranks := make([]float64, len(x))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && x[order[j+1]] == x[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// Argmax returns the index of the largest score, the first one on ties.
func Argmax(scores []float32) int {
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return best
}
