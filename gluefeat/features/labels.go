package features

import (
	"fmt"
	"strconv"
	"strings"
)

// OutputMode selects how an example label is resolved.
type OutputMode string

const (
	Classification OutputMode = "classification"
	Regression     OutputMode = "regression"
)

// ParseOutputMode validates an output mode name.
func ParseOutputMode(s string) (OutputMode, error) {
	switch OutputMode(strings.ToLower(strings.TrimSpace(s))) {
	case Classification:
		return Classification, nil
	case Regression:
		return Regression, nil
	default:
		return "", fmt.Errorf("%w: unknown output mode %q", ErrConfiguration, s)
	}
}

// LabelSpace maps class label strings to indices. The index of a label is
// its position in the list the space was built from.
type LabelSpace struct {
	labels     []string
	index      map[string]int
	regression bool
}

// NewLabelSpace builds a classification label space. Labels must be distinct.
func NewLabelSpace(labels ...string) (LabelSpace, error) {
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		if _, dup := index[l]; dup {
			return LabelSpace{}, fmt.Errorf("%w: duplicate label %q", ErrConfiguration, l)
		}
		index[l] = i
	}
	out := make([]string, len(labels))
	copy(out, labels)
	return LabelSpace{labels: out, index: index}, nil
}

// MustLabelSpace is NewLabelSpace for static label lists.
func MustLabelSpace(labels ...string) LabelSpace {
	ls, err := NewLabelSpace(labels...)
	if err != nil {
		panic(err)
	}
	return ls
}

// RegressionSpace is the sentinel space of regression tasks, which have no
// discrete labels.
func RegressionSpace() LabelSpace { return LabelSpace{regression: true} }

// IsRegression reports whether this is the regression sentinel.
func (ls LabelSpace) IsRegression() bool { return ls.regression }

// Len returns the number of classes.
func (ls LabelSpace) Len() int { return len(ls.labels) }

// Labels returns a copy of the ordered labels.
func (ls LabelSpace) Labels() []string {
	out := make([]string, len(ls.labels))
	copy(out, ls.labels)
	return out
}

// Index returns the class index of label.
func (ls LabelSpace) Index(label string) (int, error) {
	i, ok := ls.index[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return i, nil
}

// Label returns the label string of a class index.
func (ls LabelSpace) Label(i int) (string, bool) {
	if i < 0 || i >= len(ls.labels) {
		return "", false
	}
	return ls.labels[i], true
}

// LabelValue is a resolved label: a class index for classification or a
// score for regression.
type LabelValue struct {
	Class int     `json:"class"`
	Score float64 `json:"score"`
}

// Float returns the value used by metrics: the score for regression or the
// class index otherwise.
func (v LabelValue) Float(mode OutputMode) float64 {
	if mode == Regression {
		return v.Score
	}
	return float64(v.Class)
}

// ResolveLabel converts a raw label string according to mode.
func ResolveLabel(raw string, labels LabelSpace, mode OutputMode) (LabelValue, error) {
	switch mode {
	case Classification:
		i, err := labels.Index(raw)
		if err != nil {
			return LabelValue{}, err
		}
		return LabelValue{Class: i}, nil
	case Regression:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return LabelValue{}, fmt.Errorf("%w: %q", ErrMalformedLabel, raw)
		}
		return LabelValue{Score: f}, nil
	default:
		return LabelValue{}, fmt.Errorf("%w: unknown output mode %q", ErrConfiguration, mode)
	}
}
