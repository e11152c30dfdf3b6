// Package tasks holds the task registry: per-task dataset layout, label list,
// output mode and metric set.
package tasks

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/glue-features/gluefeat/dataset"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/metrics"
)

var (
	ErrUnknownTask   = errors.New("unknown task")
	ErrDuplicateTask = errors.New("task already registered")
	ErrInvalidTask   = errors.New("invalid task")
)

// Task describes one classification or regression dataset.
type Task struct {
	Name    string              `mapstructure:"name"`
	Schema  dataset.Schema      `mapstructure:"schema"`
	Labels  []string            `mapstructure:"labels"` // ordered; empty for regression
	Mode    features.OutputMode `mapstructure:"mode"`
	Metrics metrics.MetricSet   `mapstructure:"metrics"`
}

// NumLabels is the number of classes, or 1 for regression.
func (t Task) NumLabels() int {
	if t.Mode == features.Regression {
		return 1
	}
	return len(t.Labels)
}

// LabelSpace returns the label space examples of this task resolve against.
func (t Task) LabelSpace() (features.LabelSpace, error) {
	if t.Mode == features.Regression {
		return features.RegressionSpace(), nil
	}
	return features.NewLabelSpace(t.Labels...)
}

// Validate checks a task before registration.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTask)
	}
	if _, err := features.ParseOutputMode(string(t.Mode)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidTask, t.Name, err)
	}
	if _, err := metrics.ParseMetricSet(string(t.Metrics)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidTask, t.Name, err)
	}
	switch t.Mode {
	case features.Classification:
		if len(t.Labels) == 0 {
			return fmt.Errorf("%w: %s: classification task without labels", ErrInvalidTask, t.Name)
		}
		if t.Metrics == metrics.Correlation {
			return fmt.Errorf("%w: %s: correlation metrics need a regression task", ErrInvalidTask, t.Name)
		}
	case features.Regression:
		if len(t.Labels) > 0 {
			return fmt.Errorf("%w: %s: regression task with labels", ErrInvalidTask, t.Name)
		}
	}
	if _, err := t.LabelSpace(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidTask, t.Name, err)
	}
	if err := t.Schema.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidTask, t.Name, err)
	}
	return nil
}

// canonical lower-cases the name, output mode and metric set.
func (t Task) canonical() Task {
	t.Name = normalize(t.Name)
	t.Mode = features.OutputMode(normalize(string(t.Mode)))
	t.Metrics = metrics.MetricSet(normalize(string(t.Metrics)))
	return t
}

func normalize(name string) string { return strings.ToLower(strings.TrimSpace(name)) }
