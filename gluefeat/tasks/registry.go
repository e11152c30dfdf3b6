package tasks

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"
	"github.com/ZanzyTHEbar/glue-features/gluefeat/metrics"

	"github.com/armon/go-radix"
	"github.com/rs/zerolog"
)

// Registry maps lower-cased task names to tasks on a patricia tree, which
// also yields the prefix suggestions for unknown names.
type Registry struct {
	Logger zerolog.Logger

	mu   sync.RWMutex
	tree *radix.Tree
}

func NewRegistry() *Registry {
	return &Registry{Logger: zerolog.Nop(), tree: radix.New()}
}

// Default returns a new registry holding every built-in task.
func Default() *Registry {
	r := NewRegistry()
	for _, t := range Builtin() {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register validates t and adds it under its lower-cased name.
func (r *Registry) Register(t Task) error {
	t = t.canonical()
	if err := t.Validate(); err != nil {
		return err
	}
	key := t.Name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tree.Get(key); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, key)
	}
	r.tree.Insert(key, t)
	r.Logger.Debug().Str("task", key).Str("mode", string(t.Mode)).Int("labels", t.NumLabels()).Msg("Task registered")
	return nil
}

// Lookup finds a task by case-insensitive name.
func (r *Registry) Lookup(name string) (Task, error) {
	key := normalize(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.tree.Get(key); ok {
		return v.(Task), nil
	}
	if s := r.suggest(key); len(s) > 0 {
		return Task{}, fmt.Errorf("%w: %q (did you mean %s?)", ErrUnknownTask, name, strings.Join(s, ", "))
	}
	return Task{}, fmt.Errorf("%w: %q", ErrUnknownTask, name)
}

// suggest lists the registered names sharing the longest prefix with key.
func (r *Registry) suggest(key string) []string {
	for n := len(key); n > 0; n-- {
		var out []string
		r.tree.WalkPrefix(key[:n], func(k string, _ interface{}) bool {
			out = append(out, k)
			return false
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// Names returns every registered name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, r.tree.Len())
	r.tree.Walk(func(k string, _ interface{}) bool {
		names = append(names, k)
		return false
	})
	return names
}

// Tasks returns every registered task ordered by name.
func (r *Registry) Tasks() []Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Task, 0, r.tree.Len())
	r.tree.Walk(func(_ string, v interface{}) bool {
		out = append(out, v.(Task))
		return false
	})
	return out
}

func (r *Registry) OutputMode(name string) (features.OutputMode, error) {
	t, err := r.Lookup(name)
	if err != nil {
		return "", err
	}
	return t.Mode, nil
}

func (r *Registry) NumLabels(name string) (int, error) {
	t, err := r.Lookup(name)
	if err != nil {
		return 0, err
	}
	return t.NumLabels(), nil
}

// ComputeMetrics evaluates preds against labels with the task's metric set.
func (r *Registry) ComputeMetrics(name string, preds, labels []float64) (map[string]float64, error) {
	t, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return metrics.Compute(t.Metrics, preds, labels)
}
