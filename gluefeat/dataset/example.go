package dataset

import (
	"fmt"
	"strings"
)

// Example is a single training, evaluation or inference instance for
// sequence classification. Examples are never modified after they are read.
type Example struct {
	ID       string `json:"id"`
	TextA    string `json:"text_a"`
	TextB    string `json:"text_b,omitempty"` // empty for single-sequence tasks
	Label    string `json:"label,omitempty"`
	HasLabel bool   `json:"has_label"`
}

// NewExample creates a labeled example.
func NewExample(id, textA, textB, label string) Example {
	return Example{ID: id, TextA: textA, TextB: textB, Label: label, HasLabel: true}
}

// NewUnlabeledExample creates an example for pure inference.
func NewUnlabeledExample(id, textA, textB string) Example {
	return Example{ID: id, TextA: textA, TextB: textB}
}

// IsPair reports whether the example carries a second text span.
func (e Example) IsPair() bool { return e.TextB != "" }

func (e Example) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Example{id=%q a=%q", e.ID, e.TextA)
	if e.IsPair() {
		fmt.Fprintf(&b, " b=%q", e.TextB)
	}
	if e.HasLabel {
		fmt.Fprintf(&b, " label=%q", e.Label)
	}
	b.WriteString("}")
	return b.String()
}

// Split names a partition of a dataset directory.
type Split string

const (
	SplitTrain Split = "train"
	SplitDev   Split = "dev"
	SplitTest  Split = "test"
)

// ParseSplit validates a split name.
func ParseSplit(s string) (Split, error) {
	switch Split(strings.ToLower(strings.TrimSpace(s))) {
	case SplitTrain:
		return SplitTrain, nil
	case SplitDev:
		return SplitDev, nil
	case SplitTest:
		return SplitTest, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSplit, s)
	}
}

// Labeled reports whether rows of this split are expected to carry a label.
func (s Split) Labeled() bool { return s != SplitTest }
