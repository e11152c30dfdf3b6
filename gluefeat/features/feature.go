package features

import "fmt"

// Tokenizer is the capability the builder needs from a subword tokenizer.
// Tokenize may return nil weights, meaning 1.0 for every token.
type Tokenizer interface {
	Tokenize(text string) (tokens []string, weights []float32, err error)
	TokensToIDs(tokens []string) ([]int64, error)
}

// Feature is the fixed-length numeric encoding of one example.
type Feature struct {
	ExampleID     string      `json:"example_id"`
	Tokens        []string    `json:"tokens,omitempty"` // assembled tokens without padding
	TokenIDs      []int64     `json:"input_ids"`
	AttentionMask []int64     `json:"input_mask"`
	SegmentIDs    []int64     `json:"segment_ids"`
	AuxWeights    []float32   `json:"aux_weights"`
	Label         *LabelValue `json:"label,omitempty"` // nil for unlabeled examples
}

// Len is the sequence length of the feature.
func (f Feature) Len() int { return len(f.TokenIDs) }

// RealTokens counts non-padding positions.
func (f Feature) RealTokens() int { return len(f.Tokens) }

// Check verifies that every parallel sequence has exactly n entries.
func (f Feature) Check(n int) error {
	lens := []struct {
		name string
		n    int
	}{
		{"input_ids", len(f.TokenIDs)},
		{"input_mask", len(f.AttentionMask)},
		{"segment_ids", len(f.SegmentIDs)},
		{"aux_weights", len(f.AuxWeights)},
	}
	for _, l := range lens {
		if l.n != n {
			return fmt.Errorf("%w: %s has length %d, want %d", ErrLengthInvariant, l.name, l.n, n)
		}
	}
	return nil
}
