package features

import (
	"fmt"
	"strings"
)

// Options controls special-token layout, padding and diagnostics of the
// feature builder. Start from DefaultOptions or one of the presets; the zero
// value is rejected because it carries no special tokens.
type Options struct {
	ClassTokenAtEnd     bool   `mapstructure:"classTokenAtEnd"`     // A [SEP] B [SEP] [CLS] instead of [CLS] A [SEP] B [SEP]
	ClassToken          string `mapstructure:"classToken"`          // class representation token
	SeparatorToken      string `mapstructure:"separatorToken"`      // span separator token
	ClassTokenSegmentID int64  `mapstructure:"classTokenSegmentID"` // segment id of the class token
	ExtraSeparator      bool   `mapstructure:"extraSeparator"`      // duplicate separator after span A
	PadOnLeft           bool   `mapstructure:"padOnLeft"`           // pad at the start of the sequence
	PadTokenID          int64  `mapstructure:"padTokenID"`          // id used for padding positions
	PadSegmentID        int64  `mapstructure:"padSegmentID"`        // segment id of padding positions
	SegmentIDA          int64  `mapstructure:"segmentIDA"`          // segment id of span A and its separators
	SegmentIDB          int64  `mapstructure:"segmentIDB"`          // segment id of span B and its separator
	MaskRealToken       int64  `mapstructure:"maskRealToken"`       // 1 (default) or 0 for an inverted mask
	LogExamples         int    `mapstructure:"logExamples"`         // examples logged in full
	ProgressEvery       int    `mapstructure:"progressEvery"`       // progress log interval, 0 disables
}

// DefaultOptions returns the builder defaults.
func DefaultOptions() Options {
	return Options{
		ClassToken:          "[CLS]",
		SeparatorToken:      "[SEP]",
		ClassTokenSegmentID: 1,
		SegmentIDA:          0,
		SegmentIDB:          1,
		MaskRealToken:       1,
		LogExamples:         5,
		ProgressEvery:       10000,
	}
}

// BERTOptions is the [CLS] A [SEP] B [SEP] layout with the class token in segment 0.
func BERTOptions() Options {
	o := DefaultOptions()
	o.ClassTokenSegmentID = 0
	return o
}

// XLNetOptions puts the class token last, pads on the left and uses the XLNet
// segment ids for the class token and padding.
func XLNetOptions() Options {
	o := DefaultOptions()
	o.ClassTokenAtEnd = true
	o.ClassToken = "<cls>"
	o.SeparatorToken = "<sep>"
	o.ClassTokenSegmentID = 2
	o.PadOnLeft = true
	o.PadTokenID = 5
	o.PadSegmentID = 4
	return o
}

// RoBERTaOptions inserts a second separator between spans.
func RoBERTaOptions() Options {
	o := DefaultOptions()
	o.ClassToken = "<s>"
	o.SeparatorToken = "</s>"
	o.ClassTokenSegmentID = 0
	o.ExtraSeparator = true
	o.PadTokenID = 1
	return o
}

// PresetOptions resolves a model type name to its layout preset. An empty
// name returns DefaultOptions.
func PresetOptions(modelType string) (Options, error) {
	switch strings.ToLower(strings.TrimSpace(modelType)) {
	case "":
		return DefaultOptions(), nil
	case "bert", "xlm", "distilbert":
		return BERTOptions(), nil
	case "xlnet":
		return XLNetOptions(), nil
	case "roberta":
		return RoBERTaOptions(), nil
	default:
		return Options{}, fmt.Errorf("%w: unknown model type %q", ErrConfiguration, modelType)
	}
}

// specialTokens is the number of special tokens added around the text spans.
func (o Options) specialTokens(pair bool) int {
	n := 2 // class token + final separator
	if pair {
		n++
	}
	if o.ExtraSeparator {
		n++
	}
	return n
}

func (o Options) padMask() int64 { return 1 - o.MaskRealToken }

func (o Options) validate() error {
	if o.ClassToken == "" || o.SeparatorToken == "" {
		return fmt.Errorf("%w: class and separator tokens are required", ErrConfiguration)
	}
	if o.MaskRealToken != 0 && o.MaskRealToken != 1 {
		return fmt.Errorf("%w: mask value for real tokens must be 0 or 1, got %d", ErrConfiguration, o.MaskRealToken)
	}
	return nil
}
