package features

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/glue-features/gluefeat/dataset"

	"github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Builder converts examples into fixed-length features.
type Builder struct {
	Options Options
	Logger  zerolog.Logger
}

// NewBuilder creates a builder with the given layout options.
func NewBuilder(opts Options, logger zerolog.Logger) *Builder {
	return &Builder{Options: opts, Logger: logger}
}

// Stats summarizes one conversion call.
type Stats struct {
	Examples     int
	Truncated    *roaring.Bitmap // indices of examples that lost tokens
	LongestInput int             // longest combined span length before truncation
}

// TruncatedCount is the number of examples that were truncated.
func (s *Stats) TruncatedCount() int {
	if s == nil || s.Truncated == nil {
		return 0
	}
	return int(s.Truncated.GetCardinality())
}

// Build converts examples with opts, logging through the global zerolog logger.
// The result has the same length and order as examples.
func Build(examples []dataset.Example, labels LabelSpace, maxSeqLength int, tok Tokenizer, mode OutputMode, opts Options) ([]Feature, error) {
	feats, _, err := NewBuilder(opts, log.Logger).Build(examples, labels, maxSeqLength, tok, mode)
	return feats, err
}

// Build converts every example in order. Any error aborts the whole call.
func (b *Builder) Build(examples []dataset.Example, labels LabelSpace, maxSeqLength int, tok Tokenizer, mode OutputMode) ([]Feature, *Stats, error) {
	c, err := b.prepare(examples, labels, maxSeqLength, tok, mode)
	if err != nil {
		return nil, nil, err
	}

	feats := make([]Feature, len(examples))
	outcomes := make([]outcome, len(examples))
	for i, ex := range examples {
		c.progress(i)
		feats[i], outcomes[i], err = c.convert(i, ex)
		if err != nil {
			return nil, nil, err
		}
	}
	return feats, collectStats(outcomes), nil
}

// converter holds the validated inputs of one call. It is read-only while
// converting, so a single converter serves any number of goroutines.
type converter struct {
	opts   Options
	labels LabelSpace
	maxLen int
	tok    Tokenizer
	mode   OutputMode
	total  int
	logger zerolog.Logger
}

// outcome is the per-example bookkeeping merged into Stats.
type outcome struct {
	truncated bool
	rawLen    int
}

func (b *Builder) prepare(examples []dataset.Example, labels LabelSpace, maxSeqLength int, tok Tokenizer, mode OutputMode) (*converter, error) {
	if _, err := ParseOutputMode(string(mode)); err != nil {
		return nil, err
	}
	if mode == Classification && labels.IsRegression() {
		return nil, fmt.Errorf("%w: classification needs a label space, got the regression sentinel", ErrConfiguration)
	}
	if tok == nil {
		return nil, fmt.Errorf("%w: tokenizer is required", ErrConfiguration)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("%w: no examples", ErrConfiguration)
	}
	if err := b.Options.validate(); err != nil {
		return nil, err
	}

	pair := false
	for _, ex := range examples {
		if ex.IsPair() {
			pair = true
			break
		}
	}
	if need := b.Options.specialTokens(pair); maxSeqLength < need {
		return nil, fmt.Errorf("%w: max sequence length %d cannot hold %d special tokens", ErrConfiguration, maxSeqLength, need)
	}

	return &converter{
		opts:   b.Options,
		labels: labels,
		maxLen: maxSeqLength,
		tok:    tok,
		mode:   mode,
		total:  len(examples),
		logger: b.Logger,
	}, nil
}

func (c *converter) progress(i int) {
	if c.opts.ProgressEvery > 0 && i%c.opts.ProgressEvery == 0 {
		c.logger.Info().Msgf("Writing example %d of %d", i, c.total)
	}
}

func (c *converter) convert(i int, ex dataset.Example) (Feature, outcome, error) {
	fail := func(err error) (Feature, outcome, error) {
		return Feature{}, outcome{}, &ExampleError{Index: i, ID: ex.ID, Err: err}
	}
	o := c.opts

	tokensA, weightsA, err := c.tok.Tokenize(ex.TextA)
	if err != nil {
		return fail(fmt.Errorf("tokenize text A: %w", err))
	}
	if weightsA == nil {
		weightsA = ones(len(tokensA))
	}
	if len(weightsA) != len(tokensA) {
		return fail(fmt.Errorf("tokenizer returned %d weights for %d tokens", len(weightsA), len(tokensA)))
	}

	var tokensB []string
	budget := c.maxLen - o.specialTokens(ex.IsPair())
	rawLen := len(tokensA)
	if ex.IsPair() {
		if tokensB, _, err = c.tok.Tokenize(ex.TextB); err != nil {
			return fail(fmt.Errorf("tokenize text B: %w", err))
		}
		rawLen += len(tokensB)
		tokensA, tokensB = truncatePair(tokensA, tokensB, budget)
		weightsA = weightsA[:len(tokensA)]
	} else {
		tokensA, weightsA = truncateSingle(tokensA, weightsA, budget)
	}

	n := len(tokensA) + len(tokensB) + o.specialTokens(ex.IsPair())
	tokens := make([]string, 0, n)
	weights := make([]float32, 0, n)
	segments := make([]int64, 0, n)

	if !o.ClassTokenAtEnd {
		tokens = append(tokens, o.ClassToken)
		weights = append(weights, 1.0)
		segments = append(segments, o.ClassTokenSegmentID)
	}
	tokens = append(tokens, tokensA...)
	weights = append(weights, weightsA...)
	tokens = append(tokens, o.SeparatorToken)
	weights = append(weights, 1.0)
	if o.ExtraSeparator {
		tokens = append(tokens, o.SeparatorToken)
		weights = append(weights, 1.0)
	}
	segments = appendRepeat(segments, o.SegmentIDA, len(tokens)-len(segments))
	if len(tokensB) > 0 {
		tokens = append(tokens, tokensB...)
		tokens = append(tokens, o.SeparatorToken)
		weights = append(weights, ones(len(tokensB)+1)...)
		segments = appendRepeat(segments, o.SegmentIDB, len(tokensB)+1)
	}
	if o.ClassTokenAtEnd {
		tokens = append(tokens, o.ClassToken)
		weights = append(weights, 1.0)
		segments = append(segments, o.ClassTokenSegmentID)
	}

	ids, err := c.tok.TokensToIDs(tokens)
	if err != nil {
		return fail(fmt.Errorf("convert tokens to ids: %w", err))
	}
	if len(ids) != len(tokens) {
		return fail(fmt.Errorf("%w: %d ids for %d tokens", ErrLengthInvariant, len(ids), len(tokens)))
	}

	f, err := c.pad(ex.ID, tokens, ids, segments, weights)
	if err != nil {
		return fail(err)
	}
	if ex.HasLabel {
		v, err := ResolveLabel(ex.Label, c.labels, c.mode)
		if err != nil {
			return fail(err)
		}
		f.Label = &v
	}

	if i < o.LogExamples {
		c.logExample(ex, f)
	}
	return f, outcome{truncated: len(tokensA)+len(tokensB) < rawLen, rawLen: rawLen}, nil
}

// pad lays the real positions out on the configured side of fixed-length
// sequences and fills the rest with padding values.
func (c *converter) pad(id string, tokens []string, ids, segments []int64, weights []float32) (Feature, error) {
	o := c.opts
	padding := c.maxLen - len(ids)
	if padding < 0 {
		return Feature{}, fmt.Errorf("%w: %d tokens exceed max sequence length %d", ErrLengthInvariant, len(ids), c.maxLen)
	}
	if len(segments) != len(ids) || len(weights) != len(ids) {
		return Feature{}, fmt.Errorf("%w: %d ids, %d segment ids, %d weights", ErrLengthInvariant, len(ids), len(segments), len(weights))
	}

	f := Feature{
		ExampleID:     id,
		Tokens:        tokens,
		TokenIDs:      make([]int64, c.maxLen),
		AttentionMask: make([]int64, c.maxLen),
		SegmentIDs:    make([]int64, c.maxLen),
		AuxWeights:    make([]float32, c.maxLen),
	}
	start := 0
	if o.PadOnLeft {
		start = padding
	}
	for p := 0; p < c.maxLen; p++ {
		r := p - start
		if r < 0 || r >= len(ids) {
			f.TokenIDs[p] = o.PadTokenID
			f.AttentionMask[p] = o.padMask()
			f.SegmentIDs[p] = o.PadSegmentID
			f.AuxWeights[p] = 0.0
			continue
		}
		f.TokenIDs[p] = ids[r]
		f.AttentionMask[p] = o.MaskRealToken
		f.SegmentIDs[p] = segments[r]
		f.AuxWeights[p] = weights[r]
	}

	if err := f.Check(c.maxLen); err != nil {
		return Feature{}, err
	}
	return f, nil
}

func (c *converter) logExample(ex dataset.Example, f Feature) {
	ev := c.logger.Info().
		Str("guid", ex.ID).
		Str("tokens", strings.Join(f.Tokens, " ")).
		Ints64("input_ids", f.TokenIDs).
		Ints64("input_mask", f.AttentionMask).
		Ints64("segment_ids", f.SegmentIDs)
	if f.Label != nil {
		ev = ev.Str("label", ex.Label).Float64("label_id", f.Label.Float(c.mode))
	}
	ev.Msg("*** Example ***")
}

func collectStats(outcomes []outcome) *Stats {
	s := &Stats{Examples: len(outcomes), Truncated: roaring.New()}
	for i, o := range outcomes {
		if o.truncated {
			s.Truncated.Add(uint32(i))
		}
		s.LongestInput = max(s.LongestInput, o.rawLen)
	}
	return s
}

func ones(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = 1.0
	}
	return out
}

func appendRepeat(dst []int64, v int64, n int) []int64 {
	for range n {
		dst = append(dst, v)
	}
	return dst
}
