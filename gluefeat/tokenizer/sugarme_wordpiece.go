package tokenizer

import (
	"fmt"
	"strings"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
)

// SugarWordPiece wraps sugarme/tokenizer WordPiece (BERT-style). Special
// tokens are placed by the feature builder, so encoding never adds them.
type SugarWordPiece struct {
	t     *tk.Tokenizer
	model tk.Model
	unkID int64
}

// NewSugarWordPiece loads vocab.txt and builds a BERT WordPiece tokenizer
func NewSugarWordPiece(vocabPath string, lowercase bool, unkToken string) (*SugarWordPiece, error) {
	wp, err := wordpiece.NewWordPieceFromFile(vocabPath, unkToken)
	if err != nil {
		return nil, fmt.Errorf("load wordpiece vocab %s: %w", vocabPath, err)
	}

	t := tk.NewTokenizer(wp)
	t.WithNormalizer(normalizer.NewBertNormalizer(true, lowercase, true, lowercase))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	unkID, ok := wp.TokenToId(unkToken)
	if !ok {
		return nil, fmt.Errorf("%w: %s missing from %s", ErrUnsupported, unkToken, vocabPath)
	}
	return &SugarWordPiece{t: t, model: wp, unkID: int64(unkID)}, nil
}

// Tokenize splits text into WordPiece tokens. Weights are left to the lexicon.
func (s *SugarWordPiece) Tokenize(text string) ([]string, []float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, nil
	}
	enc, err := s.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(text)), false)
	if err != nil {
		return nil, nil, err
	}
	return enc.GetTokens(), nil, nil
}

// TokensToIDs maps tokens through the vocabulary, unknown tokens to [UNK].
func (s *SugarWordPiece) TokensToIDs(tokens []string) ([]int64, error) {
	ids := make([]int64, len(tokens))
	for i, tok := range tokens {
		id, ok := s.model.TokenToId(tok)
		if !ok {
			ids[i] = s.unkID
			continue
		}
		ids[i] = int64(id)
	}
	return ids, nil
}
