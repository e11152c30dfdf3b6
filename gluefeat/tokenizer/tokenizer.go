package tokenizer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"
)

// Kind names a tokenizer implementation.
type Kind string

const (
	KindSugarme   Kind = "sugarme"
	KindWordPiece Kind = "wordpiece"
)

// Config holds tokenizer settings
type Config struct {
	Kind      Kind   `mapstructure:"kind"`
	Vocab     string `mapstructure:"vocab"`     // vocab.txt or a directory containing it
	Lexicon   string `mapstructure:"lexicon"`   // optional word weight table
	Lowercase bool   `mapstructure:"lowercase"` // uncased models
	UnkToken  string `mapstructure:"unkToken"`
}

// ErrUnsupported indicates the tokenizer could not be initialized
var ErrUnsupported = errors.New("unsupported tokenizer configuration")

const defaultUnkToken = "[UNK]"

// New builds the tokenizer described by cfg, wrapping it with the lexicon
// weights when a lexicon is configured.
func New(cfg Config) (features.Tokenizer, error) {
	if cfg.Vocab == "" {
		return nil, fmt.Errorf("%w: vocab path is required", ErrUnsupported)
	}
	if cfg.UnkToken == "" {
		cfg.UnkToken = defaultUnkToken
	}
	vocab, err := resolveVocab(cfg.Vocab)
	if err != nil {
		return nil, err
	}

	var base features.Tokenizer
	switch Kind(strings.ToLower(string(cfg.Kind))) {
	case KindSugarme, "":
		base, err = NewSugarWordPiece(vocab, cfg.Lowercase, cfg.UnkToken)
	case KindWordPiece:
		base, err = LoadWordPieceFromVocab(vocab, cfg.Lowercase, cfg.UnkToken)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrUnsupported, cfg.Kind)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Lexicon == "" {
		return base, nil
	}
	lex, err := LoadLexicon(cfg.Lexicon, cfg.Lowercase)
	if err != nil {
		return nil, err
	}
	return WithLexicon(base, lex), nil
}

// resolveVocab accepts a vocab file or a model directory holding vocab.txt.
func resolveVocab(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("vocab %s: %w", path, err)
	}
	if !fi.IsDir() {
		return path, nil
	}
	vocab := filepath.Join(path, "vocab.txt")
	if fi, err := os.Stat(vocab); err != nil || fi.IsDir() {
		return "", fmt.Errorf("%w: no vocab.txt in %s", ErrUnsupported, path)
	}
	return vocab, nil
}
