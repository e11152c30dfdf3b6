package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"
)

// Lexicon maps words to auxiliary weights. Words it does not know weigh 1.0.
type Lexicon struct {
	weights   map[string]float32
	lowercase bool
}

// LoadLexicon reads a "word<TAB>weight" file. Blank lines and lines starting
// with # are ignored.
func LoadLexicon(path string, lowercase bool) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lexicon: %w", err)
	}
	defer f.Close()
	lex, err := ReadLexicon(f, lowercase)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}
	return lex, nil
}

// ReadLexicon parses lexicon lines from r.
func ReadLexicon(r io.Reader, lowercase bool) (*Lexicon, error) {
	lex := &Lexicon{weights: make(map[string]float32), lowercase: lowercase}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		word, raw, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, fmt.Errorf("line %d: want word<TAB>weight", line)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(raw), 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: weight %q: %w", line, raw, err)
		}
		lex.weights[lex.key(word)] = float32(w)
	}
	return lex, scanner.Err()
}

// Len is the number of entries.
func (l *Lexicon) Len() int { return len(l.weights) }

// Weight looks word up as is, then with surrounding punctuation removed.
func (l *Lexicon) Weight(word string) float32 {
	k := l.key(word)
	if w, ok := l.weights[k]; ok {
		return w
	}
	if w, ok := l.weights[strings.TrimFunc(k, isPunct)]; ok {
		return w
	}
	return 1.0
}

func (l *Lexicon) key(word string) string {
	word = strings.TrimSpace(word)
	if l.lowercase {
		return strings.ToLower(word)
	}
	return word
}

// Weighted tokenizes word by word so each subword token inherits the
// lexicon weight of the whitespace-delimited word it came from.
type Weighted struct {
	base features.Tokenizer
	lex  *Lexicon
}

func WithLexicon(base features.Tokenizer, lex *Lexicon) *Weighted {
	return &Weighted{base: base, lex: lex}
}

func (w *Weighted) Tokenize(text string) ([]string, []float32, error) {
	var tokens []string
	var weights []float32
	for _, word := range strings.FieldsFunc(text, unicode.IsSpace) {
		toks, _, err := w.base.Tokenize(word)
		if err != nil {
			return nil, nil, err
		}
		weight := w.lex.Weight(word)
		for range toks {
			weights = append(weights, weight)
		}
		tokens = append(tokens, toks...)
	}
	return tokens, weights, nil
}

func (w *Weighted) TokensToIDs(tokens []string) ([]int64, error) {
	return w.base.TokensToIDs(tokens)
}
