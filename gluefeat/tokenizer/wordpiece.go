package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

const maxWordRunes = 100

// WordPiece is a vocab-file tokenizer doing BERT basic tokenization followed
// by greedy longest-match-first subword splitting.
type WordPiece struct {
	vocab     map[string]int64
	unkToken  string
	unkID     int64
	lowercase bool
}

func LoadWordPieceFromVocab(path string, lowercase bool, unkToken string) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vocab := make(map[string]int64, 60000)
	var idx int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" {
			continue
		}
		vocab[tok] = idx
		idx++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab %s: %w", path, err)
	}
	unkID, ok := vocab[unkToken]
	if !ok {
		return nil, fmt.Errorf("%w: %s missing from %s", ErrUnsupported, unkToken, path)
	}
	return &WordPiece{vocab: vocab, unkToken: unkToken, unkID: unkID, lowercase: lowercase}, nil
}

func (w *WordPiece) Tokenize(text string) ([]string, []float32, error) {
	var out []string
	for _, word := range w.basic(text) {
		out = append(out, w.pieces(word)...)
	}
	return out, nil, nil
}

func (w *WordPiece) TokensToIDs(tokens []string) ([]int64, error) {
	ids := make([]int64, len(tokens))
	for i, tok := range tokens {
		id, ok := w.vocab[tok]
		if !ok {
			id = w.unkID
		}
		ids[i] = id
	}
	return ids, nil
}

// basic cleans text, optionally lower-cases it and splits on whitespace and
// punctuation. Punctuation characters become their own words.
func (w *WordPiece) basic(text string) []string {
	if w.lowercase {
		text = strings.ToLower(text)
	}
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || (unicode.IsControl(r) && !unicode.IsSpace(r)):
		case unicode.IsSpace(r):
			flush()
		case isPunct(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// pieces splits one word greedily, longest vocabulary match first.
func (w *WordPiece) pieces(word string) []string {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []string{w.unkToken}
	}
	var out []string
	for start := 0; start < len(runes); {
		end := len(runes)
		found := ""
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := w.vocab[sub]; ok {
				found = sub
				break
			}
			end--
		}
		if found == "" {
			return []string{w.unkToken}
		}
		out = append(out, found)
		start = end
	}
	return out
}

// isPunct treats all non-alphanumeric ASCII as punctuation, like BERT.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
