// Package ctc implements forced alignment of a known transcript against CTC
// emission scores: tokenization, the forward trellis, Viterbi backtracking and
// collapsing token spans into word timings.
package ctc

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgnsrekt/readalong/tts"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultLabels is the wav2vec2-style character vocabulary: blank first,
// letters, apostrophe, and the word boundary last.
var DefaultLabels = []string{
	"-",
	"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m",
	"n", "o", "p", "q", "r", "s", "t", "u", "v", "w", "x", "y", "z",
	"'",
	"*",
}

// Tokenizer maps transcript characters to label indices. It holds no
// mutable state and is safe for concurrent use.
type Tokenizer struct {
	labels   []string
	index    map[rune]int
	blank    int
	boundary int
}

// NewTokenizer builds a tokenizer from an ordered vocabulary. The first label
// is the blank and the last is the word boundary; every label must be a
// single character and appear once.
func NewTokenizer(labels []string) (*Tokenizer, error) {
	if len(labels) < 3 {
		return nil, fmt.Errorf("%w: need blank, boundary and at least one character, got %d labels",
			tts.ErrVocabulary, len(labels))
	}

	t := &Tokenizer{
		labels:   append([]string(nil), labels...),
		index:    make(map[rune]int, len(labels)),
		blank:    0,
		boundary: len(labels) - 1,
	}
	seen := make(map[string]bool, len(labels))
	for i, l := range labels {
		if utf8.RuneCountInString(l) != 1 {
			return nil, fmt.Errorf("%w: label %d (%q) is not a single character", tts.ErrVocabulary, i, l)
		}
		if seen[l] {
			return nil, fmt.Errorf("%w: duplicate label %q", tts.ErrVocabulary, l)
		}
		seen[l] = true
		if i == t.blank || i == t.boundary {
			continue
		}
		r, _ := utf8.DecodeRuneInString(l)
		t.index[r] = i
	}
	return t, nil
}

// DefaultTokenizer returns a tokenizer over DefaultLabels.
func DefaultTokenizer() *Tokenizer {
	t, err := NewTokenizer(DefaultLabels)
	if err != nil {
		panic(err)
	}
	return t
}

// Blank returns the blank label index.
func (t *Tokenizer) Blank() int { return t.blank }

// Boundary returns the word boundary label index.
func (t *Tokenizer) Boundary() int { return t.boundary }

// Size returns the vocabulary size.
func (t *Tokenizer) Size() int { return len(t.labels) }

// Label returns the label at index i.
func (t *Tokenizer) Label(i int) (string, bool) {
	if i < 0 || i >= len(t.labels) {
		return "", false
	}
	return t.labels[i], true
}

// Tokenize lowercases text, strips accents and characters outside the
// vocabulary, and emits one boundary token between words. Words with no
// representable characters produce nothing, not even a boundary.
func (t *Tokenizer) Tokenize(text string) []int {
	var tokens []int
	for _, word := range strings.Fields(text) {
		wt := t.TokenizeWord(word)
		if len(wt) == 0 {
			continue
		}
		if len(tokens) > 0 {
			tokens = append(tokens, t.boundary)
		}
		tokens = append(tokens, wt...)
	}
	return tokens
}

// TokenizeWord tokenizes a single word without boundary tokens.
func (t *Tokenizer) TokenizeWord(word string) []int {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), word)
	if err != nil {
		stripped = word
	}

	var tokens []int
	for _, r := range strings.ToLower(stripped) {
		if r == '’' {
			r = '\''
		}
		if i, ok := t.index[r]; ok {
			tokens = append(tokens, i)
		}
	}
	return tokens
}

// Detokenize turns label indices back into text. Boundaries become spaces,
// blanks and unknown indices are dropped.
func (t *Tokenizer) Detokenize(tokens []int) string {
	var b strings.Builder
	for _, tok := range tokens {
		switch {
		case tok == t.boundary:
			b.WriteByte(' ')
		case tok == t.blank:
		default:
			if l, ok := t.Label(tok); ok {
				b.WriteString(l)
			}
		}
	}
	return b.String()
}
