// Package normalize reconciles display text with the word sequence a speech
// synthesizer actually pronounces after its own text normalization.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgnsrekt/readalong/tts"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SplitWords splits text on whitespace and records the byte range of each
// word.
func SplitWords(text string) []tts.Word {
	var words []tts.Word
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, tts.Word{Text: text[start:i], Range: tts.Range{Location: start, Length: i - start}})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, tts.Word{Text: text[start:], Range: tts.Range{Location: start, Length: len(text) - start}})
	}
	return words
}

// Texts returns the text of each word.
func Texts(words []tts.Word) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.Text
	}
	return out
}

// Folder produces the comparison form of words: accents stripped, case
// folded, and everything except letters and digits removed. A Folder is not
// safe for concurrent use.
type Folder struct {
	strip  transform.Transformer
	caser  cases.Caser
	buffer strings.Builder
}

// NewFolder returns a ready Folder.
func NewFolder() *Folder {
	return &Folder{
		strip: transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		caser: cases.Fold(),
	}
}

// Fold returns the comparison form of s.
func (f *Folder) Fold(s string) string {
	if isPlainLower(s) {
		return s
	}
	stripped, _, err := transform.String(f.strip, s)
	if err != nil {
		stripped = s
	}
	folded := f.caser.String(stripped)

	f.buffer.Reset()
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			f.buffer.WriteRune(r)
		}
	}
	return f.buffer.String()
}

// Fold is a convenience wrapper that allocates a Folder.
func Fold(s string) string {
	return NewFolder().Fold(s)
}

func isPlainLower(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= utf8.RuneSelf || !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
