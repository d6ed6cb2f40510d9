package piper

import (
	"unicode/utf8"

	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/normalize"
)

// pauseWeight is the length of the pause between words relative to one
// letter.
const pauseWeight = 0.5

// Estimate spreads total seconds over the letters of the spoken form of
// text, one phoneme per letter with a shorter pause between words. The
// phoneme durations sum to total.
func Estimate(text string, total float64) *tts.SynthesisResult {
	result := &tts.SynthesisResult{}

	normalized := make([]byte, 0, len(text))
	for i, w := range normalize.SplitWords(text) {
		if i > 0 {
			normalized = append(normalized, ' ')
		}
		result.CharMapping = append(result.CharMapping, tts.CharOffset{
			Display:    w.Range.Location,
			Normalized: len(normalized),
		})
		normalized = append(normalized, normalize.Expand(w.Text)...)
	}
	result.NormalizedText = string(normalized)

	type unit struct {
		symbol string
		weight float64
		r      tts.Range
	}
	var units []unit
	var sum float64
	for i, w := range normalize.SplitWords(result.NormalizedText) {
		if i > 0 {
			units = append(units, unit{" ", pauseWeight, tts.Range{Location: w.Range.Location - 1, Length: 1}})
			sum += pauseWeight
		}
		for off := 0; off < len(w.Text); {
			r, size := utf8.DecodeRuneInString(w.Text[off:])
			units = append(units, unit{string(r), 1, tts.Range{Location: w.Range.Location + off, Length: size}})
			sum++
			off += size
		}
	}
	if sum == 0 || total <= 0 {
		return result
	}

	result.Phonemes = make([]tts.Phoneme, len(units))
	for i, u := range units {
		result.Phonemes[i] = tts.Phoneme{Symbol: u.symbol, Duration: total * u.weight / sum, TextRange: u.r}
	}
	return result
}
