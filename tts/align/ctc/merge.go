package ctc

import (
	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/normalize"
)

// MergeToWords collapses token spans into word timings. Words are the
// whitespace-separated fields of transcript; boundary tokens separate them and
// are not part of any word. A word starts at its first token's start frame and
// lasts through its last token's end frame. Ranges are byte offsets into
// transcript and WordIndex is the field's position in it. Words made only of
// characters outside the vocabulary have no tokens and are left out.
func (t *Tokenizer) MergeToWords(spans []tts.TokenSpan, transcript string, frameRate float64) []tts.WordTiming {
	timings := []tts.WordTiming{}
	if len(spans) == 0 || frameRate <= 0 {
		return timings
	}

	next := 0
	for wi, w := range normalize.SplitWords(transcript) {
		n := len(t.TokenizeWord(w.Text))
		if n == 0 {
			continue
		}
		// The boundary token that precedes every word but the first.
		if next > 0 {
			next++
		}
		if next+n > len(spans) {
			break
		}

		first, last := spans[next], spans[next+n-1]
		next += n

		timings = append(timings, tts.WordTiming{
			WordIndex:     wi,
			StartTime:     float64(first.StartFrame) / frameRate,
			Duration:      float64(last.EndFrame+1-first.StartFrame) / frameRate,
			Text:          w.Text,
			RangeLocation: w.Range.Location,
			RangeLength:   w.Range.Length,
		})
	}
	return timings
}
