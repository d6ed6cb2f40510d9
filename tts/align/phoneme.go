package align

import (
	"context"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/normalize"
)

// GroupPhonemes assigns every phoneme to the synthesized word its text range
// starts in. Phonemes that start between words join the preceding word, and
// phonemes before the first word join the first, so no duration is lost.
// Order is preserved within and across groups.
func GroupPhonemes(phonemes []tts.Phoneme, words []tts.Word) [][]tts.Phoneme {
	if len(words) == 0 {
		return nil
	}
	groups := make([][]tts.Phoneme, len(words))
	for _, p := range phonemes {
		loc := p.TextRange.Location
		// Last word starting at or before loc.
		i := sort.Search(len(words), func(i int) bool {
			return words[i].Range.Location > loc
		}) - 1
		if i < 0 {
			i = 0
		}
		groups[i] = append(groups[i], p)
	}
	return groups
}

// Align times display words by summing the phoneme durations of the
// synthesized words each mapping covers. Starts accumulate from zero.
// Mappings that reference a synthesized word outside groups are skipped.
// Empty groups or display words give an empty result.
func Align(groups [][]tts.Phoneme, display []tts.Word, mapping []tts.WordMapping) []tts.WordTiming {
	timings := []tts.WordTiming{}
	if len(groups) == 0 || len(display) == 0 {
		return timings
	}

	var clock float64
	for _, m := range mapping {
		if !validDisplay(m.DisplayIndices, len(display)) {
			continue
		}
		duration, ok := groupDuration(groups, m.SynthesizedIndices)
		if !ok {
			continue
		}

		first := display[m.DisplayIndices[0]]
		last := display[m.DisplayIndices[len(m.DisplayIndices)-1]]
		timings = append(timings, tts.WordTiming{
			WordIndex:     m.DisplayIndices[0],
			StartTime:     clock,
			Duration:      duration,
			Text:          joinWords(display, m.DisplayIndices),
			RangeLocation: first.Range.Location,
			RangeLength:   last.Range.End() - first.Range.Location,
		})
		clock += duration
	}
	return timings
}

func validDisplay(indices []int, n int) bool {
	if len(indices) == 0 {
		return false
	}
	for _, d := range indices {
		if d < 0 || d >= n {
			return false
		}
	}
	return true
}

func groupDuration(groups [][]tts.Phoneme, indices []int) (float64, bool) {
	var total float64
	for _, s := range indices {
		if s < 0 || s >= len(groups) {
			return 0, false
		}
		for _, p := range groups[s] {
			total += p.Duration
		}
	}
	return total, true
}

func joinWords(display []tts.Word, indices []int) string {
	if len(indices) == 1 {
		return display[indices[0]].Text
	}
	parts := make([]string, len(indices))
	for i, d := range indices {
		parts[i] = display[d].Text
	}
	return strings.Join(parts, " ")
}

// PhonemeStrategy times words from the phoneme durations the synthesizer
// reports. It needs no audio.
type PhonemeStrategy struct {
	logger *log.Logger
}

// NewPhonemeStrategy creates a phoneme duration strategy.
func NewPhonemeStrategy(logger *log.Logger) *PhonemeStrategy {
	if logger == nil {
		logger = log.Default()
	}
	return &PhonemeStrategy{logger: logger.WithPrefix("align")}
}

// Name implements Strategy.
func (s *PhonemeStrategy) Name() string { return tts.StrategyPhoneme }

// Align implements Strategy.
func (s *PhonemeStrategy) Align(ctx context.Context, in Input) (*tts.AlignmentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &tts.AlignmentResult{ParagraphIndex: in.ParagraphIndex, WordTimings: []tts.WordTiming{}}
	if in.Synthesis == nil || len(in.Synthesis.Phonemes) == 0 {
		return result, nil
	}

	display := normalize.SplitWords(in.Text)
	synth := normalize.SplitWords(in.normalizedText())
	groups := GroupPhonemes(in.Synthesis.Phonemes, synth)
	mapping := normalize.BuildMapping(normalize.Texts(display), normalize.Texts(synth))

	result.WordTimings = Align(groups, display, mapping)
	for _, p := range in.Synthesis.Phonemes {
		result.TotalDuration += p.Duration
	}

	s.logger.Debug("phoneme alignment",
		"paragraph", in.ParagraphIndex,
		"display_words", len(display),
		"synthesized_words", len(synth),
		"timings", len(result.WordTimings))
	return result, nil
}
