// Package align turns synthesis output into word timings for display text.
// Two strategies share one contract: summing phoneme durations reported by
// the synthesizer, and CTC forced alignment of the audio with a recognizer.
package align

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/align/ctc"
)

// Input is everything a strategy may need to time one sentence.
type Input struct {
	ParagraphIndex int

	// Text is the display text of the sentence. Ranges in the result are
	// byte offsets into it.
	Text string

	Synthesis *tts.SynthesisResult

	// Audio is the complete PCM of the sentence. Only acoustic strategies
	// read it.
	Audio []byte
}

// normalizedText returns the synthesizer's rewritten text, or the display
// text when the synthesizer did not report one.
func (in Input) normalizedText() string {
	if in.Synthesis != nil && in.Synthesis.NormalizedText != "" {
		return in.Synthesis.NormalizedText
	}
	return in.Text
}

// Strategy produces word timings for one sentence.
type Strategy interface {
	Name() string
	Align(ctx context.Context, in Input) (*tts.AlignmentResult, error)
}

// NewStrategy builds the strategy selected by cfg. The CTC strategy needs a
// recognizer; "auto" uses it when one is available and falls back to
// phoneme durations otherwise.
func NewStrategy(cfg tts.AlignmentConfig, recognizer tts.Recognizer, logger *log.Logger) (Strategy, error) {
	if logger == nil {
		logger = log.Default()
	}
	phoneme := NewPhonemeStrategy(logger)

	switch cfg.Strategy {
	case tts.StrategyPhoneme, "":
		return phoneme, nil

	case tts.StrategyCTC:
		if recognizer == nil {
			return nil, fmt.Errorf("ctc strategy: %w", tts.ErrRecognizerMissing)
		}
		return newCTC(cfg, recognizer, logger), nil

	case tts.StrategyAuto:
		if recognizer == nil {
			logger.Debug("no recognizer, using phoneme durations")
			return phoneme, nil
		}
		return NewFallbackStrategy(newCTC(cfg, recognizer, logger), phoneme, logger), nil

	default:
		return nil, fmt.Errorf("%w: unknown alignment strategy %q", tts.ErrInvalidConfig, cfg.Strategy)
	}
}

func newCTC(cfg tts.AlignmentConfig, recognizer tts.Recognizer, logger *log.Logger) *CTCStrategy {
	aligner := ctc.NewAligner(nil, ctc.Options{SkipBlanks: cfg.SkipBlanks}, logger)
	return NewCTCStrategy(recognizer, aligner, cfg.RequestsPerMinute, logger)
}
