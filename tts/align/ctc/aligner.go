package ctc

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
)

// Aligner force-aligns transcripts against emission matrices.
type Aligner struct {
	tokenizer *Tokenizer
	opts      Options
	logger    *log.Logger
}

// NewAligner creates an aligner. A nil tokenizer means DefaultTokenizer.
func NewAligner(tokenizer *Tokenizer, opts Options, logger *log.Logger) *Aligner {
	if tokenizer == nil {
		tokenizer = DefaultTokenizer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Aligner{
		tokenizer: tokenizer,
		opts:      opts,
		logger:    logger.WithPrefix("ctc"),
	}
}

// Tokenizer returns the aligner's tokenizer.
func (a *Aligner) Tokenizer() *Tokenizer {
	return a.tokenizer
}

// Spans tokenizes transcript and returns the best token spans and the tokens
// they index.
func (a *Aligner) Spans(em *tts.Emissions, transcript string) ([]tts.TokenSpan, []int, error) {
	tokens := a.tokenizer.Tokenize(transcript)
	if len(tokens) == 0 {
		return []tts.TokenSpan{}, tokens, nil
	}
	if em == nil || len(em.Matrix) == 0 {
		return nil, nil, fmt.Errorf("%w: no emissions", tts.ErrAlignmentFailed)
	}
	if w := len(em.Matrix[0]); w < a.tokenizer.Size() {
		return nil, nil, fmt.Errorf("%w: emissions have %d labels, vocabulary has %d",
			tts.ErrVocabulary, w, a.tokenizer.Size())
	}

	tr, err := BuildTrellis(em.Matrix, tokens, a.tokenizer.Blank(), a.opts)
	if err != nil {
		return nil, nil, err
	}
	spans, err := Backtrack(tr)
	if err != nil {
		return nil, nil, err
	}
	return spans, tokens, nil
}

// Align returns word timings for transcript. Timings follow the acoustic
// evidence and may have gaps between words.
func (a *Aligner) Align(em *tts.Emissions, transcript string) ([]tts.WordTiming, error) {
	spans, tokens, err := a.Spans(em, transcript)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return []tts.WordTiming{}, nil
	}
	if em.FrameRate <= 0 {
		return nil, fmt.Errorf("%w: frame rate %.2f", tts.ErrAlignmentFailed, em.FrameRate)
	}

	words := a.tokenizer.MergeToWords(spans, transcript, em.FrameRate)
	a.logger.Debug("aligned transcript",
		"frames", len(em.Matrix),
		"tokens", len(tokens),
		"words", len(words))
	return words, nil
}
