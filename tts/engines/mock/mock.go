// Package mock provides a deterministic synthesizer and recognizer for demos
// and tests. The synthesizer writes each phoneme's CTC label into the PCM it
// produces, so the recognizer can score that audio without a model.
package mock

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/align/ctc"
	"github.com/dgnsrekt/readalong/tts/normalize"
)

// labelScale is the sample amplitude step per label index.
const labelScale = 16

// voicedShare is the part of each phoneme that carries its label; the rest
// is silence, which the recognizer reports as blank.
const voicedShare = 0.7

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithFormat sets the output audio format. Samples are always 16-bit.
func WithFormat(f tts.AudioFormat) Option {
	return func(s *Synthesizer) {
		f.BytesPerSample = 2
		if f.Channels < 1 {
			f.Channels = 1
		}
		if f.SampleRate > 0 {
			s.format = f
		}
	}
}

// WithChunkSize sets the size of streamed chunks in bytes.
func WithChunkSize(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithChunkDelay pauses between streamed chunks.
func WithChunkDelay(d time.Duration) Option {
	return func(s *Synthesizer) { s.chunkDelay = d }
}

// WithFailure makes Synthesize fail whenever fn returns an error for the
// request text.
func WithFailure(fn func(text string) error) Option {
	return func(s *Synthesizer) { s.fail = fn }
}

// FailOn makes Synthesize fail for any text containing substr.
func FailOn(substr string) Option {
	return WithFailure(func(text string) error {
		if strings.Contains(text, substr) {
			return fmt.Errorf("mock failure on %q", substr)
		}
		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l.WithPrefix("mock")
		}
	}
}

// Synthesizer implements tts.Synthesizer. It speaks the text produced by
// normalize.Expand, one phoneme per letter, with a short pause between
// words.
type Synthesizer struct {
	format          tts.AudioFormat
	phonemeDuration time.Duration
	latency         time.Duration
	chunkSize       int
	chunkDelay      time.Duration
	fail            func(text string) error
	tokenizer       *ctc.Tokenizer
	logger          *log.Logger

	calls     atomic.Int64
	active    atomic.Int64
	maxActive atomic.Int64
}

// New creates a mock synthesizer.
func New(cfg tts.MockConfig, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		format:          tts.DefaultAudioFormat,
		phonemeDuration: cfg.PhonemeDuration,
		latency:         cfg.Latency,
		chunkSize:       4096,
		tokenizer:       ctc.DefaultTokenizer(),
		logger:          log.Default().WithPrefix("mock"),
	}
	if s.phonemeDuration <= 0 {
		s.phonemeDuration = 55 * time.Millisecond
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Format returns the audio format the synthesizer produces.
func (s *Synthesizer) Format() tts.AudioFormat { return s.format }

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.SynthesisRequest, onChunk func([]byte) bool) (*tts.SynthesisResult, error) {
	s.calls.Add(1)
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	if strings.TrimSpace(req.Text) == "" {
		return nil, tts.ErrEmptyText
	}
	if s.fail != nil {
		if err := s.fail(req.Text); err != nil {
			return nil, fmt.Errorf("%w: %w", tts.ErrSynthesisFailed, err)
		}
	}
	if err := sleep(ctx, s.latency); err != nil {
		return nil, err
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1
	}

	result := s.render(req.Text, speed)
	s.logger.Debug("synthesized", "words", len(strings.Fields(result.NormalizedText)),
		"phonemes", len(result.Phonemes), "bytes", len(result.Audio))

	if onChunk == nil {
		return result, nil
	}

	pcm := result.Audio
	result.Audio = nil
	for off := 0; off < len(pcm); off += s.chunkSize {
		end := min(off+s.chunkSize, len(pcm))
		if !onChunk(pcm[off:end]) {
			return nil, tts.ErrCanceled
		}
		if end < len(pcm) {
			if err := sleep(ctx, s.chunkDelay); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// render builds the normalized text, phonemes and PCM for text.
func (s *Synthesizer) render(text string, speed float64) *tts.SynthesisResult {
	result := &tts.SynthesisResult{Format: s.format}

	var normalized strings.Builder
	var pcm []byte
	letter := s.phonemeDuration.Seconds() / speed

	// A pause separates spoken words, matching the boundary tokens the CTC
	// tokenizer puts in the transcript.
	spoken := false
	for i, w := range normalize.SplitWords(text) {
		if i > 0 {
			normalized.WriteByte(' ')
		}
		result.CharMapping = append(result.CharMapping, tts.CharOffset{
			Display:    w.Range.Location,
			Normalized: normalized.Len(),
		})

		base := normalized.Len()
		reading := normalize.Expand(w.Text)
		normalized.WriteString(reading)

		for _, sub := range normalize.SplitWords(reading) {
			if len(s.tokenizer.TokenizeWord(sub.Text)) == 0 {
				continue
			}
			start := base + sub.Range.Location
			if spoken {
				pcm = s.appendPhoneme(result, pcm, " ", s.tokenizer.Boundary(), letter/2,
					tts.Range{Location: start - 1, Length: 1})
			}
			spoken = true

			for off, r := range sub.Text {
				for _, tok := range s.tokenizer.TokenizeWord(string(r)) {
					label, _ := s.tokenizer.Label(tok)
					pcm = s.appendPhoneme(result, pcm, label, tok, letter,
						tts.Range{Location: start + off, Length: len(string(r))})
				}
			}
		}
	}

	result.NormalizedText = normalized.String()
	result.Audio = pcm
	return result
}

func (s *Synthesizer) appendPhoneme(result *tts.SynthesisResult, pcm []byte, symbol string, label int, seconds float64, r tts.Range) []byte {
	samples := int(seconds*float64(s.format.SampleRate) + 0.5)
	if samples < 1 {
		samples = 1
	}
	voiced := int(float64(samples)*voicedShare + 0.5)
	value := uint16(int16((label + 1) * labelScale))

	frame := make([]byte, 2*s.format.Channels)
	for i := 0; i < samples; i++ {
		v := value
		if i >= voiced {
			v = 0
		}
		for c := 0; c < s.format.Channels; c++ {
			binary.LittleEndian.PutUint16(frame[2*c:], v)
		}
		pcm = append(pcm, frame...)
	}

	result.Phonemes = append(result.Phonemes, tts.Phoneme{
		Symbol:    symbol,
		Duration:  float64(samples) / float64(s.format.SampleRate),
		TextRange: r,
	})
	return pcm
}

// Calls returns how many times Synthesize was called.
func (s *Synthesizer) Calls() int { return int(s.calls.Load()) }

// MaxConcurrent returns the largest number of overlapping Synthesize calls.
func (s *Synthesizer) MaxConcurrent() int { return int(s.maxActive.Load()) }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
