package align

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/align/ctc"
	"github.com/dgnsrekt/readalong/tts/normalize"
	"golang.org/x/time/rate"
)

// CTCStrategy times words by force-aligning the synthesizer's normalized
// text against recognizer emissions for the sentence audio.
type CTCStrategy struct {
	recognizer tts.Recognizer
	aligner    *ctc.Aligner
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewCTCStrategy creates a CTC strategy. requestsPerMinute limits recognizer
// calls; zero or less means unlimited.
func NewCTCStrategy(recognizer tts.Recognizer, aligner *ctc.Aligner, requestsPerMinute int, logger *log.Logger) *CTCStrategy {
	if logger == nil {
		logger = log.Default()
	}
	if aligner == nil {
		aligner = ctc.NewAligner(nil, ctc.Options{}, logger)
	}

	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}

	return &CTCStrategy{
		recognizer: recognizer,
		aligner:    aligner,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.WithPrefix("align"),
	}
}

// Name implements Strategy.
func (s *CTCStrategy) Name() string { return tts.StrategyCTC }

// Align implements Strategy.
func (s *CTCStrategy) Align(ctx context.Context, in Input) (*tts.AlignmentResult, error) {
	if s.recognizer == nil {
		return nil, fmt.Errorf("%w: %w", tts.ErrAlignmentFailed, tts.ErrRecognizerMissing)
	}
	if len(in.Audio) == 0 {
		return nil, fmt.Errorf("%w: no audio to align", tts.ErrAlignmentFailed)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", tts.ErrCanceled, err)
	}

	format := tts.DefaultAudioFormat
	if in.Synthesis != nil && in.Synthesis.Format.BytesPerSecond() > 0 {
		format = in.Synthesis.Format
	}
	em, err := s.recognizer.Emissions(ctx, in.Audio, format)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", tts.ErrCanceled, err)
		}
		return nil, fmt.Errorf("%w: recognizer: %v", tts.ErrAlignmentFailed, err)
	}

	transcript := in.normalizedText()
	words, err := s.aligner.Align(em, transcript)
	if err != nil {
		return nil, err
	}

	display := normalize.SplitWords(in.Text)
	synth := normalize.SplitWords(transcript)
	mapping := normalize.BuildMapping(normalize.Texts(display), normalize.Texts(synth))

	var total float64
	if em != nil && em.FrameRate > 0 {
		total = float64(len(em.Matrix)) / em.FrameRate
	}
	timings, err := sequence(words, display, mapping, total)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("ctc alignment",
		"paragraph", in.ParagraphIndex,
		"audio", total,
		"words", len(timings))

	return &tts.AlignmentResult{
		ParagraphIndex: in.ParagraphIndex,
		TotalDuration:  math.Max(total, endOf(timings)),
		WordTimings:    timings,
	}, nil
}

type evidence struct {
	start, end float64
	ok         bool
}

// sequence maps acoustic word spans onto display words and makes the result
// gapless from zero to total: every word lasts until the next one starts and
// the last one until the clip ends. Display words without acoustic evidence
// get zero duration just before the next timed word.
func sequence(words []tts.WordTiming, display []tts.Word, mapping []tts.WordMapping, total float64) ([]tts.WordTiming, error) {
	bySynth := make(map[int]tts.WordTiming, len(words))
	for _, w := range words {
		bySynth[w.WordIndex] = w
	}

	var kept []tts.WordMapping
	var ev []evidence
	timed := 0
	for _, m := range mapping {
		if !validDisplay(m.DisplayIndices, len(display)) {
			continue
		}
		e := evidence{start: math.Inf(1), end: math.Inf(-1)}
		for _, si := range m.SynthesizedIndices {
			w, ok := bySynth[si]
			if !ok {
				continue
			}
			e.ok = true
			e.start = math.Min(e.start, w.StartTime)
			e.end = math.Max(e.end, w.EndTime())
		}
		if e.ok {
			timed++
		}
		kept = append(kept, m)
		ev = append(ev, e)
	}
	if len(kept) == 0 {
		return []tts.WordTiming{}, nil
	}
	if timed == 0 {
		return nil, fmt.Errorf("%w: no display word matched aligned audio", tts.ErrAlignmentFailed)
	}

	// Forward: timed starts never move backwards.
	starts := make([]float64, len(kept))
	finalEnd := 0.0
	prev := 0.0
	for i, e := range ev {
		if !e.ok {
			continue
		}
		starts[i] = math.Max(e.start, prev)
		prev = starts[i]
		finalEnd = math.Max(finalEnd, e.end)
	}
	finalEnd = math.Max(finalEnd, prev)
	if total > 0 {
		finalEnd = math.Max(total, prev)
	}

	// Backward: untimed words sit at the next timed start.
	next := finalEnd
	for i := len(kept) - 1; i >= 0; i-- {
		if !ev[i].ok {
			starts[i] = next
		}
		next = starts[i]
	}
	// The timeline covers the whole clip: leading silence belongs to the
	// first word and trailing silence to the last.
	starts[0] = 0

	timings := make([]tts.WordTiming, len(kept))
	for i, m := range kept {
		end := finalEnd
		if i+1 < len(kept) {
			end = starts[i+1]
		}
		first := display[m.DisplayIndices[0]]
		last := display[m.DisplayIndices[len(m.DisplayIndices)-1]]
		timings[i] = tts.WordTiming{
			WordIndex:     m.DisplayIndices[0],
			StartTime:     starts[i],
			Duration:      math.Max(end-starts[i], 0),
			Text:          joinWords(display, m.DisplayIndices),
			RangeLocation: first.Range.Location,
			RangeLength:   last.Range.End() - first.Range.Location,
		}
	}
	return timings, nil
}

func endOf(timings []tts.WordTiming) float64 {
	if len(timings) == 0 {
		return 0
	}
	return timings[len(timings)-1].EndTime()
}
