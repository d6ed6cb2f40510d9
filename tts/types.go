package tts

import (
	"fmt"
	"math"
	"time"
)

// timingTolerance is the allowed float drift when checking that word
// timings are sequential.
const timingTolerance = 1e-6

// Range is a half-open byte range [Location, Location+Length) into a string.
type Range struct {
	Location int `json:"location"`
	Length   int `json:"length"`
}

// End returns the exclusive end offset.
func (r Range) End() int {
	return r.Location + r.Length
}

// Contains reports whether offset falls inside the range.
func (r Range) Contains(offset int) bool {
	return offset >= r.Location && offset < r.End()
}

// Word is a whitespace-delimited word together with its position in the
// text it was split from.
type Word struct {
	Text  string
	Range Range
}

// Phoneme is one phoneme produced by a synthesizer. TextRange points into the
// synthesizer's normalized text, not the display text.
type Phoneme struct {
	Symbol    string  `json:"symbol"`
	Duration  float64 `json:"duration"` // seconds
	TextRange Range   `json:"text_range"`
}

// WordMapping ties display words to the synthesized (normalized) words that
// speak them. Both index lists are ascending.
type WordMapping struct {
	DisplayIndices     []int `json:"display_indices"`
	SynthesizedIndices []int `json:"synthesized_indices"`
}

// WordTiming is the time span during which a display word is spoken.
type WordTiming struct {
	WordIndex     int     `json:"word_index"`
	StartTime     float64 `json:"start_time"` // seconds
	Duration      float64 `json:"duration"`   // seconds
	Text          string  `json:"text"`
	RangeLocation int     `json:"range_location"`
	RangeLength   int     `json:"range_length"`
}

// EndTime returns StartTime + Duration.
func (w WordTiming) EndTime() float64 {
	return w.StartTime + w.Duration
}

// Range returns the display range of the word.
func (w WordTiming) Range() Range {
	return Range{Location: w.RangeLocation, Length: w.RangeLength}
}

// Start returns the start time as a time.Duration.
func (w WordTiming) Start() time.Duration {
	return seconds(w.StartTime)
}

// AlignmentResult holds the word timings for one paragraph. Results are
// treated as immutable once produced.
type AlignmentResult struct {
	ParagraphIndex int          `json:"paragraph_index"`
	TotalDuration  float64      `json:"total_duration"` // seconds
	WordTimings    []WordTiming `json:"word_timings"`
}

// Validate checks that timings are non-negative and strictly sequential.
func (r *AlignmentResult) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil result", ErrAlignmentFailed)
	}
	for i, wt := range r.WordTimings {
		if wt.Duration < 0 || wt.StartTime < 0 {
			return fmt.Errorf("%w: negative timing at word %d", ErrAlignmentFailed, i)
		}
		if i == 0 {
			continue
		}
		prev := r.WordTimings[i-1]
		if math.Abs(prev.EndTime()-wt.StartTime) > timingTolerance {
			return fmt.Errorf("%w: word %d starts at %.6f, previous ends at %.6f",
				ErrAlignmentFailed, i, wt.StartTime, prev.EndTime())
		}
	}
	return nil
}

// Append adds other's timings after the current ones. Start times are shifted
// by r.TotalDuration, ranges by charOffset, and word indices continue the
// sequence. Silence between the current last word and the first appended
// word is given to the current last word, so the timeline stays gapless.
func (r *AlignmentResult) Append(other *AlignmentResult, charOffset, wordOffset int) {
	if other == nil {
		return
	}
	base := r.TotalDuration
	for i, wt := range other.WordTimings {
		wt.StartTime += base
		wt.RangeLocation += charOffset
		wt.WordIndex += wordOffset
		if n := len(r.WordTimings); i == 0 && n > 0 {
			if last := &r.WordTimings[n-1]; wt.StartTime > last.EndTime() {
				last.Duration = wt.StartTime - last.StartTime
			}
		}
		r.WordTimings = append(r.WordTimings, wt)
	}
	r.TotalDuration += other.TotalDuration
}

// Slice returns the timings whose range starts inside span, rebased so the
// first returned word starts at zero and ranges are relative to span.
func (r *AlignmentResult) Slice(span Range) *AlignmentResult {
	out := &AlignmentResult{ParagraphIndex: r.ParagraphIndex}
	var base float64
	for _, wt := range r.WordTimings {
		if !span.Contains(wt.RangeLocation) {
			continue
		}
		if len(out.WordTimings) == 0 {
			base = wt.StartTime
		}
		wt.StartTime -= base
		wt.RangeLocation -= span.Location
		out.WordTimings = append(out.WordTimings, wt)
		out.TotalDuration += wt.Duration
	}
	return out
}

// TokenSpan is the inclusive frame range a CTC token occupies.
type TokenSpan struct {
	TokenIndex int `json:"token_index"`
	StartFrame int `json:"start_frame"`
	EndFrame   int `json:"end_frame"`
}

// AudioFormat describes raw PCM audio.
type AudioFormat struct {
	SampleRate     int `json:"sample_rate"`
	Channels       int `json:"channels"`
	BytesPerSample int `json:"bytes_per_sample"`
}

// DefaultAudioFormat is 16-bit mono PCM at 22.05kHz.
var DefaultAudioFormat = AudioFormat{SampleRate: 22050, Channels: 1, BytesPerSample: 2}

// BytesPerSecond returns the byte rate of the format.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BytesPerSample
}

// Duration returns the playing time of n bytes.
func (f AudioFormat) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(bps) * float64(time.Second))
}

// CharOffset pairs a display text offset with the normalized text offset
// it was rewritten to.
type CharOffset struct {
	Display    int `json:"display"`
	Normalized int `json:"normalized"`
}

// SynthesisRequest is one sentence handed to a Synthesizer.
type SynthesisRequest struct {
	Text  string
	Voice string
	Speed float64
}

// SynthesisResult is what a Synthesizer returns for one sentence. When audio
// was streamed through the chunk callback, Audio may be empty.
type SynthesisResult struct {
	Audio          []byte
	Format         AudioFormat
	Phonemes       []Phoneme
	NormalizedText string
	CharMapping    []CharOffset
}

// Emissions is an acoustic posterior matrix: one row per frame, one
// log-probability per vocabulary label.
type Emissions struct {
	Matrix    [][]float64
	FrameRate float64 // frames per second
}

// ProgressEvent reports which word is being spoken.
type ProgressEvent struct {
	ParagraphIndex int
	WordRange      Range
	IsPlaying      bool
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
