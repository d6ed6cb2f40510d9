package tts

import (
	"context"
	"time"
)

// Synthesizer turns sentence text into audio and phoneme timings.
type Synthesizer interface {
	// Synthesize produces audio for req. When onChunk is non-nil, audio is
	// streamed through it as it is produced and Audio in the result may be
	// empty; returning false from onChunk asks the synthesizer to stop.
	// When onChunk is nil, the whole clip is returned in the result.
	Synthesize(ctx context.Context, req SynthesisRequest, onChunk func([]byte) bool) (*SynthesisResult, error)
}

// Recognizer scores audio against the CTC label vocabulary. It is only used
// for forced alignment of a known transcript.
type Recognizer interface {
	Emissions(ctx context.Context, audio []byte, format AudioFormat) (*Emissions, error)
}

// PlaybackClock exposes the position of the audio output.
type PlaybackClock interface {
	// Elapsed returns how much audio has been played. It only moves forward
	// while playing.
	Elapsed() time.Duration

	// IsPlaying returns false while output is paused or idle.
	IsPlaying() bool
}

// AudioSink consumes PCM chunks in order.
type AudioSink interface {
	PlaybackClock

	// Play blocks until pcm has been handed to the output device or ctx
	// is done.
	Play(ctx context.Context, pcm []byte) error
}

// Pauser is implemented by sinks that can pause output.
type Pauser interface {
	Pause() error
	Resume() error
}

// Listener receives playback output from the pipeline. Methods are called
// from pipeline goroutines and must not call back into the pipeline
// synchronously.
type Listener interface {
	OnProgress(ProgressEvent)
	OnState(PipelineState)
	OnAlignment(*AlignmentResult)
	OnError(SentenceError)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are ignored.
type ListenerFuncs struct {
	Progress  func(ProgressEvent)
	State     func(PipelineState)
	Alignment func(*AlignmentResult)
	Error     func(SentenceError)
}

// OnProgress implements Listener.
func (l ListenerFuncs) OnProgress(e ProgressEvent) {
	if l.Progress != nil {
		l.Progress(e)
	}
}

// OnState implements Listener.
func (l ListenerFuncs) OnState(s PipelineState) {
	if l.State != nil {
		l.State(s)
	}
}

// OnAlignment implements Listener.
func (l ListenerFuncs) OnAlignment(r *AlignmentResult) {
	if l.Alignment != nil {
		l.Alignment(r)
	}
}

// OnError implements Listener.
func (l ListenerFuncs) OnError(e SentenceError) {
	if l.Error != nil {
		l.Error(e)
	}
}
