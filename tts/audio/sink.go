package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgnsrekt/readalong/tts"
)

// SinkCallbacks holds optional hooks, mostly for tests.
type SinkCallbacks struct {
	OnPlay   func(pcm []byte)
	OnPause  func()
	OnResume func()
}

// SinkOption configures a MemorySink.
type SinkOption func(*MemorySink)

// WithRealtime makes Play take as long as the audio would take to play,
// divided by speedup. A speedup of 10 plays ten times faster than real time.
func WithRealtime(speedup float64) SinkOption {
	return func(s *MemorySink) {
		if speedup > 0 {
			s.speedup = speedup
		}
	}
}

// WithRecording keeps a copy of every played chunk.
func WithRecording() SinkOption {
	return func(s *MemorySink) { s.record = true }
}

// WithCallbacks sets the sink hooks.
func WithCallbacks(cb SinkCallbacks) SinkOption {
	return func(s *MemorySink) { s.callbacks = cb }
}

// WithPlayError makes every Play call fail with err.
func WithPlayError(err error) SinkOption {
	return func(s *MemorySink) { s.playError = err }
}

// MemorySink plays audio into memory. Its clock advances by the duration of
// the audio it has consumed, either at once or at a scaled real-time pace.
type MemorySink struct {
	format    tts.AudioFormat
	speedup   float64 // 0 means instant
	tick      time.Duration
	record    bool
	callbacks SinkCallbacks
	playError error

	mu       sync.Mutex
	played   int64
	chunks   int
	data     [][]byte
	active   bool
	paused   bool
	resumeCh chan struct{}
}

// NewMemorySink creates a sink for audio in format.
func NewMemorySink(format tts.AudioFormat, opts ...SinkOption) *MemorySink {
	s := &MemorySink{
		format:   format,
		tick:     5 * time.Millisecond,
		resumeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Play implements tts.AudioSink.
func (s *MemorySink) Play(ctx context.Context, pcm []byte) error {
	if s.playError != nil {
		return s.playError
	}
	if err := s.waitResumed(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.active = true
	s.chunks++
	if s.record {
		s.data = append(s.data, append([]byte(nil), pcm...))
	}
	s.mu.Unlock()
	defer s.setActive(false)

	if s.callbacks.OnPlay != nil {
		s.callbacks.OnPlay(pcm)
	}

	if s.speedup == 0 {
		s.advance(int64(len(pcm)))
		return nil
	}
	return s.playRealtime(ctx, int64(len(pcm)))
}

// playRealtime advances the clock in small steps so that highlight timing can
// be observed while a chunk plays.
func (s *MemorySink) playRealtime(ctx context.Context, n int64) error {
	bps := float64(s.format.BytesPerSecond())
	if bps <= 0 {
		s.advance(n)
		return nil
	}
	step := int64(bps * s.speedup * s.tick.Seconds())
	step -= step % int64(frameSize(s.format))
	if step <= 0 {
		step = int64(frameSize(s.format))
	}

	timer := time.NewTimer(s.tick)
	defer timer.Stop()

	for n > 0 {
		if err := s.waitResumed(ctx); err != nil {
			return err
		}
		timer.Reset(s.tick)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		d := min(step, n)
		s.advance(d)
		n -= d
	}
	return nil
}

func (s *MemorySink) waitResumed(ctx context.Context) error {
	for {
		s.mu.Lock()
		paused, ch := s.paused, s.resumeCh
		s.mu.Unlock()
		if !paused {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (s *MemorySink) advance(n int64) {
	s.mu.Lock()
	s.played += n
	s.mu.Unlock()
}

func (s *MemorySink) setActive(v bool) {
	s.mu.Lock()
	s.active = v
	s.mu.Unlock()
}

// Elapsed implements tts.PlaybackClock.
func (s *MemorySink) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format.Duration(int(s.played))
}

// IsPlaying implements tts.PlaybackClock.
func (s *MemorySink) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && !s.paused
}

// Pause implements tts.Pauser.
func (s *MemorySink) Pause() error {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return errors.New("already paused")
	}
	s.paused = true
	s.mu.Unlock()

	if s.callbacks.OnPause != nil {
		s.callbacks.OnPause()
	}
	return nil
}

// Resume implements tts.Pauser.
func (s *MemorySink) Resume() error {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return errors.New("not paused")
	}
	s.paused = false
	close(s.resumeCh)
	s.resumeCh = make(chan struct{})
	s.mu.Unlock()

	if s.callbacks.OnResume != nil {
		s.callbacks.OnResume()
	}
	return nil
}

// PlayedBytes returns how many bytes have been consumed.
func (s *MemorySink) PlayedBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.played
}

// Chunks returns how many Play calls were accepted.
func (s *MemorySink) Chunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks
}

// Recorded returns copies of the played chunks when recording is enabled.
func (s *MemorySink) Recorded() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.data...)
}

// Reset clears the clock and counters.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = 0
	s.chunks = 0
	s.data = nil
}

func frameSize(f tts.AudioFormat) int {
	n := f.Channels * f.BytesPerSample
	if n <= 0 {
		return 1
	}
	return n
}
