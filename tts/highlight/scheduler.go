// Package highlight emits word-changed events in step with audio playback.
package highlight

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
)

// DefaultPollInterval bounds how long the scheduler sleeps before looking at
// the playback clock again.
const DefaultPollInterval = 15 * time.Millisecond

// WordFunc receives each word as it starts playing. Calls are sequential and
// in order. A WordFunc must not call Scheduler methods other than Emitted.
type WordFunc func(tts.WordTiming)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPollInterval sets the longest sleep between clock checks.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l.WithPrefix("highlight")
		}
	}
}

// Scheduler walks an alignment against a playback clock and reports each
// word once. Words whose start has already passed are reported immediately,
// in order, so short words are never dropped.
type Scheduler struct {
	clock  tts.PlaybackClock
	onWord WordFunc
	poll   time.Duration
	logger *log.Logger

	mu      sync.Mutex
	timings []tts.WordTiming
	next    int
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	emitted atomic.Int64
}

// New creates a scheduler for result. The clock's zero must be the moment the
// first word's audio starts.
func New(result *tts.AlignmentResult, clock tts.PlaybackClock, onWord WordFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:   clock,
		onWord:  onWord,
		poll:    DefaultPollInterval,
		logger:  log.Default().WithPrefix("highlight"),
		timings: timingsOf(result),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start reports the first word right away and schedules the rest. Calling
// Start on a running or finished scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	done := s.done
	if len(s.timings) == 0 {
		close(done)
		return
	}
	s.emit(s.next)
	s.next++

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(done)
		s.loop(ctx)
	}()
}

func (s *Scheduler) loop(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for s.next < len(s.timings) {
		wt := s.timings[s.next]
		elapsed := s.clock.Elapsed()
		if elapsed >= wt.Start() {
			s.emit(s.next)
			s.next++
			continue
		}

		wait := wt.Start() - elapsed
		if !s.clock.IsPlaying() || wait > s.poll {
			wait = s.poll
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) emit(i int) {
	s.emitted.Add(1)
	if s.onWord != nil {
		s.onWord(s.timings[i])
	}
}

// Stop cancels pending emissions and waits for the scheduler goroutine. A
// scheduler stopped before Start never reports anything.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if !s.started {
		s.started = true
		close(s.done)
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	<-s.done
}

// Flush stops scheduling and reports every word not yet reported. Used when
// the audio of the sentence finished before the clock caught up.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	if n := len(s.timings) - s.next; n > 0 {
		s.logger.Debug("flushing words", "count", n)
	}
	for ; s.next < len(s.timings); s.next++ {
		s.emit(s.next)
	}
}

// Done is closed once the scheduler has reported its last word or was
// stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Emitted returns how many words have been reported.
func (s *Scheduler) Emitted() int {
	return int(s.emitted.Load())
}

func timingsOf(result *tts.AlignmentResult) []tts.WordTiming {
	if result == nil {
		return nil
	}
	return result.WordTimings
}

// OffsetClock shifts a clock so that Offset reads as zero. Readings before
// the offset are zero.
type OffsetClock struct {
	Base   tts.PlaybackClock
	Offset time.Duration
}

// Elapsed implements tts.PlaybackClock.
func (c OffsetClock) Elapsed() time.Duration {
	e := c.Base.Elapsed() - c.Offset
	if e < 0 {
		return 0
	}
	return e
}

// IsPlaying implements tts.PlaybackClock.
func (c OffsetClock) IsPlaying() bool {
	return c.Base.IsPlaying()
}
