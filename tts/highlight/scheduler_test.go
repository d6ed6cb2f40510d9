package highlight

import (
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readalong/tts"
)

type manualClock struct {
	mu      sync.Mutex
	elapsed time.Duration
	playing bool
}

func (c *manualClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

func (c *manualClock) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *manualClock) Set(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed = d
}

func result(starts ...float64) *tts.AlignmentResult {
	r := &tts.AlignmentResult{}
	for i, s := range starts {
		d := 0.001
		if i+1 < len(starts) {
			d = starts[i+1] - s
		}
		r.WordTimings = append(r.WordTimings, tts.WordTiming{WordIndex: i, StartTime: s, Duration: d})
		r.TotalDuration = s + d
	}
	return r
}

func recorder() (WordFunc, chan tts.WordTiming) {
	ch := make(chan tts.WordTiming, 100)
	return func(wt tts.WordTiming) { ch <- wt }, ch
}

func expectWords(t *testing.T, ch chan tts.WordTiming, indices ...int) {
	t.Helper()
	for _, want := range indices {
		select {
		case wt := <-ch:
			if wt.WordIndex != want {
				t.Fatalf("Expected word %d, got %d", want, wt.WordIndex)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for word %d", want)
		}
	}
}

func expectNothing(t *testing.T, ch chan tts.WordTiming, wait time.Duration) {
	t.Helper()
	select {
	case wt := <-ch:
		t.Fatalf("Expected no word, got %d", wt.WordIndex)
	case <-time.After(wait):
	}
}

func TestStartEmitsFirstWordImmediately(t *testing.T) {
	clock := &manualClock{playing: true}
	onWord, ch := recorder()
	s := New(result(0.5, 1.0, 2.0), clock, onWord, WithPollInterval(time.Millisecond))
	defer s.Stop()

	s.Start()
	if s.Emitted() != 1 {
		t.Fatalf("Expected first word emitted by Start, got %d", s.Emitted())
	}
	expectWords(t, ch, 0)

	s.Start()
	expectNothing(t, ch, 20*time.Millisecond)
	if s.Emitted() != 1 {
		t.Errorf("Expected second Start to be a no-op, got %d emissions", s.Emitted())
	}
}

func TestWordsFollowClock(t *testing.T) {
	clock := &manualClock{playing: true}
	onWord, ch := recorder()
	s := New(result(0, 1.0, 2.0), clock, onWord, WithPollInterval(time.Millisecond))
	defer s.Stop()

	s.Start()
	expectWords(t, ch, 0)
	expectNothing(t, ch, 20*time.Millisecond)

	clock.Set(1100 * time.Millisecond)
	expectWords(t, ch, 1)

	clock.Set(3 * time.Second)
	expectWords(t, ch, 2)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected scheduler to finish after last word")
	}
}

func TestLateShortWordsAreNotDropped(t *testing.T) {
	clock := &manualClock{playing: true}
	onWord, ch := recorder()
	r := result(0, 0.001, 0.002, 0.003, 0.004, 0.005, 0.006, 0.007)
	s := New(r, clock, onWord, WithPollInterval(time.Millisecond))
	defer s.Stop()

	clock.Set(time.Second)
	s.Start()
	expectWords(t, ch, 0, 1, 2, 3, 4, 5, 6, 7)
	<-s.Done()
	if s.Emitted() != len(r.WordTimings) {
		t.Errorf("Expected %d emissions, got %d", len(r.WordTimings), s.Emitted())
	}
}

func TestStopCancelsPending(t *testing.T) {
	clock := &manualClock{playing: true}
	onWord, ch := recorder()
	s := New(result(0, 1.0, 2.0), clock, onWord, WithPollInterval(time.Millisecond))

	s.Start()
	expectWords(t, ch, 0)
	s.Stop()

	clock.Set(5 * time.Second)
	expectNothing(t, ch, 30*time.Millisecond)
	select {
	case <-s.Done():
	default:
		t.Error("Expected Done to be closed after Stop")
	}

	s.Start()
	expectNothing(t, ch, 10*time.Millisecond)
}

func TestStopBeforeStart(t *testing.T) {
	onWord, ch := recorder()
	s := New(result(0, 1), &manualClock{}, onWord)
	s.Stop()
	s.Start()
	expectNothing(t, ch, 10*time.Millisecond)
}

func TestFlushEmitsRemaining(t *testing.T) {
	clock := &manualClock{playing: true}
	onWord, ch := recorder()
	s := New(result(0, 1.0, 2.0, 3.0), clock, onWord, WithPollInterval(time.Millisecond))

	s.Start()
	expectWords(t, ch, 0)
	s.Flush()
	expectWords(t, ch, 1, 2, 3)
	if s.Emitted() != 4 {
		t.Errorf("Expected 4 emissions, got %d", s.Emitted())
	}
}

func TestPausedClockHoldsWords(t *testing.T) {
	clock := &manualClock{playing: false}
	onWord, ch := recorder()
	s := New(result(0, 0.05), clock, onWord, WithPollInterval(2*time.Millisecond))
	defer s.Stop()

	s.Start()
	expectWords(t, ch, 0)
	expectNothing(t, ch, 80*time.Millisecond)
}

func TestEmptyAlignment(t *testing.T) {
	onWord, ch := recorder()
	s := New(nil, &manualClock{}, onWord)
	s.Start()
	<-s.Done()
	expectNothing(t, ch, 10*time.Millisecond)
	s.Stop()
}

func TestOffsetClock(t *testing.T) {
	base := &manualClock{playing: true}
	c := OffsetClock{Base: base, Offset: time.Second}

	base.Set(500 * time.Millisecond)
	if c.Elapsed() != 0 {
		t.Errorf("Expected 0 before offset, got %v", c.Elapsed())
	}
	base.Set(1500 * time.Millisecond)
	if c.Elapsed() != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v", c.Elapsed())
	}
	if !c.IsPlaying() {
		t.Error("Expected offset clock to report base playing state")
	}
}
