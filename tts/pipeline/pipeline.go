// Package pipeline synthesizes a document sentence by sentence ahead of
// playback, within byte and lookahead budgets, and drives word highlighting
// from the playback clock.
//
// A single coordinator goroutine owns all pipeline state. Synthesis workers
// and the playback consumer talk to it only by sending it operations, so no
// state is shared between goroutines.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/align"
	"github.com/dgnsrekt/readalong/tts/audio"
	"github.com/dgnsrekt/readalong/tts/sentence"
)

// Key identifies a sentence by paragraph and sentence index.
type Key = audio.Key

// Cache persists paragraph alignments between sessions.
type Cache interface {
	Load(documentID string, paragraph int, speed float64) (*tts.AlignmentResult, error)
	Save(result *tts.AlignmentResult, documentID string, paragraph int, speed float64) error
}

// Metrics receives pipeline measurements.
type Metrics interface {
	SetBufferedBytes(n int64)
	SetProcessing(n int)
	ObserveSynthesis(d time.Duration)
	SentenceFailed(stage tts.Stage)
	SessionCanceled()
}

type nopMetrics struct{}

func (nopMetrics) SetBufferedBytes(int64)         {}
func (nopMetrics) SetProcessing(int)              {}
func (nopMetrics) ObserveSynthesis(time.Duration) {}
func (nopMetrics) SentenceFailed(tts.Stage)       {}
func (nopMetrics) SessionCanceled()               {}

// Options holds the collaborators of a pipeline. Synthesizer and Sink are
// required.
type Options struct {
	Config      tts.Config
	Synthesizer tts.Synthesizer
	Sink        tts.AudioSink
	Strategy    align.Strategy // phoneme durations when nil
	Cache       Cache          // optional
	Listener    tts.Listener   // optional
	Metrics     Metrics        // optional
	Logger      *log.Logger
}

// Snapshot is a consistent view of the pipeline bookkeeping.
type Snapshot struct {
	State             tts.PipelineState
	Processing        []Key
	Ready             []Key
	Skipped           []Key
	BufferedBytes     int64
	BufferedSentences int
	Speed             float64
}

// Pipeline reads a document aloud.
type Pipeline struct {
	cfg      tts.Config
	budgets  tts.Budgets
	synth    tts.Synthesizer
	sink     tts.AudioSink
	strategy align.Strategy
	cache    Cache
	listener tts.Listener
	metrics  Metrics
	parser   *sentence.Parser
	logger   *log.Logger

	ops       chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the coordinator goroutine.
	c *coordinator
}

// New creates a pipeline and starts its coordinator.
func New(opts Options) (*Pipeline, error) {
	if opts.Synthesizer == nil {
		return nil, fmt.Errorf("%w: no synthesizer", tts.ErrInvalidConfig)
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("%w: no audio sink", tts.ErrInvalidConfig)
	}
	cfg := opts.Config
	if cfg.Speed == 0 {
		cfg.Speed = 1
	}
	if cfg.Pipeline.ChunkSize <= 0 {
		cfg.Pipeline.ChunkSize = tts.DefaultConfig().Pipeline.ChunkSize
	}
	if cfg.Pipeline.SynthesisTimeout <= 0 {
		cfg.Pipeline.SynthesisTimeout = tts.DefaultConfig().Pipeline.SynthesisTimeout
	}
	if cfg.Pipeline.StaleParagraphs <= 0 {
		cfg.Pipeline.StaleParagraphs = tts.DefaultConfig().Pipeline.StaleParagraphs
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("pipeline")

	strategy := opts.Strategy
	if strategy == nil {
		strategy = align.NewPhonemeStrategy(logger)
	}
	listener := opts.Listener
	if listener == nil {
		listener = tts.ListenerFuncs{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	p := &Pipeline{
		cfg:      cfg,
		budgets:  cfg.Budgets(),
		synth:    opts.Synthesizer,
		sink:     opts.Sink,
		strategy: strategy,
		cache:    opts.Cache,
		listener: listener,
		metrics:  metrics,
		parser:   sentence.NewParser(),
		logger:   logger,
		ops:      make(chan func(), 64),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.c = newCoordinator(p)

	logger.Debug("pipeline ready",
		"tier", cfg.DeviceTier,
		"max_buffered_bytes", p.budgets.MaxBufferedBytes,
		"lookahead", p.budgets.Lookahead,
		"workers", p.budgets.Workers,
		"strategy", strategy.Name())

	go p.run()
	return p, nil
}

func (p *Pipeline) run() {
	defer close(p.done)
	for {
		select {
		case op := <-p.ops:
			op()
		case <-p.quit:
			return
		}
	}
}

// do runs fn on the coordinator and waits for it.
func (p *Pipeline) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case p.ops <- func() { fn(); close(finished) }:
	case <-p.quit:
		return tts.ErrPipelineClosed
	}
	select {
	case <-finished:
		return nil
	case <-p.done:
		return tts.ErrPipelineClosed
	}
}

// send queues fn for the coordinator without waiting. It gives up when ctx
// is done.
func (p *Pipeline) send(ctx context.Context, fn func()) bool {
	select {
	case p.ops <- fn:
		return true
	case <-ctx.Done():
		return false
	case <-p.quit:
		return false
	}
}

// Load replaces the document. Any active session is canceled.
func (p *Pipeline) Load(documentID string, paragraphs []string) error {
	doc := &document{id: documentID, paragraphs: paragraphs}
	doc.sentences = make([][]sentence.Sentence, len(paragraphs))
	for i, text := range paragraphs {
		doc.sentences[i] = p.parser.Parse(text)
	}
	return p.do(func() { p.c.load(doc) })
}

// Play starts reading at paragraph. When a session is active this is a
// navigation: the old session is canceled and nothing of it is played or
// highlighted afterwards.
func (p *Pipeline) Play(paragraph int) error {
	var err error
	if e := p.do(func() { err = p.c.play(paragraph) }); e != nil {
		return e
	}
	return err
}

// Stop cancels the active session and clears all buffered audio.
func (p *Pipeline) Stop() error {
	return p.do(func() { p.c.cancel("stop") })
}

// Skip abandons the sentence being played and continues with the next one.
func (p *Pipeline) Skip() error {
	return p.do(func() { p.c.skip() })
}

// Pause holds chunk delivery and pauses the sink when it supports it.
func (p *Pipeline) Pause() error {
	var err error
	if e := p.do(func() { err = p.c.pause() }); e != nil {
		return e
	}
	return err
}

// Resume continues after Pause.
func (p *Pipeline) Resume() error {
	var err error
	if e := p.do(func() { err = p.c.resume() }); e != nil {
		return e
	}
	return err
}

// SetSpeed changes the speaking rate. An active session is canceled and
// restarted at the current paragraph, because audio and timings must be
// produced again.
func (p *Pipeline) SetSpeed(speed float64) error {
	if speed < 0.5 || speed > 3.0 {
		return fmt.Errorf("%w: speed must be between 0.5 and 3.0, got %.2f", tts.ErrInvalidConfig, speed)
	}
	return p.do(func() { p.c.setSpeed(speed) })
}

// Snapshot returns the current bookkeeping.
func (p *Pipeline) Snapshot() Snapshot {
	var s Snapshot
	if err := p.do(func() { s = p.c.snapshot() }); err != nil {
		s.State.Paragraph = -1
	}
	return s
}

// Wait blocks until the active session finishes. It returns nil when the
// document was read to the end or no session is active, tts.ErrCanceled
// when the session was stopped, navigated away from or restarted, and the
// context error when ctx is done first.
func (p *Pipeline) Wait(ctx context.Context) error {
	ch := make(chan error, 1)
	if err := p.do(func() { p.c.addWaiter(ch) }); err != nil {
		return err
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return tts.ErrCanceled
	}
}

// Close cancels the active session and stops the coordinator. It waits for
// all workers to return.
func (p *Pipeline) Close() error {
	if err := p.do(func() { p.c.cancel("close") }); err != nil {
		return err
	}
	p.closeOnce.Do(func() { close(p.quit) })
	<-p.done
	p.c.drain()
	return nil
}
