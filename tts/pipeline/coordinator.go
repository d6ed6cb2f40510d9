package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/audio"
	"github.com/dgnsrekt/readalong/tts/highlight"
	"github.com/dgnsrekt/readalong/tts/sentence"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type document struct {
	id         string
	paragraphs []string
	sentences  [][]sentence.Sentence
}

// first returns the first sentence at or after paragraph.
func (d *document) first(paragraph int) (Key, bool) {
	for p := paragraph; p < len(d.sentences); p++ {
		if len(d.sentences[p]) > 0 {
			return Key{Paragraph: p}, true
		}
	}
	return Key{}, false
}

// next returns the sentence after k, crossing paragraph boundaries.
func (d *document) next(k Key) (Key, bool) {
	if k.Sentence+1 < len(d.sentences[k.Paragraph]) {
		return Key{Paragraph: k.Paragraph, Sentence: k.Sentence + 1}, true
	}
	return d.first(k.Paragraph + 1)
}

func (d *document) sentence(k Key) sentence.Sentence {
	return d.sentences[k.Paragraph][k.Sentence]
}

// job is a sentence being synthesized. A canceled job stays in processing
// until its worker returns or playback leaves it behind.
type job struct {
	key      Key
	cancel   context.CancelFunc
	canceled bool
}

type readyInfo struct {
	alignment *tts.AlignmentResult // nil when alignment failed
}

// parkedChunk waits for room in the byte budget. Its worker is blocked until
// reply is answered.
type parkedChunk struct {
	chunk audio.Chunk
	reply chan bool
}

// session is one continuous reading from a start paragraph. Navigation,
// speed changes and Stop end the session.
type session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	speed  float64

	head    Key // sentence being played or next to play
	next    Key // next sentence to synthesize
	hasNext bool
	playing bool // audio of head has started

	consumerDone chan struct{}
	request      chan audio.Chunk // consumer waiting for a chunk

	starts     map[Key]time.Duration // clock position where a sentence began
	current    Key                   // last sentence that started playing
	schedulers map[Key]*highlight.Scheduler
	assemblies map[int]*assembly
	loads      map[int]*cacheLoad
}

// coordinator holds all mutable pipeline state. Only the pipeline's run
// goroutine calls its methods.
type coordinator struct {
	p      *Pipeline
	doc    *document
	speed  float64
	sess   *session
	paused bool

	buffer     *audio.Buffer
	inflight   int64 // handed to the consumer, not yet played
	processing map[Key]*job
	ready      map[Key]*readyInfo
	skipped    map[Key]bool
	parked     []parkedChunk

	waiters []chan error
	sm      *tts.StateMachine
	last    tts.PipelineState
	retired []*errgroup.Group
	saves   sync.WaitGroup
}

func newCoordinator(p *Pipeline) *coordinator {
	return &coordinator{
		p:          p,
		speed:      p.cfg.Speed,
		buffer:     audio.NewBuffer(),
		processing: make(map[Key]*job),
		ready:      make(map[Key]*readyInfo),
		skipped:    make(map[Key]bool),
		sm:         tts.NewStateMachine(),
		last:       tts.PipelineState{Paragraph: -1},
	}
}

func (c *coordinator) used() int64 {
	return c.buffer.Bytes() + c.inflight
}

// active counts jobs that were not canceled.
func (c *coordinator) active() int {
	n := 0
	for _, j := range c.processing {
		if !j.canceled {
			n++
		}
	}
	return n
}

func (c *coordinator) load(doc *document) {
	c.cancel("load")
	c.doc = doc
	c.p.logger.Debug("document loaded", "document", doc.id, "paragraphs", len(doc.paragraphs))
}

func (c *coordinator) play(paragraph int) error {
	if c.doc == nil {
		return tts.ErrNoDocument
	}
	if paragraph < 0 || paragraph >= len(c.doc.paragraphs) {
		return fmt.Errorf("%w: %d of %d", tts.ErrInvalidPosition, paragraph, len(c.doc.paragraphs))
	}
	c.cancel("navigate")
	c.start(paragraph)
	return nil
}

func (c *coordinator) start(paragraph int) {
	ctx, cancel := context.WithCancel(context.Background())
	group := &errgroup.Group{}

	s := &session{
		id:         uuid.NewString(),
		ctx:        ctx,
		cancel:     cancel,
		group:      group,
		speed:      c.speed,
		starts:     make(map[Key]time.Duration),
		current:    Key{Paragraph: -1},
		schedulers: make(map[Key]*highlight.Scheduler),
		assemblies: make(map[int]*assembly),
		loads:      make(map[int]*cacheLoad),
	}
	c.sess = s

	head, ok := c.doc.first(paragraph)
	if !ok {
		c.p.logger.Debug("nothing to read", "paragraph", paragraph)
		c.finish()
		return
	}
	s.head, s.next, s.hasNext = head, head, true

	s.consumerDone = make(chan struct{})
	go c.p.consume(ctx, s)

	c.p.logger.Info("session started",
		"session", s.id,
		"document", c.doc.id,
		"paragraph", paragraph,
		"speed", s.speed)
	c.fill()
	c.publish()
}

// cancel ends the active session as canceled.
func (c *coordinator) cancel(reason string) {
	if c.sess == nil {
		return
	}
	c.p.logger.Debug("session canceled", "session", c.sess.id, "reason", reason)
	c.p.metrics.SessionCanceled()
	c.teardown(tts.ErrCanceled)
}

// finish ends the active session after its last sentence.
func (c *coordinator) finish() {
	if c.sess != nil {
		c.p.logger.Info("session finished", "session", c.sess.id)
	}
	c.teardown(nil)
}

// teardown releases everything the session holds and resolves waiters with
// result. When it returns, no chunk or highlight of the session is
// delivered anymore.
func (c *coordinator) teardown(result error) {
	s := c.sess
	if s == nil {
		return
	}
	c.sess = nil
	s.cancel()

	for k, sch := range s.schedulers {
		if result == nil {
			sch.Flush()
		} else {
			sch.Stop()
		}
		delete(s.schedulers, k)
	}
	if s.consumerDone != nil {
		<-s.consumerDone
	}

	c.buffer.Clear()
	c.inflight = 0
	clear(c.processing)
	clear(c.ready)
	clear(c.skipped)
	c.parked = nil

	if c.paused {
		c.paused = false
		if pauser, ok := c.p.sink.(tts.Pauser); ok {
			if err := pauser.Resume(); err != nil {
				c.p.logger.Debug("resume on teardown", "err", err)
			}
		}
	}
	if f, ok := c.p.sink.(interface{ Flush() }); ok && result != nil {
		f.Flush()
	}
	c.retired = append(c.retired, s.group)

	for _, w := range c.waiters {
		w <- result
	}
	c.waiters = nil
	c.publish()
}

func (c *coordinator) addWaiter(ch chan error) {
	if c.sess == nil {
		ch <- nil
		return
	}
	c.waiters = append(c.waiters, ch)
}

// fill starts synthesis of upcoming sentences while the worker, lookahead
// and byte budgets allow.
func (c *coordinator) fill() {
	s := c.sess
	if s == nil {
		return
	}
	b := c.p.budgets
	for s.hasNext {
		active := c.active()
		if active >= b.Workers {
			break
		}
		// Sentences stay counted until their audio has been played.
		if active+len(c.ready) >= b.Lookahead {
			break
		}
		if c.used() >= b.MaxBufferedBytes {
			break
		}
		c.startJob(s, s.next)
		s.next, s.hasNext = c.doc.next(s.next)
	}
	c.p.metrics.SetProcessing(len(c.processing))
}

// startJob runs a synthesis worker for k. The worker count is bounded by
// fill; canceled workers may still be winding down.
func (c *coordinator) startJob(s *session, k Key) {
	ctx, cancel := context.WithCancel(s.ctx)
	j := &job{key: k, cancel: cancel}
	sent := c.doc.sentence(k)
	load := c.cacheLoad(s, k.Paragraph)
	docID := c.doc.id

	c.processing[k] = j
	s.group.Go(func() error {
		c.p.work(ctx, s, j, sent, load, docID)
		return nil
	})
	c.p.logger.Debug("synthesis started", "paragraph", k.Paragraph, "sentence", k.Sentence)
}

func (c *coordinator) cacheLoad(s *session, paragraph int) *cacheLoad {
	if c.p.cache == nil {
		return nil
	}
	l, ok := s.loads[paragraph]
	if !ok {
		l = &cacheLoad{}
		s.loads[paragraph] = l
	}
	return l
}

// admit decides whether n more bytes of sentence k fit the budget. The head
// sentence is always admitted so that playback can progress, and so is any
// chunk when nothing is buffered.
func (c *coordinator) admit(k Key, n int64) bool {
	used := c.used()
	return k == c.sess.head || used+n <= c.p.budgets.MaxBufferedBytes || used == 0
}

func (c *coordinator) onChunk(s *session, j *job, ch audio.Chunk, reply chan bool) {
	if c.sess != s || c.processing[ch.Key] != j || j.canceled {
		reply <- false
		return
	}
	if !c.admit(ch.Key, int64(len(ch.Data))) {
		c.p.logger.Debug("buffer full, holding chunk",
			"paragraph", ch.Key.Paragraph,
			"sentence", ch.Key.Sentence,
			"buffered", humanize.IBytes(uint64(c.used())))
		c.parked = append(c.parked, parkedChunk{chunk: ch, reply: reply})
		return
	}
	c.buffer.Push(ch)
	reply <- true
	c.serve()
	c.publish()
}

// admitParked admits held chunks in document order as budget frees up.
func (c *coordinator) admitParked() {
	if len(c.parked) == 0 || c.sess == nil {
		return
	}
	sort.SliceStable(c.parked, func(i, j int) bool {
		return c.parked[i].chunk.Key.Less(c.parked[j].chunk.Key)
	})
	kept := c.parked[:0]
	for _, pc := range c.parked {
		if c.admit(pc.chunk.Key, int64(len(pc.chunk.Data))) {
			c.buffer.Push(pc.chunk)
			pc.reply <- true
			continue
		}
		kept = append(kept, pc)
	}
	c.parked = kept
}

func (c *coordinator) dropParked(k Key) {
	kept := c.parked[:0]
	for _, pc := range c.parked {
		if pc.chunk.Key == k {
			pc.reply <- false
			continue
		}
		kept = append(kept, pc)
	}
	c.parked = kept
}

func (c *coordinator) onDone(s *session, j *job, res workResult) {
	k := j.key
	if c.sess != s || c.processing[k] != j {
		return
	}
	delete(c.processing, k)
	if j.canceled {
		c.afterChange()
		return
	}

	if res.err != nil {
		c.report(k, tts.StageSynthesis, res.err)
		c.skipped[k] = true
		c.buffer.Drop(k)
		c.dropParked(k)
		c.assembly(s, k.Paragraph).fail()
		if k == s.head {
			c.advance()
		}
		c.afterChange()
		return
	}

	c.p.metrics.ObserveSynthesis(res.elapsed)
	c.p.logger.Debug("sentence synthesized",
		"paragraph", k.Paragraph,
		"sentence", k.Sentence,
		"took", res.elapsed,
		"cached", res.fromCache)

	c.ready[k] = &readyInfo{alignment: res.alignment}
	c.buffer.Push(audio.Chunk{Key: k, Final: true})

	if res.alignErr != nil {
		// Audio still plays; this sentence is not highlighted.
		c.report(k, tts.StageAlignment, res.alignErr)
		c.ready[k].alignment = nil
		c.assembly(s, k.Paragraph).fail()
	} else {
		c.addAlignment(s, k, res.alignment, res.fromCache)
		c.startHighlight(s, k)
	}
	c.afterChange()
}

// retire removes a canceled job once its worker has returned.
func (c *coordinator) retire(s *session, j *job) {
	if c.sess != s || c.processing[j.key] != j {
		return
	}
	delete(c.processing, j.key)
	c.p.logger.Debug("canceled synthesis returned", "paragraph", j.key.Paragraph, "sentence", j.key.Sentence)
	c.afterChange()
}

func (c *coordinator) report(k Key, stage tts.Stage, err error) {
	se := tts.SentenceError{Paragraph: k.Paragraph, Sentence: k.Sentence, Stage: stage, Err: err}
	c.p.logger.Warn("sentence failed", "paragraph", k.Paragraph, "sentence", k.Sentence, "stage", stage, "err", err)
	c.p.metrics.SentenceFailed(stage)
	c.p.listener.OnError(se)
}

// requestChunk registers the consumer's wait for the next chunk.
func (c *coordinator) requestChunk(s *session, reply chan audio.Chunk) {
	if c.sess != s {
		return
	}
	s.request = reply
	c.serve()
	c.publish()
}

// serve hands the next chunk of the head sentence to a waiting consumer.
func (c *coordinator) serve() {
	s := c.sess
	if s == nil || c.paused || s.request == nil {
		return
	}
	ch, ok := c.buffer.Pop(s.head)
	if !ok {
		return
	}
	c.inflight += int64(len(ch.Data))
	s.request <- ch
	s.request = nil
}

func (c *coordinator) onStarted(s *session, k Key, offset time.Duration) {
	if c.sess != s {
		return
	}
	if prev := s.current; prev != k {
		if sch, ok := s.schedulers[prev]; ok {
			sch.Flush()
			delete(s.schedulers, prev)
		}
		delete(s.starts, prev)
	}
	s.current = k
	s.starts[k] = offset
	if k == s.head {
		s.playing = true
	}
	c.startHighlight(s, k)
	c.publish()
}

func (c *coordinator) onPlayed(s *session, k Key, n int64, final bool) {
	if c.sess != s {
		return
	}
	c.inflight -= n
	if c.inflight < 0 {
		c.inflight = 0
	}
	if final && k == s.head {
		delete(c.ready, k)
		c.advance()
	}
	c.afterChange()
}

// startHighlight schedules word highlights of k once both its alignment and
// its playback start are known.
func (c *coordinator) startHighlight(s *session, k Key) {
	if _, ok := s.schedulers[k]; ok {
		return
	}
	info, ok := c.ready[k]
	if !ok || info.alignment == nil {
		return
	}
	offset, ok := s.starts[k]
	if !ok {
		return
	}

	sent := c.doc.sentence(k)
	listener := c.p.listener
	clock := highlight.OffsetClock{Base: c.p.sink, Offset: offset}
	sch := highlight.New(info.alignment, clock, func(wt tts.WordTiming) {
		listener.OnProgress(tts.ProgressEvent{
			ParagraphIndex: k.Paragraph,
			WordRange:      tts.Range{Location: sent.Start + wt.RangeLocation, Length: wt.RangeLength},
			IsPlaying:      clock.IsPlaying(),
		})
	},
		highlight.WithPollInterval(c.p.cfg.Highlight.PollInterval),
		highlight.WithLogger(c.p.logger))
	s.schedulers[k] = sch
	sch.Start()
}

// afterChange re-evaluates budgets and delivery after any state change.
func (c *coordinator) afterChange() {
	if c.sess == nil {
		return
	}
	c.admitParked()
	c.fill()
	c.serve()
	c.publish()
}

// advance moves the head to the next sentence that was not skipped. The
// session finishes when there is none.
func (c *coordinator) advance() {
	s := c.sess
	prev := s.head
	for {
		k, ok := c.doc.next(s.head)
		if !ok {
			c.finish()
			return
		}
		s.head = k
		if !c.skipped[k] {
			break
		}
	}
	s.playing = false
	if s.hasNext && s.next.Less(s.head) {
		s.next = s.head
	}
	if s.head.Paragraph != prev.Paragraph {
		c.p.logger.Debug("paragraph reached", "paragraph", s.head.Paragraph)
		c.evictStale()
	}
}

// evictStale forgets sentences that playback has left at least
// StaleParagraphs paragraphs behind. This drops canceled workers that never
// returned, so they stop showing as processing.
func (c *coordinator) evictStale() {
	s := c.sess
	limit := s.head.Paragraph - c.p.cfg.Pipeline.StaleParagraphs
	stale := func(k Key) bool { return k.Paragraph <= limit }

	for k, j := range c.processing {
		if stale(k) {
			j.cancel()
			delete(c.processing, k)
			c.dropParked(k)
			c.p.logger.Debug("stale synthesis evicted", "paragraph", k.Paragraph, "sentence", k.Sentence)
		}
	}
	for k := range c.ready {
		if stale(k) {
			delete(c.ready, k)
		}
	}
	c.buffer.DropWhere(stale)
}

func (c *coordinator) skip() {
	s := c.sess
	if s == nil {
		return
	}
	k := s.head
	if j, ok := c.processing[k]; ok {
		j.cancel()
		j.canceled = true
	}
	delete(c.ready, k)
	c.buffer.Drop(k)
	c.dropParked(k)
	c.skipped[k] = true
	if sch, ok := s.schedulers[k]; ok {
		sch.Stop()
		delete(s.schedulers, k)
	}
	c.assembly(s, k.Paragraph).fail()
	c.p.logger.Debug("sentence skipped", "paragraph", k.Paragraph, "sentence", k.Sentence)

	c.advance()
	c.afterChange()
}

func (c *coordinator) pause() error {
	if c.sess == nil || c.paused {
		return nil
	}
	c.paused = true
	if pauser, ok := c.p.sink.(tts.Pauser); ok {
		if err := pauser.Pause(); err != nil {
			return fmt.Errorf("pausing audio: %w", err)
		}
	}
	c.publish()
	return nil
}

func (c *coordinator) resume() error {
	if !c.paused {
		return nil
	}
	c.paused = false
	if pauser, ok := c.p.sink.(tts.Pauser); ok {
		if err := pauser.Resume(); err != nil {
			return fmt.Errorf("resuming audio: %w", err)
		}
	}
	c.serve()
	c.publish()
	return nil
}

func (c *coordinator) setSpeed(speed float64) {
	c.speed = speed
	if c.sess == nil {
		return
	}
	paragraph := c.sess.head.Paragraph
	c.cancel("speed change")
	c.start(paragraph)
}

func (c *coordinator) snapshot() Snapshot {
	keys := func(m map[Key]bool) []Key {
		out := make([]Key, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
		return out
	}
	processing := make(map[Key]bool, len(c.processing))
	for k := range c.processing {
		processing[k] = true
	}
	ready := make(map[Key]bool, len(c.ready))
	for k := range c.ready {
		ready[k] = true
	}
	return Snapshot{
		State:             c.state(),
		Processing:        keys(processing),
		Ready:             keys(ready),
		Skipped:           keys(c.skipped),
		BufferedBytes:     c.used(),
		BufferedSentences: c.buffer.Sentences(),
		Speed:             c.speed,
	}
}

func (c *coordinator) phase() tts.Phase {
	s := c.sess
	switch {
	case s == nil:
		return tts.PhaseIdle
	case c.paused:
		return tts.PhasePaused
	case s.playing:
		return tts.PhasePlaying
	case c.buffer.Has(s.head):
		return tts.PhaseBuffered
	default:
		return tts.PhaseSynthesizing
	}
}

func (c *coordinator) state() tts.PipelineState {
	st := tts.PipelineState{
		Phase:         c.phase(),
		Paragraph:     -1,
		BufferedBytes: c.used(),
		Processing:    len(c.processing),
		Ready:         len(c.ready),
		Skipped:       len(c.skipped),
	}
	if s := c.sess; s != nil {
		st.SessionID = s.id
		st.Paragraph = s.head.Paragraph
		st.Sentence = s.head.Sentence
	}
	return st
}

// publish reports the state to the listener when it changed.
func (c *coordinator) publish() {
	st := c.state()
	c.p.metrics.SetBufferedBytes(st.BufferedBytes)
	c.p.metrics.SetProcessing(st.Processing)
	if st == c.last {
		return
	}
	if !c.sm.Transition(st.Phase) {
		// Sessions always begin synthesizing.
		c.sm.Transition(tts.PhaseSynthesizing)
		c.sm.Transition(st.Phase)
	}
	c.last = st
	c.p.listener.OnState(st)
}

// drain waits for workers of ended sessions and pending cache writes. It
// runs after the coordinator goroutine has exited.
func (c *coordinator) drain() {
	for _, g := range c.retired {
		_ = g.Wait()
	}
	c.retired = nil
	c.saves.Wait()
}
