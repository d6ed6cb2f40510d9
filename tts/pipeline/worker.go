package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/align"
	"github.com/dgnsrekt/readalong/tts/audio"
	"github.com/dgnsrekt/readalong/tts/sentence"
)

var errStalled = errors.New("synthesis stalled")

type workResult struct {
	alignment *tts.AlignmentResult
	err       error // synthesis failed; the sentence is skipped
	alignErr  error // audio is usable but has no timings
	fromCache bool
	elapsed   time.Duration
}

// cacheLoad reads a paragraph alignment at most once per session. Every
// sentence worker of the paragraph shares it.
type cacheLoad struct {
	once   sync.Once
	result *tts.AlignmentResult
}

func (l *cacheLoad) get(p *Pipeline, docID string, paragraph int, speed float64) *tts.AlignmentResult {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		r, err := p.cache.Load(docID, paragraph, speed)
		if err != nil {
			p.logger.Warn("cache read failed", "paragraph", paragraph, "err", err)
			p.metrics.SentenceFailed(tts.StageCache)
			return
		}
		l.result = r
	})
	return l.result
}

// work synthesizes and aligns one sentence. Audio is offered to the
// coordinator chunk by chunk; the call blocks while the byte budget is
// exhausted. Once ctx is canceled only the worker's exit is reported.
func (p *Pipeline) work(ctx context.Context, s *session, j *job, sent sentence.Sentence, load *cacheLoad, docID string) {
	defer j.cancel()
	k := j.key
	started := time.Now()
	timeout := p.stallTimeout(sent.Text, s.speed)

	sctx, stall := context.WithCancelCause(ctx)
	defer stall(nil)
	watchdog := time.AfterFunc(timeout, func() { stall(errStalled) })
	defer watchdog.Stop()

	var full []byte
	first := true
	deliver := func(pcm []byte) bool {
		if len(pcm) == 0 {
			return true
		}
		data := bytes.Clone(pcm)
		full = append(full, data...)

		// Waiting for budget is not a stall.
		watchdog.Stop()
		ok := p.admitChunk(sctx, s, j, audio.Chunk{Key: k, Data: data, First: first})
		watchdog.Reset(timeout)
		first = false
		return ok
	}

	req := tts.SynthesisRequest{Text: sent.Text, Voice: p.cfg.Voice, Speed: s.speed}
	res, err := p.synth.Synthesize(sctx, req, deliver)
	if err == nil && len(full) == 0 && res != nil {
		// One-shot synthesizer: split the clip into chunks ourselves.
		for off := 0; off < len(res.Audio); off += p.cfg.Pipeline.ChunkSize {
			end := min(off+p.cfg.Pipeline.ChunkSize, len(res.Audio))
			if !deliver(res.Audio[off:end]) {
				err = tts.ErrCanceled
				break
			}
		}
	}
	if ctx.Err() != nil {
		p.send(s.ctx, func() { p.c.retire(s, j) })
		return
	}
	if errors.Is(context.Cause(sctx), errStalled) {
		err = fmt.Errorf("%w: no progress for %v", tts.ErrSynthesisFailed, timeout)
	}
	if err == nil && len(full) == 0 {
		err = fmt.Errorf("%w: no audio", tts.ErrSynthesisFailed)
	}
	if err != nil {
		p.send(s.ctx, func() { p.c.onDone(s, j, workResult{err: err, elapsed: time.Since(started)}) })
		return
	}

	result := workResult{elapsed: time.Since(started)}
	if cached := load.get(p, docID, k.Paragraph, s.speed); cached != nil {
		slice := cached.Slice(tts.Range{Location: sent.Start, Length: sent.End - sent.Start})
		if len(slice.WordTimings) > 0 {
			renumber(slice)
			result.alignment, result.fromCache = slice, true
		}
	}
	if result.alignment == nil {
		result.alignment, result.alignErr = p.strategy.Align(sctx, align.Input{
			ParagraphIndex: k.Paragraph,
			Text:           sent.Text,
			Synthesis:      res,
			Audio:          full,
		})
		if ctx.Err() != nil {
			p.send(s.ctx, func() { p.c.retire(s, j) })
			return
		}
	}
	p.send(s.ctx, func() { p.c.onDone(s, j, result) })
}

// stallTimeout is how long a worker may go without progress. Long sentences
// get at least the time they take to speak.
func (p *Pipeline) stallTimeout(text string, speed float64) time.Duration {
	timeout := p.cfg.Pipeline.SynthesisTimeout
	if speed <= 0 {
		speed = 1
	}
	if spoken := time.Duration(float64(p.parser.EstimateDuration(text)) / speed); spoken > timeout {
		return spoken
	}
	return timeout
}

// renumber makes word indices of a sliced paragraph alignment start at zero.
func renumber(r *tts.AlignmentResult) {
	base := r.WordTimings[0].WordIndex
	for i := range r.WordTimings {
		r.WordTimings[i].WordIndex -= base
	}
}

// admitChunk hands a chunk to the coordinator and waits until it is
// admitted into the buffer. It returns false when the chunk was refused.
func (p *Pipeline) admitChunk(ctx context.Context, s *session, j *job, ch audio.Chunk) bool {
	reply := make(chan bool, 1)
	if !p.send(ctx, func() { p.c.onChunk(s, j, ch, reply) }) {
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	}
}
