package pipeline

import (
	"context"
	"time"

	"github.com/dgnsrekt/readalong/tts/audio"
)

// queuer is implemented by sinks that hold written audio before it is heard.
type queuer interface {
	Queued() time.Duration
}

// consume plays the session's audio in document order. It asks the
// coordinator for one chunk at a time, so the coordinator decides what is
// played and nothing is played after the session ends.
func (p *Pipeline) consume(ctx context.Context, s *session) {
	defer close(s.consumerDone)
	q, _ := p.sink.(queuer)

	for {
		reply := make(chan audio.Chunk, 1)
		if !p.send(ctx, func() { p.c.requestChunk(s, reply) }) {
			return
		}
		var ch audio.Chunk
		select {
		case ch = <-reply:
		case <-ctx.Done():
			return
		}

		if ch.First {
			// The sentence is heard once everything written before it has
			// been played.
			offset := p.sink.Elapsed()
			if q != nil {
				offset += q.Queued()
			}
			if !p.send(ctx, func() { p.c.onStarted(s, ch.Key, offset) }) {
				return
			}
		}

		if len(ch.Data) > 0 {
			if err := p.sink.Play(ctx, ch.Data); err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Error("playback failed", "paragraph", ch.Key.Paragraph, "sentence", ch.Key.Sentence, "err", err)
			}
		}

		n := int64(len(ch.Data))
		if !p.send(ctx, func() { p.c.onPlayed(s, ch.Key, n, ch.Final) }) {
			return
		}
	}
}
