package pipeline

import (
	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/normalize"
	"github.com/dgnsrekt/readalong/tts/sentence"
)

// assembly joins the sentence alignments of one paragraph, in sentence
// order, into the paragraph alignment that is published and cached.
type assembly struct {
	paragraph int
	sentences []sentence.Sentence

	pending map[int]*tts.AlignmentResult
	next    int
	words   int
	result  *tts.AlignmentResult
	failed  bool
	cached  int
	done    bool
}

func newAssembly(paragraph int, sentences []sentence.Sentence) *assembly {
	return &assembly{
		paragraph: paragraph,
		sentences: sentences,
		pending:   make(map[int]*tts.AlignmentResult),
		result:    &tts.AlignmentResult{ParagraphIndex: paragraph},
	}
}

// add records the alignment of sentence i. It returns true once every
// sentence of the paragraph has been added.
func (a *assembly) add(i int, r *tts.AlignmentResult, fromCache bool) bool {
	if a.failed || a.done {
		return false
	}
	if fromCache {
		a.cached++
	}
	a.pending[i] = r
	for {
		r, ok := a.pending[a.next]
		if !ok {
			break
		}
		delete(a.pending, a.next)
		sent := a.sentences[a.next]
		a.result.Append(r, sent.Start, a.words)
		a.words += len(normalize.SplitWords(sent.Text))
		a.next++
	}
	if a.next == len(a.sentences) {
		a.done = true
	}
	return a.done
}

// fail gives up on the paragraph alignment. A failed or skipped sentence
// leaves a gap that must not be cached.
func (a *assembly) fail() {
	a.failed = true
	a.pending = nil
}

// fromCache reports whether every sentence came from the cache.
func (a *assembly) fromCache() bool {
	return a.cached == len(a.sentences)
}

func (c *coordinator) assembly(s *session, paragraph int) *assembly {
	a, ok := s.assemblies[paragraph]
	if !ok {
		a = newAssembly(paragraph, c.doc.sentences[paragraph])
		s.assemblies[paragraph] = a
	}
	return a
}

// addAlignment adds a sentence alignment to its paragraph. A complete
// paragraph is published and, unless it was read from the cache, saved.
func (c *coordinator) addAlignment(s *session, k Key, r *tts.AlignmentResult, fromCache bool) {
	a := c.assembly(s, k.Paragraph)
	if !a.add(k.Sentence, r, fromCache) {
		return
	}
	result := a.result
	c.p.logger.Debug("paragraph aligned",
		"paragraph", k.Paragraph,
		"words", len(result.WordTimings),
		"duration", result.TotalDuration)
	c.p.listener.OnAlignment(result)

	if c.p.cache == nil || a.fromCache() {
		return
	}
	if err := result.Validate(); err != nil {
		c.p.logger.Warn("not caching invalid alignment", "paragraph", k.Paragraph, "err", err)
		return
	}
	docID, speed := c.doc.id, s.speed
	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		if err := c.p.cache.Save(result, docID, k.Paragraph, speed); err != nil {
			c.p.logger.Warn("cache write failed", "paragraph", k.Paragraph, "err", err)
			c.p.metrics.SentenceFailed(tts.StageCache)
		}
	}()
}
