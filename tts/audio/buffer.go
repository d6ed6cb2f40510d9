// Package audio holds synthesized PCM between synthesis and playback and
// provides the sinks that play it.
package audio

import (
	"fmt"
	"sort"
)

// Key identifies a sentence in a document.
type Key struct {
	Paragraph int
	Sentence  int
}

// Less orders keys by document position.
func (k Key) Less(o Key) bool {
	if k.Paragraph != o.Paragraph {
		return k.Paragraph < o.Paragraph
	}
	return k.Sentence < o.Sentence
}

func (k Key) String() string {
	return fmt.Sprintf("%d.%d", k.Paragraph, k.Sentence)
}

// Chunk is a piece of one sentence's audio. Seq is the order in which chunks
// were produced across all sentences.
type Chunk struct {
	Key   Key
	Seq   uint64
	Data  []byte
	First bool // first chunk of the sentence
	Final bool // last chunk of the sentence; may carry no data
}

// BufferStats tracks buffer activity.
type BufferStats struct {
	TotalAdded   uint64
	TotalRemoved uint64
	TotalDropped uint64
	PeakBytes    int64
}

// Buffer keeps unplayed chunks grouped by sentence, in production order
// within each sentence, and counts their bytes. It has no locking: a single
// owner goroutine uses it.
type Buffer struct {
	queues map[Key][]Chunk
	keys   []Key // sorted
	bytes  int64
	seq    uint64
	stats  BufferStats
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{queues: make(map[Key][]Chunk)}
}

// Push appends a chunk to its sentence's queue and stamps its sequence
// number.
func (b *Buffer) Push(c Chunk) Chunk {
	b.seq++
	c.Seq = b.seq

	q, ok := b.queues[c.Key]
	if !ok {
		i := sort.Search(len(b.keys), func(i int) bool { return !b.keys[i].Less(c.Key) })
		b.keys = append(b.keys, Key{})
		copy(b.keys[i+1:], b.keys[i:])
		b.keys[i] = c.Key
	}
	b.queues[c.Key] = append(q, c)

	b.bytes += int64(len(c.Data))
	b.stats.TotalAdded++
	if b.bytes > b.stats.PeakBytes {
		b.stats.PeakBytes = b.bytes
	}
	return c
}

// Pop removes and returns the oldest chunk of sentence k.
func (b *Buffer) Pop(k Key) (Chunk, bool) {
	q := b.queues[k]
	if len(q) == 0 {
		return Chunk{}, false
	}
	c := q[0]
	q[0] = Chunk{}
	if len(q) == 1 {
		b.removeKey(k)
	} else {
		b.queues[k] = q[1:]
	}
	b.bytes -= int64(len(c.Data))
	b.stats.TotalRemoved++
	return c, true
}

// Drop discards every chunk of sentence k and returns the bytes released.
func (b *Buffer) Drop(k Key) int64 {
	q, ok := b.queues[k]
	if !ok {
		return 0
	}
	var n int64
	for _, c := range q {
		n += int64(len(c.Data))
	}
	b.removeKey(k)
	b.bytes -= n
	b.stats.TotalDropped += uint64(len(q))
	return n
}

// DropWhere discards the chunks of every sentence for which drop returns
// true and returns the bytes released.
func (b *Buffer) DropWhere(drop func(Key) bool) int64 {
	var n int64
	for _, k := range append([]Key(nil), b.keys...) {
		if drop(k) {
			n += b.Drop(k)
		}
	}
	return n
}

// Clear discards everything.
func (b *Buffer) Clear() {
	for _, q := range b.queues {
		b.stats.TotalDropped += uint64(len(q))
	}
	b.queues = make(map[Key][]Chunk)
	b.keys = b.keys[:0]
	b.bytes = 0
}

// Has reports whether sentence k has buffered chunks.
func (b *Buffer) Has(k Key) bool {
	return len(b.queues[k]) > 0
}

// Bytes returns the number of buffered audio bytes.
func (b *Buffer) Bytes() int64 { return b.bytes }

// Sentences returns how many sentences have buffered chunks.
func (b *Buffer) Sentences() int { return len(b.keys) }

// Keys returns the sentences with buffered chunks in document order.
func (b *Buffer) Keys() []Key {
	return append([]Key(nil), b.keys...)
}

// Stats returns buffer statistics.
func (b *Buffer) Stats() BufferStats { return b.stats }

func (b *Buffer) removeKey(k Key) {
	delete(b.queues, k)
	i := sort.Search(len(b.keys), func(i int) bool { return !b.keys[i].Less(k) })
	if i < len(b.keys) && b.keys[i] == k {
		b.keys = append(b.keys[:i], b.keys[i+1:]...)
	}
}
