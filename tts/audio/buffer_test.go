package audio_test

import (
	"testing"

	"github.com/dgnsrekt/readalong/tts/audio"
)

func chunk(p, s, n int) audio.Chunk {
	return audio.Chunk{Key: audio.Key{Paragraph: p, Sentence: s}, Data: make([]byte, n)}
}

func TestKeyOrder(t *testing.T) {
	tests := []struct {
		a, b audio.Key
		want bool
	}{
		{audio.Key{0, 0}, audio.Key{0, 1}, true},
		{audio.Key{0, 5}, audio.Key{1, 0}, true},
		{audio.Key{1, 0}, audio.Key{0, 5}, false},
		{audio.Key{2, 2}, audio.Key{2, 2}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Less(tt.b); got != tt.want {
			t.Errorf("%v < %v: expected %v, got %v", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestBufferPushPop(t *testing.T) {
	buf := audio.NewBuffer()

	// Sentence 1 finishes before sentence 0 starts.
	buf.Push(chunk(0, 1, 100))
	buf.Push(chunk(0, 0, 10))
	buf.Push(chunk(0, 0, 20))

	if buf.Bytes() != 130 {
		t.Errorf("Expected 130 bytes, got %d", buf.Bytes())
	}
	if buf.Sentences() != 2 {
		t.Errorf("Expected 2 sentences, got %d", buf.Sentences())
	}
	keys := buf.Keys()
	if keys[0] != (audio.Key{0, 0}) || keys[1] != (audio.Key{0, 1}) {
		t.Errorf("Expected keys in document order, got %v", keys)
	}

	first, ok := buf.Pop(audio.Key{0, 0})
	if !ok || len(first.Data) != 10 {
		t.Fatalf("Expected first chunk of sentence 0, got %v %d", ok, len(first.Data))
	}
	second, _ := buf.Pop(audio.Key{0, 0})
	if second.Seq <= first.Seq {
		t.Errorf("Expected increasing sequence numbers, got %d then %d", first.Seq, second.Seq)
	}
	if _, ok := buf.Pop(audio.Key{0, 0}); ok {
		t.Error("Expected sentence 0 to be drained")
	}
	if buf.Has(audio.Key{0, 0}) {
		t.Error("Expected drained sentence to be removed")
	}
	if buf.Bytes() != 100 {
		t.Errorf("Expected 100 bytes left, got %d", buf.Bytes())
	}
}

func TestBufferDrop(t *testing.T) {
	buf := audio.NewBuffer()
	buf.Push(chunk(0, 0, 10))
	buf.Push(chunk(0, 0, 10))
	buf.Push(chunk(1, 0, 50))
	buf.Push(chunk(3, 0, 70))

	if n := buf.Drop(audio.Key{0, 0}); n != 20 {
		t.Errorf("Expected 20 bytes released, got %d", n)
	}
	if n := buf.Drop(audio.Key{9, 9}); n != 0 {
		t.Errorf("Expected nothing released for unknown key, got %d", n)
	}

	n := buf.DropWhere(func(k audio.Key) bool { return k.Paragraph < 2 })
	if n != 50 {
		t.Errorf("Expected 50 bytes released, got %d", n)
	}
	if buf.Bytes() != 70 || buf.Sentences() != 1 {
		t.Errorf("Expected one sentence of 70 bytes, got %d sentences %d bytes", buf.Sentences(), buf.Bytes())
	}

	buf.Clear()
	if buf.Bytes() != 0 || buf.Sentences() != 0 {
		t.Errorf("Expected empty buffer after Clear, got %d sentences %d bytes", buf.Sentences(), buf.Bytes())
	}
	if buf.Stats().TotalDropped != 4 {
		t.Errorf("Expected 4 dropped chunks, got %d", buf.Stats().TotalDropped)
	}
}

func TestBufferStats(t *testing.T) {
	buf := audio.NewBuffer()
	buf.Push(chunk(0, 0, 40))
	buf.Push(chunk(0, 1, 60))
	buf.Pop(audio.Key{0, 0})
	buf.Push(chunk(0, 2, 10))

	stats := buf.Stats()
	if stats.TotalAdded != 3 {
		t.Errorf("Expected 3 added, got %d", stats.TotalAdded)
	}
	if stats.TotalRemoved != 1 {
		t.Errorf("Expected 1 removed, got %d", stats.TotalRemoved)
	}
	if stats.PeakBytes != 100 {
		t.Errorf("Expected peak of 100 bytes, got %d", stats.PeakBytes)
	}
}

func TestBufferFinalChunkWithoutData(t *testing.T) {
	buf := audio.NewBuffer()
	c := chunk(0, 0, 0)
	c.Final = true
	buf.Push(c)

	if !buf.Has(audio.Key{0, 0}) {
		t.Fatal("Expected empty final chunk to be queued")
	}
	got, ok := buf.Pop(audio.Key{0, 0})
	if !ok || !got.Final {
		t.Errorf("Expected final marker, got %+v", got)
	}
}
