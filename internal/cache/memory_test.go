package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgnsrekt/readalong/tts"
)

func TestMemoryCacheLRUEviction(t *testing.T) {
	c := newMemoryCache(3)
	st := stamp{modTime: time.Unix(100, 0), size: 10}
	for i := 0; i < 3; i++ {
		c.put(fmt.Sprintf("key-%d", i), &tts.AlignmentResult{ParagraphIndex: i}, st)
	}

	// key-0 becomes the most recently used.
	if _, ok := c.get("key-0", st); !ok {
		t.Fatal("Expected key-0 to be cached")
	}
	c.put("key-new", &tts.AlignmentResult{}, st)

	if _, ok := c.get("key-1", st); ok {
		t.Error("Expected the least recently used key to be evicted")
	}
	for _, key := range []string{"key-0", "key-2", "key-new"} {
		if _, ok := c.get(key, st); !ok {
			t.Errorf("Expected %s to remain", key)
		}
	}
	if c.evicted != 1 {
		t.Errorf("Expected 1 eviction, got %d", c.evicted)
	}
}

func TestMemoryCacheStampMismatch(t *testing.T) {
	c := newMemoryCache(2)
	st := stamp{modTime: time.Unix(100, 0), size: 10}
	c.put("key", &tts.AlignmentResult{}, st)

	tests := []struct {
		name  string
		stamp stamp
	}{
		{"rewritten", stamp{modTime: time.Unix(200, 0), size: 10}},
		{"resized", stamp{modTime: time.Unix(100, 0), size: 11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.put("key", &tts.AlignmentResult{}, st)
			if _, ok := c.get("key", tt.stamp); ok {
				t.Error("Expected a changed file to invalidate the entry")
			}
			if c.len() != 0 {
				t.Errorf("Expected the stale entry to be dropped, got %d entries", c.len())
			}
		})
	}
}

func TestMemoryCacheDeletePrefix(t *testing.T) {
	c := newMemoryCache(4)
	st := stamp{}
	c.put(filepath.Join("root", "a", "0@1.00.rec"), &tts.AlignmentResult{}, st)
	c.put(filepath.Join("root", "a", "1@1.00.rec"), &tts.AlignmentResult{}, st)
	c.put(filepath.Join("root", "ab", "0@1.00.rec"), &tts.AlignmentResult{}, st)

	c.deletePrefix(filepath.Join("root", "a") + string(filepath.Separator))
	if c.len() != 1 {
		t.Errorf("Expected only the other document to remain, got %d entries", c.len())
	}
}

func TestNilMemoryCache(t *testing.T) {
	var c *memoryCache
	c.put("key", &tts.AlignmentResult{}, stamp{})
	if _, ok := c.get("key", stamp{}); ok {
		t.Error("Expected a disabled memory layer to miss")
	}
	c.delete("key")
	c.clear()
	if c.len() != 0 {
		t.Errorf("Expected 0 entries, got %d", c.len())
	}
}

func TestWatchEvictsRewrittenRecords(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Options{Dir: dir, MemoryEntries: 4})
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	defer s.Close()

	result := &tts.AlignmentResult{WordTimings: []tts.WordTiming{}}
	if err := s.Save(result, "doc", 0, 1.0); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if s.memory.len() != 1 {
		t.Fatalf("Expected the saved record in memory, got %d entries", s.memory.len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	// Give the watcher time to register.
	time.Sleep(50 * time.Millisecond)

	if err := os.Remove(s.path("doc", 0, 1.0)); err != nil {
		t.Fatalf("Failed to remove record: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.memory.len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected the removed record to leave the memory layer")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
