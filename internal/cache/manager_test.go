package cache_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/dgnsrekt/readalong/internal/cache"
	"github.com/dgnsrekt/readalong/tts"
)

func sampleResult(paragraph, words int) *tts.AlignmentResult {
	r := &tts.AlignmentResult{ParagraphIndex: paragraph, WordTimings: []tts.WordTiming{}}
	for i := 0; i < words; i++ {
		r.WordTimings = append(r.WordTimings, tts.WordTiming{
			WordIndex:     i,
			StartTime:     r.TotalDuration,
			Duration:      0.25,
			Text:          fmt.Sprintf("word%d", i),
			RangeLocation: i * 6,
			RangeLength:   5,
		})
		r.TotalDuration += 0.25
	}
	return r
}

func openStore(t *testing.T, dir string, opts ...func(*cache.Options)) *cache.Store {
	t.Helper()
	o := cache.Options{Dir: dir, CompressionLevel: 3, MemoryEntries: 8}
	for _, opt := range opts {
		opt(&o)
	}
	s, err := cache.New(o)
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func recordFiles(t *testing.T, dir string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*", "*.rec"))
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	return files
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		words int
	}{
		{"empty", 0},
		{"small plain record", 3},
		{"large compressed record", 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			want := sampleResult(2, tt.words)

			s := openStore(t, dir)
			if err := s.Save(want, "book.md", 2, 1.0); err != nil {
				t.Fatalf("Failed to save: %v", err)
			}

			// A fresh store on the same directory reads from disk.
			fresh := openStore(t, dir)
			got, err := fresh.Load("book.md", 2, 1.0)
			if err != nil {
				t.Fatalf("Failed to load: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Expected %+v, got %+v", want, got)
			}
		})
	}
}

func TestLargeRecordsAreCompressed(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)
	if err := s.Save(sampleResult(0, 400), "doc", 0, 1.0); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	files := recordFiles(t, dir)
	if len(files) != 1 {
		t.Fatalf("Expected 1 record file, got %d", len(files))
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("Failed to read record: %v", err)
	}
	if len(data) < 4 || data[0] != 0x28 || data[1] != 0xb5 {
		t.Errorf("Expected a zstd frame, got %q", data[:min(len(data), 8)])
	}
}

func TestLoadMissing(t *testing.T) {
	s := openStore(t, t.TempDir())
	s.Save(sampleResult(0, 2), "doc", 0, 1.0)

	tests := []struct {
		name      string
		doc       string
		paragraph int
		speed     float64
	}{
		{"unknown document", "other", 0, 1.0},
		{"unknown paragraph", "doc", 1, 1.0},
		{"other speed", "doc", 0, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Load(tt.doc, tt.paragraph, tt.speed)
			if err != nil {
				t.Fatalf("Expected no error for a missing record, got %v", err)
			}
			if got != nil {
				t.Errorf("Expected nil, got %+v", got)
			}
		})
	}
}

func TestSpeedsShareKeyAtTwoDecimals(t *testing.T) {
	tests := []struct {
		name        string
		saved, load float64
	}{
		{"half hundredth", 1.005, 1.0},
		{"just below", 1.249, 1.25},
		{"exact", 1.5, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			want := sampleResult(0, 2)
			if err := openStore(t, dir).Save(want, "doc", 0, tt.saved); err != nil {
				t.Fatalf("Failed to save: %v", err)
			}

			got, err := openStore(t, dir).Load("doc", 0, tt.load)
			if err != nil {
				t.Fatalf("Expected speed %v to read the record saved at %v, got %v", tt.load, tt.saved, err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Expected %+v, got %+v", want, got)
			}
		})
	}
}

func TestLoadCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("not a record")},
		{"truncated json", []byte(`{"version":1,"document_id":"doc","paragraph":0,`)},
		{"broken zstd frame", []byte{0x28, 0xb5, 0x2f, 0xfd, 0x00, 0x01}},
		{"wrong version", []byte(`{"version":99,"document_id":"doc","paragraph":0,"speed":1,"result":{"word_timings":[]}}`)},
		{"missing result", []byte(`{"version":1,"document_id":"doc","paragraph":0,"speed":1}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s := openStore(t, dir)
			if err := s.Save(sampleResult(0, 2), "doc", 0, 1.0); err != nil {
				t.Fatalf("Failed to save: %v", err)
			}
			files := recordFiles(t, dir)
			if err := os.WriteFile(files[0], tt.data, 0o644); err != nil {
				t.Fatalf("Failed to corrupt record: %v", err)
			}

			got, err := openStore(t, dir).Load("doc", 0, 1.0)
			if !errors.Is(err, tts.ErrCacheRead) {
				t.Fatalf("Expected cache read error, got %v", err)
			}
			var readErr *cache.ReadError
			if !errors.As(err, &readErr) || readErr.Path != files[0] {
				t.Errorf("Expected ReadError for %s, got %#v", files[0], err)
			}
			if got != nil {
				t.Errorf("Expected no result with the error, got %+v", got)
			}
		})
	}
}

func TestOverwriteIsSeenByOtherStore(t *testing.T) {
	dir := t.TempDir()
	a := openStore(t, dir)
	b := openStore(t, dir)

	if err := a.Save(sampleResult(0, 2), "doc", 0, 1.0); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if got, _ := b.Load("doc", 0, 1.0); got == nil || len(got.WordTimings) != 2 {
		t.Fatalf("Expected 2 words, got %+v", got)
	}

	if err := a.Save(sampleResult(0, 5), "doc", 0, 1.0); err != nil {
		t.Fatalf("Failed to overwrite: %v", err)
	}
	got, err := b.Load("doc", 0, 1.0)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if len(got.WordTimings) != 5 {
		t.Errorf("Expected the rewritten record with 5 words, got %d", len(got.WordTimings))
	}
}

func TestConcurrentSaveLoad(t *testing.T) {
	dir := t.TempDir()
	stores := []*cache.Store{openStore(t, dir), openStore(t, dir), openStore(t, dir)}

	var wg sync.WaitGroup
	errs := make(chan error, 300)
	for i, s := range stores {
		for j := 0; j < 20; j++ {
			wg.Add(1)
			go func(s *cache.Store, words int) {
				defer wg.Done()
				if err := s.Save(sampleResult(0, words), "shared", 0, 1.0); err != nil {
					errs <- err
				}
				if err := s.Save(sampleResult(1, words), fmt.Sprintf("doc-%d", words), 1, 1.0); err != nil {
					errs <- err
				}
				if _, err := s.Load("shared", 0, 1.0); err != nil {
					errs <- err
				}
			}(s, i*20+j+1)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Unexpected error: %v", err)
	}

	got, err := openStore(t, dir).Load("shared", 0, 1.0)
	if err != nil || got == nil {
		t.Fatalf("Expected a complete record after racing writes, got %v %v", got, err)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Expected a valid record: %v", err)
	}
	if tmp, _ := filepath.Glob(filepath.Join(dir, "*", ".tmp-*")); len(tmp) != 0 {
		t.Errorf("Expected no temporary files left, got %v", tmp)
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)
	for p := 0; p < 3; p++ {
		s.Save(sampleResult(p, 2), "a", p, 1.0)
		s.Save(sampleResult(p, 2), "b", p, 1.0)
	}

	if err := s.Clear("a"); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	if got, _ := s.Load("a", 1, 1.0); got != nil {
		t.Errorf("Expected cleared document to be gone")
	}
	if got, _ := s.Load("b", 1, 1.0); got == nil {
		t.Errorf("Expected other documents to remain")
	}

	if err := s.ClearAll(); err != nil {
		t.Fatalf("Failed to clear all: %v", err)
	}
	if got, _ := s.Load("b", 1, 1.0); got != nil {
		t.Errorf("Expected every record to be gone")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Expected the cache root to remain: %v", err)
	}
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)
	s.Save(sampleResult(0, 2), "a", 0, 1.0)
	s.Save(sampleResult(1, 2), "a", 1, 1.0)
	s.Save(sampleResult(0, 2), "b", 0, 2.0)

	s.Load("a", 0, 1.0) // Save filled the memory layer
	s.Load("a", 9, 1.0)

	st, err := s.Stats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if st.Documents != 2 || st.Records != 3 {
		t.Errorf("Expected 2 documents and 3 records, got %d and %d", st.Documents, st.Records)
	}
	if st.Bytes <= 0 {
		t.Errorf("Expected bytes on disk, got %d", st.Bytes)
	}
	if st.MemoryHits != 1 || st.Misses != 1 || st.Writes != 3 {
		t.Errorf("Expected 1 memory hit, 1 miss and 3 writes, got %+v", st)
	}
	if rate := st.HitRate(); rate != 0.5 {
		t.Errorf("Expected hit rate 0.5, got %.2f", rate)
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	failed   int
}

func (o *recordingObserver) CacheLookup(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) CacheWrite(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failed++
	}
}

func TestObserver(t *testing.T) {
	dir := t.TempDir()
	obs := &recordingObserver{}
	s := openStore(t, dir, func(o *cache.Options) {
		o.Observer = obs
		o.MemoryEntries = 0
	})

	s.Load("doc", 0, 1.0)
	s.Save(sampleResult(0, 1), "doc", 0, 1.0)
	s.Load("doc", 0, 1.0)
	if err := s.Save(nil, "doc", 1, 1.0); !errors.Is(err, tts.ErrCacheWrite) {
		t.Errorf("Expected write error for a nil result, got %v", err)
	}

	want := []string{cache.OutcomeMiss, cache.OutcomeDiskHit}
	if !reflect.DeepEqual(obs.outcomes, want) {
		t.Errorf("Expected outcomes %v, got %v", want, obs.outcomes)
	}
	if obs.failed != 1 {
		t.Errorf("Expected 1 failed write, got %d", obs.failed)
	}
}

func TestNewRequiresDir(t *testing.T) {
	if _, err := cache.New(cache.Options{}); !errors.Is(err, tts.ErrInvalidConfig) {
		t.Errorf("Expected invalid config, got %v", err)
	}
}
