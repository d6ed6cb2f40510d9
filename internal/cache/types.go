package cache

import (
	"fmt"
	"time"

	"github.com/dgnsrekt/readalong/tts"
)

// recordVersion is the envelope version written by Save.
const recordVersion = 1

// Lookup outcomes reported to an Observer.
const (
	OutcomeMemoryHit = "memory_hit"
	OutcomeDiskHit   = "disk_hit"
	OutcomeMiss      = "miss"
	OutcomeCorrupt   = "corrupt"
)

// ReadError is returned by Load when a record exists but cannot be used.
// It matches tts.ErrCacheRead with errors.Is.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%v: %s: %v", tts.ErrCacheRead, e.Path, e.Err)
}

func (e *ReadError) Unwrap() []error {
	return []error{tts.ErrCacheRead, e.Err}
}

// Observer receives cache events, typically a metrics collector.
type Observer interface {
	CacheLookup(outcome string)
	CacheWrite(err error)
}

type nopObserver struct{}

func (nopObserver) CacheLookup(string) {}
func (nopObserver) CacheWrite(error)   {}

// Stats describes cache usage since the store was opened, plus what is on
// disk now.
type Stats struct {
	Dir           string
	MemoryHits    int64
	DiskHits      int64
	Misses        int64
	Corrupt       int64
	Writes        int64
	MemoryEntries int
	Documents     int
	Records       int
	Bytes         int64
}

// HitRate returns the share of lookups answered from memory or disk.
func (s Stats) HitRate() float64 {
	total := s.MemoryHits + s.DiskHits + s.Misses + s.Corrupt
	if total == 0 {
		return 0
	}
	return float64(s.MemoryHits+s.DiskHits) / float64(total)
}

// record is the on-disk envelope of one paragraph alignment.
type record struct {
	Version    int                  `json:"version"`
	DocumentID string               `json:"document_id"`
	Paragraph  int                  `json:"paragraph"`
	Speed      float64              `json:"speed"`
	SavedAt    time.Time            `json:"saved_at"`
	Result     *tts.AlignmentResult `json:"result"`
}
