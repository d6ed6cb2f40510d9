package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
	"github.com/mitchellh/go-homedir"
)

// Options configures a Store.
type Options struct {
	// Dir is the cache root. A leading ~ is expanded.
	Dir string

	// CompressionLevel is the zstd level of new records; 0 stores plain
	// JSON.
	CompressionLevel int

	// MemoryEntries bounds the in-memory layer; 0 disables it.
	MemoryEntries int

	Observer Observer
	Logger   *log.Logger
}

// Store is a disk-backed alignment cache. It is safe for concurrent use,
// also by several stores on the same directory.
type Store struct {
	dir      string
	codec    *codec
	memory   *memoryCache
	observer Observer
	logger   *log.Logger

	memoryHits atomic.Int64
	diskHits   atomic.Int64
	misses     atomic.Int64
	corrupt    atomic.Int64
	writes     atomic.Int64
}

// New opens the cache at opts.Dir, creating the directory if needed.
func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: cache directory not set", tts.ErrInvalidConfig)
	}
	dir, err := homedir.Expand(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("expanding cache directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	c, err := newCodec(opts.CompressionLevel)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	s := &Store{
		dir:      dir,
		codec:    c,
		observer: observer,
		logger:   logger.WithPrefix("cache"),
	}
	if opts.MemoryEntries > 0 {
		s.memory = newMemoryCache(opts.MemoryEntries)
	}
	return s, nil
}

// Dir returns the cache root.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(documentID string, paragraph int, speed float64) string {
	return filepath.Join(s.dir, documentKey(documentID), recordName(paragraph, speed))
}

// Load returns the alignment saved for the key. A missing record gives nil
// and no error. A record that cannot be read or decoded gives a *ReadError.
func (s *Store) Load(documentID string, paragraph int, speed float64) (*tts.AlignmentResult, error) {
	path := s.path(documentID, paragraph, speed)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.memory.delete(path)
		s.misses.Add(1)
		s.observer.CacheLookup(OutcomeMiss)
		return nil, nil
	}
	if err != nil {
		return nil, s.readError(path, err)
	}
	st := stamp{modTime: info.ModTime(), size: info.Size()}
	if result, ok := s.memory.get(path, st); ok {
		s.memoryHits.Add(1)
		s.observer.CacheLookup(OutcomeMemoryHit)
		return result, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		// Cleared between stat and read.
		s.misses.Add(1)
		s.observer.CacheLookup(OutcomeMiss)
		return nil, nil
	}
	if err != nil {
		return nil, s.readError(path, err)
	}
	rec, err := s.codec.decode(data)
	if err != nil {
		return nil, s.readError(path, err)
	}
	if err := check(rec, documentID, paragraph, speed); err != nil {
		return nil, s.readError(path, err)
	}

	// The stamp is of the file as it was before reading. If it changed in
	// between, the next load reads it again.
	s.memory.put(path, rec.Result, st)
	s.diskHits.Add(1)
	s.observer.CacheLookup(OutcomeDiskHit)
	s.logger.Debug("record loaded", "document", documentID, "paragraph", paragraph, "speed", speed,
		"words", len(rec.Result.WordTimings))
	return rec.Result, nil
}

func check(rec *record, documentID string, paragraph int, speed float64) error {
	switch {
	case rec.Version != recordVersion:
		return fmt.Errorf("unsupported record version %d", rec.Version)
	case rec.Result == nil:
		return errors.New("record has no result")
	case rec.DocumentID != documentID || rec.Paragraph != paragraph:
		return fmt.Errorf("record is for %q paragraph %d", rec.DocumentID, rec.Paragraph)
	case speedKey(rec.Speed) != speedKey(speed):
		return fmt.Errorf("record is for speed %s", speedKey(rec.Speed))
	}
	return rec.Result.Validate()
}

func (s *Store) readError(path string, err error) error {
	s.memory.delete(path)
	s.corrupt.Add(1)
	s.observer.CacheLookup(OutcomeCorrupt)
	s.logger.Warn("unreadable cache record", "path", path, "err", err)
	return &ReadError{Path: path, Err: err}
}

// Save writes result under the key, replacing any previous record. The last
// write wins when several writers race on the same key.
func (s *Store) Save(result *tts.AlignmentResult, documentID string, paragraph int, speed float64) error {
	err := s.save(result, documentID, paragraph, speed)
	s.observer.CacheWrite(err)
	if err != nil {
		return fmt.Errorf("%w: %w", tts.ErrCacheWrite, err)
	}
	s.writes.Add(1)
	return nil
}

func (s *Store) save(result *tts.AlignmentResult, documentID string, paragraph int, speed float64) error {
	if result == nil {
		return errors.New("nil result")
	}
	data, err := s.codec.encode(&record{
		Version:    recordVersion,
		DocumentID: documentID,
		Paragraph:  paragraph,
		Speed:      speed,
		SavedAt:    time.Now().UTC(),
		Result:     result,
	})
	if err != nil {
		return err
	}

	path := s.path(documentID, paragraph, speed)
	if err := writeAtomic(filepath.Dir(path), filepath.Base(path), data); err != nil {
		s.memory.delete(path)
		return err
	}
	if info, err := os.Stat(path); err == nil {
		s.memory.put(path, result, stamp{modTime: info.ModTime(), size: info.Size()})
	}
	s.logger.Debug("record saved", "document", documentID, "paragraph", paragraph, "speed", speed, "bytes", len(data))
	return nil
}

// Clear removes every record of a document.
func (s *Store) Clear(documentID string) error {
	dir := filepath.Join(s.dir, documentKey(documentID))
	s.memory.deletePrefix(dir + string(filepath.Separator))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing %s: %w", documentID, err)
	}
	s.logger.Debug("document cleared", "document", documentID)
	return nil
}

// ClearAll removes every record. The cache root itself is kept.
func (s *Store) ClearAll() error {
	s.memory.clear()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	s.logger.Debug("cache cleared", "dir", s.dir)
	return nil
}

// Stats returns lookup counters and a census of the records on disk.
func (s *Store) Stats() (Stats, error) {
	st := Stats{
		Dir:           s.dir,
		MemoryHits:    s.memoryHits.Load(),
		DiskHits:      s.diskHits.Load(),
		Misses:        s.misses.Load(),
		Corrupt:       s.corrupt.Load(),
		Writes:        s.writes.Load(),
		MemoryEntries: s.memory.len(),
	}

	docs, err := os.ReadDir(s.dir)
	if err != nil {
		return st, fmt.Errorf("reading cache directory: %w", err)
	}
	for _, doc := range docs {
		if !doc.IsDir() {
			continue
		}
		records, err := os.ReadDir(filepath.Join(s.dir, doc.Name()))
		if err != nil {
			continue
		}
		counted := false
		for _, r := range records {
			if r.IsDir() || !isRecord(r.Name()) {
				continue
			}
			info, err := r.Info()
			if err != nil {
				continue
			}
			st.Records++
			st.Bytes += info.Size()
			counted = true
		}
		if counted {
			st.Documents++
		}
	}
	return st, nil
}

// Close releases the codec. The store must not be used afterwards.
func (s *Store) Close() error {
	s.codec.close()
	return nil
}
