package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch evicts in-memory records as soon as another process rewrites or
// removes their files. It blocks until ctx is done. Loads stay correct
// without it; Watch only drops stale entries early.
func (s *Store) Watch(ctx context.Context) error {
	if s.memory == nil {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating cache watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			s.watchDir(watcher, filepath.Join(s.dir, e.Name()))
		}
	}
	s.logger.Debug("watching cache", "dir", s.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handle(watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Debug("fsnotify error", "dir", s.dir, "error", err)
		}
	}
}

func (s *Store) watchDir(watcher *fsnotify.Watcher, dir string) {
	if err := watcher.Add(dir); err != nil {
		s.logger.Debug("error adding dir to cache watcher", "dir", dir, "error", err)
	}
}

func (s *Store) handle(watcher *fsnotify.Watcher, event fsnotify.Event) {
	name := event.Name
	if filepath.Dir(name) == s.dir {
		// A document directory.
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(name); err == nil && info.IsDir() {
				s.watchDir(watcher, name)
			}
		}
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			s.memory.deletePrefix(name + string(filepath.Separator))
		}
		return
	}
	if !isRecord(filepath.Base(name)) {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		s.logger.Debug("record changed", "file", name, "event", event.Op)
		s.memory.delete(name)
	}
}
