package profile

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the store when the config file is modified by something
// other than the store itself, calling onChange after each successful
// reload. It blocks until ctx is cancelled.
//
// The directory is watched rather than the file so plain editors that
// replace the file via rename keep being tracked.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	// Editors fire bursts of events for a single save; coalesce them.
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.path || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if s.recentOwnWrite() {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(500 * time.Millisecond)
			} else {
				debounce.Reset(500 * time.Millisecond)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			if err := s.Reload(); err != nil {
				s.logger.Warn("external config change could not be loaded", "error", err)
				continue
			}
			s.logger.Info("configuration reloaded after external change", "path", s.path)
			if onChange != nil {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("config watcher", "error", err)
		}
	}
}

func (s *Store) recentOwnWrite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastWrite) < time.Second
}
