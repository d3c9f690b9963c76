package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 200 * time.Millisecond

// Watch calls onChange after the store file is written by any process. Bursts
// of events are collapsed into one call per debounce window. Watch blocks
// until ctx is done.
func (s *Store) Watch(ctx context.Context, logger *slog.Logger, onChange func()) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create store watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// The directory is watched because writes replace the file by rename.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch store directory: %w", err)
	}

	name := filepath.Base(s.path)
	timer := time.NewTimer(defaultWatchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(defaultWatchDebounce)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("store watcher error", "path", s.path, "error", watchErr)
		case <-timer.C:
			onChange()
		}
	}
}
