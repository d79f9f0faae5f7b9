package smartsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces a burst of filesystem events (an editor's
// write-then-rename save, a multi-file copy) into a single triggered sync.
const debounceWindow = 2 * time.Second

// Watcher drives watch-triggered Smart Sync for profiles with Watch set:
// it watches a profile's local tree with fsnotify and runs StartSync once
// the tree has been quiet for debounceWindow.
type Watcher struct {
	engine *Engine
	logger *slog.Logger
}

// NewWatcher creates a Watcher that triggers syncs through engine.
func NewWatcher(engine *Engine, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{engine: engine, logger: logger}
}

// Watch blocks watching profileID's local tree until ctx is canceled or the
// watcher's event or error channel closes; watcher errors are logged and
// watching continues. Each settled burst of changes triggers one
// StartSync call; ErrAlreadySyncing from an overlapping manual run is not
// treated as a watch failure.
func (w *Watcher) Watch(ctx context.Context, profileID string) error {
	profile, ok := w.engine.store.Get(profileID)
	if !ok {
		return ErrProfileNotFound
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("smartsync: creating filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchesRecursive(watcher, profile.LocalPath); err != nil {
		return fmt.Errorf("smartsync: adding watches under %s: %w", profile.LocalPath, err)
	}

	w.logger.Info("watch-triggered sync started", slog.String("profile", profile.Name), slog.String("local_path", profile.LocalPath))

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			w.handleEvent(watcher, ev)

			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					<-timerC
				}
				timer.Reset(debounceWindow)
			}

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("filesystem watcher error", slog.String("profile", profile.Name), slog.String("error", werr.Error()))

		case <-timerC:
			timer = nil
			timerC = nil

			if _, err := w.engine.StartSync(ctx, profileID, nil); err != nil && !errors.Is(err, ErrAlreadySyncing) {
				w.logger.Warn("watch-triggered sync failed", slog.String("profile", profile.Name), slog.String("error", err.Error()))
			}
		}
	}
}

// handleEvent adds a watch on newly created subdirectories so the watch
// tree stays current as the profile's local tree grows.
func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) {
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil || !info.IsDir() {
		return
	}

	if addErr := watcher.Add(ev.Name); addErr != nil {
		w.logger.Warn("failed to add watch on new directory", slog.String("path", ev.Name), slog.String("error", addErr.Error()))
	}
}

// addWatchesRecursive walks root and adds an fsnotify watch on every
// directory, including root itself.
func addWatchesRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}

		if !d.IsDir() {
			return nil
		}

		return watcher.Add(path)
	})
}
