// Package watchhook optionally feeds repo.refresh_index eligibility from
// filesystem change notifications. It never mutates the index itself — it
// only marks the repo dirty and lets the caller decide when to refresh,
// debounced so a burst of saves collapses into one refresh.
package watchhook

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceWindow is how long Hook waits after the last observed event
// before calling the dirty callback.
const DebounceWindow = 500 * time.Millisecond

// Hook watches a directory tree with fsnotify and invokes onDirty at most
// once per DebounceWindow of observed activity. Directories are watched
// individually since fsnotify is not recursive; new directories created
// while running are picked up on the next add.
type Hook struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// New creates a Hook rooted at root, adding a watch for root and every
// subdirectory. Returns an error only if the underlying fsnotify watcher
// cannot be created — callers should treat that as "watch mode
// unavailable" rather than fatal, since refresh_index still works without
// it.
func New(root string, logger *slog.Logger) (*Hook, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	h := &Hook{watcher: w, logger: logger}
	if walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if addErr := w.Add(path); addErr != nil {
			h.logger.Warn("watch add failed", "path", path, "error", addErr)
		}
		return nil
	}); walkErr != nil {
		_ = w.Close()
		return nil, walkErr
	}

	return h, nil
}

// Run blocks, invoking onDirty at most once per debounce window while
// fsnotify events arrive, until ctx is canceled.
func (h *Hook) Run(ctx context.Context, onDirty func()) {
	defer h.watcher.Close()

	timer := time.NewTimer(DebounceWindow)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := h.watcher.Add(ev.Name); err != nil {
						h.logger.Warn("watch add failed", "path", ev.Name, "error", err)
					}
				}
			}
			if pending {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
			pending = true
			timer.Reset(DebounceWindow)

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn("watch error", "error", err)

		case <-timer.C:
			pending = false
			onDirty()
		}
	}
}
