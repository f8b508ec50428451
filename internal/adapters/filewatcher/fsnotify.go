// Package filewatcher provides file system monitoring adapters.
// Clean Architecture: Adapter implementing ports.FileWatcher.
package filewatcher

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/0xcro3dile/oqgen/internal/domain/ports"
)

// DefaultDebounce coalesces the burst of events an editor produces when saving a file.
const DefaultDebounce = 500 * time.Millisecond

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string // Lower-case extensions to watch, e.g. ".md"
	debounce   time.Duration
	logger     *zap.Logger
}

// NewFSNotifyWatcher creates a new file watcher. A zero debounce emits every event as it arrives.
func NewFSNotifyWatcher(extensions []string, debounce time.Duration, logger *zap.Logger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = []string{".md", ".txt", ".markdown"}
	}
	normalized := make([]string, len(extensions))
	for i, e := range extensions {
		normalized[i] = strings.ToLower(e)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FSNotifyWatcher{
		watcher:    w,
		extensions: normalized,
		debounce:   debounce,
		logger:     logger.With(zap.String("component", "filewatcher")),
	}, nil
}

type pendingEvent struct {
	op   ports.FileOperation
	last time.Time
}

// Watch starts monitoring the directory and emits events. The channel is
// closed when ctx is done or the watcher is stopped.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)

	go func() {
		defer close(events)

		pending := make(map[string]pendingEvent)
		var tick <-chan time.Time
		if w.debounce > 0 {
			ticker := time.NewTicker(w.debounce / 4)
			defer ticker.Stop()
			tick = ticker.C
		}

		emit := func(ev ports.FileEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tick:
				for path, p := range pending {
					if now.Sub(p.last) < w.debounce {
						continue
					}
					delete(pending, path)
					if !emit(ports.FileEvent{Path: path, Operation: p.op}) {
						return
					}
				}
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatchedExtension(event.Name) {
					continue
				}

				var op ports.FileOperation
				switch {
				case event.Op&fsnotify.Create == fsnotify.Create:
					op = ports.FileCreated
				case event.Op&fsnotify.Write == fsnotify.Write:
					op = ports.FileModified
				case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
					op = ports.FileDeleted
				default:
					continue
				}

				if w.debounce == 0 {
					if !emit(ports.FileEvent{Path: event.Name, Operation: op}) {
						return
					}
					continue
				}
				pending[event.Name] = pendingEvent{op: mergeOp(pending[event.Name], op), last: time.Now()}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("Watcher error", zap.String("dir", dir), zap.Error(err))
			}
		}
	}()

	return events, nil
}

// mergeOp folds a new operation into a pending one. A file created and then
// written is still a creation.
func mergeOp(prev pendingEvent, next ports.FileOperation) ports.FileOperation {
	if prev.last.IsZero() {
		return next
	}
	if prev.op == ports.FileCreated && next == ports.FileModified {
		return ports.FileCreated
	}
	return next
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

// isWatchedExtension checks if the file has a watched extension.
func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(path)))
}
