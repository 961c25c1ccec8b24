package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/agevault/internal/storage"
)

// Notify watches dirs (non-recursively) and returns a channel that receives a
// nudge whenever a file is created, written or renamed in one of them. Nudges
// coalesce: at most one is pending. The channel closes when ctx is cancelled.
func Notify(ctx context.Context, dirs []string, logger *slog.Logger) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			w.Close()
			return nil, err
		}
	}

	nudges := make(chan struct{}, 1)
	go func() {
		defer close(nudges)
		defer w.Close()

		logger.Debug("watcher: notify started", slog.Int("dirs", len(dirs)))
		for {
			select {
			case <-ctx.Done():
				logger.Debug("watcher: notify stopped")
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if strings.HasPrefix(filepath.Base(ev.Name), storage.TempPrefix) {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case nudges <- struct{}{}:
				default:
				}

			case watchErr, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("watcher: notify error", slog.String("error", watchErr.Error()))
			}
		}
	}()
	return nudges, nil
}
