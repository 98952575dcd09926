package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the roster whenever the backing file is rewritten. Editors
// and atomic writers replace files rather than appending, so the watch is on
// the parent directory with events filtered down to the roster path.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

// NewWatcher creates a roster file watcher.
func NewWatcher(logger *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{watcher: w, logger: logger}, nil
}

// Watch emits a freshly loaded roster after each change to path. Reload
// failures are logged and skipped; the previous roster stays in effect until
// the file parses again. The channel closes when ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, path string) (<-chan *Roster, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	rosters := make(chan *Roster, 1)

	go func() {
		defer close(rosters)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				roster, err := Load(abs)
				if err != nil {
					w.logger.Warn("roster reload skipped", zap.String("path", abs), zap.Error(err))
					continue
				}
				w.logger.Info("roster reloaded",
					zap.String("path", abs),
					zap.Int("children", len(roster.children)),
					zap.Int("families", len(roster.families)),
				)

				select {
				case rosters <- roster:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("roster watch error", zap.Error(err))
			}
		}
	}()

	return rosters, nil
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
