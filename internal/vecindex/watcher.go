package vecindex

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the index when another process replaces the artifact,
// making updates visible without waiting for the next search. Searches
// still revalidate by modification time, so the watcher is an optimization,
// not a correctness requirement.
type Watcher struct {
	ix     *Index
	logger *slog.Logger
}

// NewWatcher creates a watcher for ix.
func NewWatcher(ix *Index, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{ix: ix, logger: logger}
}

// Run watches the artifact's directory until ctx is cancelled. The
// directory, not the file, is watched because the atomic rename replaces
// the inode on every persist.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(w.ix.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	base := filepath.Base(w.ix.path)

	// Debounce: a persist produces a create and a rename event back to
	// back; collapse bursts into one reload.
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(100 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if !strings.Contains(err.Error(), "overflow") {
				w.logger.Warn("index_watcher_error", slog.String("error", err.Error()))
			}

		case <-pending:
			pending = nil
			w.ix.Reload()
		}
	}
}
