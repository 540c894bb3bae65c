package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/goalcoach/goalcoach/internal/fswatch"
)

// Refresher is implemented by every Store.
type Refresher interface {
	Refresh()
}

// WatchFiles refreshes the observers of targets whenever the database file
// at path, or its WAL, changes on disk. Bursts of changes are collapsed into
// one refresh after debounce. It blocks until ctx is cancelled.
//
// Writes made through a Store already notify its observers; this covers
// writes made by other processes sharing the file.
func WatchFiles(ctx context.Context, path string, debounce time.Duration, logger *log.Logger, targets ...Refresher) error {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	w, err := fswatch.New()
	if err != nil {
		return err
	}
	base := filepath.Base(path)
	if err := w.Start(filepath.Dir(path), base, base+"-wal"); err != nil {
		return fmt.Errorf("failed to watch database file: %w", err)
	}
	defer func() {
		if err := w.Stop(); err != nil {
			logger.Printf("WARNING: Failed to stop database watcher: %v", err)
		}
	}()

	go func() {
		for err := range w.Errors() {
			logger.Printf("WARNING: Database watcher error: %v", err)
		}
	}()

	fswatch.Debounce(w.Events(), debounce, ctx.Done(), func() {
		for _, t := range targets {
			t.Refresh()
		}
	})
	return nil
}
