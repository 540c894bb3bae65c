package identity

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goalcoach/goalcoach/internal/fswatch"
)

// FileSource is a Stream backed by a session file. Signing in or out from
// another process (the CLI) is picked up while the file is watched.
type FileSource struct {
	source   *Source
	path     string
	debounce time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	watcher *fswatch.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileSource loads the session at path. If logger is nil, a default
// "[identity] " logger writing to stderr is used.
func NewFileSource(path string, debounce time.Duration, logger *log.Logger) (*FileSource, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[identity] ", log.LstdFlags)
	}

	f := &FileSource{
		path:     path,
		debounce: debounce,
		logger:   logger,
	}
	uid, err := f.read()
	if err != nil {
		return nil, err
	}
	f.source = NewSource(uid)
	return f, nil
}

// Current implements Stream.
func (f *FileSource) Current() string {
	return f.source.Current()
}

// Subscribe implements Stream.
func (f *FileSource) Subscribe() *Subscription {
	return f.source.Subscribe()
}

// Start watches the session file for changes.
func (f *FileSource) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.watcher != nil {
		return fmt.Errorf("identity watcher already running")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	w, err := fswatch.New()
	if err != nil {
		return err
	}
	if err := w.Start(dir, filepath.Base(f.path)); err != nil {
		return err
	}

	f.watcher = w
	f.done = make(chan struct{})
	f.wg.Add(2)
	go func() {
		defer f.wg.Done()
		fswatch.Debounce(w.Events(), f.debounce, f.done, f.Reload)
	}()
	go func() {
		defer f.wg.Done()
		for err := range w.Errors() {
			f.logger.Printf("WARNING: Session watcher error: %v", err)
		}
	}()

	// Catch changes made between construction and Start.
	f.Reload()
	return nil
}

// Stop stops watching. The last known identity is kept.
func (f *FileSource) Stop() error {
	f.mu.Lock()
	w := f.watcher
	f.watcher = nil
	f.mu.Unlock()

	if w == nil {
		return nil
	}
	close(f.done)
	err := w.Stop()
	f.wg.Wait()
	return err
}

// Reload re-reads the session file and publishes the user id if it changed.
func (f *FileSource) Reload() {
	uid, err := f.read()
	if err != nil {
		f.logger.Printf("WARNING: Failed to reload session: %v", err)
		return
	}
	if uid != f.source.Current() {
		f.logger.Printf("identity changed (signed in: %t)", uid != "")
		f.source.Set(uid)
	}
}

func (f *FileSource) read() (string, error) {
	s, err := LoadSession(f.path)
	if errors.Is(err, ErrNoSession) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s.UserID, nil
}
