// Package fswatch watches a fixed set of files in one directory.
//
// Editors, SQLite and atomic writers replace files rather than writing them
// in place, so the directory is watched and events are filtered by base name.
package fswatch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates a new file was created.
	OpCreate EventOp = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a change to one of the watched files.
type Event struct {
	// Path is the absolute path to the file that changed.
	Path string
	Op   EventOp
}

// Watcher reports changes to named files in a directory.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	dir     string
	names   map[string]struct{}
}

// New creates a Watcher. It must be started with Start before it emits
// events.
func New() (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher: watcher,
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start watches dir for changes to files whose base name is in names.
func (w *Watcher) Start(dir string, names ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if err := w.watcher.Add(abs); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", abs, err)
	}

	w.dir = abs
	w.names = make(map[string]struct{}, len(names))
	for _, n := range names {
		w.names[n] = struct{}{}
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop stops watching and blocks until the event loop has exited. Events
// and Errors are closed afterwards.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()

	close(w.events)
	close(w.errors)

	return nil
}

// Events returns the channel of file events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev, ok := w.convertEvent(event); ok {
				select {
				case w.events <- ev:
				case <-w.done:
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// convertEvent returns false for files outside the watched set and for
// chmod-only events.
func (w *Watcher) convertEvent(event fsnotify.Event) (Event, bool) {
	if _, ok := w.names[filepath.Base(event.Name)]; !ok {
		return Event{}, false
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return Event{}, false
	}

	return Event{Path: filepath.Join(w.dir, filepath.Base(event.Name)), Op: op}, true
}

// Debounce calls fn once events have been quiet for delay. It returns when
// events is closed or done is closed; a pending call is dropped.
func Debounce(events <-chan Event, delay time.Duration, done <-chan struct{}, fn func()) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stop()

	for {
		select {
		case <-done:
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			stop()
			timer = time.NewTimer(delay)
			fire = timer.C
		case <-fire:
			fire = nil
			fn()
		}
	}
}
