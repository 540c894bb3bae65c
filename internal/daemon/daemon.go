// Package daemon runs goalcoach as a long-lived local service.
//
// The daemon:
//  1. Watches the session file and follows sign-ins and sign-outs
//  2. Pulls the signed-in user's records from the remote mirror on sign-in
//  3. Refreshes live views when another process writes the database
//  4. Serves the record streams and REST API
//  5. Handles graceful shutdown
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/goalcoach/goalcoach/internal/app"
	"github.com/goalcoach/goalcoach/internal/cloudsync"
	"github.com/goalcoach/goalcoach/internal/server"
	"github.com/goalcoach/goalcoach/internal/store"
)

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long to wait after a database file change
	// before refreshing live views.
	DebounceInterval time.Duration

	// Port for the HTTP server. Zero picks a free port.
	Port int

	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 200 * time.Millisecond,
		Port:             8080,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates identity watching, pulls and serving.
type Daemon struct {
	app         *app.App
	config      *Config
	server      *server.Server
	coordinator *cloudsync.Coordinator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ready  chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// New creates a daemon for a. The App stays owned by the caller.
func New(a *app.App, config *Config) (*Daemon, error) {
	if a == nil {
		return nil, fmt.Errorf("app cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	d := &Daemon{
		app:    a,
		config: config,
		ready:  make(chan struct{}),
	}
	d.coordinator = a.NewCoordinator(d.onPull)
	d.server = server.NewServer(server.Repos{
		Goals:   a.Goals,
		Journal: a.Journal,
		Places:  a.Places,
	}, &server.Config{
		Port:     config.Port,
		Gatherer: a.Registry,
		Sync:     d.coordinator,
		Logger:   a.Logger("server"),
	})

	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// Start runs the daemon. It blocks until ctx is cancelled or Stop is
// called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.app.Identity.Start(); err != nil {
		return fmt.Errorf("failed to watch session: %w", err)
	}
	if err := d.server.Start(); err != nil {
		_ = d.app.Identity.Stop()
		return err
	}

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		_ = d.coordinator.Run(d.ctx)
	}()
	go func() {
		defer d.wg.Done()
		err := store.WatchFiles(d.ctx, d.app.DB.Path(), d.config.DebounceInterval, d.app.Logger("store"), d.app.Stores()...)
		if err != nil {
			d.config.Logger.Printf("WARNING: Database file watch disabled: %v", err)
		}
	}()

	d.config.Logger.Printf("Serving on %s (signed in: %t)", d.server.GetAddr(), d.app.Identity.Current() != "")
	close(d.ready)

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop shuts the daemon down. Pending remote writes are drained by
// App.Close. It is safe to call more than once.
func (d *Daemon) Stop() error {
	d.stopOnce.Do(func() {
		d.config.Logger.Println("Stopping daemon")
		d.cancel()

		var errs []error
		if err := d.server.Stop(); err != nil {
			errs = append(errs, err)
		}
		if err := d.app.Identity.Stop(); err != nil {
			errs = append(errs, err)
		}
		d.wg.Wait()

		d.stopErr = errors.Join(errs...)
		d.config.Logger.Println("Daemon stopped")
	})
	return d.stopErr
}

// Ready is closed once the daemon is serving.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Addr returns the server address. Call it after Ready.
func (d *Daemon) Addr() string {
	return d.server.GetAddr()
}

// SyncState reports the pull coordinator's state.
func (d *Daemon) SyncState() cloudsync.State {
	return d.coordinator.State()
}

func (d *Daemon) onPull(res cloudsync.PullResult) {
	d.server.BroadcastPull(res)
}
