// Package app wires the goalcoach components together.
//
// Open builds everything once, in dependency order: the local database and
// its stores, the remote backend and mirrors, the identity stream, the
// pusher and the repositories. Commands and the daemon receive the App and
// use its fields; nothing is resolved globally.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/goalcoach/goalcoach/internal/cloudsync"
	"github.com/goalcoach/goalcoach/internal/config"
	"github.com/goalcoach/goalcoach/internal/db"
	"github.com/goalcoach/goalcoach/internal/identity"
	"github.com/goalcoach/goalcoach/internal/logging"
	"github.com/goalcoach/goalcoach/internal/metrics"
	"github.com/goalcoach/goalcoach/internal/model"
	"github.com/goalcoach/goalcoach/internal/remote"
	"github.com/goalcoach/goalcoach/internal/repository"
	"github.com/goalcoach/goalcoach/internal/store"
	"github.com/goalcoach/goalcoach/internal/transfer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App holds the constructed components.
type App struct {
	Config   config.Config
	Log      *logging.Logger
	DB       *db.DB
	Identity *identity.FileSource
	Backend  remote.Backend
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Pusher   *cloudsync.Pusher

	Goals   *repository.GoalRepository
	Journal *repository.JournalRepository
	Places  *repository.PlaceRepository

	goalStore    *store.GoalStore
	journalStore *store.JournalStore
	placeStore   *store.PlaceStore

	goalMirror    *remote.Mirror[model.Goal]
	journalMirror *remote.Mirror[model.JournalEntry]
	placeMirror   *remote.Mirror[model.Place]
}

// Open builds the App for cfg. On failure everything opened so far is
// closed again.
func Open(ctx context.Context, cfg config.Config, lg *logging.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Log:      lg,
		Registry: prometheus.NewRegistry(),
	}
	opened := false
	defer func() {
		if !opened {
			_ = a.Close(context.Background())
		}
	}()

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	var err error
	if a.DB, err = db.Open(cfg.DBPath); err != nil {
		return nil, err
	}
	if err := a.DB.Migrate(ctx, lg.Component("db")); err != nil {
		return nil, err
	}

	if a.Backend, err = remote.Open(ctx, cfg.Remote); err != nil {
		return nil, fmt.Errorf("failed to open remote backend: %w", err)
	}

	if a.Identity, err = identity.NewFileSource(cfg.SessionFile, cfg.Debounce, lg.Component("identity")); err != nil {
		return nil, err
	}

	a.Pusher = cloudsync.NewPusher(cloudsync.PusherConfig{
		Timeout: cfg.Sync.PushTimeout,
		Logger:  lg.Component("cloudsync"),
		Metrics: a.Metrics,
	})

	storeLog := lg.Component("store")
	a.goalStore = store.NewGoalStore(a.DB, storeLog)
	a.journalStore = store.NewJournalStore(a.DB, storeLog)
	a.placeStore = store.NewPlaceStore(a.DB, storeLog)

	remoteLog := lg.Component("remote")
	a.goalMirror = remote.NewMirror(a.Backend, model.GoalKind, remoteLog, a.Metrics)
	a.journalMirror = remote.NewMirror(a.Backend, model.JournalKind, remoteLog, a.Metrics)
	a.placeMirror = remote.NewMirror(a.Backend, model.PlaceKind, remoteLog, a.Metrics)

	repoLog := lg.Component("repository")
	a.Goals = repository.NewGoalRepository(a.goalStore, a.goalMirror, a.Identity, a.Pusher, repoLog)
	a.Journal = repository.NewJournalRepository(a.journalStore, store.NewJournalQueries(a.journalStore), a.journalMirror, a.Identity, a.Pusher, repoLog)
	a.Places = repository.NewPlaceRepository(a.placeStore, a.placeMirror, a.Identity, a.Pusher, repoLog)

	opened = true
	return a, nil
}

// Pullers returns one puller per record kind.
func (a *App) Pullers() []cloudsync.Puller {
	logger := a.Log.Component("cloudsync")
	return []cloudsync.Puller{
		cloudsync.NewPuller(model.GoalKind, a.goalMirror, a.goalStore, logger, a.Metrics),
		cloudsync.NewPuller(model.JournalKind, a.journalMirror, a.journalStore, logger, a.Metrics),
		cloudsync.NewPuller(model.PlaceKind, a.placeMirror, a.placeStore, logger, a.Metrics),
	}
}

// NewCoordinator creates the pull coordinator. onPull, if set, is called
// after every pull.
func (a *App) NewCoordinator(onPull func(cloudsync.PullResult)) *cloudsync.Coordinator {
	return cloudsync.NewCoordinator(a.Identity, a.Pullers(), cloudsync.Config{
		Concurrency:    a.Config.Sync.PullConcurrency,
		Timeout:        a.Config.Sync.FetchTimeout,
		OnPullComplete: onPull,
		Logger:         a.Log.Component("cloudsync"),
		Metrics:        a.Metrics,
	})
}

// Stores returns the local stores, for refreshing after outside writes.
func (a *App) Stores() []store.Refresher {
	return []store.Refresher{a.goalStore, a.journalStore, a.placeStore}
}

// TransferSet returns the repositories as export/import collections.
func (a *App) TransferSet() transfer.Set {
	return transfer.Set{
		Goals:   a.Goals.Repository,
		Journal: a.Journal.Repository,
		Places:  a.Places.Repository,
	}
}

// SignIn records uid as the signed-in user and publishes it.
func (a *App) SignIn(uid, email string) error {
	if uid == "" {
		return errors.New("user id is required")
	}
	s := identity.Session{UserID: uid, Email: email, SignedInAt: model.Now()}
	if err := identity.SaveSession(a.Config.SessionFile, s); err != nil {
		return err
	}
	a.Identity.Reload()
	return nil
}

// SignOut removes the session. Local data is kept.
func (a *App) SignOut() error {
	if err := identity.ClearSession(a.Config.SessionFile); err != nil {
		return err
	}
	a.Identity.Reload()
	return nil
}

// Logger returns a component logger.
func (a *App) Logger(component string) *log.Logger {
	return a.Log.Component(component)
}

// Close waits for pending pushes, bounded by ctx, and releases every
// resource.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Identity != nil {
		errs = append(errs, a.Identity.Stop())
	}
	if a.Pusher != nil {
		errs = append(errs, a.Pusher.Close(ctx))
	}
	if a.Backend != nil {
		errs = append(errs, a.Backend.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
