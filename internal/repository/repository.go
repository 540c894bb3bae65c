// Package repository is the entry point for reading and writing records.
//
// A Repository scopes everything to the active identity. Reads are live
// snapshots of the local store, re-scoped whenever the identity changes.
// Writes commit to the local store and then mirror the change to the remote
// store in the background; the caller never waits on, or hears about, the
// remote call.
//
// Without an active identity reads yield empty snapshots and writes are
// silently ignored, so no record is ever stored without an owner.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/goalcoach/goalcoach/internal/identity"
	"github.com/goalcoach/goalcoach/internal/model"
)

var (
	// ErrNotFound is returned by lookups for ids the active identity does
	// not own.
	ErrNotFound = errors.New("record not found")

	// ErrOwnerMismatch is returned when a write names an owner other than
	// the active identity.
	ErrOwnerMismatch = errors.New("record belongs to another user")
)

// LocalStore is the durable store for one record kind.
type LocalStore[T any] interface {
	Upsert(ctx context.Context, rec T) error
	DeleteByID(ctx context.Context, id string) error
	DeleteAllForOwner(ctx context.Context, owner string) error
	Get(ctx context.Context, id string) (T, bool, error)
	ListForOwner(ctx context.Context, owner string) ([]T, error)
	ObserveForOwner(ctx context.Context, owner string) <-chan []T
}

// RemoteMirror is the remote copy of one record kind.
type RemoteMirror[T any] interface {
	Upsert(ctx context.Context, owner string, rec T) error
	Delete(ctx context.Context, owner, id string) error
	DeleteAll(ctx context.Context, owner string) error
}

// Spawner runs fire-and-forget tasks.
type Spawner interface {
	Go(name string, fn func(ctx context.Context) error) bool
}

// Repository is the owner-scoped facade over one record kind.
type Repository[T any] struct {
	kind   model.Kind[T]
	local  LocalStore[T]
	remote RemoteMirror[T]
	ids    identity.Stream
	pusher Spawner
	logger *log.Logger
	now    func() time.Time
}

// New creates a repository. If logger is nil, a default "[repository] "
// logger writing to stderr is used.
func New[T any](kind model.Kind[T], local LocalStore[T], remote RemoteMirror[T], ids identity.Stream, pusher Spawner, logger *log.Logger) *Repository[T] {
	if logger == nil {
		logger = log.New(os.Stderr, "[repository] ", log.LstdFlags)
	}
	return &Repository[T]{
		kind:   kind,
		local:  local,
		remote: remote,
		ids:    ids,
		pusher: pusher,
		logger: logger,
		now:    model.Now,
	}
}

// Kind returns the record kind.
func (r *Repository[T]) Kind() model.Kind[T] {
	return r.kind
}

// Owner returns the active identity, or "" when signed out.
func (r *Repository[T]) Owner() string {
	return r.ids.Current()
}

// Observe returns the active identity's records as a live sequence of
// snapshots. See ObserveScoped.
func (r *Repository[T]) Observe(ctx context.Context) <-chan []T {
	return r.ObserveScoped(ctx, r.local.ObserveForOwner)
}

// ObserveScoped follows the identity stream and, for each identity,
// observes the snapshots open returns for it. An empty snapshot is sent
// while signed out. When the identity changes the previous observation is
// cancelled and any snapshot of it not yet read is dropped, so a reader
// only ever receives records of the identity active when the snapshot was
// sent. A slow reader skips to the latest snapshot. The channel is closed
// once ctx is cancelled.
func (r *Repository[T]) ObserveScoped(ctx context.Context, open func(ctx context.Context, owner string) <-chan []T) <-chan []T {
	out := make(chan []T, 1)
	sub := r.ids.Subscribe()

	// replace swaps the pending snapshot for v. Only this goroutine sends
	// on out, so the send after the drain never blocks.
	replace := func(v []T) {
		select {
		case <-out:
		default:
		}
		out <- v
	}

	go func() {
		defer close(out)
		defer sub.Cancel()

		var (
			owner   string
			started bool
			inner   <-chan []T
			stop    = func() {}
		)
		defer func() { stop() }()

		for {
			select {
			case <-ctx.Done():
				return

			case uid, ok := <-sub.C:
				if !ok {
					return
				}
				if started && uid == owner {
					continue
				}
				started = true

				stop()
				inner, stop = nil, func() {}
				owner = uid

				if uid == "" {
					replace([]T{})
					continue
				}
				// Drop a snapshot of the previous owner not yet read.
				select {
				case <-out:
				default:
				}
				innerCtx, cancel := context.WithCancel(ctx)
				inner, stop = open(innerCtx, uid), cancel

			case snap, ok := <-inner:
				if !ok {
					inner = nil
					continue
				}
				replace(r.scope(snap, owner))
			}
		}
	}()

	return out
}

// scope drops records of any other owner.
func (r *Repository[T]) scope(snap []T, owner string) []T {
	out := snap[:0:0]
	for _, rec := range snap {
		if r.kind.Owner(rec) == owner {
			out = append(out, rec)
		}
	}
	return out
}

// List returns the active identity's records once.
func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	owner := r.ids.Current()
	if owner == "" {
		return []T{}, nil
	}
	return r.local.ListForOwner(ctx, owner)
}

// Get returns the active identity's record with id.
func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	owner := r.ids.Current()
	if owner == "" {
		return zero, identity.ErrNoSession
	}

	rec, ok, err := r.local.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if !ok || r.kind.Owner(rec) != owner {
		return zero, fmt.Errorf("%w: %s %s", ErrNotFound, r.kind.Name, id)
	}
	return rec, nil
}

// Upsert stores rec under the active identity and mirrors it remotely in
// the background. A record without an owner is stamped with the active
// identity. An id already stored for another identity is rejected with
// ErrOwnerMismatch. Without an active identity the call does nothing.
func (r *Repository[T]) Upsert(ctx context.Context, rec T) error {
	owner := r.ids.Current()
	if owner == "" {
		r.logger.Printf("no active identity; ignoring %s upsert", r.kind.Name)
		return nil
	}

	switch got := r.kind.Owner(rec); got {
	case "":
		rec = r.kind.WithOwner(rec, owner)
	case owner:
	default:
		return fmt.Errorf("%w: %s %s", ErrOwnerMismatch, r.kind.Name, r.kind.ID(rec))
	}

	id := r.kind.ID(rec)
	stored, found, err := r.local.Get(ctx, id)
	if err != nil {
		return err
	}
	if found && r.kind.Owner(stored) != owner {
		return fmt.Errorf("%w: %s %s", ErrOwnerMismatch, r.kind.Name, id)
	}
	if r.kind.Normalize != nil {
		var prev *T
		if found {
			prev = &stored
		}
		rec = r.kind.Normalize(prev, rec, r.now())
	}

	if err := r.local.Upsert(ctx, rec); err != nil {
		return err
	}

	r.pusher.Go(fmt.Sprintf("upsert %s/%s", r.kind.Name, id), func(ctx context.Context) error {
		return r.remote.Upsert(ctx, owner, rec)
	})
	return nil
}

// Delete removes the record with id locally and remotely in the
// background. Deleting an id that is not stored locally still deletes the
// remote copy. Without an active identity the call does nothing.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	owner := r.ids.Current()
	if owner == "" {
		r.logger.Printf("no active identity; ignoring %s delete", r.kind.Name)
		return nil
	}

	rec, ok, err := r.local.Get(ctx, id)
	if err != nil {
		return err
	}
	if ok && r.kind.Owner(rec) != owner {
		return fmt.Errorf("%w: %s %s", ErrOwnerMismatch, r.kind.Name, id)
	}

	if err := r.local.DeleteByID(ctx, id); err != nil {
		return err
	}

	r.pusher.Go(fmt.Sprintf("delete %s/%s", r.kind.Name, id), func(ctx context.Context) error {
		return r.remote.Delete(ctx, owner, id)
	})
	return nil
}

// deleteAll removes every record of the active identity locally and
// remotely in the background.
func (r *Repository[T]) deleteAll(ctx context.Context) error {
	owner := r.ids.Current()
	if owner == "" {
		r.logger.Printf("no active identity; ignoring %s delete-all", r.kind.Name)
		return nil
	}

	if err := r.local.DeleteAllForOwner(ctx, owner); err != nil {
		return err
	}

	r.pusher.Go("delete-all "+r.kind.Name, func(ctx context.Context) error {
		return r.remote.DeleteAll(ctx, owner)
	})
	return nil
}

// requireOwner returns the active identity or identity.ErrNoSession.
func (r *Repository[T]) requireOwner() (string, error) {
	owner := r.ids.Current()
	if owner == "" {
		return "", identity.ErrNoSession
	}
	return owner, nil
}
