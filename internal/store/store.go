// Package store is the durable local store for goalcoach records.
//
// A Store persists one record kind in its own SQLite table and serves live,
// owner-scoped snapshots of it. Every committed write marks the observers of
// the affected owners dirty; each observer then re-reads its full snapshot.
// When an upsert moves a record between owners both owners are refreshed.
//
// Stores are generic over the domain type T and the row type R that maps it
// onto table columns. NewGoalStore, NewJournalStore and NewPlaceStore return
// the concrete stores.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/goalcoach/goalcoach/internal/db"
	"github.com/goalcoach/goalcoach/internal/model"
	"github.com/jmoiron/sqlx"
)

// Schema maps a record kind onto a table.
type Schema[T any, R any] struct {
	Kind  model.Kind[T]
	Table string

	// Columns lists every column; "id" and "owner_id" must be present.
	Columns []string
	OrderBy string

	ToRow   func(T) R
	FromRow func(R) T
}

// Store is the local store for one record kind.
type Store[T any, R any] struct {
	db     *db.DB
	schema Schema[T, R]
	hub    *hub
	logger *log.Logger

	upsertSQL string
	selectSQL string
}

// New creates a store for schema on d. If logger is nil, a default
// "[store] " logger writing to stderr is used.
func New[T any, R any](d *db.DB, schema Schema[T, R], logger *log.Logger) *Store[T, R] {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	var updates []string
	placeholders := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		placeholders[i] = ":" + c
		if c != "id" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	return &Store[T, R]{
		db:     d,
		schema: schema,
		hub:    newHub(),
		logger: logger,
		upsertSQL: fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
			schema.Table,
			strings.Join(schema.Columns, ", "),
			strings.Join(placeholders, ", "),
			strings.Join(updates, ", "),
		),
		selectSQL: fmt.Sprintf("SELECT %s FROM %s", strings.Join(schema.Columns, ", "), schema.Table),
	}
}

// Kind returns the record kind stored here.
func (s *Store[T, R]) Kind() model.Kind[T] {
	return s.schema.Kind
}

// Upsert inserts the record or replaces the stored record with the same id.
func (s *Store[T, R]) Upsert(ctx context.Context, rec T) error {
	kind := s.schema.Kind
	if err := kind.Validate(rec); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", kind.Name, err)
	}

	id, owner := kind.ID(rec), kind.Owner(rec)
	var previous string

	err := s.db.Write(ctx, func(tx *sqlx.Tx) error {
		q := fmt.Sprintf("SELECT owner_id FROM %s WHERE id = ?", s.schema.Table)
		err := tx.GetContext(ctx, &previous, q, id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = tx.NamedExecContext(ctx, s.upsertSQL, s.schema.ToRow(rec))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", kind.Name, id, err)
	}

	if previous != "" && previous != owner {
		s.hub.notify(previous, owner)
	} else {
		s.hub.notify(owner)
	}
	return nil
}

// DeleteByID removes the record with id. Deleting a missing id is a no-op.
func (s *Store[T, R]) DeleteByID(ctx context.Context, id string) error {
	var owner string

	err := s.db.Write(ctx, func(tx *sqlx.Tx) error {
		q := fmt.Sprintf("DELETE FROM %s WHERE id = ? RETURNING owner_id", s.schema.Table)
		err := tx.GetContext(ctx, &owner, q, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", s.schema.Kind.Name, id, err)
	}

	if owner != "" {
		s.hub.notify(owner)
	}
	return nil
}

// DeleteAllForOwner removes every record owned by owner.
func (s *Store[T, R]) DeleteAllForOwner(ctx context.Context, owner string) error {
	var removed int64

	err := s.db.Write(ctx, func(tx *sqlx.Tx) error {
		q := fmt.Sprintf("DELETE FROM %s WHERE owner_id = ?", s.schema.Table)
		res, err := tx.ExecContext(ctx, q, owner)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s for owner %s: %w", s.schema.Kind.Name, owner, err)
	}

	if removed > 0 {
		s.hub.notify(owner)
	}
	return nil
}

// Get returns the record with id. The boolean is false when no record
// exists.
func (s *Store[T, R]) Get(ctx context.Context, id string) (T, bool, error) {
	var (
		row  R
		zero T
	)
	err := s.db.X().GetContext(ctx, &row, s.selectSQL+" WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("failed to get %s %s: %w", s.schema.Kind.Name, id, err)
	}
	return s.schema.FromRow(row), true, nil
}

// ListForOwner returns the owner's records in the kind's sort order.
func (s *Store[T, R]) ListForOwner(ctx context.Context, owner string) ([]T, error) {
	return s.list(ctx, owner, "")
}

// list reads the owner's records, optionally narrowed by an extra WHERE
// clause with its own arguments.
func (s *Store[T, R]) list(ctx context.Context, owner, where string, args ...any) ([]T, error) {
	q := s.selectSQL + " WHERE owner_id = ?"
	if where != "" {
		q += " AND (" + where + ")"
	}
	q += " ORDER BY " + s.schema.OrderBy

	var rows []R
	if err := s.db.X().SelectContext(ctx, &rows, q, append([]any{owner}, args...)...); err != nil {
		return nil, fmt.Errorf("failed to list %s for owner %s: %w", s.schema.Kind.Name, owner, err)
	}

	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.schema.FromRow(r))
	}
	return out, nil
}

// ObserveForOwner returns a live sequence of the owner's full snapshots. The
// current snapshot is sent first; another follows every write that affects
// the owner. The channel is closed once ctx is cancelled.
func (s *Store[T, R]) ObserveForOwner(ctx context.Context, owner string) <-chan []T {
	return s.observe(ctx, owner, "")
}

func (s *Store[T, R]) observe(ctx context.Context, owner, where string, args ...any) <-chan []T {
	out := make(chan []T)
	// Subscribe before the first read so a write racing the read is not
	// missed.
	o := s.hub.subscribe(owner)

	go func() {
		defer close(out)
		defer s.hub.unsubscribe(owner, o)

		for {
			snapshot, err := s.list(ctx, owner, where, args...)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Printf("WARNING: Failed to refresh %s observer: %v", s.schema.Kind.Name, err)
			} else {
				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-o.dirty:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Refresh makes every observer of this store re-read its snapshot. Used
// when another process has written to the database file.
func (s *Store[T, R]) Refresh() {
	s.hub.notifyAll()
}
