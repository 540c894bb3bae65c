// Package transfer exports and imports a user's records as YAML.
//
// An export holds every goal, journal entry and place of the active
// identity. Importing upserts each record under the active identity, so a
// snapshot can be restored into another account; records with an id that
// already exists are replaced.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goalcoach/goalcoach/internal/identity"
	"github.com/goalcoach/goalcoach/internal/model"
	"gopkg.in/yaml.v3"
)

// FormatVersion is written to every export and checked on import.
const FormatVersion = 1

// Snapshot is the exported document.
type Snapshot struct {
	Version    int                  `yaml:"version"`
	Owner      string               `yaml:"owner"`
	ExportedAt time.Time            `yaml:"exported_at"`
	Goals      []model.Goal         `yaml:"goals"`
	Journal    []model.JournalEntry `yaml:"journal"`
	Places     []model.Place        `yaml:"places"`
}

// Collection is one owner-scoped record kind.
type Collection[T any] interface {
	Owner() string
	List(ctx context.Context) ([]T, error)
	Upsert(ctx context.Context, rec T) error
}

// Set groups the collections of every kind.
type Set struct {
	Goals   Collection[model.Goal]
	Journal Collection[model.JournalEntry]
	Places  Collection[model.Place]
}

// Counts reports how many records of each kind were written.
type Counts struct {
	Goals   int
	Journal int
	Places  int
}

// Export writes the active identity's records to w.
func Export(ctx context.Context, w io.Writer, s Set) (Counts, error) {
	owner := s.Goals.Owner()
	if owner == "" {
		return Counts{}, identity.ErrNoSession
	}

	snap := Snapshot{
		Version:    FormatVersion,
		Owner:      owner,
		ExportedAt: model.Now(),
	}
	var err error
	if snap.Goals, err = s.Goals.List(ctx); err != nil {
		return Counts{}, fmt.Errorf("failed to list goals: %w", err)
	}
	if snap.Journal, err = s.Journal.List(ctx); err != nil {
		return Counts{}, fmt.Errorf("failed to list journal entries: %w", err)
	}
	if snap.Places, err = s.Places.List(ctx); err != nil {
		return Counts{}, fmt.Errorf("failed to list places: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return Counts{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return Counts{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return Counts{Goals: len(snap.Goals), Journal: len(snap.Journal), Places: len(snap.Places)}, nil
}

// Decode reads a snapshot.
func Decode(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != FormatVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return snap, nil
}

// Import reads a snapshot from r and upserts every record under the active
// identity. Invalid records are skipped and reported in the joined error;
// the others are still imported.
func Import(ctx context.Context, r io.Reader, s Set) (Counts, error) {
	if s.Goals.Owner() == "" {
		return Counts{}, identity.ErrNoSession
	}
	snap, err := Decode(r)
	if err != nil {
		return Counts{}, err
	}

	var (
		c    Counts
		errs []error
	)
	c.Goals, errs = load(ctx, s.Goals, model.GoalKind, snap.Goals, errs)
	c.Journal, errs = load(ctx, s.Journal, model.JournalKind, snap.Journal, errs)
	c.Places, errs = load(ctx, s.Places, model.PlaceKind, snap.Places, errs)
	return c, errors.Join(errs...)
}

func load[T any](ctx context.Context, coll Collection[T], kind model.Kind[T], recs []T, errs []error) (int, []error) {
	n := 0
	for _, rec := range recs {
		// Clear the owner so the collection stamps the active identity.
		if err := coll.Upsert(ctx, kind.WithOwner(rec, "")); err != nil {
			errs = append(errs, fmt.Errorf("failed to import %s %s: %w", kind.Name, kind.ID(rec), err))
			continue
		}
		n++
	}
	return n, errs
}
