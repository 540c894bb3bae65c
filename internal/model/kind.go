package model

import (
	"errors"
	"time"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid record")

// Kind describes an owner-scoped record type.
type Kind[T any] struct {
	// Name is the collection name, shared by the local table and the
	// remote document collection ("goals", "journal_entries", "places").
	Name string

	ID    func(T) string
	Owner func(T) string

	// WithOwner returns a copy of the record owned by owner.
	WithOwner func(T, string) T

	Validate func(T) error

	// Normalize, if set, fixes derived fields of rec before it is stored.
	// prev is the stored record with the same id, or nil.
	Normalize func(prev *T, rec T, now time.Time) T
}

// GoalKind describes Goal records.
var GoalKind = Kind[Goal]{
	Name:  "goals",
	ID:    func(g Goal) string { return g.ID },
	Owner: func(g Goal) string { return g.OwnerID },
	WithOwner: func(g Goal, owner string) Goal {
		g.OwnerID = owner
		return g
	},
	Validate: func(g Goal) error { return g.Validate() },
	Normalize: func(prev *Goal, g Goal, now time.Time) Goal {
		return g.WithCompletionFrom(prev, now)
	},
}

// JournalKind describes JournalEntry records.
var JournalKind = Kind[JournalEntry]{
	Name:  "journal_entries",
	ID:    func(e JournalEntry) string { return e.ID },
	Owner: func(e JournalEntry) string { return e.OwnerID },
	WithOwner: func(e JournalEntry, owner string) JournalEntry {
		e.OwnerID = owner
		return e
	},
	Validate: func(e JournalEntry) error { return e.Validate() },
}

// PlaceKind describes Place records.
var PlaceKind = Kind[Place]{
	Name:  "places",
	ID:    func(p Place) string { return p.ID },
	Owner: func(p Place) string { return p.OwnerID },
	WithOwner: func(p Place, owner string) Place {
		p.OwnerID = owner
		return p
	},
	Validate: func(p Place) error { return p.Validate() },
}

// Now returns the current time truncated to the precision the local store
// keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
