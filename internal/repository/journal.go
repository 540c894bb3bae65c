package repository

import (
	"context"
	"log"
	"time"

	"github.com/goalcoach/goalcoach/internal/identity"
	"github.com/goalcoach/goalcoach/internal/model"
)

// JournalQueries are the narrower journal observations the local store
// serves.
type JournalQueries interface {
	ObserveForGoal(ctx context.Context, owner, goalID string) <-chan []model.JournalEntry
	ObserveConfidenceSince(ctx context.Context, owner string, since time.Time) <-chan []model.JournalEntry
}

// JournalRepository reads and writes the active identity's journal.
type JournalRepository struct {
	*Repository[model.JournalEntry]
	queries JournalQueries
}

// NewJournalRepository creates the journal repository.
func NewJournalRepository(local LocalStore[model.JournalEntry], queries JournalQueries, remote RemoteMirror[model.JournalEntry], ids identity.Stream, pusher Spawner, logger *log.Logger) *JournalRepository {
	return &JournalRepository{
		Repository: New(model.JournalKind, local, remote, ids, pusher, logger),
		queries:    queries,
	}
}

// Add saves a new entry owned by the active identity. The body is trimmed
// and must not be blank.
func (r *JournalRepository) Add(ctx context.Context, goalID, body string, confidence *int) (model.JournalEntry, error) {
	owner, err := r.requireOwner()
	if err != nil {
		return model.JournalEntry{}, err
	}

	e, err := model.NewJournalEntry(goalID, body, confidence)
	if err != nil {
		return model.JournalEntry{}, err
	}
	e.OwnerID = owner
	if err := e.Validate(); err != nil {
		return model.JournalEntry{}, err
	}
	if err := r.Upsert(ctx, e); err != nil {
		return model.JournalEntry{}, err
	}
	return e, nil
}

// ObserveForGoal observes the entries linked to goalID, newest first.
func (r *JournalRepository) ObserveForGoal(ctx context.Context, goalID string) <-chan []model.JournalEntry {
	return r.ObserveScoped(ctx, func(ctx context.Context, owner string) <-chan []model.JournalEntry {
		return r.queries.ObserveForGoal(ctx, owner, goalID)
	})
}

// ObserveConfidenceSince observes the rated entries submitted at or after
// since, newest first.
func (r *JournalRepository) ObserveConfidenceSince(ctx context.Context, since time.Time) <-chan []model.JournalEntry {
	return r.ObserveScoped(ctx, func(ctx context.Context, owner string) <-chan []model.JournalEntry {
		return r.queries.ObserveConfidenceSince(ctx, owner, since)
	})
}
