package store

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/goalcoach/goalcoach/internal/db"
	"github.com/goalcoach/goalcoach/internal/model"
)

// JournalStore stores journal entries, newest first.
type JournalStore = Store[model.JournalEntry, journalRow]

type journalRow struct {
	ID          string         `db:"id"`
	OwnerID     string         `db:"owner_id"`
	GoalID      sql.NullString `db:"goal_id"`
	Body        string         `db:"body"`
	Confidence  sql.NullInt64  `db:"confidence"`
	SubmittedAt int64          `db:"submitted_at"`
}

var journalSchema = Schema[model.JournalEntry, journalRow]{
	Kind:    model.JournalKind,
	Table:   "journal_entries",
	Columns: []string{"id", "owner_id", "goal_id", "body", "confidence", "submitted_at"},
	OrderBy: "submitted_at DESC, id ASC",
	ToRow: func(e model.JournalEntry) journalRow {
		r := journalRow{
			ID:          e.ID,
			OwnerID:     e.OwnerID,
			GoalID:      sql.NullString{String: e.GoalID, Valid: e.GoalID != ""},
			Body:        e.Body,
			SubmittedAt: db.TimeToMillis(e.SubmittedAt),
		}
		if e.Confidence != nil {
			r.Confidence = sql.NullInt64{Int64: int64(*e.Confidence), Valid: true}
		}
		return r
	},
	FromRow: func(r journalRow) model.JournalEntry {
		e := model.JournalEntry{
			ID:          r.ID,
			OwnerID:     r.OwnerID,
			GoalID:      r.GoalID.String,
			Body:        r.Body,
			SubmittedAt: db.MillisToTime(r.SubmittedAt),
		}
		if r.Confidence.Valid {
			c := int(r.Confidence.Int64)
			e.Confidence = &c
		}
		return e
	},
}

// NewJournalStore creates the journal store.
func NewJournalStore(d *db.DB, logger *log.Logger) *JournalStore {
	return New(d, journalSchema, logger)
}

// JournalQueries are the journal observations beyond the owner's full list.
type JournalQueries struct {
	store *JournalStore
}

// NewJournalQueries creates the journal queries for s.
func NewJournalQueries(s *JournalStore) JournalQueries {
	return JournalQueries{store: s}
}

// ObserveForGoal observes the owner's entries linked to goalID.
func (q JournalQueries) ObserveForGoal(ctx context.Context, owner, goalID string) <-chan []model.JournalEntry {
	return q.store.observe(ctx, owner, "goal_id = ?", goalID)
}

// ObserveConfidenceSince observes the owner's entries that carry a
// confidence rating and were submitted at or after since.
func (q JournalQueries) ObserveConfidenceSince(ctx context.Context, owner string, since time.Time) <-chan []model.JournalEntry {
	return q.store.observe(ctx, owner, "confidence IS NOT NULL AND submitted_at >= ?", db.TimeToMillis(since))
}
