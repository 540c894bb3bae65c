package store

import (
	"database/sql"
	"log"

	"github.com/goalcoach/goalcoach/internal/db"
	"github.com/goalcoach/goalcoach/internal/model"
)

// GoalStore stores goals, oldest first.
type GoalStore = Store[model.Goal, goalRow]

type goalRow struct {
	ID          string         `db:"id"`
	OwnerID     string         `db:"owner_id"`
	Category    string         `db:"category"`
	Title       string         `db:"title"`
	Notes       string         `db:"notes"`
	Progress    int            `db:"progress"`
	CreatedAt   int64          `db:"created_at"`
	Deadline    sql.NullInt64  `db:"deadline"`
	CompletedAt sql.NullInt64  `db:"completed_at"`
	PhotoID     sql.NullString `db:"image_photo_id"`
	ThumbURL    sql.NullString `db:"image_thumb_url"`
	FullURL     sql.NullString `db:"image_full_url"`
}

var goalSchema = Schema[model.Goal, goalRow]{
	Kind:  model.GoalKind,
	Table: "goals",
	Columns: []string{
		"id", "owner_id", "category", "title", "notes", "progress",
		"created_at", "deadline", "completed_at",
		"image_photo_id", "image_thumb_url", "image_full_url",
	},
	OrderBy: "created_at ASC, id ASC",
	ToRow: func(g model.Goal) goalRow {
		r := goalRow{
			ID:          g.ID,
			OwnerID:     g.OwnerID,
			Category:    string(g.Category),
			Title:       g.Title,
			Notes:       g.Notes,
			Progress:    g.Progress,
			CreatedAt:   db.TimeToMillis(g.CreatedAt),
			Deadline:    db.TimeToNullMillis(g.Deadline),
			CompletedAt: db.TimeToNullMillis(g.CompletedAt),
		}
		if g.Image != nil {
			r.PhotoID = sql.NullString{String: g.Image.PhotoID, Valid: true}
			r.ThumbURL = sql.NullString{String: g.Image.ThumbURL, Valid: true}
			r.FullURL = sql.NullString{String: g.Image.FullURL, Valid: true}
		}
		return r
	},
	FromRow: func(r goalRow) model.Goal {
		g := model.Goal{
			ID:          r.ID,
			OwnerID:     r.OwnerID,
			Category:    model.CategoryFromKey(r.Category),
			Title:       r.Title,
			Notes:       r.Notes,
			Progress:    r.Progress,
			CreatedAt:   db.MillisToTime(r.CreatedAt),
			Deadline:    db.NullMillisToTime(r.Deadline),
			CompletedAt: db.NullMillisToTime(r.CompletedAt),
		}
		if r.PhotoID.Valid {
			g.Image = &model.Image{
				PhotoID:  r.PhotoID.String,
				ThumbURL: r.ThumbURL.String,
				FullURL:  r.FullURL.String,
			}
		}
		return g
	},
}

// NewGoalStore creates the goal store.
func NewGoalStore(d *db.DB, logger *log.Logger) *GoalStore {
	return New(d, goalSchema, logger)
}
