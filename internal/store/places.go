package store

import (
	"database/sql"
	"log"

	"github.com/goalcoach/goalcoach/internal/db"
	"github.com/goalcoach/goalcoach/internal/model"
)

// PlaceStore stores places, most recently saved first.
type PlaceStore = Store[model.Place, placeRow]

type placeRow struct {
	ID        string         `db:"id"`
	OwnerID   string         `db:"owner_id"`
	Name      string         `db:"name"`
	Latitude  float64        `db:"latitude"`
	Longitude float64        `db:"longitude"`
	City      sql.NullString `db:"city"`
	State     sql.NullString `db:"state"`
	SavedAt   int64          `db:"saved_at"`
}

var placeSchema = Schema[model.Place, placeRow]{
	Kind:    model.PlaceKind,
	Table:   "places",
	Columns: []string{"id", "owner_id", "name", "latitude", "longitude", "city", "state", "saved_at"},
	OrderBy: "saved_at DESC, id ASC",
	ToRow: func(p model.Place) placeRow {
		return placeRow{
			ID:        p.ID,
			OwnerID:   p.OwnerID,
			Name:      p.Name,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			City:      sql.NullString{String: p.City, Valid: p.City != ""},
			State:     sql.NullString{String: p.State, Valid: p.State != ""},
			SavedAt:   db.TimeToMillis(p.SavedAt),
		}
	},
	FromRow: func(r placeRow) model.Place {
		return model.Place{
			ID:        r.ID,
			OwnerID:   r.OwnerID,
			Name:      r.Name,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			City:      r.City.String,
			State:     r.State.String,
			SavedAt:   db.MillisToTime(r.SavedAt),
		}
	},
}

// NewPlaceStore creates the place store.
func NewPlaceStore(d *db.DB, logger *log.Logger) *PlaceStore {
	return New(d, placeSchema, logger)
}
