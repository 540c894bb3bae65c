package repository

import (
	"context"
	"log"

	"github.com/goalcoach/goalcoach/internal/identity"
	"github.com/goalcoach/goalcoach/internal/model"
)

// PlaceRepository reads and writes the active identity's saved places.
type PlaceRepository struct {
	*Repository[model.Place]
}

// NewPlaceRepository creates the place repository.
func NewPlaceRepository(local LocalStore[model.Place], remote RemoteMirror[model.Place], ids identity.Stream, pusher Spawner, logger *log.Logger) *PlaceRepository {
	return &PlaceRepository{Repository: New(model.PlaceKind, local, remote, ids, pusher, logger)}
}

// Add saves a new place owned by the active identity.
func (r *PlaceRepository) Add(ctx context.Context, name string, lat, lon float64, city, state string) (model.Place, error) {
	owner, err := r.requireOwner()
	if err != nil {
		return model.Place{}, err
	}

	p := model.NewPlace(name, lat, lon, city, state)
	p.OwnerID = owner
	if err := p.Validate(); err != nil {
		return model.Place{}, err
	}
	if err := r.Upsert(ctx, p); err != nil {
		return model.Place{}, err
	}
	return p, nil
}

// DeleteAllForOwner removes every saved place of the active identity,
// locally and then remotely in the background.
func (r *PlaceRepository) DeleteAllForOwner(ctx context.Context) error {
	return r.deleteAll(ctx)
}
