package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Place is a saved location.
type Place struct {
	ID        string    `json:"id" yaml:"id"`
	OwnerID   string    `json:"ownerId" yaml:"owner_id"`
	Name      string    `json:"name" yaml:"name"`
	Latitude  float64   `json:"lat" yaml:"lat"`
	Longitude float64   `json:"lon" yaml:"lon"`
	City      string    `json:"city,omitempty" yaml:"city,omitempty"`
	State     string    `json:"state,omitempty" yaml:"state,omitempty"`
	SavedAt   time.Time `json:"dateSaved" yaml:"date_saved"`
}

// NewPlace builds an unowned place saved now.
func NewPlace(name string, lat, lon float64, city, state string) Place {
	return Place{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Latitude:  lat,
		Longitude: lon,
		City:      city,
		State:     state,
		SavedAt:   Now(),
	}
}

// CityState returns "City, State" from whichever parts are present, or
// "Unknown".
func (p Place) CityState() string {
	var parts []string
	for _, s := range []string{p.City, p.State} {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, ", ")
}

// Validate checks field values.
func (p Place) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: place id is required", ErrInvalid)
	}
	if p.OwnerID == "" {
		return fmt.Errorf("%w: place %s has no owner", ErrInvalid, p.ID)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: place %s name is required", ErrInvalid, p.ID)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: place %s latitude out of range (got %f)", ErrInvalid, p.ID, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: place %s longitude out of range (got %f)", ErrInvalid, p.ID, p.Longitude)
	}
	if p.SavedAt.IsZero() {
		return fmt.Errorf("%w: place %s date_saved is required", ErrInvalid, p.ID)
	}
	return nil
}
