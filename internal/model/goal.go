package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Progress bounds for goals.
const (
	MinProgress = 0
	MaxProgress = 100
)

// Image is a cover photo picked from an external photo search.
// ThumbURL is used in lists, FullURL on the vision board.
type Image struct {
	PhotoID  string `json:"photoId" yaml:"photo_id"`
	ThumbURL string `json:"thumbUrl" yaml:"thumb_url"`
	FullURL  string `json:"fullUrl" yaml:"full_url"`
}

// Goal is a user goal tracked by percentage progress.
type Goal struct {
	ID       string   `json:"id" yaml:"id"`
	OwnerID  string   `json:"ownerId" yaml:"owner_id"`
	Category Category `json:"category" yaml:"category"`
	Title    string   `json:"title" yaml:"title"`
	Notes    string   `json:"notes" yaml:"notes"`
	Progress int      `json:"progress" yaml:"progress"`

	CreatedAt   time.Time  `json:"createdAt" yaml:"created_at"`
	Deadline    *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty" yaml:"completed_at,omitempty"`

	Image *Image `json:"image,omitempty" yaml:"image,omitempty"`
}

// NewGoal builds an unowned goal with a fresh id and zero progress.
// The repository stamps the owner when the goal is saved.
func NewGoal(title string, category Category, notes string, deadline *time.Time) Goal {
	return Goal{
		ID:        uuid.NewString(),
		Category:  CategoryFromKey(string(category)),
		Title:     strings.TrimSpace(title),
		Notes:     notes,
		Progress:  MinProgress,
		CreatedAt: Now(),
		Deadline:  truncate(deadline),
	}
}

// IsCompleted reports whether the goal has reached full progress.
func (g Goal) IsCompleted() bool {
	return g.Progress >= MaxProgress
}

// WithProgress returns a copy with progress set to p, clamped to 0-100.
// CompletedAt is set to now when progress crosses into 100 and cleared when
// it drops below 100; otherwise it is left untouched.
func (g Goal) WithProgress(p int, now time.Time) Goal {
	p = max(MinProgress, min(MaxProgress, p))

	wasCompleted := g.IsCompleted()
	isCompleted := p >= MaxProgress

	switch {
	case !wasCompleted && isCompleted:
		t := now.UTC().Truncate(time.Millisecond)
		g.CompletedAt = &t
	case wasCompleted && !isCompleted:
		g.CompletedAt = nil
	}

	g.Progress = p
	return g
}

// WithCompletionFrom returns a copy whose CompletedAt agrees with its
// progress. Below 100 it is nil. At 100 the goal keeps its own completion
// time, or else prev's if prev was already completed, or else now.
func (g Goal) WithCompletionFrom(prev *Goal, now time.Time) Goal {
	if !g.IsCompleted() {
		g.CompletedAt = nil
		return g
	}
	switch {
	case g.CompletedAt != nil:
	case prev != nil && prev.IsCompleted() && prev.CompletedAt != nil:
		t := *prev.CompletedAt
		g.CompletedAt = &t
	default:
		t := now.UTC().Truncate(time.Millisecond)
		g.CompletedAt = &t
	}
	return g
}

// Validate checks field values.
func (g Goal) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("%w: goal id is required", ErrInvalid)
	}
	if g.OwnerID == "" {
		return fmt.Errorf("%w: goal %s has no owner", ErrInvalid, g.ID)
	}
	if strings.TrimSpace(g.Title) == "" {
		return fmt.Errorf("%w: goal %s title is required", ErrInvalid, g.ID)
	}
	if !g.Category.Valid() {
		return fmt.Errorf("%w: goal %s has unknown category %q", ErrInvalid, g.ID, g.Category)
	}
	if g.Progress < MinProgress || g.Progress > MaxProgress {
		return fmt.Errorf("%w: goal %s progress must be between 0 and 100 (got %d)", ErrInvalid, g.ID, g.Progress)
	}
	if g.CreatedAt.IsZero() {
		return fmt.Errorf("%w: goal %s created_at is required", ErrInvalid, g.ID)
	}
	return nil
}

func truncate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Millisecond)
	return &v
}
