package repository

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/goalcoach/goalcoach/internal/identity"
	"github.com/goalcoach/goalcoach/internal/model"
)

// GoalRepository reads and writes the active identity's goals.
type GoalRepository struct {
	*Repository[model.Goal]
}

// NewGoalRepository creates the goal repository.
func NewGoalRepository(local LocalStore[model.Goal], remote RemoteMirror[model.Goal], ids identity.Stream, pusher Spawner, logger *log.Logger) *GoalRepository {
	return &GoalRepository{
		Repository: New(model.GoalKind, local, remote, ids, pusher, logger),
	}
}

// Add saves a new goal owned by the active identity and returns it.
func (r *GoalRepository) Add(ctx context.Context, title string, category model.Category, notes string, deadline *time.Time) (model.Goal, error) {
	owner, err := r.requireOwner()
	if err != nil {
		return model.Goal{}, err
	}

	g := model.NewGoal(title, category, notes, deadline)
	g.OwnerID = owner
	if err := g.Validate(); err != nil {
		return model.Goal{}, err
	}
	if err := r.Upsert(ctx, g); err != nil {
		return model.Goal{}, err
	}
	return g, nil
}

// UpdateProgress sets the goal's progress, clamped to 0-100, and keeps its
// completion time in step.
func (r *GoalRepository) UpdateProgress(ctx context.Context, id string, progress int) (model.Goal, error) {
	g, err := r.Get(ctx, id)
	if err != nil {
		return model.Goal{}, err
	}

	g = g.WithProgress(progress, r.now())
	if err := r.Upsert(ctx, g); err != nil {
		return model.Goal{}, fmt.Errorf("failed to update goal progress: %w", err)
	}
	return g, nil
}

// GoalEdit holds the user-editable goal fields. Nil fields are left
// unchanged.
type GoalEdit struct {
	Title    *string
	Category *model.Category
	Notes    *string

	Deadline      *time.Time
	ClearDeadline bool

	Image      *model.Image
	ClearImage bool
}

// Update applies edit to the goal. Progress and completion are untouched.
func (r *GoalRepository) Update(ctx context.Context, id string, edit GoalEdit) (model.Goal, error) {
	g, err := r.Get(ctx, id)
	if err != nil {
		return model.Goal{}, err
	}

	if edit.Title != nil {
		g.Title = strings.TrimSpace(*edit.Title)
	}
	if edit.Category != nil {
		g.Category = *edit.Category
	}
	if edit.Notes != nil {
		g.Notes = *edit.Notes
	}
	switch {
	case edit.ClearDeadline:
		g.Deadline = nil
	case edit.Deadline != nil:
		d := edit.Deadline.UTC().Truncate(time.Millisecond)
		g.Deadline = &d
	}
	switch {
	case edit.ClearImage:
		g.Image = nil
	case edit.Image != nil:
		img := *edit.Image
		g.Image = &img
	}

	if err := g.Validate(); err != nil {
		return model.Goal{}, err
	}
	if err := r.Upsert(ctx, g); err != nil {
		return model.Goal{}, fmt.Errorf("failed to update goal: %w", err)
	}
	return g, nil
}
