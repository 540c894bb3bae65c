package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Confidence bounds for journal entries.
const (
	MinConfidence = 0
	MaxConfidence = 10
)

// JournalEntry is a dated reflection, optionally linked to a goal.
//
// GoalID is a soft reference: deleting the goal leaves the entry in place,
// and readers treat an id that no longer resolves as unlinked.
type JournalEntry struct {
	ID          string    `json:"id" yaml:"id"`
	OwnerID     string    `json:"ownerId" yaml:"owner_id"`
	GoalID      string    `json:"goalId,omitempty" yaml:"goal_id,omitempty"`
	Body        string    `json:"entry" yaml:"entry"`
	Confidence  *int      `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	SubmittedAt time.Time `json:"dateSubmitted" yaml:"date_submitted"`
}

// NewJournalEntry builds an unowned entry submitted now. The body is trimmed
// and must not be blank.
func NewJournalEntry(goalID, body string, confidence *int) (JournalEntry, error) {
	text := strings.TrimSpace(body)
	if text == "" {
		return JournalEntry{}, fmt.Errorf("%w: journal entry body is required", ErrInvalid)
	}
	e := JournalEntry{
		ID:          uuid.NewString(),
		GoalID:      goalID,
		Body:        text,
		Confidence:  confidence,
		SubmittedAt: Now(),
	}
	return e, nil
}

// Linked reports whether the entry references a goal.
func (e JournalEntry) Linked() bool {
	return e.GoalID != ""
}

// Validate checks field values. A stored body may be edited but never
// blanked.
func (e JournalEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: journal entry id is required", ErrInvalid)
	}
	if e.OwnerID == "" {
		return fmt.Errorf("%w: journal entry %s has no owner", ErrInvalid, e.ID)
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Errorf("%w: journal entry %s body is required", ErrInvalid, e.ID)
	}
	if c := e.Confidence; c != nil && (*c < MinConfidence || *c > MaxConfidence) {
		return fmt.Errorf("%w: journal entry %s confidence must be between 0 and 10 (got %d)", ErrInvalid, e.ID, *c)
	}
	if e.SubmittedAt.IsZero() {
		return fmt.Errorf("%w: journal entry %s date_submitted is required", ErrInvalid, e.ID)
	}
	return nil
}
