package transfer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goalcoach/goalcoach/internal/identity"
	"github.com/goalcoach/goalcoach/internal/model"
)

// memColl is an owner-scoped Collection kept in memory.
type memColl[T any] struct {
	kind  model.Kind[T]
	owner string
	recs  []T
}

func (c *memColl[T]) Owner() string { return c.owner }

func (c *memColl[T]) List(context.Context) ([]T, error) {
	return c.recs, nil
}

func (c *memColl[T]) Upsert(_ context.Context, rec T) error {
	if c.kind.Owner(rec) == "" {
		rec = c.kind.WithOwner(rec, c.owner)
	}
	if err := c.kind.Validate(rec); err != nil {
		return err
	}
	for i, r := range c.recs {
		if c.kind.ID(r) == c.kind.ID(rec) {
			c.recs[i] = rec
			return nil
		}
	}
	c.recs = append(c.recs, rec)
	return nil
}

func newSet(owner string) (Set, *memColl[model.Goal], *memColl[model.JournalEntry], *memColl[model.Place]) {
	g := &memColl[model.Goal]{kind: model.GoalKind, owner: owner}
	j := &memColl[model.JournalEntry]{kind: model.JournalKind, owner: owner}
	p := &memColl[model.Place]{kind: model.PlaceKind, owner: owner}
	return Set{Goals: g, Journal: j, Places: p}, g, j, p
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 2, 3, 4, 5, 6, 7_000_000, time.UTC)
	deadline := at.AddDate(0, 1, 0)
	conf := 9

	src, goals, journal, places := newSet("u1")
	goals.recs = []model.Goal{{
		ID: "g1", OwnerID: "u1", Category: model.CategoryHome, Title: "Paint the fence",
		Progress: 30, CreatedAt: at, Deadline: &deadline,
		Image: &model.Image{PhotoID: "p", ThumbURL: "t", FullURL: "f"},
	}}
	journal.recs = []model.JournalEntry{{ID: "e1", OwnerID: "u1", GoalID: "g1", Body: "bought paint", Confidence: &conf, SubmittedAt: at}}
	places.recs = []model.Place{{ID: "p1", OwnerID: "u1", Name: "Shop", Latitude: 1.5, Longitude: -2.5, City: "Oslo", SavedAt: at}}

	var buf bytes.Buffer
	n, err := Export(ctx, &buf, src)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if n != (Counts{Goals: 1, Journal: 1, Places: 1}) {
		t.Errorf("Export counts = %+v", n)
	}
	if !strings.Contains(buf.String(), "title: Paint the fence") {
		t.Errorf("export missing goal title:\n%s", buf.String())
	}

	// Import into another account.
	dst, dGoals, dJournal, dPlaces := newSet("u2")
	n, err = Import(ctx, bytes.NewReader(buf.Bytes()), dst)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if n != (Counts{Goals: 1, Journal: 1, Places: 1}) {
		t.Errorf("Import counts = %+v", n)
	}

	g := dGoals.recs[0]
	if g.OwnerID != "u2" || g.Title != "Paint the fence" || !g.CreatedAt.Equal(at) || !g.Deadline.Equal(deadline) {
		t.Errorf("unexpected imported goal: %+v", g)
	}
	if g.Image == nil || g.Image.FullURL != "f" {
		t.Errorf("image not imported: %+v", g.Image)
	}
	e := dJournal.recs[0]
	if e.OwnerID != "u2" || e.Confidence == nil || *e.Confidence != 9 || e.GoalID != "g1" {
		t.Errorf("unexpected imported entry: %+v", e)
	}
	p := dPlaces.recs[0]
	if p.OwnerID != "u2" || p.Latitude != 1.5 || p.CityState() != "Oslo" {
		t.Errorf("unexpected imported place: %+v", p)
	}
}

func TestImport_SkipsInvalidRecords(t *testing.T) {
	doc := `version: 1
owner: u1
goals:
  - id: g1
    category: CAREER
    title: Ship it
    progress: 10
    created_at: 2025-01-01T00:00:00Z
  - id: g2
    category: CAREER
    title: ""
    created_at: 2025-01-01T00:00:00Z
`
	dst, goals, _, _ := newSet("u1")
	n, err := Import(context.Background(), strings.NewReader(doc), dst)
	if !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if n.Goals != 1 || len(goals.recs) != 1 || goals.recs[0].ID != "g1" {
		t.Errorf("expected only g1 imported, got %+v", goals.recs)
	}
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name  string
		owner string
		doc   string
		want  error
	}{
		{name: "signed out", owner: "", doc: "version: 1\n", want: identity.ErrNoSession},
		{name: "bad version", owner: "u1", doc: "version: 7\n"},
		{name: "not yaml", owner: "u1", doc: "{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst, _, _, _ := newSet(tt.owner)
			_, err := Import(context.Background(), strings.NewReader(tt.doc), dst)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestExport_SignedOut(t *testing.T) {
	src, _, _, _ := newSet("")
	var buf bytes.Buffer
	if _, err := Export(context.Background(), &buf, src); !errors.Is(err, identity.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}
