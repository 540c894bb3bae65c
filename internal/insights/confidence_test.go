package insights

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/goalcoach/goalcoach/internal/model"
)

func rated(id, goalID string, conf int, at time.Time) model.JournalEntry {
	return model.JournalEntry{ID: id, OwnerID: "u1", GoalID: goalID, Body: id, Confidence: &conf, SubmittedAt: at}
}

func TestConfidenceTrend(t *testing.T) {
	t0 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	day := func(n int) time.Time { return t0.AddDate(0, 0, n) }

	goals := []model.Goal{
		{ID: "g1", Title: "Run a marathon"},
		{ID: "g2", Title: "Build a shed"},
		{ID: "g3", Title: "Unrated"},
	}
	entries := []model.JournalEntry{
		rated("e1", "g1", 4, day(3)),
		rated("e2", "g1", 6, day(1)),
		rated("e3", "", 8, day(2)),
		rated("e4", "deleted", 2, day(4)),
		rated("e5", "g2", 5, day(5)),
		{ID: "e6", GoalID: "g3", Body: "no rating", SubmittedAt: day(6)},
	}

	got := ConfidenceTrend(entries, goals)

	want := []Series{
		{Key: "g2", Label: "Build a shed", Color: ColorFor("g2"), Points: []Point{{At: day(5), Confidence: 5}}},
		{Key: GeneralKey, Label: GeneralLabel, Color: ColorFor(GeneralKey), Points: []Point{{At: day(2), Confidence: 8}}},
		{Key: "g1", Label: "Run a marathon", Color: ColorFor("g1"), Points: []Point{
			{At: day(1), Confidence: 6},
			{At: day(3), Confidence: 4},
		}},
		{Key: "deleted", Label: UnknownLabel, Color: ColorFor("deleted"), Points: []Point{{At: day(4), Confidence: 2}}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ConfidenceTrend() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestConfidenceTrend_Empty(t *testing.T) {
	got := ConfidenceTrend(nil, nil)
	if len(got) != 0 {
		t.Errorf("expected no series, got %+v", got)
	}
}

func TestColorFor(t *testing.T) {
	for _, key := range []string{"", GeneralKey, "g1", "8f7c1c9e-2d1b-4a7e-9a53-0c5f0e3a7b21"} {
		c := ColorFor(key)
		if c != ColorFor(key) {
			t.Errorf("ColorFor(%q) is not stable", key)
		}
		found := false
		for _, p := range palette {
			if p == c {
				found = true
			}
		}
		if !found {
			t.Errorf("ColorFor(%q) = %#x, not in palette", key, c)
		}
	}
}

type fakeEntries struct {
	since time.Time
	ch    chan []model.JournalEntry
}

func (f *fakeEntries) ObserveConfidenceSince(ctx context.Context, since time.Time) <-chan []model.JournalEntry {
	f.since = since
	return f.ch
}

type fakeGoals struct {
	ch chan []model.Goal
}

func (f *fakeGoals) Observe(ctx context.Context) <-chan []model.Goal {
	return f.ch
}

func TestWatchConfidence(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	entries := &fakeEntries{ch: make(chan []model.JournalEntry)}
	goals := &fakeGoals{ch: make(chan []model.Goal)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := WatchConfidence(ctx, entries, goals, now)

	if want := now.Add(-Window); !entries.since.Equal(want) {
		t.Errorf("since = %v, want %v", entries.since, want)
	}

	entries.ch <- []model.JournalEntry{rated("e1", "g1", 7, now.Add(-time.Hour))}
	select {
	case s := <-out:
		t.Fatalf("trend sent before goals were seen: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}

	goals.ch <- []model.Goal{{ID: "g1", Title: "Sleep early"}}
	select {
	case s := <-out:
		if len(s) != 1 || s[0].Label != "Sleep early" {
			t.Errorf("unexpected trend: %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for trend")
	}

	goals.ch <- []model.Goal{}
	select {
	case s := <-out:
		if len(s) != 1 || s[0].Label != UnknownLabel {
			t.Errorf("unexpected trend after goal removal: %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for trend")
	}

	close(entries.ch)
	select {
	case _, ok := <-out:
		if ok {
			t.Error("expected channel to close when entries end")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed")
	}
}
