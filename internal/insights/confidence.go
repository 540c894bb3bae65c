// Package insights derives charts from journal and goal records.
package insights

import (
	"context"
	"hash/fnv"
	"slices"
	"strings"
	"time"

	"github.com/goalcoach/goalcoach/internal/model"
)

// Window is how far back the confidence trend looks.
const Window = 90 * 24 * time.Hour

// Series keys and labels for entries without a goal, and for entries whose
// goal no longer exists.
const (
	GeneralKey   = "GENERAL"
	GeneralLabel = "General"
	UnknownLabel = "Unknown Goal"
)

var palette = []uint32{
	0xFF3a86ff, // blue
	0xFF04a777, // green
	0xFFef233c, // red
	0xFFfb5607, // orange
	0xFF8338ec, // purple
	0xFF54cfaa, // cyan
	0xFFffbe0b, // yellow
	0xFF795548, // brown
	0xFFff006e, // pink
	0xFF046e8f, // blue grey
}

// Point is one confidence rating.
type Point struct {
	At         time.Time `json:"at"`
	Confidence int       `json:"confidence"`
}

// Series is the confidence history of one goal, or of unlinked entries.
type Series struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Color  uint32  `json:"color"` // ARGB
	Points []Point `json:"points"`
}

// ColorFor returns the stable palette color for a series key.
func ColorFor(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return palette[h.Sum32()%uint32(len(palette))]
}

// ConfidenceTrend groups rated entries by goal. Entries without a rating are
// ignored. Points are in submission order, series without points are
// dropped, and series are sorted by label.
func ConfidenceTrend(entries []model.JournalEntry, goals []model.Goal) []Series {
	titles := make(map[string]string, len(goals))
	for _, g := range goals {
		titles[g.ID] = g.Title
	}

	byKey := make(map[string]*Series)
	for _, e := range entries {
		if e.Confidence == nil {
			continue
		}
		key := GeneralKey
		if e.Linked() {
			key = e.GoalID
		}
		s, ok := byKey[key]
		if !ok {
			s = &Series{Key: key, Label: label(key, titles), Color: ColorFor(key)}
			byKey[key] = s
		}
		s.Points = append(s.Points, Point{At: e.SubmittedAt, Confidence: *e.Confidence})
	}

	out := make([]Series, 0, len(byKey))
	for _, s := range byKey {
		slices.SortStableFunc(s.Points, func(a, b Point) int { return a.At.Compare(b.At) })
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b Series) int {
		if c := strings.Compare(a.Label, b.Label); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return out
}

func label(key string, titles map[string]string) string {
	if key == GeneralKey {
		return GeneralLabel
	}
	if t, ok := titles[key]; ok {
		return t
	}
	return UnknownLabel
}

// EntrySource observes rated journal entries.
type EntrySource interface {
	ObserveConfidenceSince(ctx context.Context, since time.Time) <-chan []model.JournalEntry
}

// GoalSource observes goals.
type GoalSource interface {
	Observe(ctx context.Context) <-chan []model.Goal
}

// WatchConfidence observes the confidence trend over the Window ending at
// now. A new trend is sent whenever the entries or the goals change, once
// both have been seen. A slow reader skips to the latest trend. The channel
// is closed once ctx is cancelled.
func WatchConfidence(ctx context.Context, entries EntrySource, goals GoalSource, now time.Time) <-chan []Series {
	out := make(chan []Series, 1)
	entryCh := entries.ObserveConfidenceSince(ctx, now.Add(-Window))
	goalCh := goals.Observe(ctx)

	go func() {
		defer close(out)

		var (
			es           []model.JournalEntry
			gs           []model.Goal
			haveE, haveG bool
		)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-entryCh:
				if !ok {
					return
				}
				es, haveE = v, true
			case v, ok := <-goalCh:
				if !ok {
					return
				}
				gs, haveG = v, true
			}
			if !haveE || !haveG {
				continue
			}

			trend := ConfidenceTrend(es, gs)
			select {
			case <-out:
			default:
			}
			out <- trend
		}
	}()

	return out
}
