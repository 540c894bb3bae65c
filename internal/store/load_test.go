package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"
)

// latencyStats summarizes write latencies.
type latencyStats struct {
	P50, P95, Max time.Duration
}

func computeLatencyStats(d []time.Duration) latencyStats {
	if len(d) == 0 {
		return latencyStats{}
	}
	slices.Sort(d)
	at := func(p float64) time.Duration { return d[int(float64(len(d)-1)*p)] }
	return latencyStats{P50: at(0.50), P95: at(0.95), Max: d[len(d)-1]}
}

// TestConcurrentWriters has several owners write at once while each owner's
// observer is open. No write may be lost and no observer may see another
// owner's records.
func TestConcurrentWriters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load test in short mode")
	}

	const (
		owners   = 8
		perOwner = 25
	)
	s := NewGoalStore(testDB(t), quiet)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		durations []time.Duration
		leaked    = make(chan string, owners)
	)
	for o := range owners {
		owner := fmt.Sprintf("u%d", o)

		obs := s.ObserveForOwner(ctx, owner)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for snap := range obs {
				for _, g := range snap {
					if g.OwnerID != owner {
						leaked <- g.ID
						return
					}
				}
				if len(snap) == perOwner {
					return
				}
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			for i := range perOwner {
				start := time.Now()
				err := s.Upsert(ctx, goal(fmt.Sprintf("%s-g%d", owner, i), owner, created.Add(time.Duration(i)*time.Minute)))
				elapsed := time.Since(start)
				if err != nil {
					t.Errorf("upsert failed: %v", err)
					return
				}
				mu.Lock()
				durations = append(durations, elapsed)
				mu.Unlock()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case id := <-leaked:
		t.Fatalf("observer saw another owner's goal %s", id)
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for writers and observers")
	}

	for o := range owners {
		got, err := s.ListForOwner(context.Background(), fmt.Sprintf("u%d", o))
		if err != nil {
			t.Fatalf("ListForOwner failed: %v", err)
		}
		if len(got) != perOwner {
			t.Errorf("owner u%d: got %d goals, want %d", o, len(got), perOwner)
		}
	}

	st := computeLatencyStats(durations)
	t.Logf("upserts: %d, p50 %v, p95 %v, max %v", len(durations), st.P50, st.P95, st.Max)
}

func benchmarkListForOwner(b *testing.B, n int) {
	s := NewGoalStore(testDB(b), quiet)
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range n {
		owner := "u1"
		if i%2 == 1 {
			owner = "u2"
		}
		if err := s.Upsert(ctx, goal(fmt.Sprintf("g%d", i), owner, created.Add(time.Duration(i)*time.Second))); err != nil {
			b.Fatalf("failed to seed goal: %v", err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.ListForOwner(ctx, "u1"); err != nil {
			b.Fatalf("ListForOwner failed: %v", err)
		}
	}
}

func BenchmarkListForOwner_100(b *testing.B) { benchmarkListForOwner(b, 100) }
func BenchmarkListForOwner_1000(b *testing.B) { benchmarkListForOwner(b, 1000) }

func BenchmarkUpsert(b *testing.B) {
	s := NewGoalStore(testDB(b), quiet)
	ctx := context.Background()
	g := goal("g1", "u1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Progress = i % 100
		if err := s.Upsert(ctx, g); err != nil {
			b.Fatalf("Upsert failed: %v", err)
		}
	}
}
