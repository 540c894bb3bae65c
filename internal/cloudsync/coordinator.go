package cloudsync

import (
	"context"
	"log"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/goalcoach/goalcoach/internal/identity"
	"github.com/goalcoach/goalcoach/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Phase is the coordinator's activity.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePulling Phase = "pulling"
)

// State reports what the coordinator is doing. Owners lists the users with
// a pull in flight; more than one appears when the identity changed while
// an earlier pull was still running.
type State struct {
	Phase  Phase
	Owners []string
}

// PullResult summarizes one pull.
type PullResult struct {
	Owner    string
	Applied  map[string]int   // kind name -> records written
	Errors   map[string]error // kind name -> failure, absent on success
	Duration time.Duration
}

// Config holds configuration for a Coordinator.
type Config struct {
	// Concurrency caps how many kinds are pulled at once. Zero or less
	// pulls every kind at once.
	Concurrency int

	// Timeout bounds each pull. Zero means no limit.
	Timeout time.Duration

	// OnPullComplete, if set, is called after every pull.
	OnPullComplete func(PullResult)

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Coordinator pulls a user's remote records into the local store each time
// that user becomes the active identity. Signing out deletes nothing and
// there is no periodic re-pull.
type Coordinator struct {
	identity identity.Stream
	pullers  []Puller
	config   Config

	mu      sync.Mutex
	pulling map[string]int

	wg sync.WaitGroup
}

// NewCoordinator creates a Coordinator for the given pullers.
func NewCoordinator(ids identity.Stream, pullers []Puller, config Config) *Coordinator {
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[cloudsync] ", log.LstdFlags)
	}
	return &Coordinator{
		identity: ids,
		pullers:  pullers,
		config:   config,
		pulling:  make(map[string]int),
	}
}

// Run follows the identity stream until ctx is cancelled. Each transition
// to a non-empty identity starts one pull in the background; repeated
// emissions of the same identity are ignored. A pull still running for a
// previous identity is left to finish. Run waits for all pulls before
// returning.
func (c *Coordinator) Run(ctx context.Context) error {
	sub := c.identity.Subscribe()
	defer sub.Cancel()
	defer c.wg.Wait()

	last := ""
	for {
		select {
		case <-ctx.Done():
			return nil
		case uid, ok := <-sub.C:
			if !ok {
				return nil
			}
			if uid == last {
				continue
			}
			last = uid
			if uid == "" {
				c.config.Logger.Println("Signed out; keeping local data")
				continue
			}

			c.wg.Add(1)
			go func(owner string) {
				defer c.wg.Done()
				c.Pull(ctx, owner)
			}(uid)
		}
	}
}

// Pull copies every kind for owner from the mirror into the local store and
// blocks until done. Kinds are pulled concurrently and a failure in one
// kind does not affect the others.
func (c *Coordinator) Pull(ctx context.Context, owner string) PullResult {
	start := time.Now()
	c.enter(owner)

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	c.config.Logger.Printf("Pulling remote records for %s", owner)

	res := PullResult{
		Owner:   owner,
		Applied: make(map[string]int, len(c.pullers)),
		Errors:  make(map[string]error),
	}
	var mu sync.Mutex

	var g errgroup.Group
	if c.config.Concurrency > 0 {
		g.SetLimit(c.config.Concurrency)
	}
	for _, p := range c.pullers {
		g.Go(func() error {
			n, err := p.Pull(ctx, owner)

			mu.Lock()
			defer mu.Unlock()
			res.Applied[p.Name()] = n
			if err != nil {
				res.Errors[p.Name()] = err
			}
			// Never fail the group: one kind must not cancel another.
			return nil
		})
	}
	_ = g.Wait()
	c.leave(owner)

	res.Duration = time.Since(start)
	c.config.Metrics.ObservePull(start)

	if len(res.Errors) > 0 {
		c.config.Logger.Printf("WARNING: Pull for %s finished with %d failed kind(s) in %v", owner, len(res.Errors), res.Duration)
	} else {
		c.config.Logger.Printf("Pull for %s finished in %v", owner, res.Duration)
	}

	if c.config.OnPullComplete != nil {
		c.config.OnPullComplete(res)
	}
	return res
}

// State reports the current phase.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pulling) == 0 {
		return State{Phase: PhaseIdle}
	}
	owners := make([]string, 0, len(c.pulling))
	for o := range c.pulling {
		owners = append(owners, o)
	}
	slices.Sort(owners)
	return State{Phase: PhasePulling, Owners: owners}
}

func (c *Coordinator) enter(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pulling[owner]++
}

func (c *Coordinator) leave(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pulling[owner]--
	if c.pulling[owner] <= 0 {
		delete(c.pulling, owner)
	}
}
