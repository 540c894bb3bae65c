// Package cloudsync moves records between the local store and the remote
// mirror.
//
// Pushes go out through a Pusher: every local write that needs mirroring
// spawns one supervised, independently failing task. Pulls are driven by a
// Coordinator that follows the identity stream and copies a user's remote
// records into the local store each time that user signs in.
package cloudsync

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/goalcoach/goalcoach/internal/metrics"
)

// PusherConfig holds configuration for a Pusher.
type PusherConfig struct {
	// Timeout bounds each task. Zero means no per-task limit.
	Timeout time.Duration

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// DefaultPusherConfig returns sensible defaults.
func DefaultPusherConfig() PusherConfig {
	return PusherConfig{
		Timeout: 30 * time.Second,
		Logger:  log.New(os.Stderr, "[cloudsync] ", log.LstdFlags),
	}
}

// Pusher runs fire-and-forget remote writes. Task failures and panics are
// logged and never reach the caller that spawned the task.
type Pusher struct {
	config PusherConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	idle    *sync.Cond
	closed  bool
	running int
}

// NewPusher creates a Pusher.
func NewPusher(config PusherConfig) *Pusher {
	if config.Logger == nil {
		config.Logger = DefaultPusherConfig().Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pusher{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
	p.idle = sync.NewCond(&p.mu)
	return p
}

// Go starts fn in its own goroutine and returns immediately. It reports
// false, without running fn, once the Pusher is closed.
func (p *Pusher) Go(name string, fn func(ctx context.Context) error) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.config.Logger.Printf("WARNING: Dropping push %s: pusher closed", name)
		return false
	}
	p.running++
	p.mu.Unlock()

	p.config.Metrics.PushStarted()
	go func() {
		defer p.done()
		defer p.config.Metrics.PushFinished()
		defer func() {
			if r := recover(); r != nil {
				p.config.Logger.Printf("ERROR: Push %s panicked: %v\n%s", name, r, debug.Stack())
			}
		}()

		ctx := p.ctx
		if p.config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
			defer cancel()
		}

		if err := fn(ctx); err != nil {
			p.config.Logger.Printf("WARNING: Push %s failed: %v", name, err)
		}
	}()
	return true
}

func (p *Pusher) done() {
	p.mu.Lock()
	p.running--
	if p.running == 0 {
		p.idle.Broadcast()
	}
	p.mu.Unlock()
}

// Wait blocks until no task is running. Tasks started while Wait blocks
// are waited for too. It is safe to call concurrently with Go.
func (p *Pusher) Wait() {
	p.mu.Lock()
	for p.running > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

// Close stops accepting tasks and waits for in-flight ones. If ctx ends
// first the remaining tasks are cancelled and Close still waits for them
// to return.
func (p *Pusher) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("failed to drain pushes: %w", ctx.Err())
	}
}
