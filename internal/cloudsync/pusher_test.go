package cloudsync

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// syncBuffer is a log sink safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestPusher(timeout time.Duration) (*Pusher, *syncBuffer) {
	out := &syncBuffer{}
	return NewPusher(PusherConfig{Timeout: timeout, Logger: log.New(out, "", 0)}), out
}

func TestPusher_RunsTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, _ := newTestPusher(time.Second)
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, p.Go("task", func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, int32(10), ran.Load())
}

func TestPusher_FailuresAreLoggedNotSurfaced(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, out := newTestPusher(time.Second)
	p.Go("upsert goals/g1", func(context.Context) error { return errors.New("offline") })
	p.Go("panicky", func(context.Context) error { panic("boom") })
	p.Wait()

	logs := out.String()
	assert.Contains(t, logs, "Push upsert goals/g1 failed: offline")
	assert.Contains(t, logs, "Push panicky panicked: boom")
	require.NoError(t, p.Close(context.Background()))
}

func TestPusher_TaskTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, out := newTestPusher(20 * time.Millisecond)
	p.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	p.Wait()

	assert.Contains(t, out.String(), context.DeadlineExceeded.Error())
	require.NoError(t, p.Close(context.Background()))
}

func TestPusher_CloseRejectsNewTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, _ := newTestPusher(0)
	require.NoError(t, p.Close(context.Background()))

	called := false
	assert.False(t, p.Go("late", func(context.Context) error {
		called = true
		return nil
	}))
	assert.False(t, called)
}

func TestPusher_CloseCancelsAfterDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, _ := newTestPusher(0)
	started := make(chan struct{})
	p.Go("stuck", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPusher_WaitAlongsideGo(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, _ := newTestPusher(time.Second)
	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Go("task", func(context.Context) error {
				ran.Add(1)
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			p.Wait()
		}()
	}
	wg.Wait()

	p.Wait()
	assert.Equal(t, int32(20), ran.Load())
	require.NoError(t, p.Close(context.Background()))
}
