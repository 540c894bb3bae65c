package remote

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/goalcoach/goalcoach/internal/metrics"
	"github.com/goalcoach/goalcoach/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = log.New(io.Discard, "", 0)

func testGoal(id, owner string) model.Goal {
	return model.Goal{
		ID:        id,
		OwnerID:   owner,
		Category:  model.CategoryHome,
		Title:     "goal " + id,
		Progress:  50,
		CreatedAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMirror_UpsertAndFetchAll(t *testing.T) {
	mem := NewMemory()
	m := NewMirror(mem, model.GoalKind, quiet, nil)
	ctx := context.Background()

	g1, g2 := testGoal("g1", "u1"), testGoal("g2", "u1")
	require.NoError(t, m.Upsert(ctx, "u1", g1))
	require.NoError(t, m.Upsert(ctx, "u1", g2))
	require.NoError(t, m.Upsert(ctx, "u2", testGoal("g3", "u2")))

	got := m.FetchAll(ctx, "u1")
	assert.Equal(t, []model.Goal{g1, g2}, got)

	data, ok := mem.Get("u1", "goals", "g1")
	require.True(t, ok)
	assert.Contains(t, string(data), `"title":"goal g1"`)
}

func TestMirror_Delete(t *testing.T) {
	mem := NewMemory()
	m := NewMirror(mem, model.GoalKind, quiet, nil)
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, "u1", testGoal("g1", "u1")))
	require.NoError(t, m.Delete(ctx, "u1", "g1"))
	require.NoError(t, m.Delete(ctx, "u1", "g1"))
	assert.Empty(t, m.FetchAll(ctx, "u1"))
}

func TestMirror_DeleteAllContinuesPastFailures(t *testing.T) {
	mem := NewMemory()
	m := NewMirror(mem, model.PlaceKind, quiet, nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.Upsert(ctx, "u1", model.Place{ID: id, OwnerID: "u1", Name: id}))
	}
	fault := errors.New("permission denied")
	mem.FailID(MemDelete, "b", fault)

	err := m.DeleteAll(ctx, "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, fault)

	left := m.FetchAll(ctx, "u1")
	require.Len(t, left, 1)
	assert.Equal(t, "b", left[0].ID)
}

func TestMirror_DeleteAllListFailure(t *testing.T) {
	mem := NewMemory()
	m := NewMirror(mem, model.PlaceKind, quiet, nil)
	mem.Fail(MemList, errors.New("offline"))

	assert.Error(t, m.DeleteAll(context.Background(), "u1"))
}

func TestMirror_FetchAllFailureYieldsEmpty(t *testing.T) {
	mem := NewMemory()
	met := metrics.New(nil)
	m := NewMirror(mem, model.GoalKind, quiet, met)
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, "u1", testGoal("g1", "u1")))
	mem.Fail(MemList, errors.New("offline"))

	got := m.FetchAll(ctx, "u1")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(met.PullFailures.WithLabelValues("goals", metrics.OpFetch)))
}

func TestMirror_FetchAllSkipsUndecodable(t *testing.T) {
	mem := NewMemory()
	met := metrics.New(nil)
	m := NewMirror(mem, model.GoalKind, quiet, met)
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, "u1", testGoal("g1", "u1")))
	mem.Seed("u1", "goals", "broken", []byte("{not json"))

	got := m.FetchAll(ctx, "u1")
	require.Len(t, got, 1)
	assert.Equal(t, "g1", got[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Skipped.WithLabelValues("goals", "decode")))
}

func TestMirror_RecordsPushMetrics(t *testing.T) {
	mem := NewMemory()
	met := metrics.New(nil)
	m := NewMirror(mem, model.GoalKind, quiet, met)
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, "u1", testGoal("g1", "u1")))
	mem.Fail(MemPut, errors.New("offline"))
	require.Error(t, m.Upsert(ctx, "u1", testGoal("g1", "u1")))

	assert.Equal(t, 1.0, testutil.ToFloat64(met.Pushes.WithLabelValues("goals", metrics.OpUpsert, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Pushes.WithLabelValues("goals", metrics.OpUpsert, "error")))
}

func TestMemory_HoldBlocksWrites(t *testing.T) {
	mem := NewMemory()
	release := mem.Hold()

	done := make(chan error, 1)
	go func() { done <- mem.Put(context.Background(), "u1", "goals", "g1", []byte("{}")) }()

	select {
	case <-done:
		t.Fatal("Put returned while held")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := mem.List(context.Background(), "u1", "goals")
	require.NoError(t, err, "List must not be held")

	release()
	release()
	require.NoError(t, <-done)

	ctx, cancel := context.WithCancel(context.Background())
	mem.Hold()
	cancel()
	assert.ErrorIs(t, mem.Put(ctx, "u1", "goals", "g2", nil), context.Canceled)
	assert.Len(t, mem.Calls(), 3)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, None{}, b)

	b, err = Open(ctx, Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, b)

	_, err = Open(ctx, Config{Backend: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	b, err = Open(ctx, Config{Backend: BackendRedis})
	assert.Error(t, err)
	assert.Nil(t, b)

	_, err = Open(ctx, Config{Backend: BackendS3})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Backend: BackendLibSQL})
	assert.Error(t, err)
}

func TestNone(t *testing.T) {
	ctx := context.Background()
	m := NewMirror(None{}, model.GoalKind, quiet, nil)

	require.NoError(t, m.Upsert(ctx, "u1", testGoal("g1", "u1")))
	require.NoError(t, m.Delete(ctx, "u1", "g1"))
	require.NoError(t, m.DeleteAll(ctx, "u1"))
	assert.Empty(t, m.FetchAll(ctx, "u1"))
}
