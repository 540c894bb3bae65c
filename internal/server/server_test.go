package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/goalcoach/goalcoach/internal/cloudsync"
	"github.com/goalcoach/goalcoach/internal/db"
	"github.com/goalcoach/goalcoach/internal/identity"
	"github.com/goalcoach/goalcoach/internal/metrics"
	"github.com/goalcoach/goalcoach/internal/model"
	"github.com/goalcoach/goalcoach/internal/remote"
	"github.com/goalcoach/goalcoach/internal/repository"
	"github.com/goalcoach/goalcoach/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = log.New(io.Discard, "", 0)

type fixture struct {
	ids     *identity.Source
	backend *remote.Memory
	pusher  *cloudsync.Pusher
	repos   Repos
	server  *Server
	http    *httptest.Server
}

func newFixture(t *testing.T, owner string) *fixture {
	t.Helper()

	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.Migrate(context.Background(), quiet))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	f := &fixture{
		ids:     identity.NewSource(owner),
		backend: remote.NewMemory(),
		pusher:  cloudsync.NewPusher(cloudsync.PusherConfig{Timeout: 5 * time.Second, Logger: quiet, Metrics: m}),
	}
	t.Cleanup(func() { _ = f.pusher.Close(context.Background()) })

	goals := store.NewGoalStore(d, quiet)
	journal := store.NewJournalStore(d, quiet)
	places := store.NewPlaceStore(d, quiet)
	f.repos = Repos{
		Goals: repository.NewGoalRepository(goals,
			remote.NewMirror(f.backend, model.GoalKind, quiet, m), f.ids, f.pusher, quiet),
		Journal: repository.NewJournalRepository(journal, store.NewJournalQueries(journal),
			remote.NewMirror(f.backend, model.JournalKind, quiet, m), f.ids, f.pusher, quiet),
		Places: repository.NewPlaceRepository(places,
			remote.NewMirror(f.backend, model.PlaceKind, quiet, m), f.ids, f.pusher, quiet),
	}

	f.server = NewServer(f.repos, &Config{Port: 0, Gatherer: reg, Logger: quiet})
	f.http = httptest.NewServer(f.server.Handler())
	t.Cleanup(func() {
		_ = f.server.Stop()
		f.http.Close()
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.http.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (f *fixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + path
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Message) bool) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var msg Message
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		if match(msg) {
			return msg
		}
	}
}

func goalsIn(t *testing.T, msg Message) []model.Goal {
	t.Helper()
	var gs []model.Goal
	require.NoError(t, json.Unmarshal(msg.Data, &gs))
	return gs
}

func newGoal(id string, progress int) model.Goal {
	return model.Goal{
		ID:        id,
		Category:  model.CategoryHome,
		Title:     "Fix the roof",
		Progress:  progress,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestGoalAPI(t *testing.T) {
	f := newFixture(t, "u1")

	resp, body := f.do(t, http.MethodPut, "/api/goals/g1", newGoal("g1", 40))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var stored model.Goal
	require.NoError(t, json.Unmarshal(body, &stored))
	assert.Equal(t, "u1", stored.OwnerID)

	resp, body = f.do(t, http.MethodPost, "/api/goals/g1/progress", map[string]int{"progress": 100})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var done model.Goal
	require.NoError(t, json.Unmarshal(body, &done))
	assert.Equal(t, 100, done.Progress)
	assert.NotNil(t, done.CompletedAt)

	resp, body = f.do(t, http.MethodGet, "/api/goals", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []model.Goal
	require.NoError(t, json.Unmarshal(body, &all))
	require.Len(t, all, 1)

	resp, _ = f.do(t, http.MethodDelete, "/api/goals/g1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/goals/g1/progress", map[string]int{"progress": 10})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIErrors(t *testing.T) {
	f := newFixture(t, "u1")

	other := newGoal("g2", 0)
	other.OwnerID = "u2"
	invalid := newGoal("g3", 0)
	invalid.Title = ""

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"id mismatch", http.MethodPut, "/api/goals/nope", newGoal("g1", 0), http.StatusBadRequest},
		{"other owner", http.MethodPut, "/api/goals/g2", other, http.StatusForbidden},
		{"invalid goal", http.MethodPut, "/api/goals/g3", invalid, http.StatusBadRequest},
		{"missing progress", http.MethodPost, "/api/goals/g1/progress", map[string]string{}, http.StatusBadRequest},
		{"bad body", http.MethodPut, "/api/places/p1", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, string(body))
		})
	}
}

func TestAPISignedOut(t *testing.T) {
	f := newFixture(t, "")

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/goals"},
		{http.MethodPut, "/api/goals/g1"},
		{http.MethodDelete, "/api/journal/e1"},
		{http.MethodDelete, "/api/places"},
		{http.MethodPost, "/api/goals/g1/progress"},
	} {
		var body any
		if req.method != http.MethodGet && req.method != http.MethodDelete {
			body = map[string]int{"progress": 1}
		}
		resp, _ := f.do(t, req.method, req.path, body)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", req.method, req.path)
	}
}

func TestClearPlaces(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()
	_, err := f.repos.Places.Add(ctx, "Gym", 1, 1, "", "")
	require.NoError(t, err)

	resp, _ := f.do(t, http.MethodDelete, "/api/places", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	left, err := f.repos.Places.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestGoalStream(t *testing.T) {
	f := newFixture(t, "u1")
	conn := f.dial(t, "/ws/goals")

	msg := readUntil(t, conn, func(m Message) bool { return m.Type == MessageTypeSnapshot })
	assert.Equal(t, "goals", msg.Kind)
	assert.Empty(t, goalsIn(t, msg))
	assert.Equal(t, 1, f.server.ClientCount())

	resp, _ := f.do(t, http.MethodPut, "/api/goals/g1", newGoal("g1", 10))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msg = readUntil(t, conn, func(m Message) bool { return len(goalsIn(t, m)) == 1 })
	assert.Equal(t, "g1", goalsIn(t, msg)[0].ID)

	f.ids.Clear()
	readUntil(t, conn, func(m Message) bool { return len(goalsIn(t, m)) == 0 })
}

func TestConfidenceStream(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()
	g, err := f.repos.Goals.Add(ctx, "Meditate", model.CategoryMental, "", nil)
	require.NoError(t, err)
	conf := 6
	_, err = f.repos.Journal.Add(ctx, g.ID, "calm", &conf)
	require.NoError(t, err)

	conn := f.dial(t, "/ws/insights/confidence")
	msg := readUntil(t, conn, func(m Message) bool { return m.Kind == "confidence" && len(m.Data) > 2 })

	var series []struct {
		Label  string `json:"label"`
		Points []struct {
			Confidence int `json:"confidence"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &series))
	require.Len(t, series, 1)
	assert.Equal(t, "Meditate", series[0].Label)
	assert.Equal(t, 6, series[0].Points[0].Confidence)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, "u1")

	resp, body := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var h healthResponse
	require.NoError(t, json.Unmarshal(body, &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "u1", h.Identity)

	resp, body = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "goalcoach_pushes_in_flight")
}

func TestStartStopAndBroadcast(t *testing.T) {
	f := newFixture(t, "u1")
	s := NewServer(f.repos, &Config{Port: 0, Logger: quiet})
	require.NoError(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws://"+s.GetAddr()+"/ws/places", nil)
	require.NoError(t, err)

	readUntil(t, conn, func(m Message) bool { return m.Type == MessageTypeSnapshot })

	s.BroadcastPull(cloudsync.PullResult{
		Owner:   "u1",
		Applied: map[string]int{"goals": 2},
		Errors:  map[string]error{"places": io.ErrUnexpectedEOF},
	})
	msg := readUntil(t, conn, func(m Message) bool { return m.Type == MessageTypeSyncComplete })
	var data SyncCompleteData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, 2, data.Applied["goals"])
	assert.Equal(t, io.ErrUnexpectedEOF.Error(), data.Errors["places"])

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.NoError(t, s.Stop())
	assert.Equal(t, 0, s.ClientCount())
}
