package identity

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for identity")
	}
	return ""
}

func TestSource_EmitsCurrentOnSubscribe(t *testing.T) {
	s := NewSource("u1")
	sub := s.Subscribe()
	defer sub.Cancel()

	if got := recv(t, sub.C); got != "u1" {
		t.Errorf("first value = %q, want u1", got)
	}
}

func TestSource_SetAndClear(t *testing.T) {
	s := NewSource("")
	sub := s.Subscribe()
	defer sub.Cancel()

	if got := recv(t, sub.C); got != "" {
		t.Errorf("first value = %q, want empty", got)
	}

	s.Set("u1")
	if got := recv(t, sub.C); got != "u1" {
		t.Errorf("after Set = %q, want u1", got)
	}
	if s.Current() != "u1" {
		t.Errorf("Current() = %q, want u1", s.Current())
	}

	s.Clear()
	if got := recv(t, sub.C); got != "" {
		t.Errorf("after Clear = %q, want empty", got)
	}
}

func TestSource_LatestValueWins(t *testing.T) {
	s := NewSource("")
	sub := s.Subscribe()
	defer sub.Cancel()

	s.Set("u1")
	s.Set("u2")
	s.Set("u3")

	if got := recv(t, sub.C); got != "u3" {
		t.Errorf("slow subscriber got %q, want u3", got)
	}
	select {
	case v := <-sub.C:
		t.Errorf("unexpected extra value %q", v)
	default:
	}
}

func TestSubscription_Cancel(t *testing.T) {
	s := NewSource("u1")
	sub := s.Subscribe()
	sub.Cancel()
	sub.Cancel()

	// Buffered current value may still be read; then the channel is closed.
	for range sub.C {
	}

	s.Set("u2")
	if len(s.subs) != 0 {
		t.Errorf("subscribers = %d after cancel, want 0", len(s.subs))
	}
}

func TestSession_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "session.toml")

	if _, err := LoadSession(path); !errors.Is(err, ErrNoSession) {
		t.Fatalf("LoadSession(missing) error = %v, want ErrNoSession", err)
	}

	in := Session{UserID: "u1", Email: "me@example.com", SignedInAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	if err := SaveSession(path, in); err != nil {
		t.Fatalf("SaveSession() failed: %v", err)
	}
	out, err := LoadSession(path)
	if err != nil {
		t.Fatalf("LoadSession() failed: %v", err)
	}
	if out.UserID != in.UserID || out.Email != in.Email || !out.SignedInAt.Equal(in.SignedInAt) {
		t.Errorf("LoadSession() = %+v, want %+v", out, in)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("session dir has %d entries, want only session.toml", len(entries))
	}

	if err := ClearSession(path); err != nil {
		t.Fatalf("ClearSession() failed: %v", err)
	}
	if err := ClearSession(path); err != nil {
		t.Errorf("second ClearSession() failed: %v", err)
	}
	if _, err := LoadSession(path); !errors.Is(err, ErrNoSession) {
		t.Errorf("LoadSession() after clear error = %v, want ErrNoSession", err)
	}
}

func TestSession_Invalid(t *testing.T) {
	dir := t.TempDir()

	if err := SaveSession(filepath.Join(dir, "s.toml"), Session{UserID: "  "}); err == nil {
		t.Error("SaveSession() accepted blank user id")
	}

	blank := filepath.Join(dir, "blank.toml")
	if err := os.WriteFile(blank, []byte("email = \"x\"\n"), 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := LoadSession(blank); !errors.Is(err, ErrNoSession) {
		t.Errorf("LoadSession(no user) error = %v, want ErrNoSession", err)
	}

	broken := filepath.Join(dir, "broken.toml")
	if err := os.WriteFile(broken, []byte("user_id = "), 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := LoadSession(broken); err == nil || errors.Is(err, ErrNoSession) {
		t.Errorf("LoadSession(broken) error = %v, want parse error", err)
	}
}

func TestFileSource_FollowsSessionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	if err := SaveSession(path, Session{UserID: "u1"}); err != nil {
		t.Fatalf("SaveSession() failed: %v", err)
	}

	f, err := NewFileSource(path, 20*time.Millisecond, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewFileSource() failed: %v", err)
	}
	if f.Current() != "u1" {
		t.Fatalf("Current() = %q, want u1", f.Current())
	}
	if err := f.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer f.Stop()

	sub := f.Subscribe()
	defer sub.Cancel()
	if got := recv(t, sub.C); got != "u1" {
		t.Fatalf("first value = %q, want u1", got)
	}

	if err := SaveSession(path, Session{UserID: "u2"}); err != nil {
		t.Fatalf("SaveSession() failed: %v", err)
	}
	if got := recv(t, sub.C); got != "u2" {
		t.Errorf("after sign-in = %q, want u2", got)
	}

	if err := ClearSession(path); err != nil {
		t.Fatalf("ClearSession() failed: %v", err)
	}
	if got := recv(t, sub.C); got != "" {
		t.Errorf("after sign-out = %q, want empty", got)
	}
}
