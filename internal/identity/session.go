package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrNoSession is returned when nobody is signed in.
var ErrNoSession = errors.New("no active session")

// Session is the signed-in user, persisted between runs.
type Session struct {
	UserID     string    `toml:"user_id"`
	Email      string    `toml:"email,omitempty"`
	SignedInAt time.Time `toml:"signed_in_at"`
}

// LoadSession reads the session file at path. A missing file or a file
// without a user id yields ErrNoSession.
func LoadSession(path string) (Session, error) {
	var s Session
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("failed to read session file %s: %w", path, err)
	}
	s.UserID = strings.TrimSpace(s.UserID)
	if s.UserID == "" {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// SaveSession writes s to path, replacing the file atomically so a watcher
// never reads a partial session.
func SaveSession(path string, s Session) error {
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("user id is required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(s); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// ClearSession removes the session file. Removing a missing file is not an
// error.
func ClearSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
