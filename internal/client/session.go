package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// SessionKey is the key the session marker is stored under.
const SessionKey = "expense_auth"

// Marker is the persisted login state.
type Marker struct {
	Email         string    `json:"email"`
	Authenticated bool      `json:"authenticated"`
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Valid reports whether the marker still grants access at now.
func (m Marker) Valid(now time.Time) bool {
	return m.Authenticated && m.Token != "" && now.Before(m.ExpiresAt)
}

// SessionStore persists the marker in a JSON file.
type SessionStore struct {
	path string
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// DefaultSessionPath is <UserConfigDir>/fintrack/session.json.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "fintrack", "session.json"), nil
}

func (s *SessionStore) Path() string { return s.path }

// Load returns the stored marker. A missing, unreadable or expired marker
// loads as logged out.
func (s *SessionStore) Load(now time.Time) (Marker, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return Marker{}, false
	}
	var doc map[string]Marker
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Marker{}, false
	}
	m, ok := doc[SessionKey]
	if !ok || !m.Valid(now) {
		return Marker{}, false
	}
	return m, true
}

// Save writes the marker with owner-only permissions.
func (s *SessionStore) Save(m Marker) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.MarshalIndent(map[string]Marker{SessionKey: m}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Clear deletes the marker; clearing an absent marker is not an error.
func (s *SessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
