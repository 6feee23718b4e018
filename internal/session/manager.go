// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jeranaias/relay-tui/internal/model"
	"github.com/jeranaias/relay-tui/internal/util"
)

// ErrNoSession indicates no persisted session exists on disk.
var ErrNoSession = errors.New("no saved session")

// sessionFileName is the file under the state directory holding the
// persisted session.
const sessionFileName = "session.json"

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager holds the current authentication state behind a mutex so the UI
// goroutine and the stream client can both consult it.
type Manager struct {
	mu sync.Mutex

	user          model.User
	token         string
	authenticated bool
	establishedAt time.Time
}

// NewManager creates an unauthenticated session manager.
func NewManager() *Manager {
	return &Manager{}
}

// Establish records a successful login or registration.
func (m *Manager) Establish(user model.User, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user
	m.token = token
	m.authenticated = token != ""
	m.establishedAt = time.Now().UTC()
}

// Clear drops the user and token. Subsequent Token calls return the empty
// string, which downstream clients treat as "no credentials".
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = model.User{}
	m.token = ""
	m.authenticated = false
	m.establishedAt = time.Time{}
}

// Token returns the current bearer token, or "" when unauthenticated.
// This method is the token source handed to the API and stream clients.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// User returns a copy of the current user.
func (m *Manager) User() model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// IsAuthenticated reports whether a session has been established.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// =============================================================================
// DISK PERSISTENCE
// =============================================================================

// persistedSession is the on-disk shape of a saved session.
type persistedSession struct {
	User          model.User `json:"user"`
	Token         string     `json:"token"`
	EstablishedAt time.Time  `json:"establishedAt"`
}

// Save writes the current session to dir atomically. Saving an
// unauthenticated session is an error; use Remove to log out.
func (m *Manager) Save(dir string) error {
	m.mu.Lock()
	snapshot := persistedSession{
		User:          m.user,
		Token:         m.token,
		EstablishedAt: m.establishedAt,
	}
	authenticated := m.authenticated
	m.mu.Unlock()

	if !authenticated {
		return errors.New("cannot save an unauthenticated session")
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	path := filepath.Join(dir, sessionFileName)
	// 0600: the file holds a bearer token.
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Restore loads a persisted session from dir into the manager. A missing
// file returns ErrNoSession; a corrupt file is an error and leaves the
// manager unchanged.
func (m *Manager) Restore(dir string) error {
	path := filepath.Join(dir, sessionFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoSession
		}
		return fmt.Errorf("failed to read session: %w", err)
	}

	var saved persistedSession
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("failed to parse session file: %w", err)
	}
	if saved.Token == "" {
		return errors.New("session file has no token")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = saved.User
	m.token = saved.Token
	m.authenticated = true
	m.establishedAt = saved.EstablishedAt
	return nil
}

// Remove deletes the persisted session file. A missing file is not an
// error.
func Remove(dir string) error {
	err := os.Remove(filepath.Join(dir, sessionFileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// DefaultDir returns the state directory (~/.relay) used for the session
// file and configuration.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".relay"), nil
}
