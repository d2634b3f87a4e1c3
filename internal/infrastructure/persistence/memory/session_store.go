// Package memory keeps sessions in process memory. It is the default store
// for a single API instance and the store used by the CLI.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/internal/domain/shared"
)

// SessionStore is a mutex-guarded map of encoded sessions. Values are stored
// encoded so callers never share a *Session with the store.
type SessionStore struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

var _ session.Store = (*SessionStore)(nil)

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{items: make(map[string]entry), now: time.Now}
}

// WithClock replaces the clock used for expiry checks.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

func (s *SessionStore) Save(_ context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" {
		return shared.NewDomainError("session", "Save", shared.ErrInvalidInput, "session has no id")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("memory: encode session %s: %w", sess.ID, err)
	}

	s.mu.Lock()
	s.items[sess.ID] = entry{data: data, expiresAt: sess.ExpiresAt}
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()

	if !ok || !s.now().Before(e.expiresAt) {
		return nil, shared.ErrSessionNotFound
	}

	var sess session.Session
	if err := json.Unmarshal(e.data, &sess); err != nil {
		return nil, fmt.Errorf("memory: decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Ping(context.Context) error { return nil }

// PurgeExpired drops expired sessions and returns how many were removed.
func (s *SessionStore) PurgeExpired(_ context.Context) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
