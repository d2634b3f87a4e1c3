package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/internal/domain/shared"
)

// SessionStore keeps each session as one JSON value whose key TTL matches
// the session's remaining lifetime.
type SessionStore struct {
	cache *Cache
	now   func() time.Time
}

var _ session.Store = (*SessionStore)(nil)

func NewSessionStore(cache *Cache) *SessionStore {
	return &SessionStore{cache: cache, now: time.Now}
}

func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" {
		return shared.NewDomainError("session", "Save", shared.ErrInvalidInput, "session has no id")
	}

	ttl := sess.TTL(s.now())
	if ttl <= 0 {
		// Already expired: make sure no stale copy lingers.
		return s.cache.Delete(ctx, SessionKey(sess.ID))
	}
	if err := s.cache.Set(ctx, SessionKey(sess.ID), sess, ttl); err != nil {
		return fmt.Errorf("redis: save session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, shared.ErrSessionNotFound
	}

	var sess session.Session
	if err := s.cache.Get(ctx, SessionKey(id), &sess); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis: get session %s: %w", id, err)
	}
	if sess.IsExpired(s.now()) {
		return nil, shared.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.cache.Delete(ctx, SessionKey(id))
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}
