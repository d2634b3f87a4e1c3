package session

import (
	"context"
)

// Store persists sessions for their lifetime. Implementations must treat an
// expired session exactly like a missing one and return
// shared.ErrSessionNotFound for both.
type Store interface {
	// Save creates or replaces a session. The store keeps it until
	// ExpiresAt.
	Save(ctx context.Context, s *Session) error

	// Get loads a session by ID.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
