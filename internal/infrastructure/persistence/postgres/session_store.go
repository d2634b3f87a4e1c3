package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/internal/domain/shared"
)

// DB is what the session store needs from a connection.
type DB interface {
	Querier
	Ping(ctx context.Context) error
}

// SessionStore keeps sessions in the sessions table as JSONB.
type SessionStore struct {
	db  DB
	now func() time.Time
}

var _ session.Store = (*SessionStore)(nil)

func NewSessionStore(db DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

const upsertSessionSQL = `
INSERT INTO sessions (id, data, created_at, updated_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    data = EXCLUDED.data,
    updated_at = EXCLUDED.updated_at,
    expires_at = EXCLUDED.expires_at`

func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return shared.NewDomainError("session", "Save", shared.ErrInvalidInput, "session is nil")
	}
	id, err := uuid.Parse(sess.ID)
	if err != nil {
		return shared.WrapError("session", "Save", shared.ErrInvalidInput, "session id is not a UUID", err)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("postgres: encode session %s: %w", sess.ID, err)
	}

	if _, err := s.db.Exec(ctx, upsertSessionSQL, id, data, sess.CreatedAt, sess.UpdatedAt, sess.ExpiresAt); err != nil {
		return fmt.Errorf("postgres: save session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, shared.ErrSessionNotFound
	}

	var data []byte
	err = s.db.QueryRow(ctx,
		`SELECT data FROM sessions WHERE id = $1 AND expires_at > $2`, uid, s.now(),
	).Scan(&data)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("postgres: get session %s: %w", id, err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("postgres: decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, uid); err != nil {
		return fmt.Errorf("postgres: delete session %s: %w", id, err)
	}
	return nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("postgres: purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
