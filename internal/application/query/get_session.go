package query

import (
	"context"
	"fmt"
	"time"

	"github.com/aula-hub/gradebook/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SESSION QUERY
// Returns the settings of a session and metadata about its dataset.
// ══════════════════════════════════════════════════════════════════════════════

// GetSessionQuery names the session.
type GetSessionQuery struct {
	SessionID string
}

// SessionDTO is the public view of a session.
type SessionDTO struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	Settings  session.Settings `json:"settings"`
	Dataset   *DatasetDTO      `json:"dataset,omitempty"`
}

// DatasetDTO describes the loaded dataset without its rows.
type DatasetDTO struct {
	Source            string    `json:"source"`
	LoadedAt          time.Time `json:"loaded_at"`
	Records           int       `json:"records"`
	ClampedScores     int       `json:"clamped_scores"`
	ClampedAttendance int       `json:"clamped_attendance"`
	LevelFallbacks    int       `json:"level_fallbacks"`
	SkippedRows       int       `json:"skipped_rows"`
	IgnoredColumns    []string  `json:"ignored_columns,omitempty"`
}

// NewSessionDTO builds the view of sess.
func NewSessionDTO(sess *session.Session) SessionDTO {
	dto := SessionDTO{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
		ExpiresAt: sess.ExpiresAt,
		Settings:  sess.Settings,
	}
	if ds := sess.Dataset; ds != nil {
		dto.Dataset = &DatasetDTO{
			Source:            ds.Source,
			LoadedAt:          ds.LoadedAt,
			Records:           len(ds.Records),
			ClampedScores:     ds.ClampedScores,
			ClampedAttendance: ds.ClampedAttendance,
			LevelFallbacks:    ds.LevelFallbacks,
			SkippedRows:       ds.SkippedRows,
			IgnoredColumns:    ds.IgnoredColumns,
		}
	}
	return dto
}

// GetSessionHandler handles the GetSessionQuery.
type GetSessionHandler struct {
	sessions SessionReader
}

func NewGetSessionHandler(sessions SessionReader) *GetSessionHandler {
	return &GetSessionHandler{sessions: sessions}
}

func (h *GetSessionHandler) Handle(ctx context.Context, q GetSessionQuery) (*SessionDTO, error) {
	sess, err := getSession(ctx, h.sessions, q.SessionID)
	if err != nil {
		return nil, fmt.Errorf("get_session: %w", err)
	}
	dto := NewSessionDTO(sess)
	return &dto, nil
}
