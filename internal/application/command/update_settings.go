package command

import (
	"context"
	"fmt"
	"time"

	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE SETTINGS COMMAND
// Replaces the thresholds and provider selection of a session. Aggregated
// values are derived on read, so the next query reflects the new settings.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateSettingsCommand contains the new settings.
type UpdateSettingsCommand struct {
	SessionID string
	Settings  session.Settings
}

// Validate validates the command.
func (c UpdateSettingsCommand) Validate() error {
	return c.Settings.Validate()
}

// UpdateSettingsConfig contains configuration for the handler.
type UpdateSettingsConfig struct {
	TTL    time.Duration
	Now    func() time.Time
	Logger *logger.Logger
}

// UpdateSettingsHandler handles the UpdateSettingsCommand.
type UpdateSettingsHandler struct {
	store     session.Store
	publisher shared.EventPublisher
	ttl       time.Duration
	now       func() time.Time
	log       *logger.Logger
}

// NewUpdateSettingsHandler creates a new UpdateSettingsHandler.
func NewUpdateSettingsHandler(store session.Store, publisher shared.EventPublisher, cfg UpdateSettingsConfig) *UpdateSettingsHandler {
	if cfg.TTL <= 0 {
		cfg.TTL = session.DefaultTTL
	}
	return &UpdateSettingsHandler{
		store:     store,
		publisher: orNop(publisher),
		ttl:       cfg.TTL,
		now:       orNow(cfg.Now),
		log:       orNopLogger(cfg.Logger),
	}
}

// Handle swaps the settings.
func (h *UpdateSettingsHandler) Handle(ctx context.Context, cmd UpdateSettingsCommand) (*session.Session, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_settings: validation failed: %w", err)
	}

	sess, err := loadSession(ctx, h.store, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("update_settings: %w", err)
	}

	settings := cmd.Settings
	settings.Feedback.KeyFingerprint = sess.Settings.Feedback.KeyFingerprint

	now := h.now()
	sess.ReplaceSettings(settings, now)
	moved := sess.Dataset.ApplySessionLevel(settings.Thresholds.SessionLevel)
	sess.Touch(h.ttl, now)

	if err := h.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("update_settings: save: %w", err)
	}

	h.log.Info("session settings updated",
		logger.SessionID(sess.ID),
		logger.String("session_level", string(settings.Thresholds.SessionLevel)),
		logger.Int("records_moved", moved),
	)
	publish(h.publisher, h.log, shared.NewSessionEvent(shared.EventSettingsUpdated, sess.ID, now))
	return sess, nil
}
