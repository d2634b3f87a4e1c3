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
// CREATE SESSION COMMAND
// Starts a dashboard session with the process defaults or caller settings.
// ══════════════════════════════════════════════════════════════════════════════

// CreateSessionCommand contains the optional initial settings.
type CreateSessionCommand struct {
	// Settings replaces the defaults when set.
	Settings *session.Settings
}

// Validate validates the command.
func (c CreateSessionCommand) Validate() error {
	if c.Settings == nil {
		return nil
	}
	return c.Settings.Validate()
}

// CreateSessionConfig contains configuration for the handler.
type CreateSessionConfig struct {
	Defaults session.Settings
	TTL      time.Duration
	Now      func() time.Time
	Logger   *logger.Logger
}

// CreateSessionHandler handles the CreateSessionCommand.
type CreateSessionHandler struct {
	store     session.Store
	publisher shared.EventPublisher
	defaults  session.Settings
	ttl       time.Duration
	now       func() time.Time
	log       *logger.Logger
}

// NewCreateSessionHandler creates a new CreateSessionHandler.
func NewCreateSessionHandler(store session.Store, publisher shared.EventPublisher, cfg CreateSessionConfig) *CreateSessionHandler {
	if cfg.TTL <= 0 {
		cfg.TTL = session.DefaultTTL
	}
	return &CreateSessionHandler{
		store:     store,
		publisher: orNop(publisher),
		defaults:  cfg.Defaults,
		ttl:       cfg.TTL,
		now:       orNow(cfg.Now),
		log:       orNopLogger(cfg.Logger),
	}
}

// Handle creates and stores the session.
func (h *CreateSessionHandler) Handle(ctx context.Context, cmd CreateSessionCommand) (*session.Session, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_session: validation failed: %w", err)
	}

	settings := h.defaults
	if cmd.Settings != nil {
		settings = *cmd.Settings
		if settings.Feedback.Provider == "" {
			settings.Feedback.Provider = h.defaults.Feedback.Provider
		}
		// fingerprints are written by the feedback command only
		settings.Feedback.KeyFingerprint = ""
	}

	now := h.now()
	sess := session.New(settings, h.ttl, now)
	if err := h.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("create_session: save: %w", err)
	}

	h.log.Info("session created",
		logger.SessionID(sess.ID),
		logger.String("session_level", string(settings.Thresholds.SessionLevel)),
		logger.String("provider", string(settings.Feedback.Provider)),
	)
	publish(h.publisher, h.log, shared.NewSessionEvent(shared.EventSessionCreated, sess.ID, now))
	return sess, nil
}
