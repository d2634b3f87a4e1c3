package command

import (
	"context"
	"fmt"
	"time"

	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/pkg/logger"
)

// DeleteSessionCommand ends a session and drops its dataset.
type DeleteSessionCommand struct {
	SessionID string
}

// DeleteSessionHandler handles the DeleteSessionCommand. Deleting a missing
// session succeeds.
type DeleteSessionHandler struct {
	store     session.Store
	publisher shared.EventPublisher
	now       func() time.Time
	log       *logger.Logger
}

func NewDeleteSessionHandler(store session.Store, publisher shared.EventPublisher, log *logger.Logger) *DeleteSessionHandler {
	return &DeleteSessionHandler{
		store:     store,
		publisher: orNop(publisher),
		now:       orNow(nil),
		log:       orNopLogger(log),
	}
}

func (h *DeleteSessionHandler) Handle(ctx context.Context, cmd DeleteSessionCommand) error {
	if cmd.SessionID == "" {
		return fmt.Errorf("delete_session: %w", shared.ErrSessionNotFound)
	}
	if err := h.store.Delete(ctx, cmd.SessionID); err != nil {
		return fmt.Errorf("delete_session: %w", err)
	}
	h.log.Info("session deleted", logger.SessionID(cmd.SessionID))
	publish(h.publisher, h.log, shared.NewSessionEvent(shared.EventSessionDeleted, cmd.SessionID, h.now()))
	return nil
}
