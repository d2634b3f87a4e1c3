// Package command contains the write side of the dashboard: use cases that
// change a session. Each command has its own request type, a Validate
// method and a handler that receives its collaborators explicitly.
package command

import (
	"context"
	"strings"
	"time"

	"github.com/aula-hub/gradebook/internal/domain/session"
	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// FeatureChecker reports whether an optional feature is on for a session.
type FeatureChecker interface {
	IsEnabled(name, sessionID string) bool
}

type allEnabled struct{}

func (allEnabled) IsEnabled(string, string) bool { return true }

func orAllEnabled(f FeatureChecker) FeatureChecker {
	if f == nil {
		return allEnabled{}
	}
	return f
}

func orNop(p shared.EventPublisher) shared.EventPublisher {
	if p == nil {
		return shared.NopPublisher{}
	}
	return p
}

func orNow(now func() time.Time) func() time.Time {
	if now == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return now
}

func orNopLogger(log *logger.Logger) *logger.Logger {
	if log == nil {
		return logger.Nop()
	}
	return log
}

// publish sends an event. Delivery problems never fail the command.
func publish(pub shared.EventPublisher, log *logger.Logger, e shared.Event) {
	if err := pub.Publish(e); err != nil {
		log.Warn("failed to publish event",
			logger.String("event_type", string(e.EventType())),
			logger.SessionID(e.AggregateID()),
			logger.Err(err),
		)
	}
}

func loadSession(ctx context.Context, store session.Store, id string) (*session.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.ErrSessionNotFound
	}
	return store.Get(ctx, id)
}
