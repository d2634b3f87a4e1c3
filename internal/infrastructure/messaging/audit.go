package messaging

import (
	"sort"

	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/pkg/logger"
)

// AuditLog returns a handler that writes one info line per event. Payload
// keys are logged in sorted order so lines diff cleanly.
func AuditLog(log *logger.Logger) shared.EventHandler {
	log = log.With(logger.Component("audit"))
	return func(event shared.Event) error {
		payload := event.Payload()
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fields := make([]logger.Field, 0, len(keys)+2)
		fields = append(fields,
			logger.String("event_type", string(event.EventType())),
			logger.SessionID(event.AggregateID()),
		)
		for _, k := range keys {
			fields = append(fields, logger.Any(k, payload[k]))
		}
		log.Info("session event", fields...)
		return nil
	}
}
