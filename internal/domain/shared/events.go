package shared

import (
	"time"
)

// EventType names a domain event.
type EventType string

// Session lifecycle events. Subscribers use them for metrics and the audit
// log; nothing in the grading path depends on them being delivered.
const (
	EventSessionCreated  EventType = "session.created"
	EventSessionDeleted  EventType = "session.deleted"
	EventSettingsUpdated EventType = "session.settings_updated"

	EventDatasetLoaded   EventType = "dataset.loaded"
	EventDatasetRejected EventType = "dataset.rejected"

	EventFeedbackResolved EventType = "feedback.resolved"
	EventReportExported   EventType = "report.exported"
)

// Event is implemented by every domain event.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	// AggregateID is the session the event belongs to.
	AggregateID() string
	Payload() map[string]any
}

// BaseEvent carries the fields common to all events.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// NewBaseEvent stamps an event for the given session.
func NewBaseEvent(eventType EventType, sessionID string, at time.Time) BaseEvent {
	return BaseEvent{Type: eventType, Timestamp: at, AggregateId: sessionID}
}

// WithCorrelationID sets the request ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionEvent covers creation, deletion and settings changes, which carry
// no data beyond the session itself.
type SessionEvent struct {
	BaseEvent
}

func (e SessionEvent) Payload() map[string]any { return map[string]any{} }

func NewSessionEvent(eventType EventType, sessionID string, at time.Time) SessionEvent {
	return SessionEvent{BaseEvent: NewBaseEvent(eventType, sessionID, at)}
}

// ═══════════════════════════════════════════════════════════════════════════
// Dataset Events
// ═══════════════════════════════════════════════════════════════════════════

// DatasetLoadedEvent is emitted after a dataset replaced the session's
// previous one.
type DatasetLoadedEvent struct {
	BaseEvent
	Source         string `json:"source"`
	Records        int    `json:"records"`
	Clamped        int    `json:"clamped"`
	LevelFallbacks int    `json:"level_fallbacks"`
}

func (e DatasetLoadedEvent) Payload() map[string]any {
	return map[string]any{
		"source":          e.Source,
		"records":         e.Records,
		"clamped":         e.Clamped,
		"level_fallbacks": e.LevelFallbacks,
	}
}

func NewDatasetLoadedEvent(sessionID, source string, records, clamped, fallbacks int, at time.Time) DatasetLoadedEvent {
	return DatasetLoadedEvent{
		BaseEvent:      NewBaseEvent(EventDatasetLoaded, sessionID, at),
		Source:         source,
		Records:        records,
		Clamped:        clamped,
		LevelFallbacks: fallbacks,
	}
}

// DatasetRejectedEvent is emitted when validation refused an input. The
// session keeps its previous dataset.
type DatasetRejectedEvent struct {
	BaseEvent
	Source string `json:"source"`
	Reason string `json:"reason"`
}

func (e DatasetRejectedEvent) Payload() map[string]any {
	return map[string]any{"source": e.Source, "reason": e.Reason}
}

func NewDatasetRejectedEvent(sessionID, source, reason string, at time.Time) DatasetRejectedEvent {
	return DatasetRejectedEvent{
		BaseEvent: NewBaseEvent(EventDatasetRejected, sessionID, at),
		Source:    source,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Output Events
// ═══════════════════════════════════════════════════════════════════════════

// FeedbackResolvedEvent records whether a student got AI text or the
// fallback summary.
type FeedbackResolvedEvent struct {
	BaseEvent
	Student  string `json:"student"`
	Source   string `json:"source"` // "ai" or "fallback"
	Provider string `json:"provider"`
}

func (e FeedbackResolvedEvent) Payload() map[string]any {
	return map[string]any{"student": e.Student, "source": e.Source, "provider": e.Provider}
}

func NewFeedbackResolvedEvent(sessionID, studentName, source, provider string, at time.Time) FeedbackResolvedEvent {
	return FeedbackResolvedEvent{
		BaseEvent: NewBaseEvent(EventFeedbackResolved, sessionID, at),
		Student:   studentName,
		Source:    source,
		Provider:  provider,
	}
}

// ReportExportedEvent is emitted after an export finished or failed.
type ReportExportedEvent struct {
	BaseEvent
	Format   string `json:"format"`
	Students int    `json:"students"`
	Bytes    int    `json:"bytes"`
	Failed   bool   `json:"failed"`
}

func (e ReportExportedEvent) Payload() map[string]any {
	return map[string]any{
		"format":   e.Format,
		"students": e.Students,
		"bytes":    e.Bytes,
		"failed":   e.Failed,
	}
}

func NewReportExportedEvent(sessionID, format string, students, size int, failed bool, at time.Time) ReportExportedEvent {
	return ReportExportedEvent{
		BaseEvent: NewBaseEvent(EventReportExported, sessionID, at),
		Format:    format,
		Students:  students,
		Bytes:     size,
		Failed:    failed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler handles one event.
type EventHandler func(event Event) error

// EventPublisher publishes events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber registers handlers.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
