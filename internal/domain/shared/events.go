// Package shared contains common domain types, errors and events
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the session engine and that collaborators may react to.
const (
	// Session lifecycle events
	EventSessionsGenerated   EventType = "session.generated"
	EventSessionsRegenerated EventType = "session.regenerated"
	EventSessionCompleted    EventType = "session.completed"
	EventSessionCancelled    EventType = "session.cancelled"
	EventSessionPostponed    EventType = "session.postponed"
	EventSessionRescheduled  EventType = "session.rescheduled"
	EventSessionUpdated      EventType = "session.updated"

	// Attendance events
	EventAttendanceMarked EventType = "attendance.marked"

	// Automation events
	EventReminderSent   EventType = "automation.reminder_sent"
	EventReminderFailed EventType = "automation.reminder_failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionsGeneratedEvent is emitted after a batch of sessions has been
// created for a group. Skipped counts duplicates that already existed.
type SessionsGeneratedEvent struct {
	BaseEvent
	GroupID  string `json:"group_id"`
	CourseID string `json:"course_id"`
	Created  int    `json:"created"`
	Skipped  int    `json:"skipped"`
}

// Payload implements Event interface.
func (e SessionsGeneratedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id":  e.GroupID,
		"course_id": e.CourseID,
		"created":   e.Created,
		"skipped":   e.Skipped,
	}
}

// NewSessionsGeneratedEvent creates a new SessionsGeneratedEvent.
func NewSessionsGeneratedEvent(groupID, courseID string, created, skipped int) SessionsGeneratedEvent {
	return SessionsGeneratedEvent{
		BaseEvent: NewBaseEvent(EventSessionsGenerated, groupID),
		GroupID:   groupID,
		CourseID:  courseID,
		Created:   created,
		Skipped:   skipped,
	}
}

// SessionStatusChangedEvent is emitted when a session leaves the scheduled
// state (completed, cancelled, postponed) or is rescheduled back.
type SessionStatusChangedEvent struct {
	BaseEvent
	GroupID   string `json:"group_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// Payload implements Event interface.
func (e SessionStatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id":   e.GroupID,
		"old_status": e.OldStatus,
		"new_status": e.NewStatus,
	}
}

// NewSessionStatusChangedEvent creates a status-change event of the given type.
func NewSessionStatusChangedEvent(eventType EventType, sessionID, groupID, oldStatus, newStatus string) SessionStatusChangedEvent {
	return SessionStatusChangedEvent{
		BaseEvent: NewBaseEvent(eventType, sessionID),
		GroupID:   groupID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Attendance Events
// ═══════════════════════════════════════════════════════════════════════════

// AttendanceMarkedEvent is emitted when an attendance record is written.
type AttendanceMarkedEvent struct {
	BaseEvent
	GroupID   string `json:"group_id"`
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
	MarkedBy  string `json:"marked_by"`
}

// Payload implements Event interface.
func (e AttendanceMarkedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id":   e.GroupID,
		"student_id": e.StudentID,
		"status":     e.Status,
		"marked_by":  e.MarkedBy,
	}
}

// NewAttendanceMarkedEvent creates a new AttendanceMarkedEvent.
func NewAttendanceMarkedEvent(sessionID, groupID, studentID, status, markedBy string) AttendanceMarkedEvent {
	return AttendanceMarkedEvent{
		BaseEvent: NewBaseEvent(EventAttendanceMarked, sessionID),
		GroupID:   groupID,
		StudentID: studentID,
		Status:    status,
		MarkedBy:  markedBy,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Automation Events
// ═══════════════════════════════════════════════════════════════════════════

// ReminderDispatchedEvent is emitted when a reminder was sent (or failed)
// for a session through the notification collaborator.
type ReminderDispatchedEvent struct {
	BaseEvent
	GroupID    string `json:"group_id"`
	ReminderID string `json:"reminder_id"`
	Success    bool   `json:"success"`
}

// Payload implements Event interface.
func (e ReminderDispatchedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"group_id":    e.GroupID,
		"reminder_id": e.ReminderID,
		"success":     e.Success,
	}
}

// NewReminderDispatchedEvent creates a new ReminderDispatchedEvent.
func NewReminderDispatchedEvent(sessionID, groupID, reminderID string, success bool) ReminderDispatchedEvent {
	eventType := EventReminderSent
	if !success {
		eventType = EventReminderFailed
	}
	return ReminderDispatchedEvent{
		BaseEvent:  NewBaseEvent(eventType, sessionID),
		GroupID:    groupID,
		ReminderID: reminderID,
		Success:    success,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Publishing
// ═══════════════════════════════════════════════════════════════════════════

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	// Publish publishes an event. Implementations must not block the caller
	// on slow subscribers.
	Publish(event Event) error
}

// EventHandler handles a domain event.
type EventHandler interface {
	// Handle processes the event.
	Handle(event Event) error

	// EventTypes returns the event types this handler is interested in.
	EventTypes() []EventType
}

// NoopPublisher discards all events. Used in tests and when the event bus
// is disabled.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(Event) error { return nil }
