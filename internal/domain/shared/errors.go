// Package shared contains common domain types, errors and events that are used
// across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrWindowClosed     = errors.New("time window closed")
	ErrAlreadyProcessed = errors.New("already processed")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "session", "schedule", "curriculum"
	Op      string // Operation that failed, e.g., "Create", "Mark"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Curriculum domain errors
var (
	ErrInvalidCurriculumShape = NewDomainError("curriculum", "Map", ErrValidation, "module does not resolve to exactly 3 sessions of 2 lessons")
	ErrLessonIndexOutOfRange  = NewDomainError("curriculum", "Validate", ErrValueOutOfRange, "lesson index out of module range")
)

// Schedule domain errors
var (
	ErrInvalidSchedule     = NewDomainError("schedule", "Validate", ErrValidation, "group schedule is invalid")
	ErrScheduleDayMismatch = NewDomainError("schedule", "Validate", ErrValidation, "start date weekday is not among selected days")
	ErrInvalidTimeWindow   = NewDomainError("schedule", "Validate", ErrInvalidFormat, "invalid time window")
	ErrNothingToSchedule   = NewDomainError("schedule", "Generate", ErrEmptyValue, "no session blueprints to schedule")
	ErrUnknownWeekday      = NewDomainError("schedule", "Parse", ErrInvalidFormat, "unknown weekday name")
	ErrUnknownScheduleZone = NewDomainError("schedule", "Validate", ErrInvalidFormat, "unknown timezone")
)

// Session domain errors
var (
	ErrSessionNotFound      = NewDomainError("session", "Find", ErrNotFound, "session not found")
	ErrSessionAlreadyExists = NewDomainError("session", "Create", ErrAlreadyExists, "session with this group/module/number already exists")
	ErrSessionDeleted       = NewDomainError("session", "Find", ErrNotFound, "session is deleted")
	ErrSessionLocked        = NewDomainError("session", "Edit", ErrInvalidState, "session can no longer be edited")
	ErrNoMeetingLink        = NewDomainError("session", "Join", ErrInvalidState, "session has no usable meeting link")
	ErrSessionTransition    = NewDomainError("session", "Transition", ErrStateTransition, "invalid session status transition")
	ErrNotPostponed         = NewDomainError("session", "Reschedule", ErrStateTransition, "only postponed sessions can be rescheduled")
)

// Attendance domain errors
var (
	ErrAttendanceWindowClosed = NewDomainError("attendance", "Mark", ErrWindowClosed, "attendance window is closed for this session")
	ErrInvalidAttendance      = NewDomainError("attendance", "Validate", ErrValidation, "invalid attendance record")
)

// Automation domain errors
var (
	ErrEventAlreadySent    = NewDomainError("automation", "MarkSent", ErrAlreadyProcessed, "automation event already sent for this session")
	ErrUnknownEventType    = NewDomainError("automation", "Validate", ErrInvalidInput, "unknown automation event type")
	ErrNotifierUnreachable = NewDomainError("automation", "Send", ErrServiceUnavailable, "notification collaborator is unreachable")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsStateViolation checks if the error is a business-rule state error.
func IsStateViolation(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStateTransition) ||
		errors.Is(err, ErrWindowClosed) ||
		errors.Is(err, ErrAlreadyProcessed)
}

// IsConflict checks if the error is an expected concurrency conflict that
// callers must treat as an idempotent no-op.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
