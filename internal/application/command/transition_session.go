package command

import (
	"context"
	"fmt"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITION SESSION COMMAND
// Moves a session through its lifecycle: complete, cancel, postpone, or
// reschedule a postponed session back to scheduled with a new date.
// ══════════════════════════════════════════════════════════════════════════════

// TransitionSessionCommand contains the data needed to change a session status.
type TransitionSessionCommand struct {
	// SessionID is the session to transition.
	SessionID string

	// Target is the desired status.
	Target session.Status

	// NewDate is required when rescheduling a postponed session.
	NewDate time.Time

	// RecordingLink becomes available when completing a session.
	RecordingLink string

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c TransitionSessionCommand) Validate() error {
	if c.SessionID == "" {
		return fmt.Errorf("transition_session: session_id is required")
	}
	if !c.Target.IsValid() {
		return fmt.Errorf("transition_session: unknown target status %q", c.Target)
	}
	if c.Target == session.StatusScheduled && c.NewDate.IsZero() {
		return fmt.Errorf("transition_session: rescheduling requires a new date")
	}
	return nil
}

// TransitionSessionResult contains the result of a transition.
type TransitionSessionResult struct {
	Session   *session.Session
	OldStatus session.Status
	NewStatus session.Status
}

// TransitionSessionHandler handles the TransitionSessionCommand.
type TransitionSessionHandler struct {
	sessionRepo    session.Repository
	sessionCache   session.Cache
	eventPublisher shared.EventPublisher
}

// NewTransitionSessionHandler creates a new TransitionSessionHandler.
func NewTransitionSessionHandler(
	sessionRepo session.Repository,
	sessionCache session.Cache,
	eventPublisher shared.EventPublisher,
) *TransitionSessionHandler {
	return &TransitionSessionHandler{
		sessionRepo:    sessionRepo,
		sessionCache:   sessionCache,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the transition session command.
func (h *TransitionSessionHandler) Handle(ctx context.Context, cmd TransitionSessionCommand) (*TransitionSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s, err := h.sessionRepo.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("transition_session: load failed: %w", err)
	}

	oldStatus := s.Status

	switch cmd.Target {
	case session.StatusCompleted:
		err = s.Complete()
	case session.StatusCancelled:
		err = s.Cancel()
	case session.StatusPostponed:
		err = s.Postpone()
	case session.StatusScheduled:
		err = s.Reschedule(cmd.NewDate)
	}
	if err != nil {
		return nil, err
	}

	if cmd.Target == session.StatusCompleted && cmd.RecordingLink != "" {
		s.RecordingLink = cmd.RecordingLink
	}

	if err := h.sessionRepo.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("transition_session: save failed: %w", err)
	}

	if h.sessionCache != nil {
		_ = h.sessionCache.InvalidateGroup(ctx, s.GroupID)
	}

	event := shared.NewSessionStatusChangedEvent(
		transitionEventType(cmd.Target), s.ID, s.GroupID, string(oldStatus), string(s.Status))
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &TransitionSessionResult{
		Session:   s,
		OldStatus: oldStatus,
		NewStatus: s.Status,
	}, nil
}

func transitionEventType(target session.Status) shared.EventType {
	switch target {
	case session.StatusCompleted:
		return shared.EventSessionCompleted
	case session.StatusCancelled:
		return shared.EventSessionCancelled
	case session.StatusPostponed:
		return shared.EventSessionPostponed
	default:
		return shared.EventSessionRescheduled
	}
}
