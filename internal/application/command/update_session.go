package command

import (
	"context"
	"fmt"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE SESSION COMMAND
// Edits the mutable details of a session (title, links, notes). Editing is
// blocked for completed and cancelled sessions and closes 24 hours before
// the session starts.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateSessionCommand contains the data needed to edit a session.
// Nil fields are left untouched.
type UpdateSessionCommand struct {
	// SessionID is the session to edit.
	SessionID string

	Title         *string
	MeetingLink   *string
	RecordingLink *string
	Notes         *string

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c UpdateSessionCommand) Validate() error {
	if c.SessionID == "" {
		return fmt.Errorf("update_session: session_id is required")
	}
	if c.Title == nil && c.MeetingLink == nil && c.RecordingLink == nil && c.Notes == nil {
		return fmt.Errorf("update_session: nothing to update")
	}
	return nil
}

// UpdateSessionHandler handles the UpdateSessionCommand.
type UpdateSessionHandler struct {
	sessionRepo    session.Repository
	sessionCache   session.Cache
	eventPublisher shared.EventPublisher
}

// NewUpdateSessionHandler creates a new UpdateSessionHandler.
func NewUpdateSessionHandler(
	sessionRepo session.Repository,
	sessionCache session.Cache,
	eventPublisher shared.EventPublisher,
) *UpdateSessionHandler {
	return &UpdateSessionHandler{
		sessionRepo:    sessionRepo,
		sessionCache:   sessionCache,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the update session command.
func (h *UpdateSessionHandler) Handle(ctx context.Context, cmd UpdateSessionCommand) (*session.Session, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s, err := h.sessionRepo.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("update_session: load failed: %w", err)
	}

	details := session.UpdateDetails{
		Title:         cmd.Title,
		MeetingLink:   cmd.MeetingLink,
		RecordingLink: cmd.RecordingLink,
		Notes:         cmd.Notes,
	}
	if err := s.ApplyUpdate(time.Now(), details); err != nil {
		return nil, err
	}

	if err := h.sessionRepo.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("update_session: save failed: %w", err)
	}

	if h.sessionCache != nil {
		_ = h.sessionCache.InvalidateGroup(ctx, s.GroupID)
	}

	event := shared.NewSessionStatusChangedEvent(
		shared.EventSessionUpdated, s.ID, s.GroupID, string(s.Status), string(s.Status))
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return s, nil
}
