package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD AUTOMATION EVENT COMMAND
// Writes the outcome of a notification dispatch into the session's
// automation ledger. The sent flag is first-write-wins: a concurrent
// dispatcher that loses the race gets AlreadySent=true instead of an error
// and must not send again.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAutomationEventCommand contains the dispatch outcome to record.
type RecordAutomationEventCommand struct {
	// SessionID is the session the notification was about.
	SessionID string

	// EventType is the notification type (reminder_24h, reminder_1h, ...).
	EventType session.EventType

	// Success reports whether the dispatch succeeded.
	Success bool

	// Delivered is the number of recipients reached (successful dispatch only).
	Delivered int

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c RecordAutomationEventCommand) Validate() error {
	if c.SessionID == "" {
		return fmt.Errorf("record_automation_event: session_id is required")
	}
	if !c.EventType.IsValid() {
		return fmt.Errorf("record_automation_event: unknown event type %q", c.EventType)
	}
	return nil
}

// RecordAutomationEventResult contains the recording outcome.
type RecordAutomationEventResult struct {
	// AlreadySent reports that the sent flag was set by an earlier dispatch
	// and this recording was a no-op.
	AlreadySent bool

	// State is the ledger state after the command.
	State session.EventState
}

// RecordAutomationEventHandler handles the RecordAutomationEventCommand.
type RecordAutomationEventHandler struct {
	sessionRepo    session.Repository
	eventPublisher shared.EventPublisher
}

// NewRecordAutomationEventHandler creates a new RecordAutomationEventHandler.
func NewRecordAutomationEventHandler(
	sessionRepo session.Repository,
	eventPublisher shared.EventPublisher,
) *RecordAutomationEventHandler {
	return &RecordAutomationEventHandler{
		sessionRepo:    sessionRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the record automation event command.
func (h *RecordAutomationEventHandler) Handle(ctx context.Context, cmd RecordAutomationEventCommand) (*RecordAutomationEventResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s, err := h.sessionRepo.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("record_automation_event: load failed: %w", err)
	}

	if cmd.Success {
		err = s.Automation.MarkSent(cmd.EventType, time.Now(), cmd.Delivered)
		if errors.Is(err, shared.ErrAlreadyProcessed) {
			return &RecordAutomationEventResult{
				AlreadySent: true,
				State:       s.Automation.State(cmd.EventType),
			}, nil
		}
	} else {
		err = s.Automation.RecordFailure(cmd.EventType)
	}
	if err != nil {
		return nil, err
	}

	if err := h.sessionRepo.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("record_automation_event: save failed: %w", err)
	}

	event := shared.NewReminderDispatchedEvent(s.ID, s.GroupID, string(cmd.EventType), cmd.Success)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &RecordAutomationEventResult{
		AlreadySent: false,
		State:       s.Automation.State(cmd.EventType),
	}, nil
}
