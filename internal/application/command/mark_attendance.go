package command

import (
	"context"
	"fmt"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MARK ATTENDANCE COMMAND
// Records attendance for one or more students on a session. Marking is an
// upsert per student and is only accepted while the attendance window is
// open: from 30 minutes before start until 2 hours after start.
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceMark is a single student mark within the command.
type AttendanceMark struct {
	StudentID string
	Status    session.AttendanceStatus
	Comment   string
}

// MarkAttendanceCommand contains the data needed to mark attendance.
type MarkAttendanceCommand struct {
	// SessionID is the session attendance is taken for.
	SessionID string

	// MarkedBy identifies the teacher or manager taking attendance.
	MarkedBy string

	// Marks holds the per-student marks. Later marks for the same student
	// within one command override earlier ones.
	Marks []AttendanceMark

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c MarkAttendanceCommand) Validate() error {
	if c.SessionID == "" {
		return fmt.Errorf("mark_attendance: session_id is required")
	}
	if c.MarkedBy == "" {
		return fmt.Errorf("mark_attendance: marked_by is required")
	}
	if len(c.Marks) == 0 {
		return fmt.Errorf("mark_attendance: at least one mark is required")
	}
	return nil
}

// MarkAttendanceResult contains the result of attendance marking.
type MarkAttendanceResult struct {
	// SessionID is the session the marks were written to.
	SessionID string

	// Marked is the number of marks applied.
	Marked int

	// PresentCount, AbsentCount and TotalMarked are the session aggregates
	// after this command.
	PresentCount int
	AbsentCount  int
	TotalMarked  int
}

// MarkAttendanceHandler handles the MarkAttendanceCommand.
type MarkAttendanceHandler struct {
	sessionRepo    session.Repository
	sessionCache   session.Cache
	eventPublisher shared.EventPublisher
}

// NewMarkAttendanceHandler creates a new MarkAttendanceHandler.
func NewMarkAttendanceHandler(
	sessionRepo session.Repository,
	sessionCache session.Cache,
	eventPublisher shared.EventPublisher,
) *MarkAttendanceHandler {
	return &MarkAttendanceHandler{
		sessionRepo:    sessionRepo,
		sessionCache:   sessionCache,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the mark attendance command.
func (h *MarkAttendanceHandler) Handle(ctx context.Context, cmd MarkAttendanceCommand) (*MarkAttendanceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s, err := h.sessionRepo.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("mark_attendance: load failed: %w", err)
	}

	now := time.Now()

	// All marks go through the entity so the window check and the
	// per-student upsert rule cannot be bypassed. The first rejected mark
	// aborts the command before anything is persisted.
	for _, mark := range cmd.Marks {
		record := session.AttendanceRecord{
			StudentID: mark.StudentID,
			Status:    mark.Status,
			Comment:   mark.Comment,
			MarkedBy:  cmd.MarkedBy,
			MarkedAt:  now.UTC(),
		}
		if err := s.MarkAttendance(now, record); err != nil {
			return nil, fmt.Errorf("mark_attendance: student %s: %w", mark.StudentID, err)
		}
	}

	if err := h.sessionRepo.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("mark_attendance: save failed: %w", err)
	}

	if h.sessionCache != nil {
		_ = h.sessionCache.InvalidateGroup(ctx, s.GroupID)
	}

	for _, mark := range cmd.Marks {
		event := shared.NewAttendanceMarkedEvent(s.ID, s.GroupID, mark.StudentID, string(mark.Status), cmd.MarkedBy)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		_ = h.eventPublisher.Publish(event)
	}

	return &MarkAttendanceResult{
		SessionID:    s.ID,
		Marked:       len(cmd.Marks),
		PresentCount: s.PresentCount(),
		AbsentCount:  s.AbsentCount(),
		TotalMarked:  s.TotalMarked(),
	}, nil
}
