// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/curriculum"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/schedule"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE SESSIONS COMMAND
// Maps a course curriculum onto a group's weekly schedule and persists the
// resulting batch of sessions. The operation is idempotent: re-running it for
// the same group skips every pair that already exists and creates the rest.
// ══════════════════════════════════════════════════════════════════════════════

// GenerateSessionsCommand contains the data needed to generate sessions.
type GenerateSessionsCommand struct {
	// GroupID is the group to generate sessions for.
	GroupID string

	// CourseID identifies the course the curriculum belongs to.
	CourseID string

	// Modules is the course curriculum, in course order.
	Modules []curriculum.Module

	// Schedule is the group's weekly schedule.
	Schedule schedule.GroupSchedule

	// MeetingLink, when set, is stamped on every generated session.
	MeetingLink string

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c GenerateSessionsCommand) Validate() error {
	if c.GroupID == "" {
		return fmt.Errorf("generate_sessions: group_id is required")
	}
	if c.CourseID == "" {
		return fmt.Errorf("generate_sessions: course_id is required")
	}
	if len(c.Modules) == 0 {
		return fmt.Errorf("generate_sessions: curriculum has no modules")
	}
	return nil
}

// GenerateSessionsResult contains the result of session generation.
type GenerateSessionsResult struct {
	// GroupID is the group sessions were generated for.
	GroupID string

	// Created is the number of sessions actually written.
	Created int

	// Skipped is the number of duplicates that already existed.
	Skipped int

	// Sessions holds the created sessions in chronological order.
	Sessions []*session.Session

	// GeneratedAt is when the generation was performed.
	GeneratedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GenerateSessionsHandler handles the GenerateSessionsCommand.
type GenerateSessionsHandler struct {
	sessionRepo    session.Repository
	sessionCache   session.Cache
	eventPublisher shared.EventPublisher
}

// NewGenerateSessionsHandler creates a new GenerateSessionsHandler.
func NewGenerateSessionsHandler(
	sessionRepo session.Repository,
	sessionCache session.Cache,
	eventPublisher shared.EventPublisher,
) *GenerateSessionsHandler {
	return &GenerateSessionsHandler{
		sessionRepo:    sessionRepo,
		sessionCache:   sessionCache,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the generate sessions command.
func (h *GenerateSessionsHandler) Handle(ctx context.Context, cmd GenerateSessionsCommand) (*GenerateSessionsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Map the curriculum into session blueprints.
	blueprints, err := curriculum.MapCourse(cmd.Modules)
	if err != nil {
		return nil, fmt.Errorf("generate_sessions: curriculum mapping failed: %w", err)
	}

	// Walk the calendar and assign a date to every blueprint.
	planned, err := schedule.Generate(blueprints, cmd.Schedule)
	if err != nil {
		return nil, fmt.Errorf("generate_sessions: schedule generation failed: %w", err)
	}

	// Build the entities.
	sessions := make([]*session.Session, 0, len(planned))
	for _, p := range planned {
		s, err := session.NewSession(session.NewSessionParams{
			ID:       uuid.NewString(),
			GroupID:  cmd.GroupID,
			CourseID: cmd.CourseID,
			Title:    sessionTitle(cmd.Modules, p),
			Timezone: cmd.Schedule.Timezone,
			Planned:  p,
		})
		if err != nil {
			return nil, fmt.Errorf("generate_sessions: building session for module %d number %d: %w",
				p.ModuleIndex, p.SessionNumber, err)
		}
		s.MeetingLink = cmd.MeetingLink
		sessions = append(sessions, s)
	}

	// Persist as one batch. Duplicates by (group, module, number) are counted
	// as skipped; any other failure aborts the whole batch.
	batch, err := h.sessionRepo.CreateBatch(ctx, sessions)
	if err != nil {
		return nil, fmt.Errorf("generate_sessions: batch insert failed: %w", err)
	}

	if h.sessionCache != nil {
		_ = h.sessionCache.InvalidateGroup(ctx, cmd.GroupID)
	}

	event := shared.NewSessionsGeneratedEvent(cmd.GroupID, cmd.CourseID, len(batch.Created), batch.Skipped)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &GenerateSessionsResult{
		GroupID:     cmd.GroupID,
		Created:     len(batch.Created),
		Skipped:     batch.Skipped,
		Sessions:    batch.Created,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// sessionTitle derives a human-readable title from the lessons the session
// covers: "<first lesson> / <second lesson>".
func sessionTitle(modules []curriculum.Module, p schedule.PlannedSession) string {
	if p.ModuleIndex >= len(modules) {
		return ""
	}
	lessons := modules[p.ModuleIndex].Lessons
	first, second := p.LessonIndexes[0], p.LessonIndexes[1]
	if first >= len(lessons) || second >= len(lessons) {
		return ""
	}
	return lessons[first].Title + " / " + lessons[second].Title
}
