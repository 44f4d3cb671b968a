package command

import (
	"context"
	"fmt"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/curriculum"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/schedule"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGENERATE SESSIONS COMMAND
// Soft-deletes every active session of the group and generates a fresh set
// from the current curriculum and schedule. Used when a group's schedule
// changes after sessions were already created. Old sessions stay in the
// store as cancelled tombstones.
// ══════════════════════════════════════════════════════════════════════════════

// RegenerateSessionsCommand contains the data needed to regenerate sessions.
type RegenerateSessionsCommand struct {
	// GroupID is the group to regenerate sessions for.
	GroupID string

	// CourseID identifies the course the curriculum belongs to.
	CourseID string

	// Modules is the course curriculum, in course order.
	Modules []curriculum.Module

	// Schedule is the group's new weekly schedule.
	Schedule schedule.GroupSchedule

	// MeetingLink, when set, is stamped on every generated session.
	MeetingLink string

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate checks that the command carries everything a full generation needs.
func (c RegenerateSessionsCommand) Validate() error {
	if c.GroupID == "" {
		return fmt.Errorf("regenerate_sessions: group_id is required")
	}
	if c.CourseID == "" {
		return fmt.Errorf("regenerate_sessions: course_id is required")
	}
	if len(c.Modules) == 0 {
		return fmt.Errorf("regenerate_sessions: curriculum has no modules")
	}
	return nil
}

// RegenerateSessionsResult contains the result of regeneration.
type RegenerateSessionsResult struct {
	// Removed is the number of sessions soft-deleted before generation.
	Removed int

	// Created is the number of sessions written by the new generation.
	Created int

	// Sessions holds the created sessions in chronological order.
	Sessions []*session.Session

	// RegeneratedAt is when the regeneration was performed.
	RegeneratedAt time.Time
}

// RegenerateSessionsHandler handles the RegenerateSessionsCommand.
type RegenerateSessionsHandler struct {
	sessionRepo     session.Repository
	sessionCache    session.Cache
	generateHandler *GenerateSessionsHandler
	eventPublisher  shared.EventPublisher
}

// NewRegenerateSessionsHandler creates a new RegenerateSessionsHandler.
func NewRegenerateSessionsHandler(
	sessionRepo session.Repository,
	sessionCache session.Cache,
	generateHandler *GenerateSessionsHandler,
	eventPublisher shared.EventPublisher,
) *RegenerateSessionsHandler {
	return &RegenerateSessionsHandler{
		sessionRepo:     sessionRepo,
		sessionCache:    sessionCache,
		generateHandler: generateHandler,
		eventPublisher:  eventPublisher,
	}
}

// Handle executes the regenerate sessions command.
func (h *RegenerateSessionsHandler) Handle(ctx context.Context, cmd RegenerateSessionsCommand) (*RegenerateSessionsResult, error) {
	generateCmd := GenerateSessionsCommand{
		GroupID:       cmd.GroupID,
		CourseID:      cmd.CourseID,
		Modules:       cmd.Modules,
		Schedule:      cmd.Schedule,
		MeetingLink:   cmd.MeetingLink,
		CorrelationID: cmd.CorrelationID,
	}
	if err := generateCmd.Validate(); err != nil {
		return nil, err
	}

	// Tombstone the current set first. After this the uniqueness key is free
	// for the fresh generation.
	removed, err := h.sessionRepo.SoftDeleteAll(ctx, cmd.GroupID)
	if err != nil {
		return nil, fmt.Errorf("regenerate_sessions: soft delete failed: %w", err)
	}

	if h.sessionCache != nil {
		_ = h.sessionCache.InvalidateGroup(ctx, cmd.GroupID)
	}

	generated, err := h.generateHandler.Handle(ctx, generateCmd)
	if err != nil {
		return nil, fmt.Errorf("regenerate_sessions: generation failed: %w", err)
	}

	event := shared.NewSessionsGeneratedEvent(cmd.GroupID, cmd.CourseID, generated.Created, generated.Skipped)
	event.BaseEvent.Type = shared.EventSessionsRegenerated
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &RegenerateSessionsResult{
		Removed:       removed,
		Created:       generated.Created,
		Sessions:      generated.Sessions,
		RegeneratedAt: time.Now().UTC(),
	}, nil
}
