package command

import (
	"context"
	"fmt"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SOFT DELETE SESSIONS COMMAND
// Tombstones every active session of a group. Used on group archival and as
// the first half of regeneration. Nothing is removed physically.
// ══════════════════════════════════════════════════════════════════════════════

// SoftDeleteSessionsCommand contains the data needed to delete group sessions.
type SoftDeleteSessionsCommand struct {
	// GroupID is the group whose sessions are deleted.
	GroupID string

	// CorrelationID for tracing across services.
	CorrelationID string
}

// SoftDeleteSessionsResult contains the deletion outcome.
type SoftDeleteSessionsResult struct {
	// Removed is the number of sessions tombstoned.
	Removed int

	// DeletedAt is when the deletion was performed.
	DeletedAt time.Time
}

// SoftDeleteSessionsHandler handles the SoftDeleteSessionsCommand.
type SoftDeleteSessionsHandler struct {
	sessionRepo    session.Repository
	sessionCache   session.Cache
	eventPublisher shared.EventPublisher
}

// NewSoftDeleteSessionsHandler creates a new SoftDeleteSessionsHandler.
func NewSoftDeleteSessionsHandler(
	sessionRepo session.Repository,
	sessionCache session.Cache,
	eventPublisher shared.EventPublisher,
) *SoftDeleteSessionsHandler {
	return &SoftDeleteSessionsHandler{
		sessionRepo:    sessionRepo,
		sessionCache:   sessionCache,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the soft delete sessions command.
func (h *SoftDeleteSessionsHandler) Handle(ctx context.Context, cmd SoftDeleteSessionsCommand) (*SoftDeleteSessionsResult, error) {
	if cmd.GroupID == "" {
		return nil, fmt.Errorf("soft_delete_sessions: group_id is required")
	}

	removed, err := h.sessionRepo.SoftDeleteAll(ctx, cmd.GroupID)
	if err != nil {
		return nil, fmt.Errorf("soft_delete_sessions: delete failed: %w", err)
	}

	if h.sessionCache != nil {
		_ = h.sessionCache.InvalidateGroup(ctx, cmd.GroupID)
	}

	return &SoftDeleteSessionsResult{
		Removed:   removed,
		DeletedAt: time.Now().UTC(),
	}, nil
}
