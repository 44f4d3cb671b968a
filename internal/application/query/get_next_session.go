package query

import (
	"context"
	"errors"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET NEXT SESSION QUERY
// Возвращает ближайшее будущее занятие группы в статусе scheduled.
// Основной запрос экрана группы и напоминаний.
// ══════════════════════════════════════════════════════════════════════════════

// GetNextSessionQuery содержит параметры запроса.
type GetNextSessionQuery struct {
	// GroupID - группа.
	GroupID string
}

// GetNextSessionResult содержит результат запроса.
type GetNextSessionResult struct {
	// Found - есть ли будущее занятие.
	Found bool `json:"found"`

	// Session - ближайшее занятие (если найдено).
	Session *SessionDTO `json:"session,omitempty"`

	// GeneratedAt - время генерации.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetNextSessionHandler обрабатывает запрос ближайшего занятия.
type GetNextSessionHandler struct {
	sessionRepo session.Repository
}

// NewGetNextSessionHandler создаёт новый обработчик.
func NewGetNextSessionHandler(sessionRepo session.Repository) *GetNextSessionHandler {
	return &GetNextSessionHandler{sessionRepo: sessionRepo}
}

// Handle выполняет запрос.
func (h *GetNextSessionHandler) Handle(ctx context.Context, query GetNextSessionQuery) (*GetNextSessionResult, error) {
	if query.GroupID == "" {
		err := errors.New("group_id is required")
		return nil, shared.WrapError("query", "GetNextSession", shared.ErrValidation, err.Error(), err)
	}

	now := time.Now()
	next, err := h.sessionRepo.NextUpcoming(ctx, query.GroupID, now)
	if err != nil {
		return nil, shared.WrapError("query", "GetNextSession", shared.ErrExternalService, "lookup failed", err)
	}

	result := &GetNextSessionResult{GeneratedAt: now.UTC()}
	if next != nil {
		dto := buildSessionDTO(next, now)
		result.Found = true
		result.Session = &dto
	}
	return result, nil
}
