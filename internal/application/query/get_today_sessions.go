package query

import (
	"context"
	"sort"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TODAY SESSIONS QUERY
// Возвращает занятия всех групп на сегодня. Используется дашбордом
// администратора и планировщиком напоминаний.
// ══════════════════════════════════════════════════════════════════════════════

// GetTodaySessionsQuery содержит параметры запроса.
type GetTodaySessionsQuery struct {
	// OnlyScheduled - вернуть только занятия в статусе scheduled.
	OnlyScheduled bool
}

// GetTodaySessionsResult содержит результат запроса.
type GetTodaySessionsResult struct {
	// Sessions - занятия в порядке времени начала.
	Sessions []SessionDTO `json:"sessions"`

	// GroupCount - число групп с занятиями сегодня.
	GroupCount int `json:"group_count"`

	// GeneratedAt - время генерации.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetTodaySessionsHandler обрабатывает запрос занятий на сегодня.
type GetTodaySessionsHandler struct {
	sessionRepo session.Repository
}

// NewGetTodaySessionsHandler создаёт новый обработчик.
func NewGetTodaySessionsHandler(sessionRepo session.Repository) *GetTodaySessionsHandler {
	return &GetTodaySessionsHandler{sessionRepo: sessionRepo}
}

// Handle выполняет запрос.
func (h *GetTodaySessionsHandler) Handle(ctx context.Context, query GetTodaySessionsQuery) (*GetTodaySessionsResult, error) {
	now := time.Now()

	sessions, err := h.sessionRepo.Today(ctx, now)
	if err != nil {
		return nil, shared.WrapError("query", "GetTodaySessions", shared.ErrExternalService, "lookup failed", err)
	}

	groups := make(map[string]bool)
	result := &GetTodaySessionsResult{GeneratedAt: now.UTC()}
	for _, s := range sessions {
		if query.OnlyScheduled && s.Status != session.StatusScheduled {
			continue
		}
		result.Sessions = append(result.Sessions, buildSessionDTO(s, now))
		groups[s.GroupID] = true
	}
	result.GroupCount = len(groups)

	sort.Slice(result.Sessions, func(i, j int) bool {
		return result.Sessions[i].StartsAt.Before(result.Sessions[j].StartsAt)
	})

	return result, nil
}
