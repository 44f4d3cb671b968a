package query

import (
	"context"
	"errors"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GROUP SCHEDULE QUERY
// Возвращает занятия группы: всё расписание, один день, один модуль или
// диапазон дат. Дневные выборки идут через кэш - это самый горячий путь
// (экран "занятия на сегодня").
// ══════════════════════════════════════════════════════════════════════════════

// GetGroupScheduleQuery содержит параметры запроса расписания.
type GetGroupScheduleQuery struct {
	// GroupID - группа.
	GroupID string

	// ─────────────────────────────────────────────────────────────────────────
	// Фильтры (взаимоисключающие; без фильтров - всё расписание)
	// ─────────────────────────────────────────────────────────────────────────

	// Day - занятия на конкретную дату.
	Day *time.Time

	// ModuleIndex - занятия одного модуля.
	ModuleIndex *int

	// From, To - диапазон дат (обе границы включительно).
	From *time.Time
	To   *time.Time
}

// Validate проверяет корректность параметров.
func (q GetGroupScheduleQuery) Validate() error {
	if q.GroupID == "" {
		return errors.New("group_id is required")
	}

	filters := 0
	if q.Day != nil {
		filters++
	}
	if q.ModuleIndex != nil {
		filters++
	}
	if q.From != nil || q.To != nil {
		if q.From == nil || q.To == nil {
			return errors.New("date range requires both from and to")
		}
		if q.To.Before(*q.From) {
			return errors.New("date range is inverted")
		}
		filters++
	}
	if filters > 1 {
		return errors.New("day, module and date range filters are mutually exclusive")
	}
	return nil
}

// GetGroupScheduleResult содержит результат запроса.
type GetGroupScheduleResult struct {
	// GroupID - группа.
	GroupID string `json:"group_id"`

	// Sessions - занятия в хронологическом порядке.
	Sessions []SessionDTO `json:"sessions"`

	// FromCache - выборка пришла из кэша.
	FromCache bool `json:"-"`

	// GeneratedAt - время генерации.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetGroupScheduleHandler обрабатывает запросы расписания группы.
type GetGroupScheduleHandler struct {
	sessionRepo  session.Repository
	sessionCache session.Cache
}

// NewGetGroupScheduleHandler создаёт новый обработчик.
func NewGetGroupScheduleHandler(sessionRepo session.Repository, sessionCache session.Cache) *GetGroupScheduleHandler {
	return &GetGroupScheduleHandler{
		sessionRepo:  sessionRepo,
		sessionCache: sessionCache,
	}
}

// Handle выполняет запрос.
func (h *GetGroupScheduleHandler) Handle(ctx context.Context, query GetGroupScheduleQuery) (*GetGroupScheduleResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetGroupSchedule", shared.ErrValidation, err.Error(), err)
	}

	now := time.Now()
	result := &GetGroupScheduleResult{
		GroupID:     query.GroupID,
		GeneratedAt: now.UTC(),
	}

	var sessions []*session.Session
	var err error

	switch {
	case query.Day != nil:
		sessions, result.FromCache, err = h.dayView(ctx, query.GroupID, *query.Day)
	case query.ModuleIndex != nil:
		sessions, err = h.sessionRepo.GetByModule(ctx, query.GroupID, *query.ModuleIndex)
	case query.From != nil:
		sessions, err = h.sessionRepo.GetByDateRange(ctx, query.GroupID, *query.From, *query.To)
	default:
		sessions, err = h.sessionRepo.GetByGroup(ctx, query.GroupID)
	}
	if err != nil {
		return nil, shared.WrapError("query", "GetGroupSchedule", shared.ErrExternalService, "schedule lookup failed", err)
	}

	result.Sessions = make([]SessionDTO, 0, len(sessions))
	for _, s := range sessions {
		result.Sessions = append(result.Sessions, buildSessionDTO(s, now))
	}

	return result, nil
}

// dayView читает дневную выборку через кэш. Ошибки кэша не фатальны:
// промах или сбой просто уводит запрос в хранилище.
func (h *GetGroupScheduleHandler) dayView(ctx context.Context, groupID string, day time.Time) ([]*session.Session, bool, error) {
	if h.sessionCache != nil {
		cached, err := h.sessionCache.GetDay(ctx, groupID, day)
		if err == nil && cached != nil {
			return cached, true, nil
		}
	}

	sessions, err := h.sessionRepo.GetByDay(ctx, groupID, day)
	if err != nil {
		return nil, false, err
	}

	if h.sessionCache != nil {
		_ = h.sessionCache.SetDay(ctx, groupID, day, sessions)
	}
	return sessions, false, nil
}
