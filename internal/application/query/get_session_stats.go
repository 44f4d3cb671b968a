package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SESSION STATS QUERY
// Сводка по занятиям группы: счётчики по статусам, доля проведённых и
// аудит дубликатов. Дубликаты по активному ключу в корректном хранилище
// невозможны; запрос существует для проверки инвариантов на живых данных.
// ══════════════════════════════════════════════════════════════════════════════

// GetSessionStatsQuery содержит параметры запроса сводки.
type GetSessionStatsQuery struct {
	// GroupID - группа.
	GroupID string

	// IncludeDuplicateAudit - включить аудит дубликатов.
	IncludeDuplicateAudit bool
}

// DuplicateGroupDTO - группа занятий-дубликатов для аудита.
type DuplicateGroupDTO struct {
	// ModuleIndex, SessionNumber - конфликтующий ключ.
	ModuleIndex   int `json:"module_index"`
	SessionNumber int `json:"session_number"`

	// SessionIDs - занятия, разделяющие ключ.
	SessionIDs []string `json:"session_ids"`
}

// GetSessionStatsResult содержит результат запроса.
type GetSessionStatsResult struct {
	// GroupID - группа.
	GroupID string `json:"group_id"`

	// ─────────────────────────────────────────────────────────────────────────
	// Счётчики по статусам
	// ─────────────────────────────────────────────────────────────────────────

	Total     int `json:"total"`
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	Postponed int `json:"postponed"`

	// CompletionPercent - доля проведённых занятий (0-100).
	CompletionPercent int `json:"completion_percent"`

	// CompletionFormatted - прогресс курса ("4 из 12 занятий").
	CompletionFormatted string `json:"completion_formatted"`

	// ─────────────────────────────────────────────────────────────────────────
	// Аудит
	// ─────────────────────────────────────────────────────────────────────────

	// Duplicates - группы дубликатов (если запрошен аудит).
	Duplicates []DuplicateGroupDTO `json:"duplicates,omitempty"`

	// HasDuplicates - нарушен ли инвариант уникальности.
	HasDuplicates bool `json:"has_duplicates"`

	// GeneratedAt - время генерации.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetSessionStatsHandler обрабатывает запросы сводки.
type GetSessionStatsHandler struct {
	sessionRepo session.Repository
}

// NewGetSessionStatsHandler создаёт новый обработчик.
func NewGetSessionStatsHandler(sessionRepo session.Repository) *GetSessionStatsHandler {
	return &GetSessionStatsHandler{sessionRepo: sessionRepo}
}

// Handle выполняет запрос.
func (h *GetSessionStatsHandler) Handle(ctx context.Context, query GetSessionStatsQuery) (*GetSessionStatsResult, error) {
	if query.GroupID == "" {
		err := errors.New("group_id is required")
		return nil, shared.WrapError("query", "GetSessionStats", shared.ErrValidation, err.Error(), err)
	}

	stats, err := h.sessionRepo.Stats(ctx, query.GroupID)
	if err != nil {
		return nil, shared.WrapError("query", "GetSessionStats", shared.ErrExternalService, "stats lookup failed", err)
	}

	result := &GetSessionStatsResult{
		GroupID:             query.GroupID,
		Total:               stats.Total,
		Scheduled:           stats.Scheduled,
		Completed:           stats.Completed,
		Cancelled:           stats.Cancelled,
		Postponed:           stats.Postponed,
		CompletionPercent:   int(stats.CompletionRatio() * 100),
		CompletionFormatted: fmt.Sprintf("%d из %d занятий", stats.Completed, stats.Total),
		GeneratedAt:         time.Now().UTC(),
	}

	if query.IncludeDuplicateAudit {
		duplicates, err := h.sessionRepo.FindDuplicates(ctx, query.GroupID)
		if err != nil {
			return nil, shared.WrapError("query", "GetSessionStats", shared.ErrExternalService, "duplicate audit failed", err)
		}
		for _, dup := range duplicates {
			dto := DuplicateGroupDTO{
				ModuleIndex:   dup.ModuleIndex,
				SessionNumber: dup.SessionNumber,
			}
			for _, s := range dup.Sessions {
				dto.SessionIDs = append(dto.SessionIDs, s.ID)
			}
			result.Duplicates = append(result.Duplicates, dto)
		}
		result.HasDuplicates = len(result.Duplicates) > 0
	}

	return result, nil
}
