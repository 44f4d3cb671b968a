package query

import (
	"context"
	"errors"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SESSION DETAILS QUERY
// Полная карточка занятия: проекция, журнал посещаемости и реестр событий
// автоматизации. Используется экраном занятия и панелью администратора.
// ══════════════════════════════════════════════════════════════════════════════

// GetSessionDetailsQuery содержит параметры запроса карточки занятия.
type GetSessionDetailsQuery struct {
	// SessionID - идентификатор занятия.
	SessionID string

	// IncludeAttendance - включить журнал посещаемости.
	IncludeAttendance bool

	// IncludeAutomation - включить реестр событий автоматизации.
	IncludeAutomation bool
}

// AttendanceRecordDTO - запись посещаемости для отображения.
type AttendanceRecordDTO struct {
	// StudentID - студент.
	StudentID string `json:"student_id"`

	// Status - статус посещаемости.
	Status string `json:"status"`

	// StatusLabel - статус на русском с эмодзи.
	StatusLabel string `json:"status_label"`

	// Comment - комментарий отметившего.
	Comment string `json:"comment,omitempty"`

	// MarkedBy - кто отметил.
	MarkedBy string `json:"marked_by"`

	// MarkedAt - когда отмечено.
	MarkedAt time.Time `json:"marked_at"`
}

// AutomationStateDTO - состояние одного типа события автоматизации.
type AutomationStateDTO struct {
	// EventType - тип события.
	EventType string `json:"event_type"`

	// Sent - было ли отправлено.
	Sent bool `json:"sent"`

	// SentAt - когда отправлено.
	SentAt *time.Time `json:"sent_at,omitempty"`

	// SuccessCount - успешных доставок.
	SuccessCount int `json:"success_count"`

	// FailureCount - неуспешных попыток.
	FailureCount int `json:"failure_count"`
}

// GetSessionDetailsResult содержит результат запроса.
type GetSessionDetailsResult struct {
	// Session - проекция занятия.
	Session SessionDTO `json:"session"`

	// Attendance - журнал посещаемости (если запрошен).
	Attendance []AttendanceRecordDTO `json:"attendance,omitempty"`

	// Automation - реестр событий автоматизации (если запрошен).
	Automation []AutomationStateDTO `json:"automation,omitempty"`

	// GeneratedAt - время генерации.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetSessionDetailsHandler обрабатывает запросы карточки занятия.
type GetSessionDetailsHandler struct {
	sessionRepo session.Repository
}

// NewGetSessionDetailsHandler создаёт новый обработчик.
func NewGetSessionDetailsHandler(sessionRepo session.Repository) *GetSessionDetailsHandler {
	return &GetSessionDetailsHandler{sessionRepo: sessionRepo}
}

// Handle выполняет запрос.
func (h *GetSessionDetailsHandler) Handle(ctx context.Context, query GetSessionDetailsQuery) (*GetSessionDetailsResult, error) {
	if query.SessionID == "" {
		err := errors.New("session_id is required")
		return nil, shared.WrapError("query", "GetSessionDetails", shared.ErrValidation, err.Error(), err)
	}

	s, err := h.sessionRepo.GetByID(ctx, query.SessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := &GetSessionDetailsResult{
		Session:     buildSessionDTO(s, now),
		GeneratedAt: now.UTC(),
	}

	if query.IncludeAttendance {
		result.Attendance = make([]AttendanceRecordDTO, 0, len(s.Attendance))
		for _, rec := range s.Attendance {
			result.Attendance = append(result.Attendance, AttendanceRecordDTO{
				StudentID:   rec.StudentID,
				Status:      string(rec.Status),
				StatusLabel: attendanceLabel(rec.Status),
				Comment:     rec.Comment,
				MarkedBy:    rec.MarkedBy,
				MarkedAt:    rec.MarkedAt,
			})
		}
	}

	if query.IncludeAutomation {
		for _, eventType := range session.AllEventTypes() {
			state := s.Automation.State(eventType)
			result.Automation = append(result.Automation, AutomationStateDTO{
				EventType:    string(eventType),
				Sent:         state.Sent,
				SentAt:       state.SentAt,
				SuccessCount: state.SuccessCount,
				FailureCount: state.FailureCount,
			})
		}
	}

	return result, nil
}

// attendanceLabel возвращает статус посещаемости на русском с эмодзи.
func attendanceLabel(status session.AttendanceStatus) string {
	switch status {
	case session.AttendancePresent:
		return "✅ Присутствовал"
	case session.AttendanceAbsent:
		return "❌ Отсутствовал"
	case session.AttendanceLate:
		return "⏰ Опоздал"
	case session.AttendanceExcused:
		return "📝 Уважительная причина"
	default:
		return string(status)
	}
}
