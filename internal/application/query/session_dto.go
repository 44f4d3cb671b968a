// Package query contains read operations (CQRS - Queries).
package query

import (
	"fmt"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION DTO
// Проекция занятия для отображения. Все разрешения и временные флаги
// вычисляются в момент запроса: они зависят от часов и не хранятся.
// ══════════════════════════════════════════════════════════════════════════════

// SessionDTO - проекция занятия для отображения.
type SessionDTO struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Идентификация
	// ─────────────────────────────────────────────────────────────────────────

	// ID - идентификатор занятия.
	ID string `json:"id"`

	// GroupID - группа.
	GroupID string `json:"group_id"`

	// ModuleIndex - позиция модуля в курсе.
	ModuleIndex int `json:"module_index"`

	// SessionNumber - номер занятия внутри модуля (1..3).
	SessionNumber int `json:"session_number"`

	// Title - название занятия.
	Title string `json:"title"`

	// ─────────────────────────────────────────────────────────────────────────
	// Время
	// ─────────────────────────────────────────────────────────────────────────

	// Date - дата занятия.
	Date time.Time `json:"date"`

	// DateFormatted - дата на русском ("Сегодня", "3 сентября").
	DateFormatted string `json:"date_formatted"`

	// TimeRange - интервал времени ("19:00–21:00").
	TimeRange string `json:"time_range"`

	// StartsAt - момент начала с учётом пояса группы.
	StartsAt time.Time `json:"starts_at"`

	// Countdown - до начала ("через 2 ч 15 мин", пусто если началось).
	Countdown string `json:"countdown,omitempty"`

	// ─────────────────────────────────────────────────────────────────────────
	// Статус
	// ─────────────────────────────────────────────────────────────────────────

	// Status - статус жизненного цикла.
	Status string `json:"status"`

	// StatusLabel - статус на русском с эмодзи.
	StatusLabel string `json:"status_label"`

	// MeetingLink - ссылка на встречу (пустая, если заглушка).
	MeetingLink string `json:"meeting_link,omitempty"`

	// RecordingLink - ссылка на запись.
	RecordingLink string `json:"recording_link,omitempty"`

	// Notes - заметки преподавателя.
	Notes string `json:"notes,omitempty"`

	// ─────────────────────────────────────────────────────────────────────────
	// Разрешения и временные флаги
	// ─────────────────────────────────────────────────────────────────────────

	// CanJoin - можно ли сейчас подключиться.
	CanJoin bool `json:"can_join"`

	// CanTakeAttendance - открыто ли окно посещаемости.
	CanTakeAttendance bool `json:"can_take_attendance"`

	// CanEdit - открыто ли окно редактирования.
	CanEdit bool `json:"can_edit"`

	// IsPast - занятие уже началось.
	IsPast bool `json:"is_past"`

	// IsToday - занятие сегодня.
	IsToday bool `json:"is_today"`

	// IsUpcoming - занятие в ближайшие 48 часов.
	IsUpcoming bool `json:"is_upcoming"`

	// ─────────────────────────────────────────────────────────────────────────
	// Посещаемость
	// ─────────────────────────────────────────────────────────────────────────

	// AttendanceTaken - посещаемость отмечалась.
	AttendanceTaken bool `json:"attendance_taken"`

	// PresentCount - присутствовало (включая опоздавших).
	PresentCount int `json:"present_count"`

	// AbsentCount - отсутствовало.
	AbsentCount int `json:"absent_count"`

	// TotalMarked - всего отмечено.
	TotalMarked int `json:"total_marked"`
}

// buildSessionDTO строит проекцию занятия на момент now.
func buildSessionDTO(s *session.Session, now time.Time) SessionDTO {
	dto := SessionDTO{
		ID:                s.ID,
		GroupID:           s.GroupID,
		ModuleIndex:       s.ModuleIndex,
		SessionNumber:     int(s.SessionNumber),
		Title:             s.Title,
		Date:              s.ScheduledDate,
		DateFormatted:     formatDateRu(s.ScheduledDate, now),
		TimeRange:         fmt.Sprintf("%s–%s", s.StartTime, s.EndTime),
		StartsAt:          s.StartsAt(),
		Status:            string(s.Status),
		StatusLabel:       statusLabel(s.Status),
		RecordingLink:     s.RecordingLink,
		Notes:             s.Notes,
		CanJoin:           s.CanJoin(),
		CanTakeAttendance: s.CanTakeAttendance(now),
		CanEdit:           s.CanEdit(now),
		IsPast:            s.IsPast(now),
		IsToday:           s.IsToday(now),
		IsUpcoming:        s.IsUpcoming(now),
		AttendanceTaken:   s.AttendanceTaken,
		PresentCount:      s.PresentCount(),
		AbsentCount:       s.AbsentCount(),
		TotalMarked:       s.TotalMarked(),
	}

	if s.HasUsableMeetingLink() {
		dto.MeetingLink = s.MeetingLink
	}
	if !dto.IsPast && s.Status == session.StatusScheduled {
		dto.Countdown = formatCountdown(dto.StartsAt.Sub(now))
	}

	return dto
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

// statusLabel возвращает статус на русском с эмодзи.
func statusLabel(status session.Status) string {
	switch status {
	case session.StatusScheduled:
		return "📅 Запланировано"
	case session.StatusCompleted:
		return "✅ Проведено"
	case session.StatusCancelled:
		return "❌ Отменено"
	case session.StatusPostponed:
		return "⏸ Перенесено"
	default:
		return string(status)
	}
}

// formatDateRu форматирует дату на русском.
func formatDateRu(t, now time.Time) string {
	months := []string{
		"января", "февраля", "марта", "апреля", "мая", "июня",
		"июля", "августа", "сентября", "октября", "ноября", "декабря",
	}

	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return "Сегодня"
	}
	if t.Year() == now.Year() && t.YearDay() == now.YearDay()+1 {
		return "Завтра"
	}

	return fmt.Sprintf("%d %s", t.Day(), months[t.Month()-1])
}

// formatCountdown форматирует время до начала занятия.
func formatCountdown(d time.Duration) string {
	if d <= 0 {
		return ""
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("через %d д %d ч", days, hours)
	case hours > 0:
		return fmt.Sprintf("через %d ч %d мин", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("через %d мин", minutes)
	default:
		return "вот-вот начнётся"
	}
}
