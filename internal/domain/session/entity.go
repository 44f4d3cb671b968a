// Package session содержит доменную модель занятия - центральную сущность
// движка расписания. Здесь живут жизненный цикл статусов, временные окна
// разрешений, журнал посещаемости и реестр событий автоматизации.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/curriculum"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/schedule"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE WINDOWS
// Временные окна считаются от момента начала занятия (дата + время начала).
// ══════════════════════════════════════════════════════════════════════════════

const (
	// AttendanceOpensBefore - посещаемость можно отмечать за 30 минут до начала.
	AttendanceOpensBefore = 30 * time.Minute

	// AttendanceClosesAfter - и до двух часов после начала.
	AttendanceClosesAfter = 2 * time.Hour

	// EditLockBefore - редактирование закрывается за 24 часа до начала.
	EditLockBefore = 24 * time.Hour

	// UpcomingWindow - занятие считается "ближайшим" в пределах 48 часов.
	UpcomingWindow = 48 * time.Hour
)

// DefaultTimezone - часовой пояс по умолчанию для занятий без явного пояса.
const DefaultTimezone = "Asia/Almaty"

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет текущий статус занятия.
type Status string

const (
	// StatusScheduled - занятие запланировано (начальный статус).
	StatusScheduled Status = "scheduled"
	// StatusCompleted - занятие проведено.
	StatusCompleted Status = "completed"
	// StatusCancelled - занятие отменено.
	StatusCancelled Status = "cancelled"
	// StatusPostponed - занятие перенесено; позже может быть возвращено
	// в scheduled с новой датой административным действием.
	StatusPostponed Status = "postponed"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusPostponed:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true, если обычное редактирование из этого статуса
// запрещено. Выход из completed/cancelled возможен только административным
// вмешательством вне контракта этого пакета.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo проверяет допустимость перехода статуса.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusScheduled:
		return target == StatusCompleted || target == StatusCancelled || target == StatusPostponed
	case StatusPostponed:
		// Возврат в scheduled - через Reschedule; отмена перенесённого допустима.
		return target == StatusScheduled || target == StatusCancelled
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Session - запланированное занятие группы, привязанное к одному модулю курса
// и номеру занятия внутри модуля. Идентичность (GroupID, ModuleIndex,
// SessionNumber) уникальна среди неудалённых занятий.
type Session struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// GroupID - группа, которой принадлежит занятие (слабая ссылка).
	GroupID string

	// CourseID - курс, по программе которого создано занятие (слабая ссылка).
	CourseID string

	// ModuleIndex - позиция модуля в курсе (нулевая индексация).
	ModuleIndex int

	// SessionNumber - номер занятия внутри модуля (1..3).
	SessionNumber curriculum.SessionNumber

	// LessonIndexes - позиции двух уроков занятия внутри модуля.
	LessonIndexes [curriculum.LessonsPerSession]int

	// Title - название занятия.
	Title string

	// ScheduledDate - календарная дата занятия.
	ScheduledDate time.Time

	// StartTime - время начала ("HH:MM", локальное для группы).
	StartTime schedule.TimeOfDay

	// EndTime - время окончания ("HH:MM").
	EndTime schedule.TimeOfDay

	// Timezone - часовой пояс группы на момент генерации.
	Timezone string

	// Status - текущий статус жизненного цикла.
	Status Status

	// MeetingLink - ссылка на видеовстречу (может отсутствовать).
	MeetingLink string

	// RecordingLink - ссылка на запись занятия (появляется после проведения).
	RecordingLink string

	// Notes - заметки преподавателя.
	Notes string

	// AttendanceTaken - была ли отмечена посещаемость хотя бы раз.
	AttendanceTaken bool

	// Attendance - записи посещаемости, не более одной на студента.
	Attendance []AttendanceRecord

	// Automation - реестр событий автоматизации (напоминания, уведомления).
	Automation AutomationEvents

	// IsDeleted - надгробная отметка мягкого удаления.
	IsDeleted bool

	// DeletedAt - когда занятие было мягко удалено.
	DeletedAt *time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewSessionParams содержит параметры для создания нового занятия.
type NewSessionParams struct {
	ID       string
	GroupID  string
	CourseID string
	Title    string
	Timezone string
	Planned  schedule.PlannedSession
}

// NewSession создаёт новое занятие в статусе scheduled с валидацией полей.
func NewSession(params NewSessionParams) (*Session, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("session", "Create", shared.ErrInvalidID,
			"session id is required")
	}
	if params.GroupID == "" {
		return nil, shared.NewDomainError("session", "Create", shared.ErrInvalidID,
			"group id is required")
	}
	if params.CourseID == "" {
		return nil, shared.NewDomainError("session", "Create", shared.ErrInvalidID,
			"course id is required")
	}

	p := params.Planned
	if p.ModuleIndex < 0 {
		return nil, shared.WrapError("session", "Create", shared.ErrValueOutOfRange,
			"invalid module index", fmt.Errorf("module index %d", p.ModuleIndex))
	}
	if !p.SessionNumber.IsValid() {
		return nil, shared.WrapError("session", "Create", shared.ErrValueOutOfRange,
			"invalid session number", fmt.Errorf("session number %d", p.SessionNumber))
	}
	if err := validateLessonIndexes(p.LessonIndexes); err != nil {
		return nil, err
	}
	if p.Date.IsZero() {
		return nil, shared.NewDomainError("session", "Create", shared.ErrEmptyValue,
			"scheduled date is required")
	}
	if !p.StartTime.IsValid() || !p.EndTime.IsValid() {
		return nil, shared.NewDomainError("session", "Create", shared.ErrInvalidFormat,
			"invalid start/end time")
	}

	timezone := params.Timezone
	if timezone == "" {
		timezone = DefaultTimezone
	}

	now := time.Now().UTC()

	return &Session{
		ID:            params.ID,
		GroupID:       params.GroupID,
		CourseID:      params.CourseID,
		ModuleIndex:   p.ModuleIndex,
		SessionNumber: p.SessionNumber,
		LessonIndexes: p.LessonIndexes,
		Title:         strings.TrimSpace(params.Title),
		ScheduledDate: p.Date,
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		Timezone:      timezone,
		Status:        StatusScheduled,
		Automation:    NewAutomationEvents(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// validateLessonIndexes проверяет пару индексов уроков:
// в границах модуля и строго по возрастанию.
func validateLessonIndexes(indexes [curriculum.LessonsPerSession]int) error {
	for _, idx := range indexes {
		if idx < 0 || idx >= curriculum.LessonsPerModule {
			return shared.WrapError("session", "Create", shared.ErrValueOutOfRange,
				"lesson index out of module range",
				fmt.Errorf("index %d outside [0, %d)", idx, curriculum.LessonsPerModule))
		}
	}
	if indexes[0] >= indexes[1] {
		return shared.WrapError("session", "Create", shared.ErrValueOutOfRange,
			"lesson indexes must be strictly ascending",
			fmt.Errorf("got [%d, %d]", indexes[0], indexes[1]))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TIME HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// Location возвращает часовой пояс занятия.
func (s *Session) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StartsAt возвращает момент начала занятия (дата + время начала в поясе группы).
func (s *Session) StartsAt() time.Time {
	return s.at(s.StartTime)
}

// EndsAt возвращает момент окончания занятия.
func (s *Session) EndsAt() time.Time {
	return s.at(s.EndTime)
}

func (s *Session) at(t schedule.TimeOfDay) time.Time {
	loc := s.Location()
	hour, minute, err := t.Parse()
	if err != nil {
		hour, minute = 0, 0
	}
	d := s.ScheduledDate.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
}

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED PERMISSIONS
// Чистые функции от (статус, now, момент начала, meeting link). Разрешения
// вычисляются, а не хранятся, чтобы они не могли разойтись с часами.
// ══════════════════════════════════════════════════════════════════════════════

// placeholderLinks - значения, которые не считаются рабочей ссылкой.
var placeholderLinks = map[string]bool{
	"":    true,
	"-":   true,
	"#":   true,
	"tbd": true,
}

// HasUsableMeetingLink проверяет, что ссылка на встречу задана и не является
// заглушкой.
func (s *Session) HasUsableMeetingLink() bool {
	link := strings.ToLower(strings.TrimSpace(s.MeetingLink))
	return !placeholderLinks[link]
}

// CanJoin возвращает true, если к занятию сейчас можно подключиться:
// статус scheduled и есть рабочая ссылка на встречу.
func (s *Session) CanJoin() bool {
	return s.Status == StatusScheduled && s.HasUsableMeetingLink()
}

// CanTakeAttendance возвращает true, если сейчас можно отмечать посещаемость:
// статус scheduled или completed и now в окне [начало-30мин, начало+2ч].
func (s *Session) CanTakeAttendance(now time.Time) bool {
	if s.Status != StatusScheduled && s.Status != StatusCompleted {
		return false
	}
	start := s.StartsAt()
	opens := start.Add(-AttendanceOpensBefore)
	closes := start.Add(AttendanceClosesAfter)
	return !now.Before(opens) && !now.After(closes)
}

// CanEdit возвращает true, если занятие сейчас можно редактировать:
// для completed/cancelled - никогда; для scheduled/postponed - только
// более чем за 24 часа до начала.
func (s *Session) CanEdit(now time.Time) bool {
	if s.Status.IsTerminal() {
		return false
	}
	return now.Before(s.StartsAt().Add(-EditLockBefore))
}

// IsPast возвращает true, если занятие уже началось.
func (s *Session) IsPast(now time.Time) bool {
	return now.After(s.StartsAt())
}

// IsUpcoming возвращает true, если занятие начинается в ближайшие 48 часов.
func (s *Session) IsUpcoming(now time.Time) bool {
	start := s.StartsAt()
	return start.After(now) && start.Sub(now) <= UpcomingWindow
}

// IsToday возвращает true, если занятие сегодня (в поясе группы).
func (s *Session) IsToday(now time.Time) bool {
	loc := s.Location()
	a, b := s.ScheduledDate.In(loc), now.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// transition выполняет переход статуса с проверкой допустимости.
func (s *Session) transition(target Status) error {
	if !s.Status.CanTransitionTo(target) {
		return shared.WrapError("session", "Transition", shared.ErrStateTransition,
			"invalid session status transition",
			fmt.Errorf("%s -> %s", s.Status, target))
	}
	s.Status = target
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete помечает занятие проведённым.
func (s *Session) Complete() error {
	return s.transition(StatusCompleted)
}

// Cancel отменяет занятие.
func (s *Session) Cancel() error {
	return s.transition(StatusCancelled)
}

// Postpone переносит занятие на неопределённый срок.
func (s *Session) Postpone() error {
	return s.transition(StatusPostponed)
}

// Reschedule возвращает перенесённое занятие в scheduled с новой датой.
// Это административный переход: для других статусов недоступен.
func (s *Session) Reschedule(newDate time.Time) error {
	if s.Status != StatusPostponed {
		return shared.ErrNotPostponed
	}
	if newDate.IsZero() {
		return shared.NewDomainError("session", "Reschedule", shared.ErrEmptyValue,
			"new date is required")
	}
	s.ScheduledDate = newDate
	return s.transition(StatusScheduled)
}

// ══════════════════════════════════════════════════════════════════════════════
// EDITING
// ══════════════════════════════════════════════════════════════════════════════

// UpdateDetails содержит редактируемые преподавателем поля.
// nil означает "не менять".
type UpdateDetails struct {
	Title         *string
	MeetingLink   *string
	RecordingLink *string
	Notes         *string
}

// ApplyUpdate применяет правки, если окно редактирования открыто.
// Возвращает ErrSessionLocked для completed/cancelled или ближе 24 часов
// к началу.
func (s *Session) ApplyUpdate(now time.Time, details UpdateDetails) error {
	if !s.CanEdit(now) {
		return shared.ErrSessionLocked
	}

	if details.Title != nil {
		s.Title = strings.TrimSpace(*details.Title)
	}
	if details.MeetingLink != nil {
		s.MeetingLink = strings.TrimSpace(*details.MeetingLink)
	}
	if details.RecordingLink != nil {
		s.RecordingLink = strings.TrimSpace(*details.RecordingLink)
	}
	if details.Notes != nil {
		s.Notes = *details.Notes
	}

	s.UpdatedAt = time.Now().UTC()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// MarkAttendance добавляет или заменяет запись посещаемости студента.
// Разрешено только пока открыто окно посещаемости; повторная отметка
// заменяет запись на месте, не добавляя новую.
func (s *Session) MarkAttendance(now time.Time, record AttendanceRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if !s.CanTakeAttendance(now) {
		return shared.ErrAttendanceWindowClosed
	}

	replaced := false
	for i := range s.Attendance {
		if s.Attendance[i].StudentID == record.StudentID {
			s.Attendance[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		s.Attendance = append(s.Attendance, record)
	}

	s.AttendanceTaken = true
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// AttendanceFor возвращает запись посещаемости студента, если она есть.
func (s *Session) AttendanceFor(studentID string) (AttendanceRecord, bool) {
	for _, rec := range s.Attendance {
		if rec.StudentID == studentID {
			return rec, true
		}
	}
	return AttendanceRecord{}, false
}

// Производные счётчики вычисляются при чтении и нигде не хранятся,
// чтобы не расходиться с журналом.

// PresentCount возвращает количество присутствовавших (включая опоздавших).
func (s *Session) PresentCount() int {
	count := 0
	for _, rec := range s.Attendance {
		if rec.Status == AttendancePresent || rec.Status == AttendanceLate {
			count++
		}
	}
	return count
}

// AbsentCount возвращает количество отсутствовавших.
func (s *Session) AbsentCount() int {
	count := 0
	for _, rec := range s.Attendance {
		if rec.Status == AttendanceAbsent {
			count++
		}
	}
	return count
}

// TotalMarked возвращает общее количество отмеченных студентов.
func (s *Session) TotalMarked() int {
	return len(s.Attendance)
}

// ══════════════════════════════════════════════════════════════════════════════
// SOFT DELETE
// ══════════════════════════════════════════════════════════════════════════════

// SoftDelete помечает занятие удалённым и принудительно отменяет его.
// Физического удаления не происходит; все пути чтения обязаны проходить
// через представление активных занятий.
func (s *Session) SoftDelete(now time.Time) {
	if s.IsDeleted {
		return
	}
	s.IsDeleted = true
	deletedAt := now.UTC()
	s.DeletedAt = &deletedAt
	s.Status = StatusCancelled
	s.UpdatedAt = deletedAt
}

// String возвращает строковое представление занятия для логирования.
func (s *Session) String() string {
	return fmt.Sprintf(
		"Session{ID: %s, Group: %s, Module: %d, Number: %d, Date: %s, Status: %s}",
		s.ID, s.GroupID, s.ModuleIndex, s.SessionNumber,
		s.ScheduledDate.Format("2006-01-02"), s.Status,
	)
}

// Clone создаёт глубокую копию занятия.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	clone := *s
	clone.Attendance = make([]AttendanceRecord, len(s.Attendance))
	copy(clone.Attendance, s.Attendance)
	clone.Automation = s.Automation.Clone()
	if s.DeletedAt != nil {
		deletedAt := *s.DeletedAt
		clone.DeletedAt = &deletedAt
	}
	return &clone
}
