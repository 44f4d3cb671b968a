package session

import (
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTOMATION EVENTS
// Реестр защищает от повторной отправки уведомлений: флаг выставляется
// один раз и больше не сбрасывается ("first write wins"). Счётчики успехов
// и ошибок ведутся независимо от флага.
// ══════════════════════════════════════════════════════════════════════════════

// EventType определяет тип события автоматизации занятия.
type EventType string

const (
	// EventReminder24h - напоминание за сутки до занятия.
	EventReminder24h EventType = "reminder_24h"
	// EventReminder1h - напоминание за час до занятия.
	EventReminder1h EventType = "reminder_1h"
	// EventAbsenceNotice - уведомление об отсутствии студента.
	EventAbsenceNotice EventType = "absence_notice"
	// EventStatusNotice - уведомление об изменении статуса занятия.
	EventStatusNotice EventType = "status_notice"
)

// AllEventTypes возвращает все известные типы событий.
func AllEventTypes() []EventType {
	return []EventType{EventReminder24h, EventReminder1h, EventAbsenceNotice, EventStatusNotice}
}

// IsValid проверяет, что тип события известен.
func (t EventType) IsValid() bool {
	switch t {
	case EventReminder24h, EventReminder1h, EventAbsenceNotice, EventStatusNotice:
		return true
	default:
		return false
	}
}

// EventState - состояние одного типа события для одного занятия.
type EventState struct {
	// Sent - было ли событие отправлено (выставляется один раз).
	Sent bool `json:"sent"`

	// SentAt - когда событие было отправлено.
	SentAt *time.Time `json:"sent_at,omitempty"`

	// SuccessCount - количество успешных доставок (получателям).
	SuccessCount int `json:"success_count"`

	// FailureCount - количество неуспешных попыток доставки.
	FailureCount int `json:"failure_count"`
}

// AutomationEvents - реестр событий автоматизации занятия, по одной записи
// на тип события.
type AutomationEvents struct {
	Events map[EventType]EventState `json:"events"`
}

// NewAutomationEvents создаёт пустой реестр.
func NewAutomationEvents() AutomationEvents {
	return AutomationEvents{Events: make(map[EventType]EventState)}
}

// IsSent возвращает true, если событие данного типа уже было отправлено.
func (a AutomationEvents) IsSent(eventType EventType) bool {
	return a.Events[eventType].Sent
}

// State возвращает состояние события данного типа (нулевое, если записей нет).
func (a AutomationEvents) State(eventType EventType) EventState {
	return a.Events[eventType]
}

// MarkSent выставляет флаг отправки и увеличивает счётчик успехов.
// Повторный вызов для уже отправленного события возвращает
// ErrEventAlreadySent, не трогая флаг и временную метку.
func (a *AutomationEvents) MarkSent(eventType EventType, at time.Time, delivered int) error {
	if !eventType.IsValid() {
		return shared.ErrUnknownEventType
	}
	if a.Events == nil {
		a.Events = make(map[EventType]EventState)
	}

	state := a.Events[eventType]
	if state.Sent {
		return shared.ErrEventAlreadySent
	}

	sentAt := at.UTC()
	state.Sent = true
	state.SentAt = &sentAt
	state.SuccessCount += delivered
	a.Events[eventType] = state
	return nil
}

// RecordFailure увеличивает счётчик неуспешных попыток. Флаг отправки
// не трогается: событие остаётся подлежащим повтору.
func (a *AutomationEvents) RecordFailure(eventType EventType) error {
	if !eventType.IsValid() {
		return shared.ErrUnknownEventType
	}
	if a.Events == nil {
		a.Events = make(map[EventType]EventState)
	}

	state := a.Events[eventType]
	state.FailureCount++
	a.Events[eventType] = state
	return nil
}

// Clone создаёт глубокую копию реестра.
func (a AutomationEvents) Clone() AutomationEvents {
	clone := NewAutomationEvents()
	for eventType, state := range a.Events {
		if state.SentAt != nil {
			sentAt := *state.SentAt
			state.SentAt = &sentAt
		}
		clone.Events[eventType] = state
	}
	return clone
}
