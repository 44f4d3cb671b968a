// Package eventhandler содержит обработчики доменных событий.
// Эти обработчики реализуют event-driven архитектуру и связывают
// различные части системы через асинхронные события.
//
// Обработчики - "реактивная" часть системы: они реагируют на изменения
// статусов занятий и запускают побочные эффекты, такие как отправка
// уведомлений в группы.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/application/command"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STATUS CHANGED HANDLER
// Обрабатывает события изменения статуса занятия: отмена, перенос,
// завершение, возврат в расписание. Отправляет уведомление в чат группы
// и записывает результат в реестр автоматизации занятия.
//
// Реестр first-write-wins: повторная доставка того же события не приводит
// к повторному сообщению в чат.
// ═══════════════════════════════════════════════════════════════════════════

// StatusNotifier отправляет уведомление об изменении статуса занятия.
type StatusNotifier interface {
	SendStatusNotice(ctx context.Context, s *session.Session, oldStatus session.Status) error
}

// OnStatusChangedHandler обрабатывает события изменения статуса занятия.
type OnStatusChangedHandler struct {
	sessionRepo session.Repository
	notifier    StatusNotifier
	recorder    *command.RecordAutomationEventHandler
	logger      *slog.Logger

	// Timeout на обработку одного события.
	timeout time.Duration
}

// NewOnStatusChangedHandler создаёт новый обработчик.
func NewOnStatusChangedHandler(
	sessionRepo session.Repository,
	notifier StatusNotifier,
	recorder *command.RecordAutomationEventHandler,
	logger *slog.Logger,
) *OnStatusChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnStatusChangedHandler{
		sessionRepo: sessionRepo,
		notifier:    notifier,
		recorder:    recorder,
		logger:      logger,
		timeout:     30 * time.Second,
	}
}

// EventTypes возвращает типы событий, на которые подписан обработчик.
func (h *OnStatusChangedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventSessionCompleted,
		shared.EventSessionCancelled,
		shared.EventSessionPostponed,
		shared.EventSessionRescheduled,
	}
}

// Handle реализует shared.EventHandler.
func (h *OnStatusChangedHandler) Handle(event shared.Event) error {
	statusEvent, ok := event.(shared.SessionStatusChangedEvent)
	if !ok {
		return fmt.Errorf("eventhandler: unexpected event payload %T for %s", event, event.EventType())
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	sess, err := h.sessionRepo.GetByID(ctx, statusEvent.AggregateID())
	if err != nil {
		return fmt.Errorf("eventhandler: load session %s: %w", statusEvent.AggregateID(), err)
	}

	// Реестр уже содержит отметку - уведомление отправлял кто-то другой.
	if sess.Automation.IsSent(session.EventStatusNotice) {
		h.logger.Debug("status notice already sent, skipping",
			"session_id", sess.ID,
			"new_status", statusEvent.NewStatus,
		)
		return nil
	}

	oldStatus := session.Status(statusEvent.OldStatus)
	sendErr := h.notifier.SendStatusNotice(ctx, sess, oldStatus)
	if sendErr != nil {
		h.logger.Error("failed to send status notice",
			"session_id", sess.ID,
			"group_id", sess.GroupID,
			"new_status", statusEvent.NewStatus,
			"error", sendErr,
		)
	}

	delivered := 0
	if sendErr == nil {
		delivered = 1
	}

	recordCmd := command.RecordAutomationEventCommand{
		SessionID:     sess.ID,
		EventType:     session.EventStatusNotice,
		Success:       sendErr == nil,
		Delivered:     delivered,
		CorrelationID: statusEvent.CorrelationID,
	}
	if _, err := h.recorder.Handle(ctx, recordCmd); err != nil {
		return fmt.Errorf("eventhandler: record status notice outcome: %w", err)
	}

	if sendErr != nil {
		return sendErr
	}

	h.logger.Info("status notice sent",
		"session_id", sess.ID,
		"group_id", sess.GroupID,
		"old_status", statusEvent.OldStatus,
		"new_status", statusEvent.NewStatus,
	)
	return nil
}
