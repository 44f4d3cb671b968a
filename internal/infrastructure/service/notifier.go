// Package service wires external transports into ports the application
// layer consumes. The only outbound transport of the session engine is
// the Telegram notifier used by the reminder dispatcher.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
	"github.com/bilim-crm/bilim-session-engine/internal/infrastructure/external/telegram"
	"github.com/bilim-crm/bilim-session-engine/pkg/circuitbreaker"
	"github.com/bilim-crm/bilim-session-engine/pkg/retry"
	"github.com/bilim-crm/bilim-session-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHAT RESOLUTION
// ══════════════════════════════════════════════════════════════════════════════

// ChatResolver maps a group ID to its Telegram chat.
type ChatResolver interface {
	ChatID(groupID string) (int64, bool)
}

// StaticChatResolver resolves chats from a fixed map, loaded from config.
type StaticChatResolver map[string]int64

// ChatID implements ChatResolver.
func (r StaticChatResolver) ChatID(groupID string) (int64, bool) {
	id, ok := r[groupID]
	return id, ok
}

// ══════════════════════════════════════════════════════════════════════════════
// TELEGRAM NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// TelegramNotifier delivers session notices to group chats. Every send
// goes through a circuit breaker and the Telegram retry policy, so a
// dead API degrades to fast failures instead of hung dispatch sweeps.
type TelegramNotifier struct {
	client   *telegram.Client
	resolver ChatResolver
	breaker  *circuitbreaker.CircuitBreaker
	retrier  *retry.Retrier
	logger   *slog.Logger
}

// NewTelegramNotifier creates a notifier around the given client.
func NewTelegramNotifier(client *telegram.Client, resolver ChatResolver, logger *slog.Logger) *TelegramNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &TelegramNotifier{
		client:   client,
		resolver: resolver,
		breaker: circuitbreaker.New("telegram",
			circuitbreaker.WithFailureThreshold(5),
			circuitbreaker.WithTimeout(30*time.Second),
			circuitbreaker.WithIsFailure(telegram.IsRetryable),
		),
		retrier: retry.NotifierRetrier(),
		logger:  logger,
	}
}

// SendSessionReminder sends a reminder for an upcoming session. The lead
// duration selects the wording (24h vs 1h).
func (n *TelegramNotifier) SendSessionReminder(ctx context.Context, s *session.Session, lead time.Duration) error {
	text := formatReminder(s, lead)
	return n.send(ctx, s.GroupID, text)
}

// SendStatusNotice announces a lifecycle change of a session.
func (n *TelegramNotifier) SendStatusNotice(ctx context.Context, s *session.Session, oldStatus session.Status) error {
	text := formatStatusNotice(s, oldStatus)
	return n.send(ctx, s.GroupID, text)
}

// SendAbsenceNotice reports marked absences after attendance is taken.
func (n *TelegramNotifier) SendAbsenceNotice(ctx context.Context, s *session.Session) error {
	absent := s.AbsentCount()
	if absent == 0 {
		return nil
	}

	text := fmt.Sprintf(
		"📋 <b>%s</b>\nОтмечено отсутствующих: %d из %d. Куратор свяжется с ними дополнительно.",
		s.Title, absent, s.TotalMarked(),
	)
	return n.send(ctx, s.GroupID, text)
}

func (n *TelegramNotifier) send(ctx context.Context, groupID, text string) error {
	chatID, ok := n.resolver.ChatID(groupID)
	if !ok {
		return shared.NewDomainError("notifier", "send", shared.ErrNotFound,
			fmt.Sprintf("no telegram chat configured for group %s", groupID))
	}

	err := n.breaker.Execute(ctx, func(ctx context.Context) error {
		return n.retrier.Do(ctx, func(ctx context.Context) error {
			_, err := n.client.SendHTML(ctx, chatID, text)
			if err != nil && !telegram.IsRetryable(err) {
				return retry.Permanent(err)
			}
			return err
		})
	})
	if err != nil {
		n.logger.Warn("notice delivery failed",
			"group_id", groupID,
			"error", err,
		)
		return shared.WrapError("notifier", "send", shared.ErrNotifierUnreachable,
			"failed to deliver telegram notice", err)
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE FORMATTING
// ══════════════════════════════════════════════════════════════════════════════

func formatReminder(s *session.Session, lead time.Duration) string {
	when := "скоро"
	switch {
	case lead >= 12*time.Hour:
		when = "завтра"
	case lead >= 30*time.Minute:
		when = "через час"
	}

	text := fmt.Sprintf(
		"🔔 <b>Напоминание</b>\n%s %s в %s.",
		s.Title, when, s.StartTime.String(),
	)
	if s.HasUsableMeetingLink() {
		text += fmt.Sprintf("\nСсылка на занятие: %s", s.MeetingLink)
	}
	return text
}

func formatStatusNotice(s *session.Session, oldStatus session.Status) string {
	switch s.Status {
	case session.StatusCancelled:
		return fmt.Sprintf("❌ <b>%s</b>\nЗанятие отменено.", s.Title)
	case session.StatusPostponed:
		return fmt.Sprintf("⏸ <b>%s</b>\nЗанятие перенесено, новая дата будет объявлена позже.", s.Title)
	case session.StatusScheduled:
		if oldStatus == session.StatusPostponed {
			return fmt.Sprintf(
				"📅 <b>%s</b>\nЗанятие назначено на %s, %s в %s.",
				s.Title, timeutil.WeekdayNameRu(s.ScheduledDate),
				s.ScheduledDate.Format(timeutil.FormatRussianDate), s.StartTime.String(),
			)
		}
	case session.StatusCompleted:
		if s.RecordingLink != "" {
			return fmt.Sprintf("✅ <b>%s</b>\nЗанятие завершено. Запись: %s", s.Title, s.RecordingLink)
		}
		return fmt.Sprintf("✅ <b>%s</b>\nЗанятие завершено.", s.Title)
	}
	return fmt.Sprintf("ℹ️ <b>%s</b>\nСтатус занятия: %s.", s.Title, s.Status)
}
