// Package jobs contains implementations of scheduled jobs for the session
// engine. Each job is a small sweep over the session registry: dispatch
// due reminders, report absences, audit schedule integrity.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/application/command"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER DISPATCH JOB
// ══════════════════════════════════════════════════════════════════════════════

// Notifier delivers session notices to the group's chat.
type Notifier interface {
	SendSessionReminder(ctx context.Context, s *session.Session, lead time.Duration) error
	SendAbsenceNotice(ctx context.Context, s *session.Session) error
}

// ReminderDispatchJob sends the 24-hour and 1-hour reminders for upcoming
// sessions. The automation ledger on each session makes the sweep
// idempotent: a reminder type fires at most once per session no matter
// how often the job runs or how many workers run it.
type ReminderDispatchJob struct {
	// Dependencies
	sessionRepo session.Repository
	notifier    Notifier
	recorder    *command.RecordAutomationEventHandler
	logger      *slog.Logger

	// Configuration
	config ReminderDispatchConfig

	// State (for metrics)
	lastRunStats atomic.Value // *DispatchStats
}

// ReminderDispatchConfig contains configuration for the dispatch job.
type ReminderDispatchConfig struct {
	// DayLead is the lead time of the early reminder.
	DayLead time.Duration

	// HourLead is the lead time of the late reminder.
	HourLead time.Duration

	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration
}

// DefaultReminderDispatchConfig returns sensible defaults.
func DefaultReminderDispatchConfig() ReminderDispatchConfig {
	return ReminderDispatchConfig{
		DayLead:  24 * time.Hour,
		HourLead: 1 * time.Hour,
		Timeout:  2 * time.Minute,
	}
}

// DispatchStats contains statistics from one dispatch sweep.
type DispatchStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Candidates  int
	SentCount   int
	SkipCount   int
	FailCount   int
}

// NewReminderDispatchJob creates a new dispatch job.
func NewReminderDispatchJob(
	sessionRepo session.Repository,
	notifier Notifier,
	recorder *command.RecordAutomationEventHandler,
	logger *slog.Logger,
	config ReminderDispatchConfig,
) *ReminderDispatchJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.DayLead <= 0 {
		config.DayLead = 24 * time.Hour
	}
	if config.HourLead <= 0 {
		config.HourLead = 1 * time.Hour
	}

	return &ReminderDispatchJob{
		sessionRepo: sessionRepo,
		notifier:    notifier,
		recorder:    recorder,
		logger:      logger,
		config:      config,
	}
}

// Name returns the job name.
func (j *ReminderDispatchJob) Name() string {
	return "reminder_dispatch"
}

// Description returns a human-readable description.
func (j *ReminderDispatchJob) Description() string {
	return "Sends 24h and 1h reminders for upcoming sessions"
}

// Run executes one dispatch sweep.
func (j *ReminderDispatchJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &DispatchStats{StartedAt: startedAt}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	upcoming, err := j.sessionRepo.UpcomingWithin(ctx, startedAt, j.config.DayLead)
	if err != nil {
		return fmt.Errorf("failed to load upcoming sessions: %w", err)
	}
	stats.Candidates = len(upcoming)

	for _, s := range upcoming {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		eventType, lead, due := j.dueReminder(s, startedAt)
		if !due {
			stats.SkipCount++
			continue
		}

		if err := j.dispatch(ctx, s, eventType, lead); err != nil {
			stats.FailCount++
			j.logger.Error("reminder dispatch failed",
				"session_id", s.ID,
				"event_type", eventType,
				"error", err,
			)
			continue
		}
		stats.SentCount++
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("reminder_dispatch job completed",
		"duration", stats.Duration.String(),
		"candidates", stats.Candidates,
		"sent", stats.SentCount,
		"skipped", stats.SkipCount,
		"failed", stats.FailCount,
	)

	return nil
}

// dueReminder picks the reminder type due for the session right now.
// Inside the final hour only the 1h reminder fires; a 24h reminder whose
// window has passed is dropped, not sent late.
func (j *ReminderDispatchJob) dueReminder(s *session.Session, now time.Time) (session.EventType, time.Duration, bool) {
	until := s.StartsAt().Sub(now)

	if until <= j.config.HourLead {
		if !s.Automation.IsSent(session.EventReminder1h) {
			return session.EventReminder1h, until, true
		}
		return "", 0, false
	}

	if !s.Automation.IsSent(session.EventReminder24h) {
		return session.EventReminder24h, until, true
	}
	return "", 0, false
}

// dispatch sends the reminder and records the outcome on the ledger.
// A delivery failure is recorded too, so the failure counters grow while
// the sent flag stays clear and the next sweep retries.
func (j *ReminderDispatchJob) dispatch(ctx context.Context, s *session.Session, eventType session.EventType, lead time.Duration) error {
	sendErr := j.notifier.SendSessionReminder(ctx, s, lead)

	result, recordErr := j.recorder.Handle(ctx, command.RecordAutomationEventCommand{
		SessionID: s.ID,
		EventType: eventType,
		Success:   sendErr == nil,
		Delivered: deliveredCount(sendErr == nil),
	})
	if recordErr != nil {
		return fmt.Errorf("failed to record dispatch outcome: %w", recordErr)
	}
	if result.AlreadySent {
		j.logger.Debug("reminder already dispatched elsewhere",
			"session_id", s.ID,
			"event_type", eventType,
		)
	}

	return sendErr
}

func deliveredCount(ok bool) int {
	if ok {
		return 1
	}
	return 0
}

// LastRunStats returns statistics from the last sweep.
func (j *ReminderDispatchJob) LastRunStats() *DispatchStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*DispatchStats)
}
