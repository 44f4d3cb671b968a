package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/application/command"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// ABSENCE NOTICE JOB
// ══════════════════════════════════════════════════════════════════════════════

// AbsenceNoticeJob reports marked absences for today's completed sessions.
// Curators mark attendance during or shortly after the session; this job
// picks up completed sessions with absences and sends one notice per
// session, gated by the automation ledger.
type AbsenceNoticeJob struct {
	sessionRepo session.Repository
	notifier    Notifier
	recorder    *command.RecordAutomationEventHandler
	logger      *slog.Logger
}

// NewAbsenceNoticeJob creates a new absence notice job.
func NewAbsenceNoticeJob(
	sessionRepo session.Repository,
	notifier Notifier,
	recorder *command.RecordAutomationEventHandler,
	logger *slog.Logger,
) *AbsenceNoticeJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &AbsenceNoticeJob{
		sessionRepo: sessionRepo,
		notifier:    notifier,
		recorder:    recorder,
		logger:      logger,
	}
}

// Name returns the job name.
func (j *AbsenceNoticeJob) Name() string {
	return "absence_notice"
}

// Description returns a human-readable description.
func (j *AbsenceNoticeJob) Description() string {
	return "Sends absence notices for today's completed sessions"
}

// Run executes one sweep over today's sessions.
func (j *AbsenceNoticeJob) Run(ctx context.Context) error {
	now := time.Now()

	todays, err := j.sessionRepo.Today(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to load today's sessions: %w", err)
	}

	var sent, failed int
	for _, s := range todays {
		if !j.needsNotice(s) {
			continue
		}

		sendErr := j.notifier.SendAbsenceNotice(ctx, s)

		_, recordErr := j.recorder.Handle(ctx, command.RecordAutomationEventCommand{
			SessionID: s.ID,
			EventType: session.EventAbsenceNotice,
			Success:   sendErr == nil,
			Delivered: deliveredCount(sendErr == nil),
		})
		if recordErr != nil {
			failed++
			j.logger.Error("failed to record absence notice outcome",
				"session_id", s.ID,
				"error", recordErr,
			)
			continue
		}

		if sendErr != nil {
			failed++
			j.logger.Error("absence notice delivery failed",
				"session_id", s.ID,
				"error", sendErr,
			)
			continue
		}
		sent++
	}

	j.logger.Info("absence_notice job completed",
		"today", len(todays),
		"sent", sent,
		"failed", failed,
	)

	return nil
}

func (j *AbsenceNoticeJob) needsNotice(s *session.Session) bool {
	return s.Status == session.StatusCompleted &&
		s.AttendanceTaken &&
		s.AbsentCount() > 0 &&
		!s.Automation.IsSent(session.EventAbsenceNotice)
}
