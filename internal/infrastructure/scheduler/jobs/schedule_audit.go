package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE AUDIT JOB
// ══════════════════════════════════════════════════════════════════════════════

// ScheduleAuditJob checks the active-key uniqueness invariant across
// groups with upcoming sessions. The partial unique index makes
// duplicates impossible through the repository; this job exists to
// catch rows written past it (manual fixes, imports) before curators do.
type ScheduleAuditJob struct {
	sessionRepo session.Repository
	logger      *slog.Logger

	// Horizon bounds which groups get audited: any group with a session
	// in the next Horizon is checked.
	horizon time.Duration
}

// NewScheduleAuditJob creates a new audit job.
func NewScheduleAuditJob(sessionRepo session.Repository, logger *slog.Logger, horizon time.Duration) *ScheduleAuditJob {
	if logger == nil {
		logger = slog.Default()
	}
	if horizon <= 0 {
		horizon = 14 * 24 * time.Hour
	}

	return &ScheduleAuditJob{
		sessionRepo: sessionRepo,
		logger:      logger,
		horizon:     horizon,
	}
}

// Name returns the job name.
func (j *ScheduleAuditJob) Name() string {
	return "schedule_audit"
}

// Description returns a human-readable description.
func (j *ScheduleAuditJob) Description() string {
	return "Audits active-key uniqueness for groups with upcoming sessions"
}

// Run executes one audit pass.
func (j *ScheduleAuditJob) Run(ctx context.Context) error {
	now := time.Now()

	upcoming, err := j.sessionRepo.UpcomingWithin(ctx, now, j.horizon)
	if err != nil {
		return fmt.Errorf("failed to load upcoming sessions: %w", err)
	}

	groups := make(map[string]struct{})
	for _, s := range upcoming {
		groups[s.GroupID] = struct{}{}
	}

	groupIDs := make([]string, 0, len(groups))
	for groupID := range groups {
		groupIDs = append(groupIDs, groupID)
	}
	sort.Strings(groupIDs)

	var found int
	for _, groupID := range groupIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		duplicates, err := j.sessionRepo.FindDuplicates(ctx, groupID)
		if err != nil {
			j.logger.Error("duplicate audit failed", "group_id", groupID, "error", err)
			continue
		}

		for _, dup := range duplicates {
			found++
			j.logger.Warn("duplicate active key detected",
				"group_id", dup.GroupID,
				"module_index", dup.ModuleIndex,
				"session_number", dup.SessionNumber,
				"count", len(dup.Sessions),
			)
		}
	}

	if found > 0 {
		return fmt.Errorf("schedule audit found %d duplicate active keys across %d groups", found, len(groupIDs))
	}

	j.logger.Info("schedule_audit job completed", "groups", len(groupIDs))
	return nil
}
