package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-crm/bilim-session-engine/internal/application/command"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/curriculum"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/schedule"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// ──────────────────────────────────────────────────────────────────────────────
// FAKES
// ──────────────────────────────────────────────────────────────────────────────

type fakeRepo struct {
	sessions   map[string]*session.Session
	duplicates []session.DuplicateGroup
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: make(map[string]*session.Session)}
}

func (r *fakeRepo) CreateBatch(_ context.Context, sessions []*session.Session) (*session.BatchResult, error) {
	result := &session.BatchResult{}
	for _, s := range sessions {
		r.sessions[s.ID] = s.Clone()
		result.Created = append(result.Created, s)
	}
	return result, nil
}

func (r *fakeRepo) Update(_ context.Context, s *session.Session) error {
	if _, ok := r.sessions[s.ID]; !ok {
		return shared.ErrSessionNotFound
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *fakeRepo) SoftDeleteAll(context.Context, string) (int, error) { return 0, nil }

func (r *fakeRepo) GetByID(_ context.Context, id string) (*session.Session, error) {
	s, ok := r.sessions[id]
	if !ok || s.IsDeleted {
		return nil, shared.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r *fakeRepo) GetByGroup(context.Context, string) ([]*session.Session, error) {
	return nil, nil
}

func (r *fakeRepo) GetByDay(context.Context, string, time.Time) ([]*session.Session, error) {
	return nil, nil
}

func (r *fakeRepo) GetByModule(context.Context, string, int) ([]*session.Session, error) {
	return nil, nil
}

func (r *fakeRepo) GetByDateRange(context.Context, string, time.Time, time.Time) ([]*session.Session, error) {
	return nil, nil
}

func (r *fakeRepo) NextUpcoming(context.Context, string, time.Time) (*session.Session, error) {
	return nil, nil
}

func (r *fakeRepo) Today(_ context.Context, now time.Time) ([]*session.Session, error) {
	var out []*session.Session
	for _, s := range r.sessions {
		if !s.IsDeleted && s.IsToday(now) {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *fakeRepo) UpcomingWithin(_ context.Context, now time.Time, window time.Duration) ([]*session.Session, error) {
	var out []*session.Session
	for _, s := range r.sessions {
		if s.IsDeleted || s.Status != session.StatusScheduled {
			continue
		}
		start := s.StartsAt()
		if start.After(now) && start.Sub(now) <= window {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *fakeRepo) FindDuplicates(context.Context, string) ([]session.DuplicateGroup, error) {
	return r.duplicates, nil
}

func (r *fakeRepo) Stats(context.Context, string) (*session.GroupStats, error) {
	return &session.GroupStats{}, nil
}

// fakeNotifier records every send and can be told to fail.
type fakeNotifier struct {
	reminders []string // session IDs
	absences  []string
	leads     []time.Duration
	fail      bool
}

func (n *fakeNotifier) SendSessionReminder(_ context.Context, s *session.Session, lead time.Duration) error {
	if n.fail {
		return errors.New("telegram unreachable")
	}
	n.reminders = append(n.reminders, s.ID)
	n.leads = append(n.leads, lead)
	return nil
}

func (n *fakeNotifier) SendAbsenceNotice(_ context.Context, s *session.Session) error {
	if n.fail {
		return errors.New("telegram unreachable")
	}
	n.absences = append(n.absences, s.ID)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// HELPERS
// ──────────────────────────────────────────────────────────────────────────────

func seedUpcoming(t *testing.T, repo *fakeRepo, id string, startsIn time.Duration, now time.Time) *session.Session {
	t.Helper()

	start := now.Add(startsIn).UTC()
	s, err := session.NewSession(session.NewSessionParams{
		ID:       id,
		GroupID:  "group-1",
		CourseID: "course-1",
		Title:    "Основы: урок 1 / Основы: урок 2",
		Timezone: "UTC",
		Planned: schedule.PlannedSession{
			ModuleIndex:   0,
			SessionNumber: curriculum.SessionNumber(1),
			LessonIndexes: [2]int{0, 1},
			Date:          time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
			StartTime:     schedule.TimeOfDay(start.Format("15:04")),
			EndTime:       schedule.TimeOfDay(start.Add(2 * time.Hour).Format("15:04")),
		},
	})
	require.NoError(t, err)

	_, err = repo.CreateBatch(context.Background(), []*session.Session{s})
	require.NoError(t, err)
	return s
}

// seedToday seeds a session dated today (UTC) at a fixed midday slot, so the
// absence sweep always picks it up regardless of the wall clock.
func seedToday(t *testing.T, repo *fakeRepo, id string) *session.Session {
	t.Helper()

	today := time.Now().UTC()
	s, err := session.NewSession(session.NewSessionParams{
		ID:       id,
		GroupID:  "group-1",
		CourseID: "course-1",
		Title:    "Основы: урок 1 / Основы: урок 2",
		Timezone: "UTC",
		Planned: schedule.PlannedSession{
			ModuleIndex:   0,
			SessionNumber: curriculum.SessionNumber(1),
			LessonIndexes: [2]int{0, 1},
			Date:          time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC),
			StartTime:     schedule.TimeOfDay("12:00"),
			EndTime:       schedule.TimeOfDay("14:00"),
		},
	})
	require.NoError(t, err)

	_, err = repo.CreateBatch(context.Background(), []*session.Session{s})
	require.NoError(t, err)
	return s
}

func newRecorder(repo *fakeRepo) *command.RecordAutomationEventHandler {
	return command.NewRecordAutomationEventHandler(repo, shared.NoopPublisher{})
}

// ──────────────────────────────────────────────────────────────────────────────
// REMINDER DISPATCH
// ──────────────────────────────────────────────────────────────────────────────

func TestReminderDispatch_SendsDayReminder(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	job := NewReminderDispatchJob(repo, notifier, newRecorder(repo), nil, DefaultReminderDispatchConfig())

	now := time.Now()
	seedUpcoming(t, repo, "s-1", 20*time.Hour, now)

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{"s-1"}, notifier.reminders)

	stored, err := repo.GetByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.True(t, stored.Automation.IsSent(session.EventReminder24h))
	assert.False(t, stored.Automation.IsSent(session.EventReminder1h))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.SentCount)
}

func TestReminderDispatch_HourReminderSupersedesLateDayReminder(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	job := NewReminderDispatchJob(repo, notifier, newRecorder(repo), nil, DefaultReminderDispatchConfig())

	now := time.Now()
	seedUpcoming(t, repo, "s-1", 30*time.Minute, now)

	require.NoError(t, job.Run(context.Background()))

	// Inside the final hour only the 1h reminder fires even though the 24h
	// one never went out.
	stored, err := repo.GetByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.True(t, stored.Automation.IsSent(session.EventReminder1h))
	assert.False(t, stored.Automation.IsSent(session.EventReminder24h))
}

func TestReminderDispatch_SecondSweepSkips(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	job := NewReminderDispatchJob(repo, notifier, newRecorder(repo), nil, DefaultReminderDispatchConfig())

	now := time.Now()
	seedUpcoming(t, repo, "s-1", 20*time.Hour, now)

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{"s-1"}, notifier.reminders, "reminder must fire exactly once")

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.SentCount)
	assert.Equal(t, 1, stats.SkipCount)
}

func TestReminderDispatch_FailureRetriedNextSweep(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{fail: true}
	job := NewReminderDispatchJob(repo, notifier, newRecorder(repo), nil, DefaultReminderDispatchConfig())

	now := time.Now()
	seedUpcoming(t, repo, "s-1", 20*time.Hour, now)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, job.LastRunStats().FailCount)

	// The failure was recorded but the sent flag stays clear.
	stored, err := repo.GetByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.False(t, stored.Automation.IsSent(session.EventReminder24h))
	assert.Equal(t, 1, stored.Automation.State(session.EventReminder24h).FailureCount)

	notifier.fail = false
	require.NoError(t, job.Run(context.Background()))

	stored, err = repo.GetByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.True(t, stored.Automation.IsSent(session.EventReminder24h))
}

// ──────────────────────────────────────────────────────────────────────────────
// ABSENCE NOTICE
// ──────────────────────────────────────────────────────────────────────────────

func completeWithAbsence(t *testing.T, repo *fakeRepo, s *session.Session) {
	t.Helper()

	s.Status = session.StatusCompleted
	s.AttendanceTaken = true
	s.Attendance = []session.AttendanceRecord{
		{StudentID: "st-1", Status: session.AttendancePresent, MarkedBy: "curator", MarkedAt: time.Now()},
		{StudentID: "st-2", Status: session.AttendanceAbsent, MarkedBy: "curator", MarkedAt: time.Now()},
	}
	require.NoError(t, repo.Update(context.Background(), s))
}

func TestAbsenceNotice_SendsOncePerSession(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	job := NewAbsenceNoticeJob(repo, notifier, newRecorder(repo), nil)

	s := seedToday(t, repo, "s-1")
	completeWithAbsence(t, repo, s)

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{"s-1"}, notifier.absences)

	stored, err := repo.GetByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.True(t, stored.Automation.IsSent(session.EventAbsenceNotice))
}

func TestAbsenceNotice_SkipsFullAttendance(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	job := NewAbsenceNoticeJob(repo, notifier, newRecorder(repo), nil)

	s := seedToday(t, repo, "s-1")
	s.Status = session.StatusCompleted
	s.AttendanceTaken = true
	s.Attendance = []session.AttendanceRecord{
		{StudentID: "st-1", Status: session.AttendancePresent, MarkedBy: "curator", MarkedAt: time.Now()},
	}
	require.NoError(t, repo.Update(context.Background(), s))

	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, notifier.absences)
}

// ──────────────────────────────────────────────────────────────────────────────
// SCHEDULE AUDIT
// ──────────────────────────────────────────────────────────────────────────────

func TestScheduleAudit_CleanSchedule(t *testing.T) {
	repo := newFakeRepo()
	job := NewScheduleAuditJob(repo, nil, 0)

	seedUpcoming(t, repo, "s-1", 48*time.Hour, time.Now())

	assert.NoError(t, job.Run(context.Background()))
}

func TestScheduleAudit_ReportsDuplicates(t *testing.T) {
	repo := newFakeRepo()
	job := NewScheduleAuditJob(repo, nil, 0)

	s := seedUpcoming(t, repo, "s-1", 48*time.Hour, time.Now())
	repo.duplicates = []session.DuplicateGroup{
		{GroupID: s.GroupID, ModuleIndex: 0, SessionNumber: 1, Sessions: []*session.Session{s, s}},
	}

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate active keys")
}
