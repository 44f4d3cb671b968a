package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/curriculum"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/schedule"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

func testSession(t *testing.T) *Session {
	t.Helper()

	s, err := NewSession(NewSessionParams{
		ID:       "11111111-1111-1111-1111-111111111111",
		GroupID:  "group-1",
		CourseID: "course-1",
		Title:    "Переменные и типы",
		Timezone: "UTC",
		Planned: schedule.PlannedSession{
			ModuleIndex:   0,
			SessionNumber: curriculum.SessionNumber(1),
			LessonIndexes: [2]int{0, 1},
			Date:          time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			StartTime:     "19:00",
			EndTime:       "21:00",
		},
	})
	require.NoError(t, err)
	return s
}

func TestNewSession_Defaults(t *testing.T) {
	s := testSession(t)

	assert.Equal(t, StatusScheduled, s.Status)
	assert.False(t, s.IsDeleted)
	assert.False(t, s.AttendanceTaken)
	assert.Empty(t, s.Attendance)
	assert.NotNil(t, s.Automation.Events)
	assert.Equal(t, time.Date(2025, 9, 1, 19, 0, 0, 0, time.UTC), s.StartsAt())
	assert.Equal(t, time.Date(2025, 9, 1, 21, 0, 0, 0, time.UTC), s.EndsAt())
}

func TestNewSession_Validation(t *testing.T) {
	base := func() NewSessionParams {
		return NewSessionParams{
			ID:       "id-1",
			GroupID:  "group-1",
			CourseID: "course-1",
			Planned: schedule.PlannedSession{
				ModuleIndex:   0,
				SessionNumber: 1,
				LessonIndexes: [2]int{0, 1},
				Date:          time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
				StartTime:     "19:00",
				EndTime:       "21:00",
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*NewSessionParams)
	}{
		{"empty id", func(p *NewSessionParams) { p.ID = "" }},
		{"empty group", func(p *NewSessionParams) { p.GroupID = "" }},
		{"empty course", func(p *NewSessionParams) { p.CourseID = "" }},
		{"negative module index", func(p *NewSessionParams) { p.Planned.ModuleIndex = -1 }},
		{"session number zero", func(p *NewSessionParams) { p.Planned.SessionNumber = 0 }},
		{"session number too big", func(p *NewSessionParams) { p.Planned.SessionNumber = 4 }},
		{"lesson index negative", func(p *NewSessionParams) { p.Planned.LessonIndexes = [2]int{-1, 1} }},
		{"lesson index too big", func(p *NewSessionParams) { p.Planned.LessonIndexes = [2]int{0, 6} }},
		{"lesson indexes equal", func(p *NewSessionParams) { p.Planned.LessonIndexes = [2]int{2, 2} }},
		{"lesson indexes descending", func(p *NewSessionParams) { p.Planned.LessonIndexes = [2]int{3, 1} }},
		{"zero date", func(p *NewSessionParams) { p.Planned.Date = time.Time{} }},
		{"bad start time", func(p *NewSessionParams) { p.Planned.StartTime = "25:00" }},
		{"bad end time", func(p *NewSessionParams) { p.Planned.EndTime = "seven" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := base()
			tt.mutate(&params)
			_, err := NewSession(params)
			assert.Error(t, err)
		})
	}
}

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusPostponed, true},
		{StatusScheduled, StatusScheduled, false},
		{StatusPostponed, StatusScheduled, true},
		{StatusPostponed, StatusCancelled, true},
		{StatusPostponed, StatusCompleted, false},
		{StatusCompleted, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCancelled, StatusCompleted, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestSession_CompleteCancelPostpone(t *testing.T) {
	s := testSession(t)
	require.NoError(t, s.Complete())
	assert.Equal(t, StatusCompleted, s.Status)

	err := s.Cancel()
	assert.True(t, shared.IsStateViolation(err))

	s = testSession(t)
	require.NoError(t, s.Postpone())
	assert.Equal(t, StatusPostponed, s.Status)

	err = s.Complete()
	assert.True(t, shared.IsStateViolation(err))
}

func TestSession_Reschedule(t *testing.T) {
	s := testSession(t)

	// Reschedule доступен только из postponed.
	err := s.Reschedule(time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, shared.ErrNotPostponed)

	require.NoError(t, s.Postpone())

	err = s.Reschedule(time.Time{})
	assert.Error(t, err)
	assert.Equal(t, StatusPostponed, s.Status)

	newDate := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Reschedule(newDate))
	assert.Equal(t, StatusScheduled, s.Status)
	assert.Equal(t, newDate, s.ScheduledDate)
}

func TestSession_CanJoin(t *testing.T) {
	s := testSession(t)
	assert.False(t, s.CanJoin(), "no meeting link yet")

	s.MeetingLink = "https://meet.example.com/abc"
	assert.True(t, s.CanJoin())

	for _, placeholder := range []string{"", "-", "#", "tbd", "TBD", "  TBD  "} {
		s.MeetingLink = placeholder
		assert.False(t, s.CanJoin(), "placeholder %q", placeholder)
	}

	s.MeetingLink = "https://meet.example.com/abc"
	require.NoError(t, s.Complete())
	assert.False(t, s.CanJoin(), "completed session is not joinable")
}

func TestSession_CanTakeAttendance(t *testing.T) {
	s := testSession(t)
	start := s.StartsAt()

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"long before", start.Add(-2 * time.Hour), false},
		{"window opens", start.Add(-30 * time.Minute), true},
		{"just before start", start.Add(-time.Minute), true},
		{"at start", start, true},
		{"one hour in", start.Add(time.Hour), true},
		{"window closes", start.Add(2 * time.Hour), true},
		{"after window", start.Add(2*time.Hour + time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.CanTakeAttendance(tt.now))
		})
	}

	// Для completed окно действует так же.
	require.NoError(t, s.Complete())
	assert.True(t, s.CanTakeAttendance(start.Add(time.Hour)))

	cancelled := testSession(t)
	require.NoError(t, cancelled.Cancel())
	assert.False(t, cancelled.CanTakeAttendance(start))

	postponed := testSession(t)
	require.NoError(t, postponed.Postpone())
	assert.False(t, postponed.CanTakeAttendance(start))
}

func TestSession_CanEdit(t *testing.T) {
	s := testSession(t)
	start := s.StartsAt()

	assert.True(t, s.CanEdit(start.Add(-25*time.Hour)))
	assert.False(t, s.CanEdit(start.Add(-24*time.Hour)), "boundary is locked")
	assert.False(t, s.CanEdit(start.Add(-time.Hour)))
	assert.False(t, s.CanEdit(start.Add(time.Hour)))

	postponed := testSession(t)
	require.NoError(t, postponed.Postpone())
	assert.True(t, postponed.CanEdit(start.Add(-25*time.Hour)))

	done := testSession(t)
	require.NoError(t, done.Complete())
	assert.False(t, done.CanEdit(start.Add(-48*time.Hour)))

	gone := testSession(t)
	require.NoError(t, gone.Cancel())
	assert.False(t, gone.CanEdit(start.Add(-48*time.Hour)))
}

func TestSession_TemporalFlags(t *testing.T) {
	s := testSession(t)
	start := s.StartsAt()

	assert.False(t, s.IsPast(start.Add(-time.Hour)))
	assert.True(t, s.IsPast(start.Add(time.Minute)))

	assert.True(t, s.IsUpcoming(start.Add(-time.Hour)))
	assert.True(t, s.IsUpcoming(start.Add(-48*time.Hour)))
	assert.False(t, s.IsUpcoming(start.Add(-49*time.Hour)))
	assert.False(t, s.IsUpcoming(start.Add(time.Minute)), "started sessions are not upcoming")

	assert.True(t, s.IsToday(time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)))
	assert.False(t, s.IsToday(time.Date(2025, 9, 2, 8, 0, 0, 0, time.UTC)))
}

func TestSession_ApplyUpdate(t *testing.T) {
	s := testSession(t)
	start := s.StartsAt()
	editable := start.Add(-48 * time.Hour)

	link := "https://meet.example.com/xyz"
	notes := "домашнее задание: главы 3-4"
	require.NoError(t, s.ApplyUpdate(editable, UpdateDetails{
		MeetingLink: &link,
		Notes:       &notes,
	}))
	assert.Equal(t, link, s.MeetingLink)
	assert.Equal(t, notes, s.Notes)
	assert.Equal(t, "Переменные и типы", s.Title, "untouched fields keep values")

	err := s.ApplyUpdate(start.Add(-time.Hour), UpdateDetails{Notes: &notes})
	assert.ErrorIs(t, err, shared.ErrSessionLocked)

	require.NoError(t, s.Complete())
	err = s.ApplyUpdate(editable, UpdateDetails{Notes: &notes})
	assert.ErrorIs(t, err, shared.ErrSessionLocked)
}

func TestSession_MarkAttendance(t *testing.T) {
	s := testSession(t)
	inWindow := s.StartsAt().Add(30 * time.Minute)

	rec := AttendanceRecord{
		StudentID: "student-1",
		Status:    AttendancePresent,
		MarkedBy:  "teacher-1",
		MarkedAt:  inWindow,
	}
	require.NoError(t, s.MarkAttendance(inWindow, rec))
	assert.True(t, s.AttendanceTaken)
	assert.Equal(t, 1, s.TotalMarked())
	assert.Equal(t, 1, s.PresentCount())

	// Повторная отметка заменяет запись, а не добавляет новую.
	rec.Status = AttendanceAbsent
	require.NoError(t, s.MarkAttendance(inWindow, rec))
	assert.Equal(t, 1, s.TotalMarked())
	assert.Equal(t, 0, s.PresentCount())
	assert.Equal(t, 1, s.AbsentCount())

	got, ok := s.AttendanceFor("student-1")
	require.True(t, ok)
	assert.Equal(t, AttendanceAbsent, got.Status)

	_, ok = s.AttendanceFor("student-2")
	assert.False(t, ok)

	// Вне окна - отказ.
	err := s.MarkAttendance(s.StartsAt().Add(3*time.Hour), rec)
	assert.ErrorIs(t, err, shared.ErrAttendanceWindowClosed)

	// Некорректная запись отбрасывается до проверки окна.
	err = s.MarkAttendance(inWindow, AttendanceRecord{StudentID: "", Status: AttendancePresent})
	assert.Error(t, err)
	err = s.MarkAttendance(inWindow, AttendanceRecord{StudentID: "student-3", Status: "sleeping"})
	assert.ErrorIs(t, err, shared.ErrInvalidAttendance)
}

func TestSession_AttendanceCounters(t *testing.T) {
	s := testSession(t)
	inWindow := s.StartsAt()

	records := []AttendanceRecord{
		{StudentID: "a", Status: AttendancePresent, MarkedAt: inWindow},
		{StudentID: "b", Status: AttendanceLate, MarkedAt: inWindow},
		{StudentID: "c", Status: AttendanceAbsent, MarkedAt: inWindow},
		{StudentID: "d", Status: AttendanceExcused, MarkedAt: inWindow},
	}
	for _, rec := range records {
		require.NoError(t, s.MarkAttendance(inWindow, rec))
	}

	assert.Equal(t, 4, s.TotalMarked())
	assert.Equal(t, 2, s.PresentCount(), "late counts as present")
	assert.Equal(t, 1, s.AbsentCount(), "excused is not absent")
}

func TestSession_SoftDelete(t *testing.T) {
	s := testSession(t)
	now := time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)

	s.SoftDelete(now)
	assert.True(t, s.IsDeleted)
	require.NotNil(t, s.DeletedAt)
	assert.Equal(t, now, *s.DeletedAt)
	assert.Equal(t, StatusCancelled, s.Status, "soft delete forces cancelled")

	// Повторное удаление - no-op.
	later := now.Add(time.Hour)
	s.SoftDelete(later)
	assert.Equal(t, now, *s.DeletedAt)
}

func TestSession_Clone(t *testing.T) {
	s := testSession(t)
	inWindow := s.StartsAt()
	require.NoError(t, s.MarkAttendance(inWindow, AttendanceRecord{
		StudentID: "a", Status: AttendancePresent, MarkedAt: inWindow,
	}))
	require.NoError(t, s.Automation.MarkSent(EventReminder24h, inWindow, 5))

	clone := s.Clone()
	clone.Attendance[0].Status = AttendanceAbsent
	require.Error(t, clone.Automation.MarkSent(EventReminder24h, inWindow, 1))
	clone.Automation.Events[EventReminder1h] = EventState{Sent: true}

	assert.Equal(t, AttendancePresent, s.Attendance[0].Status)
	assert.False(t, s.Automation.IsSent(EventReminder1h))
}
