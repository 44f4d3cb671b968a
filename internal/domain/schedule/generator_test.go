package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/curriculum"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

func testModule() curriculum.Module {
	return curriculum.Module{
		Lessons: []curriculum.Lesson{
			{SessionNumber: 1}, {SessionNumber: 1},
			{SessionNumber: 2}, {SessionNumber: 2},
			{SessionNumber: 3}, {SessionNumber: 3},
		},
	}
}

func testBlueprints(t *testing.T, moduleCount int) []curriculum.ModuleBlueprint {
	t.Helper()
	modules := make([]curriculum.Module, moduleCount)
	for i := range modules {
		modules[i] = testModule()
	}
	blueprints, err := curriculum.MapCourse(modules)
	require.NoError(t, err)
	return blueprints
}

// mondaySchedule - группа стартует в понедельник 2025-09-01 и занимается
// по понедельникам, средам и пятницам.
func mondaySchedule() GroupSchedule {
	return GroupSchedule{
		StartDate:  time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), // Monday
		DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		TimeFrom:   "19:00",
		TimeTo:     "21:00",
	}
}

func TestGenerate_TwoModulesMondayWednesdayFriday(t *testing.T) {
	planned, err := Generate(testBlueprints(t, 2), mondaySchedule())
	require.NoError(t, err)
	require.Len(t, planned, 6)

	wantDates := []string{
		"2025-09-01", // Mon, module 0 session 1
		"2025-09-03", // Wed, module 0 session 2
		"2025-09-05", // Fri, module 0 session 3
		"2025-09-08", // Mon, module 1 session 1
		"2025-09-10", // Wed, module 1 session 2
		"2025-09-12", // Fri, module 1 session 3
	}

	for i, p := range planned {
		assert.Equal(t, wantDates[i], p.Date.Format("2006-01-02"), "session %d", i)
		assert.Equal(t, i/3, p.ModuleIndex, "session %d", i)
		assert.Equal(t, curriculum.SessionNumber(i%3+1), p.SessionNumber, "session %d", i)
		assert.Equal(t, TimeOfDay("19:00"), p.StartTime)
		assert.Equal(t, TimeOfDay("21:00"), p.EndTime)
	}
}

func TestGenerate_DaysConsumedInCalendarOrder(t *testing.T) {
	// Дни в расписании перечислены задом наперёд: генератор всё равно
	// должен раздавать даты в порядке их появления в календаре.
	sched := mondaySchedule()
	sched.DaysOfWeek = []time.Weekday{time.Friday, time.Wednesday, time.Monday}

	planned, err := Generate(testBlueprints(t, 1), sched)
	require.NoError(t, err)
	require.Len(t, planned, 3)

	assert.Equal(t, time.Monday, planned[0].Date.Weekday())
	assert.Equal(t, time.Wednesday, planned[1].Date.Weekday())
	assert.Equal(t, time.Friday, planned[2].Date.Weekday())
}

func TestGenerate_MidWeekStart(t *testing.T) {
	// Старт в среду: первая неделя даёт среду и пятницу,
	// понедельник достаётся уже следующей неделе.
	sched := mondaySchedule()
	sched.StartDate = time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC) // Wednesday

	planned, err := Generate(testBlueprints(t, 1), sched)
	require.NoError(t, err)
	require.Len(t, planned, 3)

	assert.Equal(t, "2025-09-03", planned[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2025-09-05", planned[1].Date.Format("2006-01-02"))
	assert.Equal(t, "2025-09-08", planned[2].Date.Format("2006-01-02"))
}

func TestGenerate_Deterministic(t *testing.T) {
	blueprints := testBlueprints(t, 2)
	sched := mondaySchedule()

	first, err := Generate(blueprints, sched)
	require.NoError(t, err)
	second, err := Generate(blueprints, sched)
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical inputs must yield identical output")
}

func TestGenerate_RejectsInvalidSchedules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GroupSchedule)
	}{
		{
			name:   "two days only",
			mutate: func(s *GroupSchedule) { s.DaysOfWeek = s.DaysOfWeek[:2] },
		},
		{
			name: "four days",
			mutate: func(s *GroupSchedule) {
				s.DaysOfWeek = append(s.DaysOfWeek, time.Saturday)
			},
		},
		{
			name: "duplicate day",
			mutate: func(s *GroupSchedule) {
				s.DaysOfWeek = []time.Weekday{time.Monday, time.Monday, time.Friday}
			},
		},
		{
			name: "start date weekday not selected",
			mutate: func(s *GroupSchedule) {
				// 2025-09-02 is a Tuesday
				s.StartDate = time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)
			},
		},
		{
			name:   "zero start date",
			mutate: func(s *GroupSchedule) { s.StartDate = time.Time{} },
		},
		{
			name:   "unparseable time",
			mutate: func(s *GroupSchedule) { s.TimeFrom = "25:99" },
		},
		{
			name:   "inverted time window",
			mutate: func(s *GroupSchedule) { s.TimeFrom, s.TimeTo = s.TimeTo, s.TimeFrom },
		},
		{
			name:   "unknown timezone",
			mutate: func(s *GroupSchedule) { s.Timezone = "Mars/Olympus" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := mondaySchedule()
			tt.mutate(&sched)

			_, err := Generate(testBlueprints(t, 1), sched)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err), "want validation error, got %v", err)
		})
	}
}

func TestGenerate_EmptyBlueprints(t *testing.T) {
	_, err := Generate(nil, mondaySchedule())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
}

func TestGenerate_TimezoneAware(t *testing.T) {
	sched := mondaySchedule()
	sched.Timezone = "Asia/Almaty"

	planned, err := Generate(testBlueprints(t, 1), sched)
	require.NoError(t, err)

	loc, err := time.LoadLocation("Asia/Almaty")
	require.NoError(t, err)

	startsAt := planned[0].StartsAt(loc)
	assert.Equal(t, 19, startsAt.Hour())
	assert.Equal(t, "2025-09-01", startsAt.Format("2006-01-02"))
}

func TestParseWeekdays(t *testing.T) {
	days, err := ParseWeekdays([]string{"Monday", "wed", "пятница"})
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, days)

	_, err = ParseWeekdays([]string{"Someday"})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestTimeOfDay_Minutes(t *testing.T) {
	assert.Equal(t, 19*60, TimeOfDay("19:00").Minutes())
	assert.Equal(t, 0, TimeOfDay("00:00").Minutes())
	assert.Equal(t, -1, TimeOfDay("bad").Minutes())
}
