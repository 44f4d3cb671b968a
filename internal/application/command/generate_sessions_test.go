package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/curriculum"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/schedule"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

func testModules() []curriculum.Module {
	module := func(title string) curriculum.Module {
		return curriculum.Module{
			Title: title,
			Lessons: []curriculum.Lesson{
				{Title: title + ": урок 1", SessionNumber: 1},
				{Title: title + ": урок 2", SessionNumber: 1},
				{Title: title + ": урок 3", SessionNumber: 2},
				{Title: title + ": урок 4", SessionNumber: 2},
				{Title: title + ": урок 5", SessionNumber: 3},
				{Title: title + ": урок 6", SessionNumber: 3},
			},
		}
	}
	return []curriculum.Module{module("Основы"), module("Функции")}
}

func testSchedule() schedule.GroupSchedule {
	return schedule.GroupSchedule{
		StartDate:  time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), // Monday
		DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		TimeFrom:   "19:00",
		TimeTo:     "21:00",
		Timezone:   "UTC",
	}
}

func newGenerateHandler() (*GenerateSessionsHandler, *fakeSessionRepo, *fakeCache, *capturingPublisher) {
	repo := newFakeSessionRepo()
	cache := &fakeCache{}
	publisher := &capturingPublisher{}
	return NewGenerateSessionsHandler(repo, cache, publisher), repo, cache, publisher
}

func TestGenerateSessions_CreatesBatch(t *testing.T) {
	handler, repo, cache, publisher := newGenerateHandler()

	result, err := handler.Handle(context.Background(), GenerateSessionsCommand{
		GroupID:     "group-1",
		CourseID:    "course-1",
		Modules:     testModules(),
		Schedule:    testSchedule(),
		MeetingLink: "https://meet.example.com/go-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 6, result.Created)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, result.Sessions, 6)

	first := result.Sessions[0]
	assert.Equal(t, "group-1", first.GroupID)
	assert.Equal(t, 0, first.ModuleIndex)
	assert.Equal(t, curriculum.SessionNumber(1), first.SessionNumber)
	assert.Equal(t, "Основы: урок 1 / Основы: урок 2", first.Title)
	assert.Equal(t, "https://meet.example.com/go-1", first.MeetingLink)
	assert.Equal(t, session.StatusScheduled, first.Status)

	// Dates follow the Mon/Wed/Fri walk from the start date.
	wantDates := []string{
		"2025-09-01", "2025-09-03", "2025-09-05",
		"2025-09-08", "2025-09-10", "2025-09-12",
	}
	for i, s := range result.Sessions {
		assert.Equal(t, wantDates[i], s.ScheduledDate.Format("2006-01-02"))
	}

	// Every session got a distinct ID and landed in the store.
	stored, err := repo.GetByGroup(context.Background(), "group-1")
	require.NoError(t, err)
	assert.Len(t, stored, 6)

	assert.Equal(t, []string{"group-1"}, cache.invalidations)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventSessionsGenerated, publisher.events[0].EventType())
}

func TestGenerateSessions_IsIdempotent(t *testing.T) {
	handler, _, _, _ := newGenerateHandler()
	cmd := GenerateSessionsCommand{
		GroupID:  "group-1",
		CourseID: "course-1",
		Modules:  testModules(),
		Schedule: testSchedule(),
	}

	first, err := handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, 6, first.Created)

	second, err := handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 6, second.Skipped)
}

func TestGenerateSessions_Validation(t *testing.T) {
	handler, _, _, _ := newGenerateHandler()

	tests := []struct {
		name string
		cmd  GenerateSessionsCommand
	}{
		{"empty group", GenerateSessionsCommand{CourseID: "c", Modules: testModules(), Schedule: testSchedule()}},
		{"empty course", GenerateSessionsCommand{GroupID: "g", Modules: testModules(), Schedule: testSchedule()}},
		{"no modules", GenerateSessionsCommand{GroupID: "g", CourseID: "c", Schedule: testSchedule()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Handle(context.Background(), tt.cmd)
			assert.Error(t, err)
		})
	}
}

func TestGenerateSessions_RejectsMalformedCurriculum(t *testing.T) {
	handler, repo, _, _ := newGenerateHandler()

	modules := testModules()
	modules[1].Lessons = modules[1].Lessons[:5] // second module loses a lesson

	_, err := handler.Handle(context.Background(), GenerateSessionsCommand{
		GroupID:  "group-1",
		CourseID: "course-1",
		Modules:  modules,
		Schedule: testSchedule(),
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	// Nothing was written: no partial batches.
	stored, err := repo.GetByGroup(context.Background(), "group-1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestGenerateSessions_RejectsBadSchedule(t *testing.T) {
	handler, _, _, _ := newGenerateHandler()

	sched := testSchedule()
	sched.StartDate = time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC) // Tuesday, not in set

	_, err := handler.Handle(context.Background(), GenerateSessionsCommand{
		GroupID:  "group-1",
		CourseID: "course-1",
		Modules:  testModules(),
		Schedule: sched,
	})
	assert.Error(t, err)
}

func TestRegenerateSessions_ReplacesActiveSet(t *testing.T) {
	generate, repo, cache, _ := newGenerateHandler()
	publisher := &capturingPublisher{}
	regenerate := NewRegenerateSessionsHandler(repo, cache, generate, publisher)

	_, err := generate.Handle(context.Background(), GenerateSessionsCommand{
		GroupID:  "group-1",
		CourseID: "course-1",
		Modules:  testModules(),
		Schedule: testSchedule(),
	})
	require.NoError(t, err)

	// New schedule starts on Wednesday.
	newSched := testSchedule()
	newSched.StartDate = time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)

	result, err := regenerate.Handle(context.Background(), RegenerateSessionsCommand{
		GroupID:  "group-1",
		CourseID: "course-1",
		Modules:  testModules(),
		Schedule: newSched,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, result.Removed)
	assert.Equal(t, 6, result.Created, "tombstoned keys must not block regeneration")
	assert.Equal(t, "2025-09-03", result.Sessions[0].ScheduledDate.Format("2006-01-02"))

	active, err := repo.GetByGroup(context.Background(), "group-1")
	require.NoError(t, err)
	assert.Len(t, active, 6)

	require.NotEmpty(t, publisher.events)
	assert.Equal(t, shared.EventSessionsRegenerated, publisher.events[len(publisher.events)-1].EventType())
}
