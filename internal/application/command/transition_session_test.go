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

// seedSession puts one scheduled session into the repo and returns it.
func seedSession(t *testing.T, repo *fakeSessionRepo, id string, date time.Time) *session.Session {
	t.Helper()

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
			Date:          date,
			StartTime:     "19:00",
			EndTime:       "21:00",
		},
	})
	require.NoError(t, err)

	_, err = repo.CreateBatch(context.Background(), []*session.Session{s})
	require.NoError(t, err)
	return s
}

func TestTransitionSession_Complete(t *testing.T) {
	repo := newFakeSessionRepo()
	publisher := &capturingPublisher{}
	handler := NewTransitionSessionHandler(repo, &fakeCache{}, publisher)
	seedSession(t, repo, "s-1", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))

	result, err := handler.Handle(context.Background(), TransitionSessionCommand{
		SessionID:     "s-1",
		Target:        session.StatusCompleted,
		RecordingLink: "https://rec.example.com/s-1",
	})
	require.NoError(t, err)

	assert.Equal(t, session.StatusScheduled, result.OldStatus)
	assert.Equal(t, session.StatusCompleted, result.NewStatus)
	assert.Equal(t, "https://rec.example.com/s-1", result.Session.RecordingLink)

	stored, err := repo.GetByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, stored.Status)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventSessionCompleted, publisher.events[0].EventType())
}

func TestTransitionSession_PostponeAndReschedule(t *testing.T) {
	repo := newFakeSessionRepo()
	handler := NewTransitionSessionHandler(repo, &fakeCache{}, &capturingPublisher{})
	seedSession(t, repo, "s-1", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))

	_, err := handler.Handle(context.Background(), TransitionSessionCommand{
		SessionID: "s-1",
		Target:    session.StatusPostponed,
	})
	require.NoError(t, err)

	newDate := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	result, err := handler.Handle(context.Background(), TransitionSessionCommand{
		SessionID: "s-1",
		Target:    session.StatusScheduled,
		NewDate:   newDate,
	})
	require.NoError(t, err)

	assert.Equal(t, session.StatusPostponed, result.OldStatus)
	assert.Equal(t, session.StatusScheduled, result.NewStatus)
	assert.Equal(t, newDate, result.Session.ScheduledDate)
}

func TestTransitionSession_RejectsIllegalMoves(t *testing.T) {
	repo := newFakeSessionRepo()
	handler := NewTransitionSessionHandler(repo, &fakeCache{}, &capturingPublisher{})
	seedSession(t, repo, "s-1", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))

	// Rescheduling a session that was never postponed.
	_, err := handler.Handle(context.Background(), TransitionSessionCommand{
		SessionID: "s-1",
		Target:    session.StatusScheduled,
		NewDate:   time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, shared.ErrNotPostponed)

	// Completing twice.
	_, err = handler.Handle(context.Background(), TransitionSessionCommand{
		SessionID: "s-1",
		Target:    session.StatusCompleted,
	})
	require.NoError(t, err)
	_, err = handler.Handle(context.Background(), TransitionSessionCommand{
		SessionID: "s-1",
		Target:    session.StatusCancelled,
	})
	assert.True(t, shared.IsStateViolation(err))
}

func TestTransitionSession_Validation(t *testing.T) {
	handler := NewTransitionSessionHandler(newFakeSessionRepo(), &fakeCache{}, &capturingPublisher{})

	_, err := handler.Handle(context.Background(), TransitionSessionCommand{
		Target: session.StatusCompleted,
	})
	assert.Error(t, err, "missing session id")

	_, err = handler.Handle(context.Background(), TransitionSessionCommand{
		SessionID: "s-1",
		Target:    session.Status("archived"),
	})
	assert.Error(t, err, "unknown status")

	_, err = handler.Handle(context.Background(), TransitionSessionCommand{
		SessionID: "s-1",
		Target:    session.StatusScheduled,
	})
	assert.Error(t, err, "reschedule without a date")

	_, err = handler.Handle(context.Background(), TransitionSessionCommand{
		SessionID: "missing",
		Target:    session.StatusCompleted,
	})
	assert.True(t, shared.IsNotFound(err))
}
