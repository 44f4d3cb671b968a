package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

func TestRecordAutomationEvent_Success(t *testing.T) {
	repo := newFakeSessionRepo()
	publisher := &capturingPublisher{}
	handler := NewRecordAutomationEventHandler(repo, publisher)
	seedSession(t, repo, "s-1", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))

	result, err := handler.Handle(context.Background(), RecordAutomationEventCommand{
		SessionID: "s-1",
		EventType: session.EventReminder24h,
		Success:   true,
		Delivered: 14,
	})
	require.NoError(t, err)

	assert.False(t, result.AlreadySent)
	assert.True(t, result.State.Sent)
	assert.Equal(t, 14, result.State.SuccessCount)

	stored, err := repo.GetByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.True(t, stored.Automation.IsSent(session.EventReminder24h))

	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventReminderSent, publisher.events[0].EventType())
}

func TestRecordAutomationEvent_SecondSendIsNoop(t *testing.T) {
	repo := newFakeSessionRepo()
	handler := NewRecordAutomationEventHandler(repo, &capturingPublisher{})
	seedSession(t, repo, "s-1", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))

	first, err := handler.Handle(context.Background(), RecordAutomationEventCommand{
		SessionID: "s-1",
		EventType: session.EventReminder1h,
		Success:   true,
		Delivered: 10,
	})
	require.NoError(t, err)
	require.False(t, first.AlreadySent)
	firstSentAt := *first.State.SentAt

	updatesBefore := repo.updates
	second, err := handler.Handle(context.Background(), RecordAutomationEventCommand{
		SessionID: "s-1",
		EventType: session.EventReminder1h,
		Success:   true,
		Delivered: 3,
	})
	require.NoError(t, err)

	assert.True(t, second.AlreadySent)
	assert.Equal(t, firstSentAt, *second.State.SentAt, "first write wins")
	assert.Equal(t, 10, second.State.SuccessCount)
	assert.Equal(t, updatesBefore, repo.updates, "no-op must not write")
}

func TestRecordAutomationEvent_Failure(t *testing.T) {
	repo := newFakeSessionRepo()
	publisher := &capturingPublisher{}
	handler := NewRecordAutomationEventHandler(repo, publisher)
	seedSession(t, repo, "s-1", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 2; i++ {
		result, err := handler.Handle(context.Background(), RecordAutomationEventCommand{
			SessionID: "s-1",
			EventType: session.EventReminder24h,
			Success:   false,
		})
		require.NoError(t, err)
		assert.False(t, result.State.Sent, "failures never set the sent flag")
	}

	stored, err := repo.GetByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Automation.State(session.EventReminder24h).FailureCount)

	require.Len(t, publisher.events, 2)
	assert.Equal(t, shared.EventReminderFailed, publisher.events[0].EventType())
}

func TestRecordAutomationEvent_Validation(t *testing.T) {
	handler := NewRecordAutomationEventHandler(newFakeSessionRepo(), &capturingPublisher{})

	_, err := handler.Handle(context.Background(), RecordAutomationEventCommand{
		EventType: session.EventReminder24h,
	})
	assert.Error(t, err, "missing session id")

	_, err = handler.Handle(context.Background(), RecordAutomationEventCommand{
		SessionID: "s-1",
		EventType: "smoke_signal",
	})
	assert.Error(t, err, "unknown event type")
}
