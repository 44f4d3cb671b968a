package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

func TestAutomationEvents_MarkSent(t *testing.T) {
	events := NewAutomationEvents()
	at := time.Date(2025, 9, 1, 18, 0, 0, 0, time.UTC)

	assert.False(t, events.IsSent(EventReminder24h))

	require.NoError(t, events.MarkSent(EventReminder24h, at, 12))

	state := events.State(EventReminder24h)
	assert.True(t, state.Sent)
	require.NotNil(t, state.SentAt)
	assert.Equal(t, at, *state.SentAt)
	assert.Equal(t, 12, state.SuccessCount)
	assert.Equal(t, 0, state.FailureCount)
}

func TestAutomationEvents_MarkSentIsFirstWriteWins(t *testing.T) {
	events := NewAutomationEvents()
	first := time.Date(2025, 9, 1, 18, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	require.NoError(t, events.MarkSent(EventReminder1h, first, 10))

	err := events.MarkSent(EventReminder1h, second, 3)
	assert.ErrorIs(t, err, shared.ErrEventAlreadySent)

	// Состояние первой отправки не тронуто.
	state := events.State(EventReminder1h)
	assert.Equal(t, first, *state.SentAt)
	assert.Equal(t, 10, state.SuccessCount)
}

func TestAutomationEvents_IndependentTypes(t *testing.T) {
	events := NewAutomationEvents()
	at := time.Now().UTC()

	require.NoError(t, events.MarkSent(EventReminder24h, at, 1))

	assert.True(t, events.IsSent(EventReminder24h))
	assert.False(t, events.IsSent(EventReminder1h))
	assert.False(t, events.IsSent(EventAbsenceNotice))
	assert.False(t, events.IsSent(EventStatusNotice))
}

func TestAutomationEvents_RecordFailure(t *testing.T) {
	events := NewAutomationEvents()

	require.NoError(t, events.RecordFailure(EventReminder1h))
	require.NoError(t, events.RecordFailure(EventReminder1h))

	state := events.State(EventReminder1h)
	assert.Equal(t, 2, state.FailureCount)
	assert.False(t, state.Sent, "failures do not set the sent flag")

	// После ошибок отправка всё ещё возможна.
	require.NoError(t, events.MarkSent(EventReminder1h, time.Now(), 4))
	state = events.State(EventReminder1h)
	assert.True(t, state.Sent)
	assert.Equal(t, 2, state.FailureCount)
	assert.Equal(t, 4, state.SuccessCount)
}

func TestAutomationEvents_UnknownType(t *testing.T) {
	events := NewAutomationEvents()

	err := events.MarkSent(EventType("carrier_pigeon"), time.Now(), 1)
	assert.ErrorIs(t, err, shared.ErrUnknownEventType)

	err = events.RecordFailure(EventType(""))
	assert.ErrorIs(t, err, shared.ErrUnknownEventType)
}

func TestAutomationEvents_ZeroValueMapIsUsable(t *testing.T) {
	var events AutomationEvents

	assert.False(t, events.IsSent(EventReminder24h))
	require.NoError(t, events.MarkSent(EventReminder24h, time.Now(), 1))
	assert.True(t, events.IsSent(EventReminder24h))
}

func TestAutomationEvents_JSONRoundTrip(t *testing.T) {
	events := NewAutomationEvents()
	at := time.Date(2025, 9, 1, 18, 0, 0, 0, time.UTC)
	require.NoError(t, events.MarkSent(EventReminder24h, at, 7))
	require.NoError(t, events.RecordFailure(EventStatusNotice))

	data, err := json.Marshal(events)
	require.NoError(t, err)

	var restored AutomationEvents
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.True(t, restored.IsSent(EventReminder24h))
	assert.Equal(t, 7, restored.State(EventReminder24h).SuccessCount)
	assert.Equal(t, 1, restored.State(EventStatusNotice).FailureCount)
}
