package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timePtr(t time.Time) *time.Time { return &t }
func intPtr(i int) *int              { return &i }

func seedWeek(t *testing.T, repo *fakeSessionRepo) {
	t.Helper()
	// Module 0 on Mon/Wed/Fri, module 1 the following week.
	seedSession(t, repo, "s-1", "group-1", 0, 1, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))
	seedSession(t, repo, "s-2", "group-1", 0, 2, time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC))
	seedSession(t, repo, "s-3", "group-1", 0, 3, time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC))
	seedSession(t, repo, "s-4", "group-1", 1, 1, time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC))
	seedSession(t, repo, "s-5", "group-1", 1, 2, time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC))
	seedSession(t, repo, "s-6", "group-1", 1, 3, time.Date(2025, 9, 12, 0, 0, 0, 0, time.UTC))
	// Noise from another group.
	seedSession(t, repo, "x-1", "group-2", 0, 1, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))
}

func TestGetGroupSchedule_FullSchedule(t *testing.T) {
	repo := newFakeSessionRepo()
	seedWeek(t, repo)
	handler := NewGetGroupScheduleHandler(repo, nil)

	result, err := handler.Handle(context.Background(), GetGroupScheduleQuery{GroupID: "group-1"})
	require.NoError(t, err)

	require.Len(t, result.Sessions, 6)
	assert.Equal(t, "s-1", result.Sessions[0].ID, "chronological order")
	assert.Equal(t, "s-6", result.Sessions[5].ID)
	assert.Equal(t, "19:00–21:00", result.Sessions[0].TimeRange)
}

func TestGetGroupSchedule_ByDay(t *testing.T) {
	repo := newFakeSessionRepo()
	seedWeek(t, repo)
	handler := NewGetGroupScheduleHandler(repo, nil)

	result, err := handler.Handle(context.Background(), GetGroupScheduleQuery{
		GroupID: "group-1",
		Day:     timePtr(time.Date(2025, 9, 3, 12, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	require.Len(t, result.Sessions, 1)
	assert.Equal(t, "s-2", result.Sessions[0].ID)
}

func TestGetGroupSchedule_DayUsesCache(t *testing.T) {
	repo := newFakeSessionRepo()
	seedWeek(t, repo)
	cache := &recordingCache{}
	handler := NewGetGroupScheduleHandler(repo, cache)

	day := time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC)

	// First read misses and fills the cache.
	first, err := handler.Handle(context.Background(), GetGroupScheduleQuery{GroupID: "group-1", Day: timePtr(day)})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, cache.setCalls)

	// Second read is served from the cache.
	second, err := handler.Handle(context.Background(), GetGroupScheduleQuery{GroupID: "group-1", Day: timePtr(day)})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, cache.setCalls)
	require.Len(t, second.Sessions, 1)
	assert.Equal(t, "s-3", second.Sessions[0].ID)
}

func TestGetGroupSchedule_ByModule(t *testing.T) {
	repo := newFakeSessionRepo()
	seedWeek(t, repo)
	handler := NewGetGroupScheduleHandler(repo, nil)

	result, err := handler.Handle(context.Background(), GetGroupScheduleQuery{
		GroupID:     "group-1",
		ModuleIndex: intPtr(1),
	})
	require.NoError(t, err)

	require.Len(t, result.Sessions, 3)
	for i, dto := range result.Sessions {
		assert.Equal(t, 1, dto.ModuleIndex)
		assert.Equal(t, i+1, dto.SessionNumber, "ordered by session number")
	}
}

func TestGetGroupSchedule_ByDateRange(t *testing.T) {
	repo := newFakeSessionRepo()
	seedWeek(t, repo)
	handler := NewGetGroupScheduleHandler(repo, nil)

	result, err := handler.Handle(context.Background(), GetGroupScheduleQuery{
		GroupID: "group-1",
		From:    timePtr(time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)),
		To:      timePtr(time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	// Both boundaries inclusive: s-2, s-3, s-4.
	require.Len(t, result.Sessions, 3)
	assert.Equal(t, "s-2", result.Sessions[0].ID)
	assert.Equal(t, "s-4", result.Sessions[2].ID)
}

func TestGetGroupSchedule_Validation(t *testing.T) {
	handler := NewGetGroupScheduleHandler(newFakeSessionRepo(), nil)
	day := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query GetGroupScheduleQuery
	}{
		{"missing group", GetGroupScheduleQuery{}},
		{"half range", GetGroupScheduleQuery{GroupID: "g", From: timePtr(day)}},
		{"inverted range", GetGroupScheduleQuery{GroupID: "g", From: timePtr(day.AddDate(0, 0, 5)), To: timePtr(day)}},
		{"conflicting filters", GetGroupScheduleQuery{GroupID: "g", Day: timePtr(day), ModuleIndex: intPtr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Handle(context.Background(), tt.query)
			assert.Error(t, err)
		})
	}
}

func TestGetGroupSchedule_ExcludesDeleted(t *testing.T) {
	repo := newFakeSessionRepo()
	seedWeek(t, repo)
	_, err := repo.SoftDeleteAll(context.Background(), "group-1")
	require.NoError(t, err)

	handler := NewGetGroupScheduleHandler(repo, nil)
	result, err := handler.Handle(context.Background(), GetGroupScheduleQuery{GroupID: "group-1"})
	require.NoError(t, err)
	assert.Empty(t, result.Sessions)
}
