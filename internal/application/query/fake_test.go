package query

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/curriculum"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/schedule"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// fakeSessionRepo is an in-memory session.Repository for query tests.
type fakeSessionRepo struct {
	sessions map[string]*session.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*session.Session)}
}

func (r *fakeSessionRepo) add(s *session.Session) {
	r.sessions[s.ID] = s
}

func (r *fakeSessionRepo) CreateBatch(_ context.Context, sessions []*session.Session) (*session.BatchResult, error) {
	result := &session.BatchResult{}
	for _, s := range sessions {
		r.sessions[s.ID] = s
		result.Created = append(result.Created, s)
	}
	return result, nil
}

func (r *fakeSessionRepo) Update(_ context.Context, s *session.Session) error {
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) SoftDeleteAll(_ context.Context, groupID string) (int, error) {
	removed := 0
	for _, s := range r.sessions {
		if s.GroupID == groupID && !s.IsDeleted {
			s.SoftDelete(time.Now())
			removed++
		}
	}
	return removed, nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*session.Session, error) {
	s, ok := r.sessions[id]
	if !ok || s.IsDeleted {
		return nil, shared.ErrSessionNotFound
	}
	return s, nil
}

func (r *fakeSessionRepo) active(groupID string) []*session.Session {
	var out []*session.Session
	for _, s := range r.sessions {
		if s.GroupID == groupID && !s.IsDeleted {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartsAt().Before(out[j].StartsAt())
	})
	return out
}

func (r *fakeSessionRepo) GetByGroup(_ context.Context, groupID string) ([]*session.Session, error) {
	return r.active(groupID), nil
}

func (r *fakeSessionRepo) GetByDay(_ context.Context, groupID string, day time.Time) ([]*session.Session, error) {
	var out []*session.Session
	for _, s := range r.active(groupID) {
		if s.IsToday(day) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) GetByModule(_ context.Context, groupID string, moduleIndex int) ([]*session.Session, error) {
	var out []*session.Session
	for _, s := range r.active(groupID) {
		if s.ModuleIndex == moduleIndex {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionNumber < out[j].SessionNumber })
	return out, nil
}

func (r *fakeSessionRepo) GetByDateRange(_ context.Context, groupID string, from, to time.Time) ([]*session.Session, error) {
	var out []*session.Session
	for _, s := range r.active(groupID) {
		if !s.ScheduledDate.Before(from) && !s.ScheduledDate.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) NextUpcoming(_ context.Context, groupID string, now time.Time) (*session.Session, error) {
	for _, s := range r.active(groupID) {
		if s.Status == session.StatusScheduled && s.StartsAt().After(now) {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) Today(_ context.Context, now time.Time) ([]*session.Session, error) {
	var out []*session.Session
	for _, s := range r.sessions {
		if !s.IsDeleted && s.IsToday(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) UpcomingWithin(_ context.Context, now time.Time, window time.Duration) ([]*session.Session, error) {
	var out []*session.Session
	for _, s := range r.sessions {
		if s.IsDeleted || s.Status != session.StatusScheduled {
			continue
		}
		start := s.StartsAt()
		if start.After(now) && start.Sub(now) <= window {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) FindDuplicates(_ context.Context, groupID string) ([]session.DuplicateGroup, error) {
	type key struct {
		module int
		number int
	}
	byKey := make(map[key][]*session.Session)
	for _, s := range r.active(groupID) {
		k := key{s.ModuleIndex, int(s.SessionNumber)}
		byKey[k] = append(byKey[k], s)
	}
	var out []session.DuplicateGroup
	for k, sessions := range byKey {
		if len(sessions) > 1 {
			out = append(out, session.DuplicateGroup{
				GroupID:       groupID,
				ModuleIndex:   k.module,
				SessionNumber: k.number,
				Sessions:      sessions,
			})
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) Stats(_ context.Context, groupID string) (*session.GroupStats, error) {
	stats := &session.GroupStats{}
	for _, s := range r.active(groupID) {
		stats.Total++
		switch s.Status {
		case session.StatusScheduled:
			stats.Scheduled++
		case session.StatusCompleted:
			stats.Completed++
		case session.StatusCancelled:
			stats.Cancelled++
		case session.StatusPostponed:
			stats.Postponed++
		}
	}
	return stats, nil
}

// recordingCache is a session.Cache with a pre-seeded day view.
type recordingCache struct {
	day      []*session.Session
	getCalls int
	setCalls int
}

func (c *recordingCache) GetDay(context.Context, string, time.Time) ([]*session.Session, error) {
	c.getCalls++
	return c.day, nil
}

func (c *recordingCache) SetDay(_ context.Context, _ string, _ time.Time, sessions []*session.Session) error {
	c.setCalls++
	c.day = sessions
	return nil
}

func (c *recordingCache) InvalidateGroup(context.Context, string) error {
	c.day = nil
	return nil
}

// seedSession builds a scheduled session and puts it into the repo.
func seedSession(t *testing.T, repo *fakeSessionRepo, id, groupID string, moduleIndex, number int, date time.Time) *session.Session {
	t.Helper()

	s, err := session.NewSession(session.NewSessionParams{
		ID:       id,
		GroupID:  groupID,
		CourseID: "course-1",
		Title:    "Занятие " + id,
		Timezone: "UTC",
		Planned: schedule.PlannedSession{
			ModuleIndex:   moduleIndex,
			SessionNumber: curriculum.SessionNumber(number),
			LessonIndexes: [2]int{(number - 1) * 2, (number-1)*2 + 1},
			Date:          date,
			StartTime:     "19:00",
			EndTime:       "21:00",
		},
	})
	require.NoError(t, err)
	repo.add(s)
	return s
}
