package command

import (
	"context"
	"sort"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
)

// fakeSessionRepo is an in-memory session.Repository for handler tests.
// It enforces the same active-key uniqueness rule as the real store.
type fakeSessionRepo struct {
	sessions map[string]*session.Session
	updates  int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*session.Session)}
}

type activeKey struct {
	groupID       string
	moduleIndex   int
	sessionNumber int
}

func (r *fakeSessionRepo) activeKeys() map[activeKey]bool {
	keys := make(map[activeKey]bool)
	for _, s := range r.sessions {
		if !s.IsDeleted {
			keys[activeKey{s.GroupID, s.ModuleIndex, int(s.SessionNumber)}] = true
		}
	}
	return keys
}

func (r *fakeSessionRepo) CreateBatch(_ context.Context, sessions []*session.Session) (*session.BatchResult, error) {
	existing := r.activeKeys()
	result := &session.BatchResult{}
	for _, s := range sessions {
		key := activeKey{s.GroupID, s.ModuleIndex, int(s.SessionNumber)}
		if existing[key] {
			result.Skipped++
			continue
		}
		existing[key] = true
		r.sessions[s.ID] = s.Clone()
		result.Created = append(result.Created, s)
	}
	return result, nil
}

func (r *fakeSessionRepo) Update(_ context.Context, s *session.Session) error {
	if _, ok := r.sessions[s.ID]; !ok {
		return shared.ErrSessionNotFound
	}
	r.sessions[s.ID] = s.Clone()
	r.updates++
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
	return s.Clone(), nil
}

func (r *fakeSessionRepo) active(groupID string) []*session.Session {
	var out []*session.Session
	for _, s := range r.sessions {
		if s.GroupID == groupID && !s.IsDeleted {
			out = append(out, s.Clone())
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
		d := s.ScheduledDate
		if !d.Before(from) && !d.After(to) {
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
			out = append(out, s.Clone())
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
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) FindDuplicates(_ context.Context, groupID string) ([]session.DuplicateGroup, error) {
	byKey := make(map[activeKey][]*session.Session)
	for _, s := range r.active(groupID) {
		key := activeKey{s.GroupID, s.ModuleIndex, int(s.SessionNumber)}
		byKey[key] = append(byKey[key], s)
	}
	var out []session.DuplicateGroup
	for key, sessions := range byKey {
		if len(sessions) > 1 {
			out = append(out, session.DuplicateGroup{
				GroupID:       key.groupID,
				ModuleIndex:   key.moduleIndex,
				SessionNumber: key.sessionNumber,
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

// fakeCache counts invalidations; reads always miss.
type fakeCache struct {
	invalidations []string
}

func (c *fakeCache) GetDay(context.Context, string, time.Time) ([]*session.Session, error) {
	return nil, nil
}

func (c *fakeCache) SetDay(context.Context, string, time.Time, []*session.Session) error {
	return nil
}

func (c *fakeCache) InvalidateGroup(_ context.Context, groupID string) error {
	c.invalidations = append(c.invalidations, groupID)
	return nil
}

// capturingPublisher collects published events.
type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}
