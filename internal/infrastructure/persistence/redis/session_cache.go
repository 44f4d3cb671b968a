package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION DAY-VIEW CACHE
// ══════════════════════════════════════════════════════════════════════════════

// SessionCache implements session.Cache on top of the shared Cache client.
// It stores the full session list of one group for one calendar date,
// which is what the daily schedule view reads on every open.
type SessionCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewSessionCache creates a SessionCache with the default day-view TTL.
func NewSessionCache(cache *Cache) *SessionCache {
	return &SessionCache{
		cache: cache,
		ttl:   TTLDayView,
	}
}

// WithTTL overrides the day-view TTL.
func (c *SessionCache) WithTTL(ttl time.Duration) *SessionCache {
	c.ttl = ttl
	return c
}

// GetDay returns the cached day view, or (nil, nil) on a miss. A corrupt
// entry is treated as a miss and dropped so the next write repairs it.
func (c *SessionCache) GetDay(ctx context.Context, groupID string, day time.Time) ([]*session.Session, error) {
	key := DayViewKey(groupID, day)

	var sessions []*session.Session
	err := c.cache.Get(ctx, key, &sessions)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		if errors.Is(err, ErrCacheSerialization) {
			_ = c.cache.Delete(ctx, key)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read day view: %w", err)
	}

	return sessions, nil
}

// SetDay stores the day view for the group and date. An empty day is
// cached too, it saves the same query as a populated one.
func (c *SessionCache) SetDay(ctx context.Context, groupID string, day time.Time, sessions []*session.Session) error {
	if sessions == nil {
		sessions = []*session.Session{}
	}

	if err := c.cache.Set(ctx, DayViewKey(groupID, day), sessions, c.ttl); err != nil {
		return fmt.Errorf("failed to store day view: %w", err)
	}
	return nil
}

// InvalidateGroup drops every cached day of the group. Called after any
// write that touches the group's schedule.
func (c *SessionCache) InvalidateGroup(ctx context.Context, groupID string) error {
	if err := c.cache.DeleteByPattern(ctx, GroupPattern(groupID)); err != nil {
		return fmt.Errorf("failed to invalidate group cache: %w", err)
	}
	return c.cache.Delete(ctx, StatsKey(groupID))
}
