package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles for the session engine.
// Supports gradual per-group rollout and time-based activation, so a new
// automation (say, the hourly reminder) can be enabled for a slice of
// groups before it goes live everywhere.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	groupOverrides map[string]map[string]bool // groupID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Groups are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	GroupID string // group the evaluation applies to
	IsAdmin bool   // admin bypasses rollout gating
}

// Predefined feature flag names.
const (
	// === Notification Features ===
	FeatureNotifyReminder24h   = "notify.reminder_24h"  // day-before reminder
	FeatureNotifyReminder1h    = "notify.reminder_1h"   // hour-before reminder
	FeatureNotifyAbsenceNotice = "notify.absence"       // absent list after a session
	FeatureNotifyStatusChange  = "notify.status_change" // cancellations, reschedules

	// === Schedule Features ===
	FeatureScheduleAudit    = "schedule.audit"     // duplicate-key sweep job
	FeatureScheduleDayCache = "schedule.day_cache" // Redis day-view cache

	// === Experimental Features ===
	FeatureExperimentalAutoPostpone = "experimental.auto_postpone" // holiday-aware postponing
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:       make(map[string]*Feature),
		groupOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Notification features - the reason the worker exists
	ff.features[FeatureNotifyReminder24h] = &Feature{
		Name:           FeatureNotifyReminder24h,
		Description:    "Send day-before session reminders",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyReminder1h] = &Feature{
		Name:           FeatureNotifyReminder1h,
		Description:    "Send hour-before session reminders",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyAbsenceNotice] = &Feature{
		Name:           FeatureNotifyAbsenceNotice,
		Description:    "Send absent-student notices after completed sessions",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyStatusChange] = &Feature{
		Name:           FeatureNotifyStatusChange,
		Description:    "Announce cancellations and reschedules",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Schedule features
	ff.features[FeatureScheduleAudit] = &Feature{
		Name:           FeatureScheduleAudit,
		Description:    "Periodic duplicate-session audit",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureScheduleDayCache] = &Feature{
		Name:           FeatureScheduleDayCache,
		Description:    "Cache day views in Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalAutoPostpone] = &Feature{
		Name:           FeatureExperimentalAutoPostpone,
		Description:    "Automatically postpone sessions landing on holidays",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_NOTIFY_REMINDER_1H=true
// Example: FEATURE_SCHEDULE_DAY_CACHE=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "notify.reminder_24h" -> "FEATURE_NOTIFY_REMINDER_24H"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check group overrides first
	if ctx != nil && ctx.GroupID != "" {
		if overrides, ok := ff.groupOverrides[ctx.GroupID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin context gets all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.GroupID != "" {
		return ff.isInRollout(ctx.GroupID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a group is in the rollout percentage.
// Uses consistent hashing so groups stay in their bucket.
func (ff *FeatureFlags) isInRollout(groupID, featureName string, percent int) bool {
	// Create a consistent hash for this group+feature combination
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(groupID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetGroupOverride sets a feature override for a specific group.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetGroupOverride(groupID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.groupOverrides[groupID]; !ok {
		ff.groupOverrides[groupID] = make(map[string]bool)
	}
	ff.groupOverrides[groupID][featureName] = enabled
}

// ClearGroupOverrides removes all overrides for a group.
func (ff *FeatureFlags) ClearGroupOverrides(groupID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.groupOverrides, groupID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods for common checks ---

// RemindersEnabled checks if any reminder tier is enabled.
func (ff *FeatureFlags) RemindersEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureNotifyReminder24h, ctx) ||
		ff.IsEnabled(FeatureNotifyReminder1h, ctx)
}

// NotificationsEnabled checks if any notifications are enabled.
func (ff *FeatureFlags) NotificationsEnabled(ctx *FeatureContext) bool {
	return ff.RemindersEnabled(ctx) ||
		ff.IsEnabled(FeatureNotifyAbsenceNotice, ctx) ||
		ff.IsEnabled(FeatureNotifyStatusChange, ctx)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
