package config

import (
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages gamification feature toggles with gradual rollout
// and per-user overrides.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// userOverrides maps user id -> feature -> enabled.
	userOverrides map[string]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent is 0-100. Users are bucketed by a hash of their id.
	RolloutPercent int
}

// Predefined feature flag names.
const (
	FeatureGamificationStreaks      = "gamification.streaks"      // Streak bonus XP
	FeatureGamificationAchievements = "gamification.achievements" // Achievement unlock pass
	FeatureLeaderboardCache         = "leaderboard.cache"         // Redis window cache
)

// LoadFeatureFlags builds the registry with defaults, then applies overrides
// found through lookup (usually the environment).
//
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_GAMIFICATION_ACHIEVEMENTS=false
// Example: FEATURE_GAMIFICATION_STREAKS=50 (50% rollout)
func LoadFeatureFlags(lookup func(key string) string) *FeatureFlags {
	ff := NewFeatureFlags()
	if lookup != nil {
		ff.loadOverrides(lookup)
	}
	return ff
}

// NewFeatureFlags returns the registry with every feature at its default.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.features[FeatureGamificationStreaks] = &Feature{
		Name:           FeatureGamificationStreaks,
		Description:    "Award streak bonus XP on the first quiz of a day",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGamificationAchievements] = &Feature{
		Name:           FeatureGamificationAchievements,
		Description:    "Run the achievement unlock pass after quiz completions",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardCache] = &Feature{
		Name:           FeatureLeaderboardCache,
		Description:    "Serve leaderboard windows from Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	return ff
}

func (ff *FeatureFlags) loadOverrides(lookup func(string) string) {
	for name, feature := range ff.features {
		val := strings.TrimSpace(lookup(featureNameToEnvKey(name)))
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts a feature name to its environment key.
// "gamification.streaks" -> "FEATURE_GAMIFICATION_STREAKS"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for userID. An empty userID asks
// about the feature as a whole.
func (ff *FeatureFlags) IsEnabled(featureName, userID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if userID != "" {
		if overrides, ok := ff.userOverrides[userID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	if feature.RolloutPercent < 100 && userID != "" {
		return inRollout(userID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// inRollout uses a stable hash so users stay in their bucket.
func inRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	return int(h.Sum32()%100) < percent
}

// SetUserOverride forces a feature on or off for one user.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
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

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]Feature, len(ff.features))
	for k, v := range ff.features {
		result[k] = *v
	}
	return result
}

// --- Gamification gates ---

// StreakBonusEnabled reports whether userID earns streak bonus XP.
func (ff *FeatureFlags) StreakBonusEnabled(userID string) bool {
	return ff.IsEnabled(FeatureGamificationStreaks, userID)
}

// AchievementsEnabled reports whether the unlock pass runs for userID.
func (ff *FeatureFlags) AchievementsEnabled(userID string) bool {
	return ff.IsEnabled(FeatureGamificationAchievements, userID)
}

// LeaderboardCacheEnabled reports whether leaderboard reads use Redis.
func (ff *FeatureFlags) LeaderboardCacheEnabled() bool {
	return ff.IsEnabled(FeatureLeaderboardCache, "")
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
