package progress

import (
	"context"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE PORT
// The single persistence boundary of the engine. Implementations must enforce
// the idempotency keys with uniqueness constraints and apply counters
// atomically; callers never read-modify-write balances.
// ══════════════════════════════════════════════════════════════════════════════

// Store is the gamification persistence port.
type Store interface {
	// WithinTx runs fn against a transaction-bound Store. Returning an error
	// from fn rolls back every write made through the bound Store.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	// EnsureProfile returns the user's profile, creating it with dailyGoal
	// when absent.
	EnsureProfile(ctx context.Context, userID string, dailyGoal int) (*Profile, error)

	// GetProfile returns shared.ErrProfileNotFound when the user has none.
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// InsertGrantIfAbsent appends grant. When grant has a source ref that was
	// already used for (user, reason), nothing is written and the stored grant
	// is returned with inserted=false.
	InsertGrantIfAbsent(ctx context.Context, grant *Grant) (existing *Grant, inserted bool, err error)

	// FindGrants returns the grants keyed (userID, reason, sourceRef) for
	// each of reasons, in the order of reasons. Missing keys are skipped.
	FindGrants(ctx context.Context, userID, sourceRef string, reasons []Reason) ([]Grant, error)

	// IncrementXP atomically adds amount to total_xp and returns the
	// balances before and after.
	IncrementXP(ctx context.Context, userID string, amount shared.XP) (before, after shared.XP, err error)

	// SetLevel stores the level derived from the new balance.
	SetLevel(ctx context.Context, userID string, level shared.Level) error

	// RecordGrantOutcome stores the balance snapshot produced by a grant.
	RecordGrantOutcome(ctx context.Context, grant *Grant) error

	// UpsertStreak records one quiz completion for (userID, attemptID) on
	// day. On the first call for the attempt it locks the profile, applies
	// transition and stores the outcome; later calls return the stored
	// outcome with applied=false.
	UpsertStreak(ctx context.Context, userID, attemptID string, day time.Time, transition ActivityTransition) (outcome ActivityOutcome, applied bool, err error)

	// InsertAchievementIfAbsent records an earned achievement. A duplicate
	// (user, achievement) returns inserted=false, not an error.
	InsertAchievementIfAbsent(ctx context.Context, earned EarnedAchievement) (inserted bool, err error)

	// ListAchievements returns earned achievements ordered by earned_at.
	ListAchievements(ctx context.Context, userID string) ([]EarnedAchievement, error)

	// GetStats computes the canonical aggregates in one read.
	GetStats(ctx context.Context, userID string) (*Stats, error)

	// SetDailyGoal updates the user's daily goal.
	SetDailyGoal(ctx context.Context, userID string, goal int) error

	// ListGrants returns the newest grants first.
	ListGrants(ctx context.Context, userID string, limit int) ([]Grant, error)
}

// ActivityTransition computes the next activity state for a completion.
// RecordDailyActivity is the production transition.
type ActivityTransition func(state ActivityState, today time.Time) (ActivityState, ActivityOutcome)
