package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/learnloop/learnloop-hub/internal/domain/achievement"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/logger"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK ACHIEVEMENTS COMMAND
// Evaluates every not-yet-earned predicate against fresh stats. Each unlock
// writes the UserAchievement row and its reward grant in one transaction;
// the unique (user, achievement) row and the grant key make concurrent passes
// converge on exactly one of each.
// ══════════════════════════════════════════════════════════════════════════════

// UnlockedAchievement is an achievement earned during a pass.
type UnlockedAchievement struct {
	achievement.Definition
	EarnedAt  time.Time `json:"earned_at"`
	XPAwarded shared.XP `json:"xp_awarded"`
}

// UnlockResult summarizes an unlock pass.
type UnlockResult struct {
	NewAchievements []UnlockedAchievement
	XPAwarded       shared.XP
	LeveledUp       bool

	// LastAward is the most recent applied reward grant, if any.
	LastAward *progress.AwardResult
	Stats     progress.Stats
}

// AchievementUnlocker runs unlock passes.
type AchievementUnlocker struct {
	store     progress.Store
	ledger    *XPLedger
	evaluator *achievement.Evaluator
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewAchievementUnlocker creates a new AchievementUnlocker.
func NewAchievementUnlocker(
	store progress.Store,
	ledger *XPLedger,
	evaluator *achievement.Evaluator,
	clock timeutil.Clock,
	log *logger.Logger,
) *AchievementUnlocker {
	if evaluator == nil {
		evaluator = achievement.NewEvaluator()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &AchievementUnlocker{
		store:     store,
		ledger:    ledger,
		evaluator: evaluator,
		clock:     clock,
		log:       log.With(logger.Component("achievement_unlocker")),
	}
}

// RunUnlockPass unlocks every achievement whose predicate holds. Rewards can
// push stats over further thresholds, so evaluation repeats until nothing new
// unlocks. Every pass but the last unlocks at least one item, which bounds
// the loop by the catalog size.
func (u *AchievementUnlocker) RunUnlockPass(ctx context.Context, userID string) (*UnlockResult, error) {
	if !shared.ValidateID(userID) {
		return nil, fmt.Errorf("unlock_achievements: %w", shared.ErrEmptyUserID)
	}

	result := &UnlockResult{}
	maxPasses := len(u.evaluator.Definitions()) + 1

	for pass := 0; pass < maxPasses; pass++ {
		stats, err := u.store.GetStats(ctx, userID)
		if err != nil {
			return result, fmt.Errorf("unlock_achievements: load stats: %w", err)
		}
		result.Stats = *stats

		earned, err := u.store.ListAchievements(ctx, userID)
		if err != nil {
			return result, fmt.Errorf("unlock_achievements: load earned: %w", err)
		}

		candidates := u.evaluator.Unlockable(*stats, earned)
		if len(candidates) == 0 {
			break
		}

		for _, def := range candidates {
			unlocked, award, err := u.unlock(ctx, userID, def)
			if err != nil {
				return result, fmt.Errorf("unlock_achievements: %s: %w", def.ID, err)
			}
			if award.Applied {
				result.XPAwarded += def.XPReward
				result.LeveledUp = result.LeveledUp || award.LeveledUp
				a := award
				result.LastAward = &a
			}
			if unlocked != nil {
				result.NewAchievements = append(result.NewAchievements, *unlocked)
				u.log.Info("achievement unlocked",
					logger.UserID(userID),
					logger.AchievementID(string(def.ID)),
					logger.XPAmount(def.XPReward.Int64()),
				)
			}
		}
	}

	return result, nil
}

// unlock writes the achievement row and its reward grant atomically. A lost
// race returns a nil UnlockedAchievement and the replayed award.
func (u *AchievementUnlocker) unlock(ctx context.Context, userID string, def achievement.Definition) (*UnlockedAchievement, progress.AwardResult, error) {
	grant, err := u.ledger.NewGrant(userID, def.XPReward, progress.ReasonAchievement, progress.StrPtr(string(def.ID)))
	if err != nil {
		return nil, progress.AwardResult{}, err
	}
	earnedAt := u.clock.Now().UTC()

	var (
		inserted bool
		award    progress.AwardResult
	)
	err = u.ledger.Retrier().Do(ctx, func(ctx context.Context) error {
		return u.store.WithinTx(ctx, func(tx progress.Store) error {
			g := *grant
			r, err := u.ledger.ApplyInTx(ctx, tx, &g)
			if err != nil {
				return err
			}
			ok, err := tx.InsertAchievementIfAbsent(ctx, progress.EarnedAchievement{
				ID:            uuid.NewString(),
				UserID:        userID,
				AchievementID: string(def.ID),
				EarnedAt:      earnedAt,
			})
			if err != nil {
				return fmt.Errorf("insert achievement: %w", err)
			}
			inserted, award = ok, r
			return nil
		})
	})
	if err != nil {
		return nil, progress.AwardResult{}, err
	}

	if !inserted {
		return nil, award, nil
	}
	xp := shared.XP(0)
	if award.Applied {
		xp = def.XPReward
	}
	return &UnlockedAchievement{Definition: def, EarnedAt: earnedAt, XPAwarded: xp}, award, nil
}
