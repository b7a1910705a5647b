// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"

	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/logger"
	"github.com/learnloop/learnloop-hub/pkg/retry"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP COMMAND
// Appends an XP grant and credits the profile balance in one transaction.
// A grant whose (user, reason, source ref) key was already used is a no-op
// that returns the original outcome.
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPCommand contains the data to award XP.
type AwardXPCommand struct {
	UserID string
	Amount shared.XP
	Reason progress.Reason

	// SourceRef is the idempotency reference (attempt id, date, achievement
	// id). Nil means the grant is never deduplicated.
	SourceRef *string
}

// Options shared by the write handlers.
type Options struct {
	// DefaultDailyGoal is used when a profile is created lazily.
	DefaultDailyGoal int

	// Retrier retries transactions that failed on transient conflicts.
	Retrier *retry.Retrier

	Logger *logger.Logger
}

func (o Options) withDefaults() Options {
	if progress.ValidateDailyGoal(o.DefaultDailyGoal) != nil {
		o.DefaultDailyGoal = progress.DefaultDailyGoal
	}
	if o.Retrier == nil {
		o.Retrier = retry.DatabaseRetrier(nil)
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
	return o
}

// XPLedger handles AwardXPCommand.
type XPLedger struct {
	store progress.Store
	clock timeutil.Clock
	opts  Options
	log   *logger.Logger
}

// NewXPLedger creates a new XPLedger.
func NewXPLedger(store progress.Store, clock timeutil.Clock, opts Options) *XPLedger {
	opts = opts.withDefaults()
	return &XPLedger{
		store: store,
		clock: clock,
		opts:  opts,
		log:   opts.Logger.With(logger.Component("xp_ledger")),
	}
}

// AwardXP credits amount XP to userID for reason.
func (l *XPLedger) AwardXP(
	ctx context.Context,
	userID string,
	amount shared.XP,
	reason progress.Reason,
	sourceRef *string,
) (*progress.AwardResult, error) {
	return l.Handle(ctx, AwardXPCommand{
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		SourceRef: sourceRef,
	})
}

// Handle executes the command. Validation errors are returned before any
// write happens.
func (l *XPLedger) Handle(ctx context.Context, cmd AwardXPCommand) (*progress.AwardResult, error) {
	grant, err := progress.NewGrant(cmd.UserID, cmd.Amount, cmd.Reason, cmd.SourceRef, l.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("award_xp: %w", err)
	}

	var result progress.AwardResult
	err = l.opts.Retrier.Do(ctx, func(ctx context.Context) error {
		return l.store.WithinTx(ctx, func(tx progress.Store) error {
			g := *grant
			r, err := l.ApplyInTx(ctx, tx, &g)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		l.log.Error("award xp failed",
			logger.UserID(cmd.UserID),
			logger.Reason(string(cmd.Reason)),
			logger.Err(err),
		)
		return nil, fmt.Errorf("award_xp: %w", err)
	}

	if !result.Applied {
		l.log.Debug("xp grant replayed",
			logger.UserID(cmd.UserID),
			logger.Reason(string(cmd.Reason)),
		)
	} else if result.LeveledUp {
		l.log.Info("user leveled up",
			logger.UserID(cmd.UserID),
			logger.Int("level", result.NewLevel.Int()),
			logger.XPAmount(result.NewTotalXP.Int64()),
		)
	}

	return &result, nil
}

// ApplyInTx performs the award against a transaction-bound store. It lets
// callers combine a grant with other writes in one transaction.
func (l *XPLedger) ApplyInTx(ctx context.Context, tx progress.Store, grant *progress.Grant) (progress.AwardResult, error) {
	if _, err := tx.EnsureProfile(ctx, grant.UserID, l.opts.DefaultDailyGoal); err != nil {
		return progress.AwardResult{}, fmt.Errorf("ensure profile: %w", err)
	}

	existing, inserted, err := tx.InsertGrantIfAbsent(ctx, grant)
	if err != nil {
		return progress.AwardResult{}, fmt.Errorf("insert grant: %w", err)
	}
	if !inserted {
		return existing.Result(false), nil
	}

	before, after, err := tx.IncrementXP(ctx, grant.UserID, grant.Amount)
	if err != nil {
		return progress.AwardResult{}, fmt.Errorf("increment xp: %w", err)
	}
	grant.SetOutcome(before, after)

	if err := tx.SetLevel(ctx, grant.UserID, grant.LevelAfter); err != nil {
		return progress.AwardResult{}, fmt.Errorf("set level: %w", err)
	}
	if err := tx.RecordGrantOutcome(ctx, grant); err != nil {
		return progress.AwardResult{}, fmt.Errorf("record grant outcome: %w", err)
	}

	return grant.Result(true), nil
}

// RewardOutcome is the ledger's answer for one component of an attempt.
type RewardOutcome struct {
	Reason progress.Reason
	Result progress.AwardResult
}

// AwardAttempt credits the base rewards of one quiz attempt in a single
// transaction, keyed by attemptID. rewards[0] marks the attempt: when its
// grant already exists the attempt was credited before, and the stored
// components are returned unapplied whatever rewards now holds.
func (l *XPLedger) AwardAttempt(ctx context.Context, userID, attemptID string, rewards []progress.Reward) ([]RewardOutcome, error) {
	if len(rewards) == 0 {
		return nil, fmt.Errorf("award_attempt: %w", shared.NewDomainError("progress", "AwardAttempt", shared.ErrValidation, "no rewards"))
	}

	now := l.clock.Now()
	grants := make([]*progress.Grant, 0, len(rewards))
	for _, r := range rewards {
		g, err := progress.NewGrant(userID, r.Amount, r.Reason, &attemptID, now)
		if err != nil {
			return nil, fmt.Errorf("award_attempt: %w", err)
		}
		grants = append(grants, g)
	}

	var outcomes []RewardOutcome
	err := l.opts.Retrier.Do(ctx, func(ctx context.Context) error {
		return l.store.WithinTx(ctx, func(tx progress.Store) error {
			outcomes = outcomes[:0]
			for i, grant := range grants {
				g := *grant
				res, err := l.ApplyInTx(ctx, tx, &g)
				if err != nil {
					return err
				}
				if i == 0 && !res.Applied {
					outcomes, err = l.replayAttempt(ctx, tx, userID, *g.SourceRef)
					return err
				}
				outcomes = append(outcomes, RewardOutcome{Reason: g.Reason, Result: res})
			}
			return nil
		})
	})
	if err != nil {
		l.log.Error("award attempt failed",
			logger.UserID(userID),
			logger.AttemptID(attemptID),
			logger.Err(err),
		)
		return nil, fmt.Errorf("award_attempt: %w", err)
	}
	return outcomes, nil
}

func (l *XPLedger) replayAttempt(ctx context.Context, tx progress.Store, userID, attemptID string) ([]RewardOutcome, error) {
	stored, err := tx.FindGrants(ctx, userID, attemptID, progress.QuizRewardReasons())
	if err != nil {
		return nil, fmt.Errorf("find attempt grants: %w", err)
	}

	l.log.Debug("attempt replayed", logger.UserID(userID), logger.AttemptID(attemptID))
	outcomes := make([]RewardOutcome, 0, len(stored))
	for i := range stored {
		outcomes = append(outcomes, RewardOutcome{Reason: stored[i].Reason, Result: stored[i].Result(false)})
	}
	return outcomes, nil
}

// NewGrant validates an award request against the ledger clock.
func (l *XPLedger) NewGrant(userID string, amount shared.XP, reason progress.Reason, sourceRef *string) (*progress.Grant, error) {
	return progress.NewGrant(userID, amount, reason, sourceRef, l.clock.Now())
}

// Retrier exposes the transaction retrier to sibling handlers.
func (l *XPLedger) Retrier() *retry.Retrier {
	return l.opts.Retrier
}
