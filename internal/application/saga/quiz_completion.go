// Package saga contains multi-step business processes that span several
// aggregates. Each step is durable on its own; a failing step never rolls
// back earlier ones.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/learnloop/learnloop-hub/internal/application/command"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/logger"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ COMPLETION SAGA
// Flow: Validate → Base XP → Streak → Streak Bonus → Daily Goal →
//       Achievements → Complete
// Steps 2-3 are idempotent per attempt, the daily goal per (user, UTC date)
// and achievements per (user, achievement).
// ══════════════════════════════════════════════════════════════════════════════

// CompletionInput is a scored quiz attempt reported by the quiz service.
type CompletionInput struct {
	UserID         string `json:"user_id" validate:"required,max=128"`
	Score          int    `json:"score" validate:"gte=0,ltefield=TotalQuestions"`
	TotalQuestions int    `json:"total_questions" validate:"gt=0"`
	AttemptID      string `json:"attempt_id" validate:"required,max=128"`
}

// BreakdownItem is one XP component of a completion.
type BreakdownItem struct {
	Reason progress.Reason `json:"reason"`
	Amount shared.XP       `json:"amount"`

	// Applied is false when the grant already existed; the amount then does
	// not count towards TotalXPAwarded.
	Applied bool `json:"applied"`

	SourceRef string `json:"source_ref"`
}

// CompletionResult is the consolidated outcome of a completion.
type CompletionResult struct {
	UserID          string                        `json:"user_id"`
	AttemptID       string                        `json:"attempt_id"`
	TotalXPAwarded  shared.XP                     `json:"total_xp_awarded"`
	NewTotalXP      shared.XP                     `json:"new_total_xp"`
	LeveledUp       bool                          `json:"leveled_up"`
	NewLevel        shared.Level                  `json:"new_level"`
	Breakdown       []BreakdownItem               `json:"breakdown"`
	Streak          *command.StreakUpdate         `json:"streak"`
	NewAchievements []command.UnlockedAchievement `json:"new_achievements"`
}

// CompletionStep represents a step in the completion flow.
type CompletionStep string

const (
	StepValidate     CompletionStep = "validate"
	StepBaseXP       CompletionStep = "base_xp"
	StepStreak       CompletionStep = "streak"
	StepStreakBonus  CompletionStep = "streak_bonus"
	StepDailyGoal    CompletionStep = "daily_goal"
	StepAchievements CompletionStep = "achievements"
	StepComplete     CompletionStep = "complete"
)

// CompletionState tracks the current state of the flow.
type CompletionState struct {
	CurrentStep CompletionStep
	Input       CompletionInput
	Result      *CompletionResult
	StartedAt   time.Time
	FailedStep  CompletionStep
}

// CompletionError reports the step a completion failed at. The partial
// result returned with it reflects every step that did succeed.
type CompletionError struct {
	Step      CompletionStep
	UserID    string
	AttemptID string
	Cause     error
}

// Error implements the error interface.
func (e *CompletionError) Error() string {
	return fmt.Sprintf("quiz completion failed at step '%s' (user=%s attempt=%s): %v",
		e.Step, e.UserID, e.AttemptID, e.Cause)
}

// Unwrap returns the underlying error.
func (e *CompletionError) Unwrap() error {
	return e.Cause
}

// FeatureGate answers per-user feature flag questions.
type FeatureGate interface {
	StreakBonusEnabled(userID string) bool
	AchievementsEnabled(userID string) bool
}

type allEnabled struct{}

func (allEnabled) StreakBonusEnabled(string) bool  { return true }
func (allEnabled) AchievementsEnabled(string) bool { return true }

// QuizCompletionSaga orchestrates XP, streak, daily goal and achievements
// for one completed quiz.
type QuizCompletionSaga struct {
	ledger   *command.XPLedger
	streaks  *command.StreakTracker
	unlocker *command.AchievementUnlocker
	store    progress.Store
	validate *validator.Validate
	features FeatureGate
	clock    timeutil.Clock
	log      *logger.Logger
}

// NewQuizCompletionSaga creates a new saga. A nil gate enables everything.
func NewQuizCompletionSaga(
	ledger *command.XPLedger,
	streaks *command.StreakTracker,
	unlocker *command.AchievementUnlocker,
	store progress.Store,
	validate *validator.Validate,
	features FeatureGate,
	clock timeutil.Clock,
	log *logger.Logger,
) *QuizCompletionSaga {
	if validate == nil {
		validate = validator.New()
	}
	if features == nil {
		features = allEnabled{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &QuizCompletionSaga{
		ledger:   ledger,
		streaks:  streaks,
		unlocker: unlocker,
		store:    store,
		validate: validate,
		features: features,
		clock:    clock,
		log:      log.With(logger.Component("quiz_completion")),
	}
}

// Execute runs the flow. On failure it returns the partial result together
// with a *CompletionError; validation failures return a nil result.
func (s *QuizCompletionSaga) Execute(ctx context.Context, input CompletionInput) (*CompletionResult, error) {
	state := &CompletionState{
		CurrentStep: StepValidate,
		Input:       input,
		StartedAt:   s.clock.Now(),
		Result: &CompletionResult{
			UserID:          input.UserID,
			AttemptID:       input.AttemptID,
			NewLevel:        shared.MinLevel,
			Breakdown:       []BreakdownItem{},
			NewAchievements: []command.UnlockedAchievement{},
		},
	}

	if err := s.stepValidate(state); err != nil {
		return nil, s.wrapError(state, err)
	}

	steps := []struct {
		step CompletionStep
		run  func(context.Context, *CompletionState) error
	}{
		{StepBaseXP, s.stepBaseXP},
		{StepStreak, s.stepStreak},
		{StepStreakBonus, s.stepStreakBonus},
		{StepDailyGoal, s.stepDailyGoal},
		{StepAchievements, s.stepAchievements},
		{StepComplete, s.stepComplete},
	}
	for _, st := range steps {
		state.CurrentStep = st.step
		if err := st.run(ctx, state); err != nil {
			state.FailedStep = st.step
			s.log.Error("quiz completion step failed",
				logger.UserID(input.UserID),
				logger.AttemptID(input.AttemptID),
				logger.String("step", string(st.step)),
				logger.Err(err),
			)
			return state.Result, s.wrapError(state, err)
		}
	}

	s.log.Debug("quiz completion processed",
		logger.UserID(input.UserID),
		logger.AttemptID(input.AttemptID),
		logger.XPAmount(state.Result.TotalXPAwarded.Int64()),
		logger.Latency(s.clock.Now().Sub(state.StartedAt)),
	)
	return state.Result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

func (s *QuizCompletionSaga) stepValidate(state *CompletionState) error {
	if err := s.validate.Struct(state.Input); err != nil {
		state.FailedStep = StepValidate
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return shared.WrapError("progress", "ProcessQuizCompletion", shared.ErrValidation, "invalid completion input", err)
		}
		return err
	}
	return nil
}

// stepBaseXP awards quiz_complete, score_bonus and perfect_score in one
// transaction keyed by the attempt id. A replay reports the components
// stored by the first call, so a different score cannot add XP.
func (s *QuizCompletionSaga) stepBaseXP(ctx context.Context, state *CompletionState) error {
	in := state.Input
	outcomes, err := s.ledger.AwardAttempt(ctx, in.UserID, in.AttemptID, progress.QuizRewards(in.Score, in.TotalQuestions))
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		state.record(o.Reason, o.Result, in.AttemptID)
	}
	return nil
}

func (s *QuizCompletionSaga) stepStreak(ctx context.Context, state *CompletionState) error {
	update, err := s.streaks.RecordCompletion(ctx, state.Input.UserID, state.Input.AttemptID)
	if err != nil {
		return err
	}
	state.Result.Streak = update
	return nil
}

// stepStreakBonus pays the first completion of a day when the streak
// continued or started.
func (s *QuizCompletionSaga) stepStreakBonus(ctx context.Context, state *CompletionState) error {
	update := state.Result.Streak
	if update == nil || !update.FirstToday || !update.StreakMaintained {
		return nil
	}
	if !s.features.StreakBonusEnabled(state.Input.UserID) {
		return nil
	}
	bonus := progress.StreakBonus(update.NewStreak)
	if bonus <= 0 {
		return nil
	}
	return s.award(ctx, state, progress.ReasonStreakBonus, bonus, state.Input.AttemptID)
}

// stepDailyGoal pays once per UTC date when the day's counter reaches the goal.
func (s *QuizCompletionSaga) stepDailyGoal(ctx context.Context, state *CompletionState) error {
	update := state.Result.Streak
	if update == nil || !update.GoalReached() {
		return nil
	}
	return s.award(ctx, state, progress.ReasonDailyGoal, progress.DailyGoalXP, timeutil.FormatDate(update.Day))
}

func (s *QuizCompletionSaga) stepAchievements(ctx context.Context, state *CompletionState) error {
	if s.unlocker == nil || !s.features.AchievementsEnabled(state.Input.UserID) {
		return nil
	}

	unlocked, err := s.unlocker.RunUnlockPass(ctx, state.Input.UserID)
	if unlocked != nil {
		r := state.Result
		for _, a := range unlocked.NewAchievements {
			r.NewAchievements = append(r.NewAchievements, a)
			r.Breakdown = append(r.Breakdown, BreakdownItem{
				Reason:    progress.ReasonAchievement,
				Amount:    a.XPReward,
				Applied:   a.XPAwarded == a.XPReward,
				SourceRef: string(a.ID),
			})
			r.TotalXPAwarded += a.XPAwarded
		}
		r.LeveledUp = r.LeveledUp || unlocked.LeveledUp
	}
	return err
}

// stepComplete reads the final balance so replays report the current state.
func (s *QuizCompletionSaga) stepComplete(ctx context.Context, state *CompletionState) error {
	p, err := s.store.GetProfile(ctx, state.Input.UserID)
	if err != nil {
		return fmt.Errorf("load final profile: %w", err)
	}
	state.Result.NewTotalXP = p.TotalXP
	state.Result.NewLevel = p.CurrentLevel
	return nil
}

func (s *QuizCompletionSaga) award(ctx context.Context, state *CompletionState, reason progress.Reason, amount shared.XP, ref string) error {
	res, err := s.ledger.AwardXP(ctx, state.Input.UserID, amount, reason, progress.StrPtr(ref))
	if err != nil {
		return err
	}
	state.record(reason, *res, ref)
	return nil
}

// record adds a ledger outcome to the result. The amount is the one the
// ledger credited, which on a replay may differ from the one requested.
func (cs *CompletionState) record(reason progress.Reason, res progress.AwardResult, ref string) {
	r := cs.Result
	r.Breakdown = append(r.Breakdown, BreakdownItem{
		Reason:    reason,
		Amount:    res.Amount,
		Applied:   res.Applied,
		SourceRef: ref,
	})
	if res.Applied {
		r.TotalXPAwarded += res.Amount
		r.LeveledUp = r.LeveledUp || res.LeveledUp
	}
	r.NewTotalXP = res.NewTotalXP
	r.NewLevel = res.NewLevel
}

func (s *QuizCompletionSaga) wrapError(state *CompletionState, err error) error {
	return &CompletionError{
		Step:      state.FailedStep,
		UserID:    state.Input.UserID,
		AttemptID: state.Input.AttemptID,
		Cause:     err,
	}
}
