package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/logger"
)

// SetDailyGoalCommand changes how many quizzes a day count as the daily goal.
type SetDailyGoalCommand struct {
	UserID string `validate:"required,max=128"`
	Goal   int    `validate:"min=1,max=20"`
}

// SetDailyGoalHandler handles SetDailyGoalCommand.
type SetDailyGoalHandler struct {
	store    progress.Store
	validate *validator.Validate
	opts     Options
}

// NewSetDailyGoalHandler creates a new SetDailyGoalHandler.
func NewSetDailyGoalHandler(store progress.Store, validate *validator.Validate, opts Options) *SetDailyGoalHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &SetDailyGoalHandler{store: store, validate: validate, opts: opts.withDefaults()}
}

// Handle executes the command. The new goal applies to the current day.
func (h *SetDailyGoalHandler) Handle(ctx context.Context, cmd SetDailyGoalCommand) error {
	if err := h.validate.Struct(cmd); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "UserID" {
			return fmt.Errorf("set_daily_goal: %w", shared.ErrEmptyUserID)
		}
		return fmt.Errorf("set_daily_goal: %w: %v", shared.ErrInvalidDailyGoal, err)
	}

	err := h.opts.Retrier.Do(ctx, func(ctx context.Context) error {
		return h.store.WithinTx(ctx, func(tx progress.Store) error {
			if _, err := tx.EnsureProfile(ctx, cmd.UserID, cmd.Goal); err != nil {
				return err
			}
			return tx.SetDailyGoal(ctx, cmd.UserID, cmd.Goal)
		})
	})
	if err != nil {
		return fmt.Errorf("set_daily_goal: %w", err)
	}

	h.opts.Logger.Debug("daily goal updated", logger.UserID(cmd.UserID), logger.Int("goal", cmd.Goal))
	return nil
}
