package query

import (
	"context"
	"fmt"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/achievement"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACHIEVEMENTS QUERY
// Progress is computed from the same canonical stats the unlock pass uses.
// ══════════════════════════════════════════════════════════════════════════════

// EarnedAchievementDTO is an earned catalog entry.
type EarnedAchievementDTO struct {
	achievement.Definition
	EarnedAt time.Time `json:"earned_at"`
}

// AchievementsView lists earned and available achievements with progress in
// catalog order.
type AchievementsView struct {
	Earned    []EarnedAchievementDTO   `json:"earned"`
	Available []achievement.Definition `json:"available"`
	Progress  []achievement.Progress   `json:"progress"`
}

// GetAchievementsHandler handles achievement reads.
type GetAchievementsHandler struct {
	store     progress.Store
	evaluator *achievement.Evaluator
}

// NewGetAchievementsHandler creates a new GetAchievementsHandler.
func NewGetAchievementsHandler(store progress.Store, evaluator *achievement.Evaluator) *GetAchievementsHandler {
	if evaluator == nil {
		evaluator = achievement.NewEvaluator()
	}
	return &GetAchievementsHandler{store: store, evaluator: evaluator}
}

// Handle returns the achievements view for userID.
func (h *GetAchievementsHandler) Handle(ctx context.Context, userID string) (*AchievementsView, error) {
	if !shared.ValidateID(userID) {
		return nil, fmt.Errorf("get_achievements: %w", shared.ErrEmptyUserID)
	}

	stats, err := h.store.GetStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_achievements: load stats: %w", err)
	}
	earned, err := h.store.ListAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_achievements: load earned: %w", err)
	}

	earnedAt := make(map[achievement.ID]time.Time, len(earned))
	for _, e := range earned {
		earnedAt[achievement.ID(e.AchievementID)] = e.EarnedAt
	}

	earnedDefs, available := h.evaluator.Split(earned)

	view := &AchievementsView{
		Earned:    make([]EarnedAchievementDTO, 0, len(earnedDefs)),
		Available: available,
		Progress:  h.evaluator.Progress(*stats),
	}
	if view.Available == nil {
		view.Available = []achievement.Definition{}
	}
	for _, def := range earnedDefs {
		view.Earned = append(view.Earned, EarnedAchievementDTO{Definition: def, EarnedAt: earnedAt[def.ID]})
	}
	return view, nil
}
