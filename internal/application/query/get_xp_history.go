package query

import (
	"context"
	"fmt"

	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// GetXPHistoryHandler lists a user's most recent grants.
type GetXPHistoryHandler struct {
	store progress.Store
}

// NewGetXPHistoryHandler creates a new GetXPHistoryHandler.
func NewGetXPHistoryHandler(store progress.Store) *GetXPHistoryHandler {
	return &GetXPHistoryHandler{store: store}
}

// Handle returns up to limit grants, newest first.
func (h *GetXPHistoryHandler) Handle(ctx context.Context, userID string, limit int) ([]progress.Grant, error) {
	if !shared.ValidateID(userID) {
		return nil, fmt.Errorf("get_xp_history: %w", shared.ErrEmptyUserID)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	grants, err := h.store.ListGrants(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get_xp_history: %w", err)
	}
	if grants == nil {
		grants = []progress.Grant{}
	}
	return grants, nil
}
