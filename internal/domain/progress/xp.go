package progress

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP GRANTS
// ══════════════════════════════════════════════════════════════════════════════

// Reason is the closed set of causes an XP grant can have.
type Reason string

const (
	ReasonQuizComplete Reason = "quiz_complete"
	ReasonScoreBonus   Reason = "score_bonus"
	ReasonPerfectScore Reason = "perfect_score"
	ReasonStreakBonus  Reason = "streak_bonus"
	ReasonDailyGoal    Reason = "daily_goal"
	ReasonAchievement  Reason = "achievement"
)

// IsValid reports whether r belongs to the closed reason set.
func (r Reason) IsValid() bool {
	switch r {
	case ReasonQuizComplete, ReasonScoreBonus, ReasonPerfectScore,
		ReasonStreakBonus, ReasonDailyGoal, ReasonAchievement:
		return true
	}
	return false
}

// Grant is one append-only XP addition. When SourceRef is set,
// (UserID, Reason, SourceRef) is unique. The outcome fields are filled in the
// same transaction that credits the balance so a replay can return them.
type Grant struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    shared.XP `json:"amount"`
	Reason    Reason    `json:"reason"`
	SourceRef *string   `json:"source_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	BalanceAfter shared.XP    `json:"balance_after"`
	LevelAfter   shared.Level `json:"level_after"`
	LeveledUp    bool         `json:"leveled_up"`
}

// NewGrant validates the grant request and builds an unrecorded Grant.
func NewGrant(userID string, amount shared.XP, reason Reason, sourceRef *string, now time.Time) (*Grant, error) {
	if !shared.ValidateID(userID) {
		return nil, shared.ErrEmptyUserID
	}
	if amount < 0 {
		return nil, shared.ErrNegativeXP
	}
	if !reason.IsValid() {
		return nil, shared.ErrUnknownReason
	}
	if sourceRef != nil {
		ref := strings.TrimSpace(*sourceRef)
		if !shared.ValidateID(ref) {
			return nil, shared.ErrInvalidSourceRef
		}
		sourceRef = &ref
	}

	return &Grant{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		SourceRef: sourceRef,
		CreatedAt: now.UTC(),
	}, nil
}

// HasKey reports whether the grant carries an idempotency key.
func (g *Grant) HasKey() bool {
	return g.SourceRef != nil
}

// SetOutcome records the balance the grant produced.
func (g *Grant) SetOutcome(previous, balance shared.XP) {
	g.BalanceAfter = balance
	g.LevelAfter = LevelFor(balance)
	g.LeveledUp = g.LevelAfter > LevelFor(previous)
}

// Result converts the recorded outcome into an AwardResult.
func (g *Grant) Result(applied bool) AwardResult {
	return AwardResult{
		GrantID:    g.ID,
		Amount:     g.Amount,
		NewTotalXP: g.BalanceAfter,
		LeveledUp:  g.LeveledUp,
		NewLevel:   g.LevelAfter,
		Applied:    applied,
	}
}

// AwardResult is the ledger's answer to an award request. Applied is false
// when the idempotency key had already been used; the other fields then
// repeat the original outcome, including the amount actually credited.
type AwardResult struct {
	GrantID    string       `json:"grant_id"`
	Amount     shared.XP    `json:"amount"`
	NewTotalXP shared.XP    `json:"new_total_xp"`
	LeveledUp  bool         `json:"leveled_up"`
	NewLevel   shared.Level `json:"new_level"`
	Applied    bool         `json:"applied"`
}

// StrPtr returns a pointer to s, for optional source refs.
func StrPtr(s string) *string {
	return &s
}
