package query

import (
	"context"
	"fmt"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/leaderboard"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/logger"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Ranks XP earned inside the current weekly or monthly period, globally or
// for one class. The caller's own row comes from the same window read.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardConfig configures the aggregator.
type LeaderboardConfig struct {
	DefaultLimit int
	MaxLimit     int
	WeekStart    time.Weekday
}

// DefaultLeaderboardConfig returns default configuration.
func DefaultLeaderboardConfig() LeaderboardConfig {
	return LeaderboardConfig{
		DefaultLimit: 10,
		MaxLimit:     100,
		WeekStart:    time.Monday,
	}
}

// ClampLimit normalizes a requested page size into [1, MaxLimit].
func (c LeaderboardConfig) ClampLimit(limit int) int {
	if limit <= 0 {
		limit = c.DefaultLimit
	}
	if limit > c.MaxLimit {
		limit = c.MaxLimit
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// GetLeaderboardHandler serves leaderboard reads.
type GetLeaderboardHandler struct {
	reader   leaderboard.WindowReader
	roster   leaderboard.ClassRoster
	calendar leaderboard.Calendar
	clock    timeutil.Clock
	config   LeaderboardConfig
	log      *logger.Logger
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler.
func NewGetLeaderboardHandler(
	reader leaderboard.WindowReader,
	roster leaderboard.ClassRoster,
	clock timeutil.Clock,
	config LeaderboardConfig,
	log *logger.Logger,
) *GetLeaderboardHandler {
	def := DefaultLeaderboardConfig()
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = def.DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = def.MaxLimit
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &GetLeaderboardHandler{
		reader:   reader,
		roster:   roster,
		calendar: leaderboard.NewCalendar(config.WeekStart),
		clock:    clock,
		config:   config,
		log:      log.With(logger.Component("leaderboard")),
	}
}

// PeriodInfo returns the bounds of the current period of type t.
func (h *GetLeaderboardHandler) PeriodInfo(t leaderboard.PeriodType) (*leaderboard.PeriodInfo, error) {
	now := h.clock.Now()
	period, err := h.calendar.PeriodAt(t, now)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard_period: %w", err)
	}
	info := period.Info(now)
	return &info, nil
}

// GetLeaderboard returns the global board. userID may be empty; when set, the
// caller's rank and entry are filled even outside the page.
func (h *GetLeaderboardHandler) GetLeaderboard(
	ctx context.Context,
	t leaderboard.PeriodType,
	userID string,
	limit int,
) (*leaderboard.Board, error) {
	return h.read(ctx, leaderboard.WindowQuery{
		Scope:    leaderboard.GlobalScope(),
		Limit:    limit,
		ViewerID: userID,
	}, t)
}

// GetClassLeaderboard returns the board restricted to a class's students.
func (h *GetLeaderboardHandler) GetClassLeaderboard(
	ctx context.Context,
	classID string,
	t leaderboard.PeriodType,
	limit int,
) (*leaderboard.Board, error) {
	if !shared.ValidateID(classID) {
		return nil, fmt.Errorf("get_class_leaderboard: %w", shared.ErrEmptyClassID)
	}
	if !t.IsValid() {
		return nil, fmt.Errorf("get_class_leaderboard: %w", shared.ErrInvalidPeriodType)
	}

	scope := leaderboard.ClassScope(classID)
	ids, err := h.roster.StudentIDs(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("get_class_leaderboard: resolve roster: %w", err)
	}
	if len(ids) == 0 {
		return leaderboard.EmptyBoard(scope), nil
	}

	return h.read(ctx, leaderboard.WindowQuery{
		Scope:   scope,
		UserIDs: ids,
		Limit:   limit,
	}, t)
}

func (h *GetLeaderboardHandler) read(ctx context.Context, q leaderboard.WindowQuery, t leaderboard.PeriodType) (*leaderboard.Board, error) {
	now := h.clock.Now()
	period, err := h.calendar.PeriodAt(t, now)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}
	q.Period = period
	q.Limit = h.config.ClampLimit(q.Limit)

	window, err := h.reader.ReadLeaderboardWindow(ctx, q)
	if err != nil {
		h.log.Error("read leaderboard window failed",
			logger.String("period", period.Key()),
			logger.String("scope", q.Scope.String()),
			logger.Err(err),
		)
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	if window == nil || len(window.Entries) == 0 {
		return leaderboard.EmptyBoard(q.Scope), nil
	}

	info := period.Info(now)
	board := &leaderboard.Board{
		Period:       &info,
		Scope:        q.Scope.String(),
		Entries:      window.Entries,
		Participants: window.Participants,
	}
	if window.Viewer != nil {
		viewer := *window.Viewer
		rank := viewer.Rank
		board.UserEntry = &viewer
		board.UserRank = &rank
	}
	return board, nil
}
