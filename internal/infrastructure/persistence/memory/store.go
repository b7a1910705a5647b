// Package memory implements the gamification store ports in process memory.
// It honours the same uniqueness and atomicity contract as the Postgres store
// and backs tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learnloop/learnloop-hub/internal/domain/leaderboard"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

type grantKey struct {
	userID    string
	reason    progress.Reason
	sourceRef string
}

type pairKey struct {
	userID string
	other  string
}

type state struct {
	profiles     map[string]progress.Profile
	grants       []progress.Grant
	grantIndex   map[grantKey]int
	activities   map[pairKey]progress.ActivityOutcome
	achievements map[pairKey]progress.EarnedAchievement
}

func newState() *state {
	return &state{
		profiles:     make(map[string]progress.Profile),
		grantIndex:   make(map[grantKey]int),
		activities:   make(map[pairKey]progress.ActivityOutcome),
		achievements: make(map[pairKey]progress.EarnedAchievement),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	c.grants = append([]progress.Grant(nil), s.grants...)
	for k, v := range s.grantIndex {
		c.grantIndex[k] = v
	}
	for k, v := range s.activities {
		c.activities[k] = v
	}
	for k, v := range s.achievements {
		c.achievements[k] = v
	}
	return c
}

type core struct {
	mu    sync.Mutex
	st    *state
	clock timeutil.Clock
}

// Store is an in-memory progress.Store and leaderboard.WindowReader.
// A single mutex serializes all access; WithinTx snapshots state and restores
// it when fn fails.
type Store struct {
	c    *core
	inTx bool
}

var (
	_ progress.Store           = (*Store)(nil)
	_ leaderboard.WindowReader = (*Store)(nil)
)

// NewStore creates an empty store. clock stamps profile timestamps.
func NewStore(clock timeutil.Clock) *Store {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Store{c: &core{st: newState(), clock: clock}}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.c.mu.Lock()
	return s.c.mu.Unlock
}

func (s *Store) now() time.Time {
	return s.c.clock.Now().UTC()
}

// WithinTx implements progress.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(tx progress.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	snapshot := s.c.st.clone()
	if err := fn(&Store{c: s.c, inTx: true}); err != nil {
		s.c.st = snapshot
		return err
	}
	return nil
}

// EnsureProfile implements progress.Store.
func (s *Store) EnsureProfile(_ context.Context, userID string, dailyGoal int) (*progress.Profile, error) {
	defer s.lock()()

	p, ok := s.c.st.profiles[userID]
	if !ok {
		p = *progress.NewProfile(userID, dailyGoal, s.now())
		s.c.st.profiles[userID] = p
	}
	return &p, nil
}

// GetProfile implements progress.Store.
func (s *Store) GetProfile(_ context.Context, userID string) (*progress.Profile, error) {
	defer s.lock()()

	p, ok := s.c.st.profiles[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return &p, nil
}

// InsertGrantIfAbsent implements progress.Store.
func (s *Store) InsertGrantIfAbsent(_ context.Context, grant *progress.Grant) (*progress.Grant, bool, error) {
	defer s.lock()()

	st := s.c.st
	var key *grantKey
	if grant.SourceRef != nil {
		key = &grantKey{userID: grant.UserID, reason: grant.Reason, sourceRef: *grant.SourceRef}
		if idx, ok := st.grantIndex[*key]; ok {
			existing := st.grants[idx]
			return &existing, false, nil
		}
	}
	for i := range st.grants {
		if st.grants[i].ID == grant.ID {
			return nil, false, shared.ErrDuplicateGrantID
		}
	}
	if key != nil {
		st.grantIndex[*key] = len(st.grants)
	}
	st.grants = append(st.grants, *grant)
	return grant, true, nil
}

// FindGrants implements progress.Store.
func (s *Store) FindGrants(_ context.Context, userID, sourceRef string, reasons []progress.Reason) ([]progress.Grant, error) {
	defer s.lock()()

	var out []progress.Grant
	for _, reason := range reasons {
		if idx, ok := s.c.st.grantIndex[grantKey{userID: userID, reason: reason, sourceRef: sourceRef}]; ok {
			out = append(out, s.c.st.grants[idx])
		}
	}
	return out, nil
}

// IncrementXP implements progress.Store.
func (s *Store) IncrementXP(_ context.Context, userID string, amount shared.XP) (shared.XP, shared.XP, error) {
	defer s.lock()()

	p, ok := s.c.st.profiles[userID]
	if !ok {
		return 0, 0, shared.ErrProfileNotFound
	}
	before := p.TotalXP
	p.TotalXP += amount
	p.UpdatedAt = s.now()
	s.c.st.profiles[userID] = p
	return before, p.TotalXP, nil
}

// SetLevel implements progress.Store.
func (s *Store) SetLevel(_ context.Context, userID string, level shared.Level) error {
	defer s.lock()()

	p, ok := s.c.st.profiles[userID]
	if !ok {
		return shared.ErrProfileNotFound
	}
	p.CurrentLevel = level
	s.c.st.profiles[userID] = p
	return nil
}

// RecordGrantOutcome implements progress.Store.
func (s *Store) RecordGrantOutcome(_ context.Context, grant *progress.Grant) error {
	defer s.lock()()

	st := s.c.st
	for i := len(st.grants) - 1; i >= 0; i-- {
		if st.grants[i].ID == grant.ID {
			st.grants[i].BalanceAfter = grant.BalanceAfter
			st.grants[i].LevelAfter = grant.LevelAfter
			st.grants[i].LeveledUp = grant.LeveledUp
			return nil
		}
	}
	return shared.NewDomainError("progress", "RecordGrantOutcome", shared.ErrNotFound, "grant not found")
}

// UpsertStreak implements progress.Store.
func (s *Store) UpsertStreak(
	_ context.Context,
	userID, attemptID string,
	day time.Time,
	transition progress.ActivityTransition,
) (progress.ActivityOutcome, bool, error) {
	defer s.lock()()

	st := s.c.st
	key := pairKey{userID: userID, other: attemptID}
	if outcome, ok := st.activities[key]; ok {
		return outcome, false, nil
	}

	p, ok := st.profiles[userID]
	if !ok {
		return progress.ActivityOutcome{}, false, shared.ErrProfileNotFound
	}

	next, outcome := transition(p.ActivityState(), day)
	p.ApplyActivity(next, s.now())
	st.profiles[userID] = p
	st.activities[key] = outcome
	return outcome, true, nil
}

// InsertAchievementIfAbsent implements progress.Store.
func (s *Store) InsertAchievementIfAbsent(_ context.Context, earned progress.EarnedAchievement) (bool, error) {
	defer s.lock()()

	key := pairKey{userID: earned.UserID, other: earned.AchievementID}
	if _, ok := s.c.st.achievements[key]; ok {
		return false, nil
	}
	if earned.ID == "" {
		earned.ID = uuid.NewString()
	}
	s.c.st.achievements[key] = earned
	return true, nil
}

// ListAchievements implements progress.Store.
func (s *Store) ListAchievements(_ context.Context, userID string) ([]progress.EarnedAchievement, error) {
	defer s.lock()()

	var out []progress.EarnedAchievement
	for k, v := range s.c.st.achievements {
		if k.userID == userID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].EarnedAt.Before(out[j].EarnedAt)
		}
		return out[i].AchievementID < out[j].AchievementID
	})
	return out, nil
}

// GetStats implements progress.Store.
func (s *Store) GetStats(_ context.Context, userID string) (*progress.Stats, error) {
	defer s.lock()()

	stats := &progress.Stats{UserID: userID, Level: shared.MinLevel}
	if p, ok := s.c.st.profiles[userID]; ok {
		stats.TotalXP = p.TotalXP
		stats.Level = p.CurrentLevel
		stats.CurrentStreak = p.CurrentStreak
		stats.LongestStreak = p.LongestStreak
	}
	for _, g := range s.c.st.grants {
		if g.UserID != userID {
			continue
		}
		switch g.Reason {
		case progress.ReasonQuizComplete:
			stats.QuizzesCompleted++
		case progress.ReasonPerfectScore:
			stats.PerfectScores++
		case progress.ReasonDailyGoal:
			stats.DailyGoalsMet++
		}
	}
	return stats, nil
}

// SetDailyGoal implements progress.Store.
func (s *Store) SetDailyGoal(_ context.Context, userID string, goal int) error {
	defer s.lock()()

	p, ok := s.c.st.profiles[userID]
	if !ok {
		return shared.ErrProfileNotFound
	}
	p.DailyGoal = goal
	p.UpdatedAt = s.now()
	s.c.st.profiles[userID] = p
	return nil
}

// ListGrants implements progress.Store.
func (s *Store) ListGrants(_ context.Context, userID string, limit int) ([]progress.Grant, error) {
	defer s.lock()()

	var out []progress.Grant
	for i := len(s.c.st.grants) - 1; i >= 0; i-- {
		if g := s.c.st.grants[i]; g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ReadLeaderboardWindow implements leaderboard.WindowReader.
func (s *Store) ReadLeaderboardWindow(_ context.Context, q leaderboard.WindowQuery) (*leaderboard.Window, error) {
	defer s.lock()()

	var allowed map[string]struct{}
	if q.Scope.IsClass() {
		allowed = make(map[string]struct{}, len(q.UserIDs))
		for _, id := range q.UserIDs {
			allowed[id] = struct{}{}
		}
	}

	totals := make(map[string]*leaderboard.Total)
	for _, g := range s.c.st.grants {
		if !q.Period.Contains(g.CreatedAt) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[g.UserID]; !ok {
				continue
			}
		}
		t, ok := totals[g.UserID]
		if !ok {
			t = &leaderboard.Total{UserID: g.UserID, FirstEarnedAt: g.CreatedAt}
			totals[g.UserID] = t
		}
		t.XPEarned += g.Amount
		if g.CreatedAt.Before(t.FirstEarnedAt) {
			t.FirstEarnedAt = g.CreatedAt
		}
	}

	list := make([]leaderboard.Total, 0, len(totals))
	for id, t := range totals {
		t.CurrentLevel = shared.MinLevel
		if p, ok := s.c.st.profiles[id]; ok {
			t.CurrentLevel = p.CurrentLevel
		}
		list = append(list, *t)
	}

	return leaderboard.Page(leaderboard.RankTotals(list), q.Limit, q.ViewerID), nil
}

// StaticRoster is a fixed class membership table.
type StaticRoster map[string][]string

// StudentIDs implements leaderboard.ClassRoster.
func (r StaticRoster) StudentIDs(_ context.Context, classID string) ([]string, error) {
	return append([]string(nil), r[classID]...), nil
}
