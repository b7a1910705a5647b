package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/retry"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GAMIFICATION STORE IMPLEMENTATION
// Same-user writes serialize on the profile row (SELECT ... FOR UPDATE inside
// WithinTx). Idempotency keys are unique indexes written with ON CONFLICT DO
// NOTHING, so a duplicate is a result rather than an error.
// ══════════════════════════════════════════════════════════════════════════════

// GamificationStore implements progress.Store for PostgreSQL.
type GamificationStore struct {
	conn *Connection
	q    Querier
	inTx bool
}

var _ progress.Store = (*GamificationStore)(nil)

// NewGamificationStore creates a new GamificationStore.
func NewGamificationStore(conn *Connection) *GamificationStore {
	return &GamificationStore{conn: conn, q: conn}
}

const profileColumns = `
	user_id, total_xp, current_level, current_streak, longest_streak,
	last_activity_date, quizzes_today, daily_goal, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// Transactions
// ─────────────────────────────────────────────────────────────────────────────

// WithinTx implements progress.Store. Serialization failures and deadlocks
// come back wrapped as retry.Retryable.
func (s *GamificationStore) WithinTx(ctx context.Context, fn func(tx progress.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(&GamificationStore{conn: s.conn, q: tx, inTx: true})
	})
	if err != nil && IsSerializationFailure(err) {
		return retry.Retryable(err)
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Profiles
// ─────────────────────────────────────────────────────────────────────────────

// EnsureProfile implements progress.Store. Inside a transaction the profile
// row stays locked until commit.
func (s *GamificationStore) EnsureProfile(ctx context.Context, userID string, dailyGoal int) (*progress.Profile, error) {
	if progress.ValidateDailyGoal(dailyGoal) != nil {
		dailyGoal = progress.DefaultDailyGoal
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO gamification_profiles (user_id, daily_goal)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, dailyGoal)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return s.loadProfile(ctx, userID, s.inTx)
}

// GetProfile implements progress.Store.
func (s *GamificationStore) GetProfile(ctx context.Context, userID string) (*progress.Profile, error) {
	return s.loadProfile(ctx, userID, false)
}

func (s *GamificationStore) loadProfile(ctx context.Context, userID string, forUpdate bool) (*progress.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM gamification_profiles WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	p, err := scanProfile(s.q.QueryRow(ctx, query, userID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

func scanProfile(row pgx.Row) (*progress.Profile, error) {
	var (
		p       progress.Profile
		totalXP int64
		level   int
	)
	err := row.Scan(
		&p.UserID,
		&totalXP,
		&level,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.LastActivityDate,
		&p.QuizzesToday,
		&p.DailyGoal,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.TotalXP = shared.XP(totalXP)
	p.CurrentLevel = shared.Level(level)
	if p.LastActivityDate != nil {
		d := timeutil.StartOfDay(*p.LastActivityDate)
		p.LastActivityDate = &d
	}
	return &p, nil
}

// IncrementXP implements progress.Store.
func (s *GamificationStore) IncrementXP(ctx context.Context, userID string, amount shared.XP) (shared.XP, shared.XP, error) {
	var after int64
	err := s.q.QueryRow(ctx, `
		UPDATE gamification_profiles
		SET total_xp = total_xp + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING total_xp
	`, userID, amount.Int64()).Scan(&after)
	if err != nil {
		if IsNoRows(err) {
			return 0, 0, shared.ErrProfileNotFound
		}
		return 0, 0, fmt.Errorf("failed to increment xp: %w", err)
	}
	return shared.XP(after) - amount, shared.XP(after), nil
}

// SetLevel implements progress.Store.
func (s *GamificationStore) SetLevel(ctx context.Context, userID string, level shared.Level) error {
	return s.updateProfile(ctx, `UPDATE gamification_profiles SET current_level = $2 WHERE user_id = $1`, userID, level.Int())
}

// SetDailyGoal implements progress.Store.
func (s *GamificationStore) SetDailyGoal(ctx context.Context, userID string, goal int) error {
	return s.updateProfile(ctx, `UPDATE gamification_profiles SET daily_goal = $2, updated_at = NOW() WHERE user_id = $1`, userID, goal)
}

func (s *GamificationStore) updateProfile(ctx context.Context, query, userID string, arg any) error {
	tag, err := s.q.Exec(ctx, query, userID, arg)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProfileNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Grants
// ─────────────────────────────────────────────────────────────────────────────

const grantColumns = `
	id, user_id, amount, reason, source_ref, created_at,
	balance_after, level_after, leveled_up`

// InsertGrantIfAbsent implements progress.Store.
func (s *GamificationStore) InsertGrantIfAbsent(ctx context.Context, g *progress.Grant) (*progress.Grant, bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO xp_grants (id, user_id, amount, reason, source_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, reason, source_ref) WHERE source_ref IS NOT NULL DO NOTHING
	`, g.ID, g.UserID, g.Amount.Int64(), string(g.Reason), g.SourceRef, g.CreatedAt)
	if err != nil {
		// The idempotency key is handled by ON CONFLICT; only the primary
		// key can still collide.
		if IsUniqueViolation(err) {
			return nil, false, fmt.Errorf("%w: %v", shared.ErrDuplicateGrantID, err)
		}
		return nil, false, fmt.Errorf("failed to insert grant: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return g, true, nil
	}

	existing, err := scanGrant(s.q.QueryRow(ctx, `
		SELECT `+grantColumns+` FROM xp_grants
		WHERE user_id = $1 AND reason = $2 AND source_ref = $3
	`, g.UserID, string(g.Reason), g.SourceRef))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing grant: %w", err)
	}
	return existing, false, nil
}

// FindGrants implements progress.Store.
func (s *GamificationStore) FindGrants(ctx context.Context, userID, sourceRef string, reasons []progress.Reason) ([]progress.Grant, error) {
	names := make([]string, len(reasons))
	for i, r := range reasons {
		names[i] = string(r)
	}

	rows, err := s.q.Query(ctx, `
		SELECT `+grantColumns+` FROM xp_grants
		WHERE user_id = $1 AND source_ref = $2 AND reason = ANY($3::text[])
		ORDER BY array_position($3::text[], reason::text)
	`, userID, sourceRef, names)
	if err != nil {
		return nil, fmt.Errorf("failed to find grants: %w", err)
	}
	defer rows.Close()

	var grants []progress.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

// RecordGrantOutcome implements progress.Store.
func (s *GamificationStore) RecordGrantOutcome(ctx context.Context, g *progress.Grant) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE xp_grants SET balance_after = $2, level_after = $3, leveled_up = $4
		WHERE id = $1
	`, g.ID, g.BalanceAfter.Int64(), g.LevelAfter.Int(), g.LeveledUp)
	if err != nil {
		return fmt.Errorf("failed to record grant outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("progress", "RecordGrantOutcome", shared.ErrNotFound, "grant not found")
	}
	return nil
}

// ListGrants implements progress.Store.
func (s *GamificationStore) ListGrants(ctx context.Context, userID string, limit int) ([]progress.Grant, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+grantColumns+` FROM xp_grants
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	grants := make([]progress.Grant, 0, limit)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

func scanGrant(row pgx.Row) (*progress.Grant, error) {
	var (
		g       progress.Grant
		amount  int64
		reason  string
		balance int64
		level   int
	)
	err := row.Scan(
		&g.ID,
		&g.UserID,
		&amount,
		&reason,
		&g.SourceRef,
		&g.CreatedAt,
		&balance,
		&level,
		&g.LeveledUp,
	)
	if err != nil {
		return nil, err
	}
	g.Amount = shared.XP(amount)
	g.Reason = progress.Reason(reason)
	g.BalanceAfter = shared.XP(balance)
	g.LevelAfter = shared.Level(level)
	g.CreatedAt = g.CreatedAt.UTC()
	return &g, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Streaks
// ─────────────────────────────────────────────────────────────────────────────

// UpsertStreak implements progress.Store. The profile row lock taken first
// serializes concurrent completions of the same user, so the attempt lookup
// below cannot race.
func (s *GamificationStore) UpsertStreak(
	ctx context.Context,
	userID, attemptID string,
	day time.Time,
	transition progress.ActivityTransition,
) (progress.ActivityOutcome, bool, error) {
	var (
		outcome progress.ActivityOutcome
		applied bool
	)
	err := s.WithinTx(ctx, func(txs progress.Store) error {
		tx := txs.(*GamificationStore)

		p, err := tx.loadProfile(ctx, userID, true)
		if err != nil {
			return err
		}

		prior, found, err := tx.findActivity(ctx, userID, attemptID)
		if err != nil {
			return err
		}
		if found {
			outcome = prior
			return nil
		}

		next, o := transition(p.ActivityState(), day)
		_, err = tx.q.Exec(ctx, `
			UPDATE gamification_profiles SET
				current_streak = $2,
				longest_streak = $3,
				last_activity_date = $4,
				quizzes_today = $5,
				updated_at = NOW()
			WHERE user_id = $1
		`, userID, next.CurrentStreak, next.LongestStreak, next.LastActivityDate, next.QuizzesToday)
		if err != nil {
			return fmt.Errorf("failed to update streak: %w", err)
		}

		_, err = tx.q.Exec(ctx, `
			INSERT INTO quiz_activity (
				user_id, attempt_id, activity_date, current_streak, longest_streak,
				streak_maintained, first_today, quizzes_today, daily_goal
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, userID, attemptID, o.Day,
			o.Streak.NewStreak, o.Streak.LongestStreak,
			o.Streak.Maintained, o.Streak.FirstToday,
			o.QuizzesToday, o.DailyGoal,
		)
		if err != nil {
			return fmt.Errorf("failed to record quiz activity: %w", err)
		}

		outcome, applied = o, true
		return nil
	})
	if err != nil {
		return progress.ActivityOutcome{}, false, err
	}
	return outcome, applied, nil
}

func (s *GamificationStore) findActivity(ctx context.Context, userID, attemptID string) (progress.ActivityOutcome, bool, error) {
	var o progress.ActivityOutcome
	err := s.q.QueryRow(ctx, `
		SELECT activity_date, current_streak, longest_streak, streak_maintained,
			   first_today, quizzes_today, daily_goal
		FROM quiz_activity
		WHERE user_id = $1 AND attempt_id = $2
	`, userID, attemptID).Scan(
		&o.Day,
		&o.Streak.NewStreak,
		&o.Streak.LongestStreak,
		&o.Streak.Maintained,
		&o.Streak.FirstToday,
		&o.QuizzesToday,
		&o.DailyGoal,
	)
	if err != nil {
		if IsNoRows(err) {
			return progress.ActivityOutcome{}, false, nil
		}
		return progress.ActivityOutcome{}, false, fmt.Errorf("failed to load quiz activity: %w", err)
	}
	o.Day = timeutil.StartOfDay(o.Day)
	return o, true, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Achievements and stats
// ─────────────────────────────────────────────────────────────────────────────

// InsertAchievementIfAbsent implements progress.Store.
func (s *GamificationStore) InsertAchievementIfAbsent(ctx context.Context, e progress.EarnedAchievement) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO user_achievements (id, user_id, achievement_id, earned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, e.ID, e.UserID, e.AchievementID, e.EarnedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListAchievements implements progress.Store.
func (s *GamificationStore) ListAchievements(ctx context.Context, userID string) ([]progress.EarnedAchievement, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, achievement_id, earned_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY earned_at, achievement_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var earned []progress.EarnedAchievement
	for rows.Next() {
		var e progress.EarnedAchievement
		if err := rows.Scan(&e.ID, &e.UserID, &e.AchievementID, &e.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		e.EarnedAt = e.EarnedAt.UTC()
		earned = append(earned, e)
	}
	return earned, rows.Err()
}

// GetStats implements progress.Store.
func (s *GamificationStore) GetStats(ctx context.Context, userID string) (*progress.Stats, error) {
	var (
		stats   = progress.Stats{UserID: userID}
		totalXP int64
		level   int
	)
	err := s.q.QueryRow(ctx, `
		SELECT p.total_xp, p.current_level, p.current_streak, p.longest_streak,
			COUNT(g.id) FILTER (WHERE g.reason = 'quiz_complete'),
			COUNT(g.id) FILTER (WHERE g.reason = 'perfect_score'),
			COUNT(g.id) FILTER (WHERE g.reason = 'daily_goal')
		FROM gamification_profiles p
		LEFT JOIN xp_grants g ON g.user_id = p.user_id
		WHERE p.user_id = $1
		GROUP BY p.user_id
	`, userID).Scan(
		&totalXP,
		&level,
		&stats.CurrentStreak,
		&stats.LongestStreak,
		&stats.QuizzesCompleted,
		&stats.PerfectScores,
		&stats.DailyGoalsMet,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			stats.Level = shared.MinLevel
			return &stats, nil
		}
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	stats.TotalXP = shared.XP(totalXP)
	stats.Level = shared.Level(level)
	return &stats, nil
}
