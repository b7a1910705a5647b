package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return NewMigratorWithMigrations(conn, GetMigrations())
}

// NewMigratorWithMigrations creates a migrator with custom migrations.
func NewMigratorWithMigrations(conn *Connection, migrations []Migration) *Migrator {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Migrator{
		conn:       conn,
		migrations: sorted,
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns applied versions with their timestamps.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var (
			version   int
			appliedAt time.Time
		)
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations and returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return count, fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx,
				fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		count++
	}

	return count, nil
}

// Rollback rolls back the last applied migration. It returns the version
// rolled back, or 0 when nothing was applied.
func (m *Migrator) Rollback(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	var last int
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return 0, nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return 0, fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	err = m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
	if err != nil {
		return 0, err
	}
	return last, nil
}

// Status returns every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_gamification_profiles",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_xp_grants",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_quiz_activity",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_user_achievements",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
		{
			Version: 5,
			Name:    "create_class_enrollments",
			UpSQL:   migration005Up,
			DownSQL: migration005Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: GAMIFICATION PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS gamification_profiles (
    user_id VARCHAR(128) PRIMARY KEY,
    total_xp BIGINT NOT NULL DEFAULT 0,
    current_level INTEGER NOT NULL DEFAULT 1,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    quizzes_today INTEGER NOT NULL DEFAULT 0,
    daily_goal INTEGER NOT NULL DEFAULT 3,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_level CHECK (current_level BETWEEN 1 AND 100),
    CONSTRAINT valid_streaks CHECK (current_streak >= 0 AND longest_streak >= current_streak),
    CONSTRAINT valid_daily_goal CHECK (daily_goal BETWEEN 1 AND 20)
);
`

const migration001Down = `
DROP TABLE IF EXISTS gamification_profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: XP GRANTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS xp_grants (
    id UUID PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL REFERENCES gamification_profiles(user_id) ON DELETE CASCADE,
    amount BIGINT NOT NULL,
    reason VARCHAR(32) NOT NULL,
    source_ref VARCHAR(128),
    balance_after BIGINT NOT NULL DEFAULT 0,
    level_after INTEGER NOT NULL DEFAULT 1,
    leveled_up BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_amount CHECK (amount >= 0),
    CONSTRAINT valid_reason CHECK (reason IN (
        'quiz_complete', 'score_bonus', 'perfect_score',
        'streak_bonus', 'daily_goal', 'achievement'
    ))
);

-- Idempotency key. Grants without a source ref are never deduplicated.
CREATE UNIQUE INDEX IF NOT EXISTS uq_xp_grants_key
    ON xp_grants(user_id, reason, source_ref)
    WHERE source_ref IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_xp_grants_user_created ON xp_grants(user_id, created_at DESC);

-- Leaderboard windows scan one period at a time.
CREATE INDEX IF NOT EXISTS idx_xp_grants_created ON xp_grants(created_at);
`

const migration002Down = `
DROP TABLE IF EXISTS xp_grants;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: QUIZ ACTIVITY
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS quiz_activity (
    user_id VARCHAR(128) NOT NULL REFERENCES gamification_profiles(user_id) ON DELETE CASCADE,
    attempt_id VARCHAR(128) NOT NULL,
    activity_date DATE NOT NULL,
    current_streak INTEGER NOT NULL,
    longest_streak INTEGER NOT NULL,
    streak_maintained BOOLEAN NOT NULL,
    first_today BOOLEAN NOT NULL,
    quizzes_today INTEGER NOT NULL,
    daily_goal INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, attempt_id)
);

CREATE INDEX IF NOT EXISTS idx_quiz_activity_user_date ON quiz_activity(user_id, activity_date);
`

const migration003Down = `
DROP TABLE IF EXISTS quiz_activity;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: USER ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS user_achievements (
    id UUID PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL REFERENCES gamification_profiles(user_id) ON DELETE CASCADE,
    achievement_id VARCHAR(64) NOT NULL,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_user_achievement UNIQUE (user_id, achievement_id)
);
`

const migration004Down = `
DROP TABLE IF EXISTS user_achievements;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: CLASS ENROLLMENTS
// Owned by the enrollment service; created here so the class leaderboard can
// join against it in standalone deployments.
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
CREATE TABLE IF NOT EXISTS class_enrollments (
    class_id VARCHAR(128) NOT NULL,
    user_id VARCHAR(128) NOT NULL,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (class_id, user_id)
);
`

const migration005Down = `
DROP TABLE IF EXISTS class_enrollments;
`
