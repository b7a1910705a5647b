package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/leaderboard"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// Rankings are computed from xp_grants on read; nothing is materialized.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.WindowReader.
type LeaderboardRepository struct {
	conn *Connection
}

var _ leaderboard.WindowReader = (*LeaderboardRepository)(nil)

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

// windowQuery ranks every user with XP in [start, end) and returns the top
// $4 rows plus the viewer's row. user_id ties compare bytewise.
const windowQuery = `
	WITH totals AS (
		SELECT g.user_id,
			   SUM(g.amount) AS xp_earned,
			   MIN(g.created_at) AS first_earned_at
		FROM xp_grants g
		WHERE g.created_at >= $1 AND g.created_at < $2
		  AND ($3::text[] IS NULL OR g.user_id = ANY($3::text[]))
		GROUP BY g.user_id
		HAVING SUM(g.amount) > 0
	),
	ranked AS (
		SELECT t.user_id,
			   t.xp_earned,
			   t.first_earned_at,
			   COALESCE(p.current_level, 1) AS current_level,
			   ROW_NUMBER() OVER (
				   ORDER BY t.xp_earned DESC, t.first_earned_at ASC, t.user_id COLLATE "C" ASC
			   ) AS rank,
			   COUNT(*) OVER () AS participants
		FROM totals t
		LEFT JOIN gamification_profiles p ON p.user_id = t.user_id
	)
	SELECT rank, user_id, xp_earned, current_level, first_earned_at, participants
	FROM ranked
	WHERE rank <= $4 OR user_id = $5
	ORDER BY rank
`

// ReadLeaderboardWindow implements leaderboard.WindowReader.
func (r *LeaderboardRepository) ReadLeaderboardWindow(ctx context.Context, q leaderboard.WindowQuery) (*leaderboard.Window, error) {
	var population []string
	if q.Scope.IsClass() {
		population = q.UserIDs
		if population == nil {
			population = []string{}
		}
	}

	rows, err := r.conn.Query(ctx, windowQuery,
		q.Period.Start, q.Period.End, population, q.Limit, q.ViewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard window: %w", err)
	}
	defer rows.Close()

	window := &leaderboard.Window{Entries: []leaderboard.Entry{}}
	for rows.Next() {
		var (
			rank         int64
			e            leaderboard.Entry
			xp           int64
			level        int
			firstEarned  time.Time
			participants int64
		)
		if err := rows.Scan(&rank, &e.UserID, &xp, &level, &firstEarned, &participants); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		e.Rank = shared.Rank(rank)
		e.XPEarned = shared.XP(xp)
		e.CurrentLevel = shared.Level(level)
		e.FirstEarnedAt = firstEarned.UTC()
		window.Participants = int(participants)

		if int(rank) <= q.Limit {
			window.Entries = append(window.Entries, e)
		}
		if q.ViewerID != "" && e.UserID == q.ViewerID {
			viewer := e
			window.Viewer = &viewer
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard window: %w", err)
	}

	return window, nil
}
