package postgres

import (
	"context"
	"fmt"

	"github.com/learnloop/learnloop-hub/internal/domain/leaderboard"
)

// ClassRoster reads class membership from the enrollment service's
// class_enrollments table.
type ClassRoster struct {
	conn *Connection
}

var _ leaderboard.ClassRoster = (*ClassRoster)(nil)

// NewClassRoster creates a new ClassRoster.
func NewClassRoster(conn *Connection) *ClassRoster {
	return &ClassRoster{conn: conn}
}

// StudentIDs implements leaderboard.ClassRoster.
func (r *ClassRoster) StudentIDs(ctx context.Context, classID string) ([]string, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id FROM class_enrollments
		WHERE class_id = $1
		ORDER BY user_id
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to query class roster: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan roster row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
