package leaderboard

import (
	"context"
	"fmt"

	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// READ PORTS
// ══════════════════════════════════════════════════════════════════════════════

// WindowQuery asks for one ranked page over a period.
type WindowQuery struct {
	Period Period
	Scope  Scope

	// UserIDs restricts the population for class scope. Ignored for global
	// scope.
	UserIDs []string

	Limit    int
	ViewerID string
}

// CacheKey identifies the query result. UserIDs are not part of it: a class
// window is keyed by class id.
func (q WindowQuery) CacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%d:%s",
		q.Period.Type, timeutil.FormatDate(q.Period.Start), q.Scope, q.Limit, q.ViewerID)
}

// WindowReader ranks XP earned inside a period. The ranking, the page and the
// viewer's own row come from one read; callers never scan the population.
type WindowReader interface {
	ReadLeaderboardWindow(ctx context.Context, q WindowQuery) (*Window, error)
}

// ClassRoster resolves class membership. It is owned by the enrollment
// service.
type ClassRoster interface {
	StudentIDs(ctx context.Context, classID string) ([]string, error)
}
