// Package ledger is the durable record of scored submissions. Every write is an
// atomic insert-if-absent on (scope, user), so a replayed or concurrent submit
// can never be scored twice.
package ledger

import (
	"context"

	"github.com/park285/campus-quiz-core/internal/domain"
)

type Ledger interface {
	// Insert stores s unless a submission for (s.ScopeID, s.UserID) exists.
	// It reports false, nil when the row was already present.
	Insert(ctx context.Context, s *domain.Submission) (bool, error)
	Get(ctx context.Context, scopeID, userID string) (*domain.Submission, error)
	Ranked(ctx context.Context, scopeID string, limit int) ([]domain.RankedEntry, error)
}

const defaultRankLimit = 50

func rankLimit(limit int) int {
	if limit <= 0 {
		return defaultRankLimit
	}
	return limit
}
