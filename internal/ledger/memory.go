package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/campus-quiz-core/internal/domain"
)

// memory is the in-process ledger used when no DATABASE_URL is configured.
type memory struct {
	mu      sync.RWMutex
	nextID  int64
	byKey   map[string]*domain.Submission
	byScope map[string][]*domain.Submission
}

func NewMemory() Ledger {
	return &memory{
		byKey:   make(map[string]*domain.Submission),
		byScope: make(map[string][]*domain.Submission),
	}
}

func (m *memory) Insert(_ context.Context, s *domain.Submission) (bool, error) {
	if s == nil || strings.TrimSpace(s.ScopeID) == "" || strings.TrimSpace(s.UserID) == "" {
		return false, domain.ErrInvalidArgs
	}
	key := m.key(s.ScopeID, s.UserID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byKey[key]; exists {
		return false, nil
	}
	m.nextID++
	cp := *s
	cp.ID = m.nextID
	cp.Answers = append([]int(nil), s.Answers...)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.byKey[key] = &cp
	m.byScope[s.ScopeID] = append(m.byScope[s.ScopeID], &cp)
	s.ID = cp.ID
	return true, nil
}

func (m *memory) Get(_ context.Context, scopeID, userID string) (*domain.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byKey[m.key(scopeID, userID)]
	if !ok {
		return nil, nil
	}
	cp := *s
	cp.Answers = append([]int(nil), s.Answers...)
	return &cp, nil
}

func (m *memory) Ranked(_ context.Context, scopeID string, limit int) ([]domain.RankedEntry, error) {
	m.mu.RLock()
	items := append([]*domain.Submission(nil), m.byScope[scopeID]...)
	m.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	limit = rankLimit(limit)
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]domain.RankedEntry, 0, len(items))
	for i, s := range items {
		out = append(out, domain.RankedEntry{
			Rank:           i + 1,
			UserID:         s.UserID,
			Score:          s.Score,
			TotalQuestions: s.TotalQuestions,
			SubmittedAt:    s.CreatedAt,
		})
	}
	return out, nil
}

func (m *memory) key(scopeID, userID string) string {
	return strings.TrimSpace(scopeID) + "|" + strings.TrimSpace(userID)
}
