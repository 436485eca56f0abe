package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/park285/campus-quiz-core/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS quiz_submissions (
	id              BIGSERIAL PRIMARY KEY,
	scope_id        TEXT        NOT NULL,
	user_id         TEXT        NOT NULL,
	score           INTEGER     NOT NULL,
	total_questions INTEGER     NOT NULL,
	answers         JSONB       NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_quiz_submissions_scope_user ON quiz_submissions (scope_id, user_id);
CREATE INDEX IF NOT EXISTS ix_quiz_submissions_rank ON quiz_submissions (scope_id, score DESC, created_at ASC);
`

type postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) Ledger {
	return &postgres{db: db}
}

// Migrate creates the submissions table and its uniqueness constraint.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate quiz_submissions: %w", err)
	}
	return nil
}

func (p *postgres) Insert(ctx context.Context, s *domain.Submission) (bool, error) {
	if s == nil || s.ScopeID == "" || s.UserID == "" {
		return false, domain.ErrInvalidArgs
	}
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const query = `
		INSERT INTO quiz_submissions (scope_id, user_id, score, total_questions, answers, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (scope_id, user_id) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = p.db.QueryRowContext(ctx, query,
		s.ScopeID, s.UserID, s.Score, s.TotalQuestions, answers, createdAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert submission: %w", err)
	}
	s.ID = id.Int64
	s.CreatedAt = createdAt
	return true, nil
}

func (p *postgres) Get(ctx context.Context, scopeID, userID string) (*domain.Submission, error) {
	const query = `
		SELECT id, scope_id, user_id, score, total_questions, answers, created_at
		FROM quiz_submissions
		WHERE scope_id = $1 AND user_id = $2`

	var (
		s   domain.Submission
		raw []byte
	)
	err := p.db.QueryRowContext(ctx, query, scopeID, userID).
		Scan(&s.ID, &s.ScopeID, &s.UserID, &s.Score, &s.TotalQuestions, &raw, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	return &s, nil
}

func (p *postgres) Ranked(ctx context.Context, scopeID string, limit int) ([]domain.RankedEntry, error) {
	const query = `
		SELECT user_id, score, total_questions, created_at
		FROM quiz_submissions
		WHERE scope_id = $1
		ORDER BY score DESC, created_at ASC, id ASC
		LIMIT $2`

	rows, err := p.db.QueryContext(ctx, query, scopeID, rankLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("rank submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.RankedEntry
	for rows.Next() {
		var e domain.RankedEntry
		if err := rows.Scan(&e.UserID, &e.Score, &e.TotalQuestions, &e.SubmittedAt); err != nil {
			return nil, err
		}
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, rows.Err()
}
