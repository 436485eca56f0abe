package rooms

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/park285/campus-quiz-core/internal/domain"
)

var ErrDuplicateRoom = errors.New("room already exists")

// Repository persists rooms. Rooms are never updated or deleted.
type Repository interface {
	Create(ctx context.Context, r *domain.Room) error
	Get(ctx context.Context, id string) (*domain.Room, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS quiz_rooms (
	room_id          TEXT PRIMARY KEY,
	domain           TEXT        NOT NULL,
	host_id          TEXT        NOT NULL DEFAULT '',
	max_members      INTEGER     NOT NULL,
	start_time       TIMESTAMPTZ NOT NULL,
	duration_minutes INTEGER     NOT NULL,
	questions        JSONB       NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate quiz_rooms: %w", err)
	}
	return nil
}

type postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) Repository { return &postgres{db: db} }

func (p *postgres) Create(ctx context.Context, r *domain.Room) error {
	qs, err := json.Marshal(r.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	const query = `
		INSERT INTO quiz_rooms (room_id, domain, host_id, max_members, start_time, duration_minutes, questions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
		ON CONFLICT (room_id) DO NOTHING`
	res, err := p.db.ExecContext(ctx, query,
		r.ID, r.Domain, r.HostID, r.MaxMembers, r.StartTime, r.DurationMinutes, qs, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDuplicateRoom
	}
	return nil
}

func (p *postgres) Get(ctx context.Context, id string) (*domain.Room, error) {
	const query = `
		SELECT room_id, domain, host_id, max_members, start_time, duration_minutes, questions, created_at
		FROM quiz_rooms
		WHERE room_id = $1`
	var (
		r   domain.Room
		raw []byte
	)
	err := p.db.QueryRowContext(ctx, query, id).
		Scan(&r.ID, &r.Domain, &r.HostID, &r.MaxMembers, &r.StartTime, &r.DurationMinutes, &raw, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	if err := json.Unmarshal(raw, &r.Questions); err != nil {
		return nil, fmt.Errorf("decode room questions: %w", err)
	}
	return &r, nil
}

// memory is the development repository used when no database is configured.
type memory struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

func NewMemory() Repository { return &memory{rooms: make(map[string]*domain.Room)} }

func (m *memory) Create(_ context.Context, r *domain.Room) error {
	if r == nil || strings.TrimSpace(r.ID) == "" {
		return domain.ErrInvalidArgs
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[r.ID]; ok {
		return ErrDuplicateRoom
	}
	cp := *r
	cp.Questions = append([]domain.Question(nil), r.Questions...)
	m.rooms[r.ID] = &cp
	return nil
}

func (m *memory) Get(_ context.Context, id string) (*domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	cp.Questions = append([]domain.Question(nil), r.Questions...)
	return &cp, nil
}
