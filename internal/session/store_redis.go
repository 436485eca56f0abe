package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/park285/campus-quiz-core/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 15 * time.Minute

	fieldMeta   = "meta"
	scorePrefix = "score:"
)

var ErrSessionExists = errors.New("match session already exists")

// ScoreState is the outcome of RecordScore.
type ScoreState int

const (
	ScoreMissing   ScoreState = -1 // session expired or never existed
	ScoreDuplicate ScoreState = 0  // this user already has a score
	ScorePending   ScoreState = 1  // recorded, opponent has not submitted
	ScoreComplete  ScoreState = 2  // recorded, both scores present, session deleted
)

type ScoreResult struct {
	State         ScoreState
	OpponentScore int
}

// recordScore writes the caller's score once and, when the opponent's score is
// already present, deletes the session in the same step. Only the second
// writer ever sees ScoreComplete.
var recordScore = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {-1, 0}
end
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
  return {0, 0}
end
local other = redis.call('HGET', KEYS[1], ARGV[3])
if not other then
  return {1, 0}
end
redis.call('DEL', KEYS[1])
return {2, tonumber(other)}
`)

// Store keeps in-flight match sessions in a Redis hash per match.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) TTL() time.Duration { return s.ttl }

func keyMatch(id string) string  { return "quiz:match:" + strings.TrimSpace(id) }
func scoreField(uid string) string { return scorePrefix + strings.TrimSpace(uid) }

// Create stores a fresh session with null scores and arms its TTL.
func (s *Store) Create(ctx context.Context, m *domain.MatchSession) error {
	if m == nil || strings.TrimSpace(m.ID) == "" {
		return domain.ErrInvalidArgs
	}
	if len(m.Participants) != 2 {
		return fmt.Errorf("%w: match needs exactly 2 participants, got %d", domain.ErrInvalidArgs, len(m.Participants))
	}
	meta := *m
	meta.Participants = make(map[string]*domain.Participant, len(m.Participants))
	for id, p := range m.Participants {
		cp := *p
		cp.Score = nil
		meta.Participants[id] = &cp
	}
	raw, err := json.Marshal(&meta)
	if err != nil {
		return err
	}
	key := keyMatch(m.ID)
	pipe := s.rdb.TxPipeline()
	set := pipe.HSetNX(ctx, key, fieldMeta, raw)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if !set.Val() {
		return ErrSessionExists
	}
	return nil
}

// Load returns nil, nil when the session is gone.
func (s *Store) Load(ctx context.Context, id string) (*domain.MatchSession, error) {
	fields, err := s.rdb.HGetAll(ctx, keyMatch(id)).Result()
	if err != nil {
		return nil, err
	}
	raw, ok := fields[fieldMeta]
	if !ok {
		return nil, nil
	}
	var m domain.MatchSession
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode match %s: %w", id, err)
	}
	for f, v := range fields {
		if !strings.HasPrefix(f, scorePrefix) {
			continue
		}
		p := m.Participants[strings.TrimPrefix(f, scorePrefix)]
		if p == nil {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		p.Score = &n
	}
	return &m, nil
}

// RecordScore sets userID's score if absent and reports whether the match is now complete.
func (s *Store) RecordScore(ctx context.Context, id, userID, opponentID string, score int) (ScoreResult, error) {
	res, err := recordScore.Run(ctx, s.rdb, []string{keyMatch(id)}, scoreField(userID), score, scoreField(opponentID)).Int64Slice()
	if err != nil {
		return ScoreResult{}, err
	}
	if len(res) != 2 {
		return ScoreResult{}, fmt.Errorf("record score: unexpected reply %v", res)
	}
	return ScoreResult{State: ScoreState(res[0]), OpponentScore: int(res[1])}, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, keyMatch(id)).Err()
}
