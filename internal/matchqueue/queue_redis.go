package matchqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/park285/campus-quiz-core/internal/domain"
	"github.com/redis/go-redis/v9"
)

// pushEntry drops any older position of the user before appending, so a topic
// holds at most one live entry per user.
var pushEntry = redis.NewScript(`
redis.call('LREM', KEYS[1], 0, ARGV[1])
redis.call('RPUSH', KEYS[1], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
return redis.call('LLEN', KEYS[1])
`)

// popEntry returns the oldest entry payload, skipping ids whose payload vanished.
var popEntry = redis.NewScript(`
while true do
  local id = redis.call('LPOP', KEYS[1])
  if not id then
    return false
  end
  local raw = redis.call('HGET', KEYS[2], id)
  if raw then
    redis.call('HDEL', KEYS[2], id)
    return raw
  end
end
`)

var removeEntry = redis.NewScript(`
local n = redis.call('LREM', KEYS[1], 0, ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
return n
`)

// Queue is a per-topic FIFO of users waiting for a 1-on-1 opponent.
type Queue struct{ rdb *redis.Client }

func New(rdb *redis.Client) *Queue { return &Queue{rdb: rdb} }

func normTopic(topic string) string { return strings.ToLower(strings.TrimSpace(topic)) }

func keyList(topic string) string    { return "quiz:queue:" + normTopic(topic) }
func keyEntries(topic string) string { return keyList(topic) + ":entries" }

func (q *Queue) keys(topic string) []string { return []string{keyList(topic), keyEntries(topic)} }

// Push enqueues e at the tail, replacing an older entry for the same user.
func (q *Queue) Push(ctx context.Context, topic string, e domain.QueueEntry) error {
	if normTopic(topic) == "" || strings.TrimSpace(e.UserID) == "" {
		return domain.ErrInvalidArgs
	}
	raw, err := json.Marshal(&e)
	if err != nil {
		return err
	}
	return pushEntry.Run(ctx, q.rdb, q.keys(topic), e.UserID, raw).Err()
}

// Pop removes and returns the oldest entry; nil, nil when the queue is empty.
func (q *Queue) Pop(ctx context.Context, topic string) (*domain.QueueEntry, error) {
	raw, err := popEntry.Run(ctx, q.rdb, q.keys(topic)).Text()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e domain.QueueEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("decode queue entry: %w", err)
	}
	return &e, nil
}

// Remove drops a user's entry. Reports whether the user was queued.
func (q *Queue) Remove(ctx context.Context, topic, userID string) (bool, error) {
	n, err := removeEntry.Run(ctx, q.rdb, q.keys(topic), userID).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q *Queue) Len(ctx context.Context, topic string) (int64, error) {
	return q.rdb.LLen(ctx, keyList(topic)).Result()
}
