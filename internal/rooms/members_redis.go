package rooms

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// admitMember adds a user to the room's member set unless the set is at capacity.
// Users already in the set are always admitted.
var admitMember = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
  return 1
end
if redis.call('SCARD', KEYS[1]) >= tonumber(ARGV[2]) then
  return 0
end
redis.call('SADD', KEYS[1], ARGV[1])
redis.call('PEXPIREAT', KEYS[1], ARGV[3])
return 1
`)

// Members enforces a room's maxMembers across server instances.
type Members struct{ rdb *redis.Client }

func NewMembers(rdb *redis.Client) *Members { return &Members{rdb: rdb} }

func keyMembers(roomID string) string { return "quiz:room:" + strings.TrimSpace(roomID) + ":members" }

// Admit reports whether userID holds (or just took) a seat. The member set
// expires with the room window.
func (m *Members) Admit(ctx context.Context, roomID, userID string, maxMembers int, expireAt time.Time) (bool, error) {
	n, err := admitMember.Run(ctx, m.rdb, []string{keyMembers(roomID)}, userID, maxMembers, expireAt.UnixMilli()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (m *Members) Count(ctx context.Context, roomID string) (int64, error) {
	return m.rdb.SCard(ctx, keyMembers(roomID)).Result()
}

// IsMember reports whether userID was admitted to the room.
func (m *Members) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	return m.rdb.SIsMember(ctx, keyMembers(roomID), userID).Result()
}
