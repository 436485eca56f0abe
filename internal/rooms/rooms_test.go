package rooms

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/campus-quiz-core/internal/domain"
	"github.com/redis/go-redis/v9"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	r := &domain.Room{ID: "r1", Domain: "DSA", MaxMembers: 2, DurationMinutes: 5, StartTime: time.Now().Add(time.Minute)}

	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, r); !errors.Is(err, ErrDuplicateRoom) {
		t.Fatalf("expected ErrDuplicateRoom, got %v", err)
	}
	got, err := repo.Get(ctx, "r1")
	if err != nil || got == nil || got.Domain != "DSA" {
		t.Fatalf("Get: %+v %v", got, err)
	}
	if missing, _ := repo.Get(ctx, "nope"); missing != nil {
		t.Fatalf("expected nil for unknown room")
	}
}

func TestMembersCap(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	m := NewMembers(rdb)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	for _, u := range []string{"u1", "u2"} {
		ok, err := m.Admit(ctx, "r1", u, 2, exp)
		if err != nil || !ok {
			t.Fatalf("Admit %s: ok=%v err=%v", u, ok, err)
		}
	}
	if ok, _ := m.Admit(ctx, "r1", "u3", 2, exp); ok {
		t.Fatalf("third member should be rejected")
	}
	if ok, _ := m.Admit(ctx, "r1", "u1", 2, exp); !ok {
		t.Fatalf("existing member should be re-admitted")
	}
	if n, _ := m.Count(ctx, "r1"); n != 2 {
		t.Fatalf("expected 2 members, got %d", n)
	}
	if in, err := m.IsMember(ctx, "r1", "u1"); err != nil || !in {
		t.Fatalf("u1 should be a member: %v %v", in, err)
	}
	if in, _ := m.IsMember(ctx, "r1", "u3"); in {
		t.Fatalf("rejected user must not be a member")
	}
}
