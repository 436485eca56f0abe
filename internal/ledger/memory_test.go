package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/campus-quiz-core/internal/domain"
)

func TestInsertIfAbsentKeepsFirst(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	ok, err := l.Insert(ctx, &domain.Submission{ScopeID: "room-1", UserID: "u1", Score: 1, Answers: []int{0, 1}})
	if err != nil || !ok {
		t.Fatalf("first insert: ok=%v err=%v", ok, err)
	}
	ok, err = l.Insert(ctx, &domain.Submission{ScopeID: "room-1", UserID: "u1", Score: 2, Answers: []int{0, 2}})
	if err != nil || ok {
		t.Fatalf("second insert must be rejected: ok=%v err=%v", ok, err)
	}
	s, err := l.Get(ctx, "room-1", "u1")
	if err != nil || s == nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Score != 1 || s.Answers[1] != 1 {
		t.Fatalf("expected first payload to win, got %+v", s)
	}
}

func TestInsertConcurrentSingleWinner(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := l.Insert(ctx, &domain.Submission{ScopeID: "m1", UserID: "u1", Score: i})
			if err != nil {
				t.Errorf("Insert: %v", err)
			}
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestRanked(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, sc := range []int{2, 5, 5, 1} {
		_, _ = l.Insert(ctx, &domain.Submission{
			ScopeID:   "room-1",
			UserID:    fmt.Sprintf("u%d", i),
			Score:     sc,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	_, _ = l.Insert(ctx, &domain.Submission{ScopeID: "room-2", UserID: "other", Score: 9})

	got, err := l.Ranked(ctx, "room-1", 3)
	if err != nil {
		t.Fatalf("Ranked: %v", err)
	}
	want := []string{"u1", "u2", "u0"}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].UserID != w || got[i].Rank != i+1 {
			t.Fatalf("row %d: got %+v, want user %s", i, got[i], w)
		}
	}
}

func TestGetMissing(t *testing.T) {
	s, err := NewMemory().Get(context.Background(), "x", "y")
	if err != nil || s != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", s, err)
	}
}
