package domain

import (
	"errors"
	"testing"
	"time"
)

func TestRoomPhase(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := &Room{StartTime: start, DurationMinutes: 30}

	cases := []struct {
		now  time.Time
		want RoomPhase
	}{
		{start.Add(-time.Second), PhaseScheduled},
		{start, PhaseRunning},
		{start.Add(30 * time.Minute), PhaseRunning},
		{start.Add(30*time.Minute + time.Nanosecond), PhaseEnded},
	}
	for _, c := range cases {
		if got := r.Phase(c.now); got != c.want {
			t.Fatalf("Phase(%v) = %s, want %s", c.now, got, c.want)
		}
	}
	if !r.EndTime().Equal(start.Add(30 * time.Minute)) {
		t.Fatalf("unexpected end time %v", r.EndTime())
	}
}

func TestRoomValidate(t *testing.T) {
	now := time.Now()
	ok := &Room{
		Domain:          "DSA",
		MaxMembers:      10,
		DurationMinutes: 5,
		StartTime:       now.Add(time.Minute),
		Questions:       []Question{{Text: "1+1?", Options: []string{"1", "2", "3", "4"}, CorrectIndex: 1}},
	}
	if err := ok.Validate(now); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	bad := *ok
	bad.StartTime = now.Add(-time.Minute)
	if err := bad.Validate(now); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs for past start, got %v", err)
	}

	bad = *ok
	bad.Questions = []Question{{Text: "x", Options: []string{"a", "b"}, CorrectIndex: 0}}
	if err := bad.Validate(now); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs for 2-option question, got %v", err)
	}
}

func TestOpponent(t *testing.T) {
	m := &MatchSession{Participants: map[string]*Participant{
		"a": {UserID: "a"},
		"b": {UserID: "b"},
	}}
	if p := m.Opponent("a"); p == nil || p.UserID != "b" {
		t.Fatalf("expected b as opponent of a, got %+v", p)
	}
	if p := m.Opponent("c"); p != nil {
		t.Fatalf("expected nil opponent for outsider, got %+v", p)
	}
}

func TestClassify(t *testing.T) {
	if code, _ := Classify(ErrNotFound); code != CodeNotFound {
		t.Fatalf("NotFound -> %s", code)
	}
	code, retry := Classify(Unavailable(errors.New("redis down")))
	if code != CodeUnavailable || !retry {
		t.Fatalf("Unavailable -> %s retry=%v", code, retry)
	}
}
