package orchestrator

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/park285/campus-quiz-core/internal/domain"
	"github.com/park285/campus-quiz-core/internal/obslog"
	"github.com/park285/campus-quiz-core/internal/registry/chantest"
	"github.com/park285/campus-quiz-core/pkg/quizdto"
)

func (h *harness) seedRoom(t *testing.T, id string, start time.Time, minutes, maxMembers int, qs ...domain.Question) *domain.Room {
	t.Helper()
	if len(qs) == 0 {
		qs = fourQuestions
	}
	r := &domain.Room{
		ID:              id,
		Domain:          "dsa",
		MaxMembers:      maxMembers,
		StartTime:       start,
		DurationMinutes: minutes,
		Questions:       qs,
		CreatedAt:       time.Now(),
	}
	if err := h.rooms.Create(context.Background(), r); err != nil {
		t.Fatalf("seed room: %v", err)
	}
	return r
}

func TestJoinRoomDeferredAndImmediateBegin(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	start := time.Now().Add(400 * time.Millisecond)
	room := h.seedRoom(t, "room-1", start, 1, 10)

	a := h.connect("ch-a", "alice")
	if err := h.mgr.JoinRoom(ctx, room.ID, "alice", a); err != nil {
		t.Fatalf("JoinRoom alice: %v", err)
	}
	if len(a.OfType(quizdto.TypeBeginQuiz)) != 0 {
		t.Fatalf("begin must wait for start time")
	}
	if h.sched.Pending() != 1 {
		t.Fatalf("expected one pending begin, got %d", h.sched.Pending())
	}

	evA, ok := a.WaitFor(quizdto.TypeBeginQuiz, 3*time.Second)
	if !ok {
		t.Fatalf("alice never received begin_quiz")
	}
	if time.Now().Before(start) {
		t.Fatalf("begin fired before start time")
	}

	b := h.connect("ch-b", "bob")
	if err := h.mgr.JoinRoom(ctx, room.ID, "bob", b); err != nil {
		t.Fatalf("JoinRoom bob: %v", err)
	}
	begins := b.OfType(quizdto.TypeBeginQuiz)
	if len(begins) != 1 {
		t.Fatalf("bob should get begin immediately, got %d", len(begins))
	}

	pa := payload[quizdto.BeginQuiz](t, evA)
	pb := payload[quizdto.BeginQuiz](t, begins[0])
	if !pa.EndTime.Equal(pb.EndTime) || !pa.EndTime.Equal(room.EndTime()) {
		t.Fatalf("end times differ: %v %v", pa.EndTime, pb.EndTime)
	}
	if !reflect.DeepEqual(pa.Questions, pb.Questions) {
		t.Fatalf("question sets differ")
	}
	time.Sleep(100 * time.Millisecond)
	if n := len(a.OfType(quizdto.TypeBeginQuiz)); n != 1 {
		t.Fatalf("alice got %d begins", n)
	}
}

func TestJoinRoomEveryEarlyJoinerGetsOneBegin(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	room := h.seedRoom(t, "room-1", time.Now().Add(300*time.Millisecond), 1, 10)

	users := []string{"u1", "u2", "u3"}
	chans := make([]*chantest.Recorder, len(users))
	for i, u := range users {
		chans[i] = h.connect("ch-"+u, u)
		if err := h.mgr.JoinRoom(ctx, room.ID, u, chans[i]); err != nil {
			t.Fatalf("JoinRoom %s: %v", u, err)
		}
	}
	// rejoin before start replaces the pending begin
	if err := h.mgr.JoinRoom(ctx, room.ID, "u1", chans[0]); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if h.sched.Pending() != len(users) {
		t.Fatalf("expected %d pending, got %d", len(users), h.sched.Pending())
	}

	var end time.Time
	for _, ch := range chans {
		ev, ok := ch.WaitFor(quizdto.TypeBeginQuiz, 3*time.Second)
		if !ok {
			t.Fatalf("%s never received begin", ch.UserID())
		}
		p := payload[quizdto.BeginQuiz](t, ev)
		if end.IsZero() {
			end = p.EndTime
		} else if !end.Equal(p.EndTime) {
			t.Fatalf("end times differ across participants")
		}
	}
	time.Sleep(200 * time.Millisecond)
	for _, ch := range chans {
		if n := len(ch.OfType(quizdto.TypeBeginQuiz)); n != 1 {
			t.Fatalf("%s got %d begins", ch.UserID(), n)
		}
	}
}

func TestJoinRoomDisconnectCancelsBegin(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	room := h.seedRoom(t, "room-1", time.Now().Add(200*time.Millisecond), 1, 10)

	a := h.connect("ch-a", "alice")
	_ = h.mgr.JoinRoom(ctx, room.ID, "alice", a)
	h.mgr.Disconnect(a)
	if h.sched.Pending() != 0 {
		t.Fatalf("disconnect should cancel the pending begin")
	}
	time.Sleep(400 * time.Millisecond)
	if len(a.OfType(quizdto.TypeBeginQuiz)) != 0 {
		t.Fatalf("cancelled begin was delivered")
	}
}

func TestJoinRoomTerminalSignals(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	h.mgr.now = func() time.Time { return now }

	ended := h.seedRoom(t, "ended", now.Add(-10*time.Minute), 5, 10)
	running := h.seedRoom(t, "running", now.Add(-time.Minute), 5, 10)

	a := h.connect("ch-a", "alice")
	if err := h.mgr.JoinRoom(ctx, ended.ID, "alice", a); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if len(a.OfType(quizdto.TypeQuizEnded)) != 1 {
		t.Fatalf("expected quiz_ended, got %+v", a.Events())
	}

	_ = h.mgr.JoinRoom(ctx, running.ID, "alice", a)
	if err := h.mgr.SubmitRoom(ctx, running.ID, "alice", []int{0}, a); err != nil {
		t.Fatalf("SubmitRoom: %v", err)
	}
	if err := h.mgr.JoinRoom(ctx, running.ID, "alice", a); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if len(a.OfType(quizdto.TypeAlreadyAttempted)) != 1 {
		t.Fatalf("expected already_attempted while running, got %+v", a.Events())
	}

	now = now.Add(time.Hour)
	_ = h.mgr.JoinRoom(ctx, running.ID, "alice", a)
	if len(a.OfType(quizdto.TypeAlreadyAttempted)) != 2 {
		t.Fatalf("expected already_attempted after the window")
	}

	if err := h.mgr.JoinRoom(ctx, "nope", "alice", a); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJoinRoomFull(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	room := h.seedRoom(t, "room-1", time.Now().Add(-time.Minute), 5, 1)

	a := h.connect("ch-a", "alice")
	b := h.connect("ch-b", "bob")
	_ = h.mgr.JoinRoom(ctx, room.ID, "alice", a)
	_ = h.mgr.JoinRoom(ctx, room.ID, "bob", b)

	if len(a.OfType(quizdto.TypeBeginQuiz)) != 1 {
		t.Fatalf("alice should be admitted")
	}
	if len(b.OfType(quizdto.TypeRoomFull)) != 1 || len(b.OfType(quizdto.TypeBeginQuiz)) != 0 {
		t.Fatalf("bob should be turned away: %+v", b.Events())
	}
}

func TestSubmitRoomScoresAndBroadcasts(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	room := h.seedRoom(t, "room-1", time.Now().Add(-time.Minute), 5, 10, q("first", 0), q("second", 2))

	a := h.connect("ch-a", "alice")
	b := h.connect("ch-b", "bob")
	_ = h.mgr.JoinRoom(ctx, room.ID, "alice", a)
	_ = h.mgr.JoinRoom(ctx, room.ID, "bob", b)

	if err := h.mgr.SubmitRoom(ctx, room.ID, "alice", []int{0, 1}, a); err != nil {
		t.Fatalf("SubmitRoom: %v", err)
	}
	res := payload[quizdto.RoomResult](t, a.OfType(quizdto.TypeRoomResult)[0])
	if res.Score != 1 || res.TotalQuestions != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	sub, _ := h.ledger.Get(ctx, room.ID, "alice")
	if sub == nil || sub.Score != 1 {
		t.Fatalf("persisted score %+v", sub)
	}
	for _, ch := range []*chantest.Recorder{a, b} {
		sig := ch.OfType(quizdto.TypeLeaderboardChanged)
		if len(sig) != 1 || payload[quizdto.RoomSignal](t, sig[0]).RoomID != room.ID {
			t.Fatalf("%s expected leaderboard_changed", ch.UserID())
		}
	}

	if err := h.mgr.SubmitRoom(ctx, room.ID, "alice", []int{0, 2}, a); err != nil {
		t.Fatalf("duplicate submit: %v", err)
	}
	if len(a.OfType(quizdto.TypeAlreadyAttempted)) != 1 {
		t.Fatalf("expected already_attempted on resubmit")
	}
	if sub, _ := h.ledger.Get(ctx, room.ID, "alice"); sub.Score != 1 {
		t.Fatalf("resubmit must not change the score")
	}

	rows, err := h.mgr.Leaderboard(ctx, room.ID, 10)
	if err != nil || len(rows) != 1 || rows[0].UserID != "alice" {
		t.Fatalf("Leaderboard: %+v %v", rows, err)
	}
	if _, err := h.mgr.Leaderboard(ctx, "nope", 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateRoom(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	r, err := h.mgr.CreateRoom(ctx, RoomRequest{
		Domain:          "dsa",
		HostID:          "host",
		MaxMembers:      30,
		StartTime:       time.Now().Add(time.Hour),
		DurationMinutes: 10,
		QuestionCount:   2,
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if r.ID == "" || len(r.Questions) != 2 {
		t.Fatalf("unexpected room %+v", r)
	}
	got, _ := h.rooms.Get(ctx, r.ID)
	if got == nil || got.HostID != "host" {
		t.Fatalf("room not persisted")
	}

	_, err = h.mgr.CreateRoom(ctx, RoomRequest{Domain: "dsa", MaxMembers: 1, StartTime: time.Now().Add(-time.Hour), DurationMinutes: 1})
	if !errors.Is(err, domain.ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs for past start, got %v", err)
	}
}

func TestSubmitRoomRejectsLateAndUnjoined(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	t.Cleanup(obslog.Set(zap.New(core)))

	h := newHarness(t, nil)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	h.mgr.now = func() time.Time { return now }
	room := h.seedRoom(t, "room-1", now.Add(-time.Minute), 5, 10)

	a := h.connect("ch-a", "alice")
	b := h.connect("ch-b", "bob")
	_ = h.mgr.JoinRoom(ctx, room.ID, "alice", a)

	if err := h.mgr.SubmitRoom(ctx, room.ID, "bob", []int{0, 1, 2, 3}, b); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("submit without joining: expected ErrNotFound, got %v", err)
	}
	if sub, _ := h.ledger.Get(ctx, room.ID, "bob"); sub != nil {
		t.Fatalf("unjoined submission reached the ledger: %+v", sub)
	}

	now = now.Add(10 * time.Minute)
	if err := h.mgr.SubmitRoom(ctx, room.ID, "alice", []int{0, 1, 2, 3}, a); err != nil {
		t.Fatalf("late submit: %v", err)
	}
	if len(a.OfType(quizdto.TypeQuizEnded)) != 1 || len(a.OfType(quizdto.TypeRoomResult)) != 0 {
		t.Fatalf("late submit should end with quiz_ended: %+v", a.Events())
	}
	if rows, _ := h.mgr.Leaderboard(ctx, room.ID, 10); len(rows) != 0 {
		t.Fatalf("late submission landed on the leaderboard: %+v", rows)
	}
	late := logs.FilterMessage("room_submission_late").All()
	if len(late) != 1 || late[0].ContextMap()["error"] != domain.ErrExpiredWindow.Error() {
		t.Fatalf("expected one room_submission_late entry, got %+v", late)
	}
}

func TestJoinRoomFullLogsReason(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	t.Cleanup(obslog.Set(zap.New(core)))

	h := newHarness(t, nil)
	ctx := context.Background()
	room := h.seedRoom(t, "room-1", time.Now().Add(-time.Minute), 5, 1)
	_ = h.mgr.JoinRoom(ctx, room.ID, "alice", h.connect("ch-a", "alice"))
	_ = h.mgr.JoinRoom(ctx, room.ID, "bob", h.connect("ch-b", "bob"))

	rejected := logs.FilterMessage("room_join_rejected").All()
	if len(rejected) != 1 || rejected[0].ContextMap()["error"] != domain.ErrRoomFull.Error() {
		t.Fatalf("expected room_join_rejected with ErrRoomFull, got %+v", rejected)
	}
}
