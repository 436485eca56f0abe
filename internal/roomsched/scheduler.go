package roomsched

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/campus-quiz-core/internal/obslog"
)

var ErrClosed = errors.New("scheduler closed")

type key struct {
	roomID string
	userID string
}

type pending struct {
	channelID string
	jobID     uuid.UUID
}

// Scheduler holds one pending begin job per (room, user). A newer job for the
// same pair replaces the older one.
type Scheduler struct {
	s gocron.Scheduler

	mu     sync.Mutex
	jobs   map[key]*pending
	closed bool
	now    func() time.Time
}

func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("gocron: %w", err)
	}
	s.Start()
	return &Scheduler{s: s, jobs: make(map[key]*pending), now: time.Now}, nil
}

// ScheduleBegin runs fn at the given time. When at is not in the future fn runs
// before ScheduleBegin returns.
func (sc *Scheduler) ScheduleBegin(roomID, userID, channelID string, at time.Time, fn func()) error {
	k := key{roomID: roomID, userID: userID}

	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return ErrClosed
	}
	sc.removeLocked(k)
	if !at.After(sc.now()) {
		sc.mu.Unlock()
		fn()
		return nil
	}
	p := &pending{channelID: channelID}
	j, err := sc.s.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(func() {
			if !sc.claim(k, p) {
				return
			}
			fn()
		}),
	)
	if errors.Is(err, gocron.ErrOneTimeJobStartDateTimePast) {
		// at passed between the check above and gocron's own check
		sc.mu.Unlock()
		fn()
		return nil
	}
	if err != nil {
		sc.mu.Unlock()
		return fmt.Errorf("schedule begin %s/%s: %w", roomID, userID, err)
	}
	p.jobID = j.ID()
	sc.jobs[k] = p
	sc.mu.Unlock()

	obslog.L().Debug("begin_scheduled",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
		zap.Time("at", at),
	)
	return nil
}

// claim removes the entry if it is still the current one for k.
func (sc *Scheduler) claim(k key, p *pending) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.jobs[k] != p {
		return false
	}
	delete(sc.jobs, k)
	return true
}

func (sc *Scheduler) removeLocked(k key) {
	p, ok := sc.jobs[k]
	if !ok {
		return
	}
	delete(sc.jobs, k)
	if p.jobID != uuid.Nil {
		_ = sc.s.RemoveJob(p.jobID)
	}
}

func (sc *Scheduler) Cancel(roomID, userID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.removeLocked(key{roomID: roomID, userID: userID})
}

// CancelChannel drops every job that would deliver to channelID.
func (sc *Scheduler) CancelChannel(channelID string) int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	n := 0
	for k, p := range sc.jobs {
		if p.channelID == channelID {
			sc.removeLocked(k)
			n++
		}
	}
	return n
}

func (sc *Scheduler) Pending() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.jobs)
}

func (sc *Scheduler) Shutdown() error {
	sc.mu.Lock()
	sc.closed = true
	sc.jobs = make(map[key]*pending)
	sc.mu.Unlock()
	return sc.s.Shutdown()
}
