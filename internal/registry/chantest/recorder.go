// Package chantest provides an in-memory registry.Channel that records events.
package chantest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/park285/campus-quiz-core/pkg/quizdto"
)

var ErrClosed = errors.New("channel closed")

type Recorder struct {
	id     string
	userID string

	mu     sync.Mutex
	events []quizdto.Event
	notify chan struct{}

	done     chan struct{}
	doneOnce sync.Once
}

func New(id, userID string) *Recorder {
	return &Recorder{id: id, userID: userID, notify: make(chan struct{}, 1), done: make(chan struct{})}
}

func (r *Recorder) ID() string            { return r.id }
func (r *Recorder) UserID() string        { return r.userID }
func (r *Recorder) Done() <-chan struct{} { return r.done }

func (r *Recorder) Send(_ context.Context, ev quizdto.Event) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

func (r *Recorder) Close() { r.doneOnce.Do(func() { close(r.done) }) }

func (r *Recorder) Events() []quizdto.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]quizdto.Event(nil), r.events...)
}

// OfType returns recorded events with the given type, in arrival order.
func (r *Recorder) OfType(typ string) []quizdto.Event {
	var out []quizdto.Event
	for _, ev := range r.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Recorder) Last() (quizdto.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return quizdto.Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// WaitFor blocks until an event of typ was recorded or the timeout passes.
func (r *Recorder) WaitFor(typ string, timeout time.Duration) (quizdto.Event, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if evs := r.OfType(typ); len(evs) > 0 {
			return evs[0], true
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			evs := r.OfType(typ)
			if len(evs) > 0 {
				return evs[0], true
			}
			return quizdto.Event{}, false
		}
	}
}
