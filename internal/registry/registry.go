package registry

import (
	"context"
	"strings"
	"sync"

	"github.com/park285/campus-quiz-core/internal/obslog"
	"github.com/park285/campus-quiz-core/pkg/quizdto"
	"go.uber.org/zap"
)

// Channel is a live bidirectional connection to one client.
type Channel interface {
	ID() string
	UserID() string
	Send(ctx context.Context, ev quizdto.Event) error
	Done() <-chan struct{}
}

// Registry maps channel ids to live channels and tracks group (room) membership.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
	groups   map[string]map[string]struct{} // group -> channel ids
	memberOf map[string]map[string]struct{} // channel id -> groups

	hookM  sync.RWMutex
	onDrop []func(Channel)
}

func New() *Registry {
	return &Registry{
		channels: make(map[string]Channel),
		groups:   make(map[string]map[string]struct{}),
		memberOf: make(map[string]map[string]struct{}),
	}
}

// OnUnregister adds a hook run after a channel leaves the registry.
func (r *Registry) OnUnregister(fn func(Channel)) {
	if fn == nil {
		return
	}
	r.hookM.Lock()
	r.onDrop = append(r.onDrop, fn)
	r.hookM.Unlock()
}

func (r *Registry) Register(ch Channel) {
	if ch == nil || strings.TrimSpace(ch.ID()) == "" {
		return
	}
	r.mu.Lock()
	r.channels[ch.ID()] = ch
	r.mu.Unlock()
	obslog.L().Debug("channel_register", zap.String("channel_id", ch.ID()), zap.String("user_id", ch.UserID()))
}

// Unregister removes ch only if it is still the handle stored under its id.
func (r *Registry) Unregister(ch Channel) {
	if ch == nil {
		return
	}
	id := ch.ID()
	r.mu.Lock()
	cur, ok := r.channels[id]
	if !ok || cur != ch {
		r.mu.Unlock()
		return
	}
	delete(r.channels, id)
	for g := range r.memberOf[id] {
		if set := r.groups[g]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(r.groups, g)
			}
		}
	}
	delete(r.memberOf, id)
	r.mu.Unlock()

	r.hookM.RLock()
	hooks := make([]func(Channel), len(r.onDrop))
	copy(hooks, r.onDrop)
	r.hookM.RUnlock()
	for _, fn := range hooks {
		fn(ch)
	}
	obslog.L().Debug("channel_unregister", zap.String("channel_id", id), zap.String("user_id", ch.UserID()))
}

func (r *Registry) Lookup(id string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// Send delivers ev to the channel with the given id. A missing channel or a
// failed write reports false; callers treat that as a stale participant.
func (r *Registry) Send(ctx context.Context, id string, ev quizdto.Event) bool {
	ch, ok := r.Lookup(id)
	if !ok {
		obslog.L().Debug("send_skip_stale", zap.String("channel_id", id), zap.String("type", ev.Type))
		return false
	}
	if err := ch.Send(ctx, ev); err != nil {
		obslog.L().Warn("send_error", zap.String("channel_id", id), zap.String("type", ev.Type), zap.Error(err))
		return false
	}
	return true
}

// Join adds a registered channel to a group. Unknown channels are ignored.
func (r *Registry) Join(group, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[id]; !ok {
		return false
	}
	set := r.groups[group]
	if set == nil {
		set = make(map[string]struct{})
		r.groups[group] = set
	}
	set[id] = struct{}{}
	gs := r.memberOf[id]
	if gs == nil {
		gs = make(map[string]struct{})
		r.memberOf[id] = gs
	}
	gs[group] = struct{}{}
	return true
}

func (r *Registry) Members(group string) []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.groups[group]
	out := make([]Channel, 0, len(set))
	for id := range set {
		if ch, ok := r.channels[id]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// Broadcast sends ev to every channel in the group and returns how many writes succeeded.
func (r *Registry) Broadcast(ctx context.Context, group string, ev quizdto.Event) int {
	sent := 0
	for _, ch := range r.Members(group) {
		if err := ch.Send(ctx, ev); err != nil {
			obslog.L().Warn("broadcast_error", zap.String("group", group), zap.String("channel_id", ch.ID()), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
