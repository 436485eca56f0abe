package identity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/campus-quiz-core/internal/domain"
	"github.com/park285/campus-quiz-core/internal/obslog"
)

// Directory resolves display attributes for a user.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*domain.Profile, error)
}

// ProfileSource is satisfied by upstream.Client.
type ProfileSource interface {
	LookupProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

type remote struct{ src ProfileSource }

func NewRemote(src ProfileSource) Directory { return remote{src: src} }

func (r remote) Lookup(ctx context.Context, userID string) (*domain.Profile, error) {
	return r.src.LookupProfile(ctx, userID)
}

// Static serves fixed profiles; unknown users get a bare profile.
type Static map[string]domain.Profile

func (s Static) Lookup(_ context.Context, userID string) (*domain.Profile, error) {
	if p, ok := s[userID]; ok {
		p.UserID = userID
		return &p, nil
	}
	return &domain.Profile{UserID: userID}, nil
}

type cacheEntry struct {
	p   domain.Profile
	exp time.Time
}

// Cached memoizes successful lookups for ttl.
type Cached struct {
	next Directory
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCached(next Directory, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{next: next, ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *Cached) Lookup(ctx context.Context, userID string) (*domain.Profile, error) {
	now := c.now()
	c.mu.Lock()
	if e, ok := c.entries[userID]; ok && now.Before(e.exp) {
		c.mu.Unlock()
		p := e.p
		return &p, nil
	}
	c.mu.Unlock()

	p, err := c.next.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[userID] = cacheEntry{p: *p, exp: now.Add(c.ttl)}
	c.mu.Unlock()
	return p, nil
}

// Resolve fills missing display attributes from dir. A failing directory is
// logged and the given profile is returned unchanged.
func Resolve(ctx context.Context, dir Directory, p domain.Profile) domain.Profile {
	if dir == nil || p.Name != "" {
		return p
	}
	got, err := dir.Lookup(ctx, p.UserID)
	if err != nil {
		obslog.L().Debug("profile_lookup_failed", zap.String("user_id", p.UserID), zap.Error(err))
		return p
	}
	if p.Handle == "" {
		p.Handle = got.Handle
	}
	if p.AvatarURL == "" {
		p.AvatarURL = got.AvatarURL
	}
	p.Name = got.Name
	return p
}
