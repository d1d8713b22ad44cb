package throttlesvc

import (
	"context"
	"sync"
	"time"

	"github.com/spimentel1201/EduMF-sub001/core"
)

// MemoryThrottler counts failed attempts in process memory. Used when Redis is not configured.
type MemoryThrottler struct {
	mu          sync.Mutex
	attempts    map[string]*attempts
	maxAttempts int
	window      time.Duration
	nowFunc     func() time.Time
}

type attempts struct {
	count     int
	expiresAt time.Time
}

var _ core.Throttler = (*MemoryThrottler)(nil)

func NewMemoryThrottler(maxAttempts int, window time.Duration) *MemoryThrottler {
	return &MemoryThrottler{
		attempts:    make(map[string]*attempts),
		maxAttempts: maxAttempts,
		window:      window,
		nowFunc:     time.Now,
	}
}

// get must be called with the lock held.
func (t *MemoryThrottler) get(key string) *attempts {
	a, ok := t.attempts[key]
	if ok && !t.nowFunc().Before(a.expiresAt) {
		delete(t.attempts, key)
		return nil
	}
	return a
}

func (t *MemoryThrottler) Allowed(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a := t.get(key)
	return a == nil || a.count < t.maxAttempts, nil
}

func (t *MemoryThrottler) Fail(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweep()
	a := t.get(key)
	if a == nil {
		a = &attempts{expiresAt: t.nowFunc().Add(t.window)}
		t.attempts[key] = a
	}
	a.count++
	return nil
}

// sweep drops every expired key so that keys never seen again do not pile up.
// It must be called with the lock held.
func (t *MemoryThrottler) sweep() {
	now := t.nowFunc()
	for key, a := range t.attempts {
		if !now.Before(a.expiresAt) {
			delete(t.attempts, key)
		}
	}
}

func (t *MemoryThrottler) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.attempts, key)
	return nil
}
