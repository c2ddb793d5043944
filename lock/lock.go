// Package lock provides run locks for jobs that must not overlap, such as a
// payroll batch for one pay period.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrHeld is returned when another holder owns the key.
var ErrHeld = errors.New("lock is held")

// Release gives a lock back. Releasing twice is harmless.
type Release func(ctx context.Context) error

// Locker acquires named, expiring locks.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// =============================================================================
// LOCAL - Single-process locker
// =============================================================================

// Local is a Locker for a single process.
type Local struct {
	mu    sync.Mutex
	held  map[string]time.Time // key -> expiry
	clock func() time.Time
}

func NewLocal() *Local {
	return &Local{held: make(map[string]time.Time), clock: time.Now}
}

var _ Locker = (*Local)(nil)

func (l *Local) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, ErrHeld
	}
	expiry := now.Add(ttl)
	l.held[key] = expiry

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// a newer holder may own the key after our ttl ran out
			if l.held[key].Equal(expiry) {
				delete(l.held, key)
			}
		})
		return nil
	}, nil
}
