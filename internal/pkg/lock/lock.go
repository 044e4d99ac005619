// Package lock provides fail-fast mutual exclusion keyed by string.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrLockHeld = errors.New("lock is held by another owner")

// Unlock releases a lock. It is safe to call more than once.
type Unlock func(ctx context.Context) error

// Locker never waits: TryLock either acquires the key or returns ErrLockHeld.
// ttl bounds how long a crashed holder can block others.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, error)
}

type entry struct {
	token   string
	expires time.Time
}

// MemoryLocker is a per-process Locker.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]entry
	clock func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]entry{}, clock: time.Now}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Unlock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, ErrLockHeld
	}

	token := uuid.NewString()
	l.held[key] = entry{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.held[key]; ok && e.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}
