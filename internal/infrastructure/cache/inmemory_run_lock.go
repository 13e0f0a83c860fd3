package cache

import (
	"context"
	"sync"
	"time"
)

type lockEntry struct {
	owner     string
	expiresAt time.Time
}

// InMemoryRunLock implements RunLock within one process.
// It is suitable for single-instance deployments and testing.
type InMemoryRunLock struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	now   func() time.Time
}

// NewInMemoryRunLock creates a process-local lock
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{
		locks: make(map[string]lockEntry),
		now:   time.Now,
	}
}

func (l *InMemoryRunLock) TryAcquire(_ context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.locks[name]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	l.locks[name] = lockEntry{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (l *InMemoryRunLock) Release(_ context.Context, name, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[name]
	if !ok || e.owner != owner || !l.now().Before(e.expiresAt) {
		return ErrLockNotHeld
	}
	delete(l.locks, name)
	return nil
}

var _ RunLock = (*InMemoryRunLock)(nil)
