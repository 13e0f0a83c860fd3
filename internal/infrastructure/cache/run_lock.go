// Package cache provides the ingestion run lock.
package cache

import (
	"context"
	"errors"
	"time"
)

// DefaultLockTTL bounds how long a crashed process can hold the lock
const DefaultLockTTL = 2 * time.Hour

// ErrLockNotHeld is returned when releasing a lock owned by someone else
var ErrLockNotHeld = errors.New("lock not held by owner")

// RunLock guarantees that at most one holder owns a named lock at a time
type RunLock interface {
	// TryAcquire takes the lock for owner. It returns false without error
	// when another owner holds it.
	TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	// Release frees the lock if owner still holds it
	Release(ctx context.Context, name, owner string) error
}
