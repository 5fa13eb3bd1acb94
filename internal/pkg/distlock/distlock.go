// Package distlock serializes work on a shared key across server replicas.
package distlock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned by Wait when the context ends before the lock
// could be taken.
var ErrNotAcquired = errors.New("lock not acquired")

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Wait polls Acquire every interval until the lock is held or ctx ends.
func Wait(ctx context.Context, l DistLock, interval time.Duration) error {
	if interval <= 0 {
		interval = 25 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return errors.Join(ErrNotAcquired, ctx.Err())
		}
		ok, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}
