package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates per-thred access across replicas. The
// in-process per-thredId mutex already serializes a single instance;
// a locker extends that guarantee cluster-wide.
type DistributedLocker interface {
	// Lock blocks until the lock for key is acquired, ctx is canceled,
	// or the implementation gives up. The returned UnlockFunc MUST be
	// called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
