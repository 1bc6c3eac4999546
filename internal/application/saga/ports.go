// Package saga contains the multi-step engine processes: the points ledger,
// the achievement award flow with its level-up feedback loop, and the
// post-commit notification outbox.
package saga

import (
	"context"
	"time"
)

// UnitOfWork runs fn inside one database transaction carried by the context.
// A nested call joins the outer transaction. Implementations may re-run fn
// when the transaction loses a serialization race, so fn must not perform
// side effects outside the database.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// AwardLock serialises award runs of one user across engine instances.
type AwardLock interface {
	// Acquire returns shared.ErrLockNotAcquired when another holder owns
	// the lock. The returned release function is safe to call once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time
