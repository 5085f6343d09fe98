package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/log"

	"github.com/google/uuid"
)

// LockStore persists job locks in a shared database.
type LockStore interface {
	AcquireJobLock(ctx context.Context, name, token string, now, expiresAt time.Time) (bool, error)
	ExtendJobLock(ctx context.Context, name, token string, expiresAt time.Time) (bool, error)
	ReleaseJobLock(ctx context.Context, name, token string) error
}

// StoreLocker guards jobs through a LockStore, for deployments whose
// workers share a database but no Redis.
type StoreLocker struct {
	store LockStore
	now   func() time.Time
}

func NewStoreLocker(store LockStore) *StoreLocker {
	return &StoreLocker{store: store, now: time.Now}
}

func (l *StoreLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	now := l.now()
	ok, err := l.store.AcquireJobLock(ctx, name, token, now, now.Add(ttl))
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := keepAlive(ctx, name, ttl, func(ctx context.Context) (bool, error) {
		return l.store.ExtendJobLock(ctx, name, token, l.now().Add(ttl))
	})
	release := func() {
		stop()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.store.ReleaseJobLock(ctx, name, token); err != nil {
			log.FromContext(ctx, log.ComponentScheduler).WarnContext(ctx, "Failed to release job lock",
				log.FieldJob, name, log.FieldError, err)
		}
	}
	return release, true, nil
}

// keepAlive extends a held lock every ttl/3 until the returned stop is
// called or an extension finds the lock taken over.
func keepAlive(ctx context.Context, name string, ttl time.Duration, extend func(context.Context) (bool, error)) func() {
	if ttl <= 0 {
		return func() {}
	}
	ctx = context.WithoutCancel(ctx)
	logger := log.FromContext(ctx, log.ComponentScheduler)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(max(ttl/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				callCtx, cancel := context.WithTimeout(ctx, ttl/3+time.Second)
				ok, err := extend(callCtx)
				cancel()
				if err != nil {
					logger.WarnContext(ctx, "Failed to extend job lock", log.FieldJob, name, log.FieldError, err)
					continue
				}
				if !ok {
					logger.ErrorContext(ctx, "Job lock lost while running", log.FieldJob, name)
					return
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}
