package attendance

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of in-flight calls to the two external dependencies:
// the form host and the datastore. Each pool admits waiters in FIFO order;
// requests beyond the limit queue instead of failing. Gates are constructed
// and injected, never package-level, so tests get independent pools.
type Gate struct {
	form  *semaphore.Weighted
	store *semaphore.Weighted
}

// NewGate creates a gate with the given permit counts. Non-positive limits
// fall back to 1.
func NewGate(formLimit, storeLimit int64) *Gate {
	if formLimit <= 0 {
		formLimit = 1
	}
	if storeLimit <= 0 {
		storeLimit = 1
	}
	return &Gate{
		form:  semaphore.NewWeighted(formLimit),
		store: semaphore.NewWeighted(storeLimit),
	}
}

// AcquireForm blocks until a form-host permit is available or ctx is done.
// The returned release func is idempotent and must be called exactly when the
// guarded call completes, success or failure.
func (g *Gate) AcquireForm(ctx context.Context) (func(), error) {
	return acquire(ctx, g.form)
}

// AcquireStore blocks until a datastore permit is available or ctx is done.
func (g *Gate) AcquireStore(ctx context.Context) (func(), error) {
	return acquire(ctx, g.store)
}

func acquire(ctx context.Context, sem *semaphore.Weighted) (func(), error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { sem.Release(1) })
	}, nil
}
