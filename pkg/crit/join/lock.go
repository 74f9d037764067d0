// Package join implements the join coordinator described in spec.md
// §4.4: a stateless procedure, invoked by an external caller (normally
// the discovery loop), that merges two segments under a cluster-wide
// lock while pausing every member involved.
package join

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/critdb/crit/pkg/crit/types"
)

// Locker is the cluster-wide advisory lock the coordinator depends on,
// spec.md §5 "the global lock used by the join coordinator is the only
// cluster-wide shared resource." Kept as its own narrow interface so a
// real deployment can swap in a lease service without touching the
// coordinator.
type Locker interface {
	// Lock blocks until key is held exclusively, or ctx is done.
	// Returns a release function to call unconditionally on every exit
	// path, and ErrAbort if the attempt was aborted by a concurrent
	// holder (the coordinator retries once on abort, then retries
	// without bound, per spec.md §4.4 step 2).
	Lock(ctx context.Context, key string) (release func(), err error)
}

// ErrAbort signals that a lock attempt lost a race and should be
// retried by the caller.
var ErrAbort = fmt.Errorf("join: lock attempt aborted")

// InProcessLocker is a single-process named-mutex implementation of
// Locker, sufficient for the single-process deployment model spec.md
// §5 describes ("all servers run concurrently in a single process").
// It never aborts — Lock always blocks until acquired or ctx is done —
// so the coordinator's retry-on-abort path is exercised only against a
// Locker that can actually abort (see join_test.go's fakeAbortingLocker).
type InProcessLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewInProcessLocker constructs a ready-to-use InProcessLocker.
func NewInProcessLocker() *InProcessLocker {
	return &InProcessLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *InProcessLocker) namedMutex(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// Lock implements Locker.
func (l *InProcessLocker) Lock(ctx context.Context, key string) (func(), error) {
	m := l.namedMutex(key)
	done := make(chan struct{})
	go func() {
		m.Lock()
		close(done)
	}()

	select {
	case <-done:
		return m.Unlock, nil
	case <-ctx.Done():
		go func() { <-done; m.Unlock() }()
		return nil, ctx.Err()
	}
}

// acquireWithRetry implements spec.md §4.4 step 2: one retry on abort,
// then unbounded retries on every further abort, logging each one.
// Only ErrAbort is retried; any other error (notably ctx expiring)
// propagates immediately.
func acquireWithRetry(ctx context.Context, log types.Logger, locker Locker, key string) (func(), error) {
	release, err := locker.Lock(ctx, key)
	for attempt := 1; errors.Is(err, ErrAbort); attempt++ {
		log.Warnf("join: lock %q aborted, retrying (attempt %d)", key, attempt)
		release, err = locker.Lock(ctx, key)
	}
	return release, err
}
