// Package lock provides in-process mutual exclusion over named resources.
//
// Locks are keyed by resource identity (a file path, a user id): two distinct
// keys never contend, the same key strictly serializes. The table is scoped to
// one process; callers that need cross-process safety must put an OS-level
// advisory lock underneath.
package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/and161185/ai-chat-hub/internal/errs"
)

// Manager owns a table of per-key semaphores. The zero value is not usable;
// construct with NewManager.
type Manager struct {
	sems sync.Map // key string -> chan struct{} (capacity 1)
}

// NewManager returns an empty lock table.
func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) sem(key string) chan struct{} {
	if v, ok := m.sems.Load(key); ok {
		return v.(chan struct{})
	}
	v, _ := m.sems.LoadOrStore(key, make(chan struct{}, 1))
	return v.(chan struct{})
}

// Acquire blocks until the lock for key is held or ctx expires. On success it
// returns a release func that must be called exactly once; deferring it covers
// every exit path. Acquisition order between concurrent waiters is
// unspecified. Acquire must not be nested for the same key on the same
// goroutine: the lock is not reentrant and a nested call deadlocks until the
// context expires.
func (m *Manager) Acquire(ctx context.Context, key string) (release func(), err error) {
	sem := m.sem(key)
	select {
	case sem <- struct{}{}:
	default:
		// Contended: wait for the holder or the deadline.
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %q: %w: %w", key, errs.ErrLockTimeout, ctx.Err())
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-sem })
	}, nil
}
