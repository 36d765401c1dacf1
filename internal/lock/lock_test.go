package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/and161185/ai-chat-hub/internal/errs"
)

func TestAcquire_SameKeySerializes(t *testing.T) {
	t.Parallel()

	m := NewManager()
	const workers = 50

	var inside, max int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), "k")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer release()

			mu.Lock()
			inside++
			if inside > max {
				max = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Fatalf("critical section held by %d goroutines at once", max)
	}
}

func TestAcquire_DistinctKeysDoNotContend(t *testing.T) {
	t.Parallel()

	m := NewManager()
	relA, err := m.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("Acquire(a): %v", err)
	}
	defer relA()

	// "b" must be acquirable while "a" is held.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	relB, err := m.Acquire(ctx, "b")
	if err != nil {
		t.Fatalf("Acquire(b) blocked by unrelated key: %v", err)
	}
	relB()
}

func TestAcquire_TimeoutSurfacesSentinel(t *testing.T) {
	t.Parallel()

	m := NewManager()
	release, err := m.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx, "k"); !errors.Is(err, errs.ErrLockTimeout) {
		t.Fatalf("err = %v, want ErrLockTimeout", err)
	}
}

func TestAcquire_ReleaseIdempotent(t *testing.T) {
	t.Parallel()

	m := NewManager()
	release, err := m.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()
	release() // second call must be a no-op, not an unlock of someone else's hold

	r2, err := m.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("re-Acquire: %v", err)
	}
	r2()
}

func TestAcquire_BlockedWaiterProceedsAfterRelease(t *testing.T) {
	t.Parallel()

	m := NewManager()
	release, err := m.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	got := make(chan error, 1)
	go func() {
		rel, err := m.Acquire(context.Background(), "k")
		if err == nil {
			rel()
		}
		got <- err
	}()

	time.Sleep(10 * time.Millisecond)
	release()

	select {
	case err := <-got:
		if err != nil {
			t.Fatalf("waiter: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired after release")
	}
}
