package pipeline

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	const width = 3
	const tasks = 12

	pool := NewPool(width)

	var mu sync.Mutex
	active, maxObserved := 0, 0

	ctx := context.Background()
	for i := 0; i < tasks; i++ {
		err := pool.Dispatch(ctx, func() {
			mu.Lock()
			active++
			if active > maxObserved {
				maxObserved = active
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}

	pool.Drain()

	if maxObserved > width {
		t.Errorf("observed %d concurrent tasks, cap is %d", maxObserved, width)
	}
	if got := pool.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount after drain = %d, want 0", got)
	}
}

func TestPool_DefaultWidth(t *testing.T) {
	pool := NewPool(0)
	if got := pool.Width(); got != runtime.NumCPU() {
		t.Errorf("Width = %d, want NumCPU %d", got, runtime.NumCPU())
	}
}

func TestPool_DispatchBlocksUntilSlotFrees(t *testing.T) {
	pool := NewPool(1)
	ctx := context.Background()

	release := make(chan struct{})
	if err := pool.Dispatch(ctx, func() { <-release }); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	dispatched := make(chan struct{})
	go func() {
		if err := pool.Dispatch(ctx, func() {}); err != nil {
			t.Errorf("second Dispatch: %v", err)
		}
		close(dispatched)
	}()

	select {
	case <-dispatched:
		t.Fatal("Dispatch returned while the only slot was busy")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case <-dispatched:
	case <-time.After(time.Second):
		t.Fatal("Dispatch did not proceed after the slot freed")
	}
	pool.Drain()
}

func TestPool_CancelledDispatchNeverStartsTask(t *testing.T) {
	pool := NewPool(1)

	release := make(chan struct{})
	if err := pool.Dispatch(context.Background(), func() { <-release }); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	started := make(chan struct{}, 1)
	go func() {
		errCh <- pool.Dispatch(ctx, func() { started <- struct{}{} })
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Dispatch err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dispatch did not return after cancellation")
	}

	close(release)
	pool.Drain()

	select {
	case <-started:
		t.Error("cancelled task must never start")
	default:
	}
}

func TestPool_PreCancelledContextNeverDispatches(t *testing.T) {
	pool := NewPool(4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// With a free slot and a done context both ready, a bare select
	// would pick at random; every one of these must be rejected.
	var started atomic.Int32
	for i := 0; i < 200; i++ {
		err := pool.Dispatch(ctx, func() { started.Add(1) })
		if err != context.Canceled {
			t.Fatalf("Dispatch err = %v, want context.Canceled", err)
		}
	}

	pool.Drain()
	if got := started.Load(); got != 0 {
		t.Errorf("%d tasks started on a cancelled context, want 0", got)
	}
}

func TestPool_StartedTasksFinishAfterCancel(t *testing.T) {
	pool := NewPool(2)
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	finished := 0

	for i := 0; i < 2; i++ {
		err := pool.Dispatch(ctx, func() {
			time.Sleep(30 * time.Millisecond)
			mu.Lock()
			finished++
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}

	// Cancelling the run must not interrupt tasks already running.
	cancel()
	pool.Drain()

	mu.Lock()
	defer mu.Unlock()
	if finished != 2 {
		t.Errorf("finished = %d, want 2", finished)
	}
}
