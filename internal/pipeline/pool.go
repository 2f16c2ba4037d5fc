package pipeline

// pool.go implements the bounded worker pool the orchestrator
// dispatches Jobs onto.
//
// The pool uses a semaphore pattern to cap parallel Jobs at a
// configurable width. Dispatch blocks while all slots are busy, which
// gives natural backpressure when discovery outpaces processing. The
// pool also supports draining, which blocks until every in-flight Job
// finishes. Cancellation lets dispatched Jobs run to completion so
// the write-then-record invariant holds.

import (
	"context"
	"runtime"
	"sync"
)

// Pool caps the number of concurrently executing Jobs.
type Pool struct {
	semaphore chan struct{}
	wg        sync.WaitGroup

	mu     sync.RWMutex
	active int
}

// NewPool creates a pool of the given width. A non-positive width
// defaults to the number of available processing units.
func NewPool(width int) *Pool {
	if width <= 0 {
		width = runtime.NumCPU()
	}
	return &Pool{semaphore: make(chan struct{}, width)}
}

// Width returns the maximum number of concurrent tasks.
func (p *Pool) Width() int {
	return cap(p.semaphore)
}

// ActiveCount returns the number of currently executing tasks.
func (p *Pool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// Dispatch runs task on its own goroutine once a slot frees up. It
// blocks until a slot is acquired or ctx is cancelled; a cancelled
// dispatch returns the context error and the task never starts.
// Tasks that did start always run to completion.
func (p *Pool) Dispatch(ctx context.Context, task func()) error {
	// A select with both cases ready picks at random, so an already
	// cancelled context must be rejected before racing the semaphore.
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	p.active++
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer func() {
			p.mu.Lock()
			p.active--
			p.mu.Unlock()
			<-p.semaphore
			p.wg.Done()
		}()
		task()
	}()
	return nil
}

// Drain blocks until all dispatched tasks have finished.
func (p *Pool) Drain() {
	p.wg.Wait()
}
