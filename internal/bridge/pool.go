package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/TheMichaelB/shelfkey/internal/events"
)

var (
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("worker pool closed")
	// ErrTaskAborted marks a task that panicked.
	ErrTaskAborted = errors.New("task aborted")
)

// Pool runs blocking tasks on a bounded number of goroutines.
type Pool struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger *events.Logger
}

// Future is the eventual outcome of a submitted task.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

// NewPool creates a pool running at most workers tasks at once.
func NewPool(workers int, logger *events.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		sem:    make(chan struct{}, workers),
		logger: logger.WithField("component", "pool"),
	}
}

// Submit schedules fn and returns immediately. The task waits for a free
// slot in the background so callers never block on a busy pool.
func (p *Pool) Submit(fn func() (any, error)) (*Future, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	f := &Future{done: make(chan struct{})}

	go func() {
		defer p.wg.Done()

		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				p.logger.WithField("panic", fmt.Sprint(r)).Error("Task panicked")
				f.value = nil
				f.err = fmt.Errorf("%w: %v", ErrTaskAborted, r)
			}
		}()

		f.value, f.err = fn()
	}()

	return f, nil
}

// Close stops accepting tasks and waits for the running ones.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
}

// Wait blocks until the task finishes or ctx is done. Cancelling ctx does not
// stop the task.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed when the task has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}
