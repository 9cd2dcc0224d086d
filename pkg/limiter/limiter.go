// Package limiter implements a bounded, FIFO-fair worker pool: the
// concurrency limiter that bounds per-task chunk dispatch and per-manager
// task dispatch alike. It is grounded on the same shape as a fixed-size
// transfer queue — a single dispatcher decides what runs next — but sized
// dynamically per submission instead of a fixed worker count, since chunk
// jobs vary wildly in how long they block.
package limiter

import (
	"context"
	"sync"
)

// Job is an async unit of work. It receives the context passed to Submit so
// it can observe cancellation; discarding the returned Future does NOT
// cancel the job — only cancelling ctx does.
type Job[T any] func(ctx context.Context) (T, error)

type pending[T any] struct {
	ctx    context.Context
	job    Job[T]
	future *Future[T]
}

// Future resolves with a job's result once it has run.
type Future[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Wait blocks until the job settles and returns its result.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.result, f.err
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) settle(result T, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

// Limiter runs at most Capacity jobs concurrently, starting queued jobs in
// strict submission order once older jobs are no longer queued (they may
// already be running).
type Limiter[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	active   int
	queue    []*pending[T]
	closed   bool
}

// New constructs a Limiter with the given capacity (must be >= 1).
func New[T any](capacity int) *Limiter[T] {
	if capacity < 1 {
		capacity = 1
	}
	l := &Limiter[T]{capacity: capacity}
	l.cond = sync.NewCond(&l.mu)
	go l.dispatchLoop()
	return l
}

// Submit enqueues job and returns a Future for its result. Jobs wait in FIFO
// order when the pool is at capacity.
func (l *Limiter[T]) Submit(ctx context.Context, job Job[T]) *Future[T] {
	future := newFuture[T]()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		future.settle(*new(T), context.Canceled)
		return future
	}
	l.queue = append(l.queue, &pending[T]{ctx: ctx, job: job, future: future})
	l.mu.Unlock()
	l.cond.Signal()

	return future
}

// Active returns the number of jobs currently running.
func (l *Limiter[T]) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Queued returns the number of jobs waiting for a slot.
func (l *Limiter[T]) Queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Drain blocks until every queued and active job has settled.
func (l *Limiter[T]) Drain() {
	l.mu.Lock()
	for len(l.queue) > 0 || l.active > 0 {
		l.cond.Wait()
	}
	l.mu.Unlock()
}

// Close stops accepting new jobs. Jobs already queued or active still run;
// call Drain after Close to wait for them.
func (l *Limiter[T]) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cond.Broadcast()
}

func (l *Limiter[T]) dispatchLoop() {
	for {
		l.mu.Lock()
		for len(l.queue) == 0 || l.active >= l.capacity {
			if l.closed && len(l.queue) == 0 {
				l.mu.Unlock()
				return
			}
			l.cond.Wait()
		}
		next := l.queue[0]
		l.queue = l.queue[1:]
		l.active++
		l.mu.Unlock()

		go l.run(next)
	}
}

func (l *Limiter[T]) run(p *pending[T]) {
	result, err := p.job(p.ctx)
	p.future.settle(result, err)

	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	l.cond.Broadcast()
}
