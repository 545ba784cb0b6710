// Package perkey provides a scheduler that serializes work per key
// while allowing work for different keys to execute concurrently.
//
// The entity dispatcher uses it as the command-critical-section lock: all
// commands for one aggregate type run strictly one after another, in
// submission order, while unrelated aggregate types proceed in parallel.
package perkey

import (
	"context"
	"sync"
)

// Scheduler runs tasks (functions) such that for any given key K,
// tasks are executed sequentially, in submission order.
// Tasks for *different* keys can proceed in parallel.
type Scheduler[K comparable] struct {
	mu      sync.Mutex
	workers map[K]*worker
	closed  bool
	wg      sync.WaitGroup // tracks submitted, not yet finished tasks
}

type worker struct {
	mu    sync.Mutex
	queue []*task
	wake  chan struct{}
	quit  chan struct{}
}

type task struct {
	fn   func() error
	done chan error
}

// New creates a new Scheduler.
func New[K comparable]() *Scheduler[K] {
	return &Scheduler[K]{
		workers: make(map[K]*worker),
	}
}

// Submit enqueues fn for the given key and returns a channel that receives
// fn's result once it ran. Submit never blocks: the per-key queue is
// unbounded, so the order in which callers invoke Submit is exactly the
// order in which tasks execute. A submitted task always runs, even if the
// caller stops listening.
func (s *Scheduler[K]) Submit(key K, fn func() error) (<-chan error, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSchedulerClosed
	}
	s.wg.Add(1)
	w := s.getOrCreateWorkerLocked(key)
	s.mu.Unlock()

	t := &task{
		fn:   fn,
		done: make(chan error, 1),
	}
	w.enqueue(t)

	return t.done, nil
}

// Do schedules fn to run for the given key.
// It blocks until fn finishes and returns its error.
// All fn calls for the same key are executed sequentially.
func (s *Scheduler[K]) Do(key K, fn func() error) error {
	return s.DoContext(context.Background(), key, fn)
}

// DoContext is like Do but stops waiting when ctx is cancelled. The task
// itself still runs; command callers rely on never acknowledging work that
// did not run, so a submitted task is never silently discarded.
func (s *Scheduler[K]) DoContext(ctx context.Context, key K, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done, err := s.Submit(key, fn)
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new tasks, waits for everything already submitted
// to finish, and shuts down all workers.
func (s *Scheduler[K]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// Wait for all submitted tasks to finish.
	s.wg.Wait()

	s.mu.Lock()
	for _, w := range s.workers {
		close(w.quit)
	}
	s.workers = nil
	s.mu.Unlock()
}

func (s *Scheduler[K]) getOrCreateWorkerLocked(key K) *worker {
	w, ok := s.workers[key]
	if ok {
		return w
	}

	w = &worker{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	s.workers[key] = w
	go w.run(&s.wg)

	return w
}

func (w *worker) enqueue(t *task) {
	w.mu.Lock()
	w.queue = append(w.queue, t)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// run drains the queue in FIFO order, one task at a time.
func (w *worker) run(wg *sync.WaitGroup) {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.mu.Unlock()
			select {
			case <-w.wake:
				continue
			case <-w.quit:
				return
			}
		}
		t := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		t.done <- t.fn()
		wg.Done()
	}
}

// ----- Errors -----

// ErrSchedulerClosed is returned when a task is submitted to a closed
// scheduler.
var ErrSchedulerClosed = &SchedulerError{"scheduler is closed"}

// SchedulerError is a simple error implementation.
type SchedulerError struct {
	msg string
}

func (e *SchedulerError) Error() string { return e.msg }
