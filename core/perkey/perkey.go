// Package perkey runs work serialized per key and concurrent across keys.
//
// Event handler processing keys work by partition: events of one partition
// are handled strictly one after the other, in arrival order, while other
// partitions make progress in parallel.
package perkey

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrSchedulerClosed = errors.New("scheduler closed")

type Option func(*config)

type config struct {
	bufferSize  int
	idleTimeout time.Duration
}

// WithBufferSize sets how many tasks may queue per key (default 64).
func WithBufferSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

// WithIdleTimeout stops the worker of a key once it has been idle for d.
// Zero keeps workers until Close.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.idleTimeout = d
		}
	}
}

// Scheduler executes tasks for one key in submission order.
type Scheduler[K comparable] struct {
	cfg config

	mu      sync.Mutex
	workers map[K]*worker
	closed  bool
	enq     sync.WaitGroup // submissions that may still send to a worker
	running sync.WaitGroup // live worker goroutines
}

type worker struct {
	tasks   chan func()
	pending int // guarded by Scheduler.mu
}

func New[K comparable](opts ...Option) *Scheduler[K] {
	cfg := config{bufferSize: 64}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Scheduler[K]{cfg: cfg, workers: make(map[K]*worker)}
}

// Do runs fn for key and returns its error.
func (s *Scheduler[K]) Do(key K, fn func() error) error {
	return s.DoContext(context.Background(), key, fn)
}

// DoContext is Do bounded by ctx. Once queued, fn runs even if ctx ends
// before it completes; the caller just stops waiting.
func (s *Scheduler[K]) DoContext(ctx context.Context, key K, fn func() error) error {
	done := make(chan error, 1)
	if err := s.Submit(ctx, key, func() { done <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues fn for key without waiting for it to run. It blocks only
// while the queue of key is full.
func (s *Scheduler[K]) Submit(ctx context.Context, key K, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	w := s.workerLocked(key)
	w.pending++
	s.enq.Add(1)
	s.mu.Unlock()
	defer s.enq.Done()

	select {
	case w.tasks <- fn:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		w.pending--
		s.mu.Unlock()
		return ctx.Err()
	}
}

// Len returns the number of keys with a live worker.
func (s *Scheduler[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// Close rejects new tasks, lets queued ones finish and waits for all
// workers to exit.
func (s *Scheduler[K]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.enq.Wait()

	s.mu.Lock()
	for k, w := range s.workers {
		close(w.tasks)
		delete(s.workers, k)
	}
	s.mu.Unlock()

	s.running.Wait()
}

func (s *Scheduler[K]) workerLocked(key K) *worker {
	if w, ok := s.workers[key]; ok {
		return w
	}
	w := &worker{tasks: make(chan func(), s.cfg.bufferSize)}
	s.workers[key] = w
	s.running.Add(1)
	go s.run(key, w)
	return w
}

func (s *Scheduler[K]) run(key K, w *worker) {
	defer s.running.Done()

	var idle <-chan time.Time
	var timer *time.Timer
	if s.cfg.idleTimeout > 0 {
		timer = time.NewTimer(s.cfg.idleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case fn, ok := <-w.tasks:
			if !ok {
				return
			}
			fn()
			s.mu.Lock()
			w.pending--
			s.mu.Unlock()
			if timer != nil {
				timer.Reset(s.cfg.idleTimeout)
			}
		case <-idle:
			s.mu.Lock()
			if w.pending == 0 && s.workers[key] == w {
				delete(s.workers, key)
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			timer.Reset(s.cfg.idleTimeout)
		}
	}
}
