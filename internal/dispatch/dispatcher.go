package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Defaults applied when Config leaves a field at zero.
const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Task is one unit of background work.
type Task func()

// Config sizes the worker pool.
type Config struct {
	Workers   int
	QueueSize int
}

// Logger is the subset of logging.Logger the dispatcher uses.
type Logger interface {
	Error(msg string, args ...any)
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Submitted      uint64
	Completed      uint64
	Rejected       uint64
	Panicked       uint64
	Queued         int
	PriorityQueued int
}

// Dispatcher is a worker pool with a bounded lane and an unbounded
// priority lane. Workers always take priority tasks first.
//
// Thread Safety: Enqueue, EnqueuePriority, Stats and Shutdown are safe for
// concurrent use.
type Dispatcher struct {
	workers int
	queue   chan Task
	logger  Logger

	// priority is never full; wake nudges idle workers after a push.
	priority []Task
	prioMu   sync.Mutex
	wake     chan struct{}

	group *errgroup.Group

	// mu guards closed against a concurrent send on queue.
	mu      sync.RWMutex
	closed  bool
	started bool

	stopOnce sync.Once
	done     chan struct{}

	submitted atomic.Uint64
	completed atomic.Uint64
	rejected  atomic.Uint64
	panicked  atomic.Uint64
}

// New creates a dispatcher. Call Start before enqueueing.
// A nil logger disables panic logging.
func New(cfg Config, logger Logger) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Dispatcher{
		workers: workers,
		queue:   make(chan Task, queueSize),
		wake:    make(chan struct{}, workers),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true

	d.group = &errgroup.Group{}
	for i := 0; i < d.workers; i++ {
		d.group.Go(d.work)
	}
	go func() {
		_ = d.group.Wait() //nolint:errcheck // workers never return errors
		close(d.done)
	}()
}

// Enqueue submits a task and returns immediately.
//
// Returns:
//   - ErrClosed after Shutdown
//   - ErrQueueFull when the queue has no free slot
func (d *Dispatcher) Enqueue(task Task) error {
	if task == nil {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.rejected.Add(1)
		return ErrClosed
	}

	select {
	case d.queue <- task:
		d.submitted.Add(1)
		return nil
	default:
		d.rejected.Add(1)
		return ErrQueueFull
	}
}

// EnqueuePriority submits a task that must not be dropped. It never blocks
// and only fails with ErrClosed after Shutdown. Priority tasks run ahead of
// tasks in the bounded lane.
func (d *Dispatcher) EnqueuePriority(task Task) error {
	if task == nil {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.rejected.Add(1)
		return ErrClosed
	}

	d.prioMu.Lock()
	d.priority = append(d.priority, task)
	d.prioMu.Unlock()
	d.submitted.Add(1)

	select {
	case d.wake <- struct{}{}:
	default:
		// Every worker already has a pending wake-up.
	}
	return nil
}

// Shutdown stops intake and waits for queued tasks to finish.
//
// If ctx expires first, Shutdown returns the context error; workers keep
// draining in the background.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.RLock()
	started := d.started
	d.mu.RUnlock()

	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	if !started {
		return ErrNotStarted
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch: drain incomplete: %w", ctx.Err())
	}
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted:      d.submitted.Load(),
		Completed:      d.completed.Load(),
		Rejected:       d.rejected.Load(),
		Panicked:       d.panicked.Load(),
		Queued:         len(d.queue),
		PriorityQueued: d.priorityLen(),
	}
}

// work runs tasks until the queue is closed and both lanes are drained.
func (d *Dispatcher) work() error {
	for {
		if task, ok := d.popPriority(); ok {
			d.run(task)
			continue
		}

		select {
		case <-d.wake:
		case task, ok := <-d.queue:
			if !ok {
				for task, ok := d.popPriority(); ok; task, ok = d.popPriority() {
					d.run(task)
				}
				return nil
			}
			d.run(task)
		}
	}
}

func (d *Dispatcher) popPriority() (Task, bool) {
	d.prioMu.Lock()
	defer d.prioMu.Unlock()

	if len(d.priority) == 0 {
		return nil, false
	}
	task := d.priority[0]
	d.priority[0] = nil
	d.priority = d.priority[1:]
	return task, true
}

func (d *Dispatcher) priorityLen() int {
	d.prioMu.Lock()
	defer d.prioMu.Unlock()
	return len(d.priority)
}

// run executes one task, containing any panic to the task.
func (d *Dispatcher) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			d.panicked.Add(1)
			if d.logger != nil {
				d.logger.Error("dispatch task panic recovered", "panic", r)
			}
			return
		}
		d.completed.Add(1)
	}()

	task()
}
