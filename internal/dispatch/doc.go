// Package dispatch runs send tasks off the producer's goroutine.
//
// A Dispatcher owns a bounded task queue and a fixed set of workers.
// Enqueue never blocks: when the queue is full the task is rejected with
// ErrQueueFull and the caller drops it. EnqueuePriority is for tasks that
// must never be dropped: it appends to an unbounded lane that workers drain
// before the bounded one. Tasks carry no ordering guarantee relative to
// each other.
//
// Shutdown stops intake, lets workers drain what is queued and waits for
// them, bounded by the caller's context.
//
//	d := dispatch.New(dispatch.Config{Workers: 4, QueueSize: 256}, logger)
//	d.Start()
//	_ = d.Enqueue(func() { send(payload) })
//	_ = d.Shutdown(ctx)
package dispatch
