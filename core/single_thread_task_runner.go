package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// SingleThreadTaskRunner binds a dedicated Goroutine to execute tasks sequentially.
// It guarantees that all tasks submitted to it run on the same Goroutine (Thread Affinity),
// which makes it the coordination thread of a task manager: every piece of
// state owned by the runner is touched only from closures posted to it.
//
// The queue is unbounded, so PostTask never blocks the caller. A closure
// running on the runner may post further closures to it without deadlocking.
type SingleThreadTaskRunner struct {
	queue  *FIFOTaskQueue
	signal chan struct{}

	// Lifecycle control
	ctx    context.Context
	cancel context.CancelFunc

	stopped      chan struct{}
	once         sync.Once
	closed       atomic.Bool
	shutdownOnce sync.Once

	panicHandler PanicHandler
	executed     atomic.Int64

	name string
	mu   sync.Mutex
}

// NewSingleThreadTaskRunner creates and starts a new SingleThreadTaskRunner.
// It immediately spawns a dedicated goroutine for task execution.
// A nil panicHandler falls back to DefaultPanicHandler.
func NewSingleThreadTaskRunner(panicHandler PanicHandler) *SingleThreadTaskRunner {
	if panicHandler == nil {
		panicHandler = &DefaultPanicHandler{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &SingleThreadTaskRunner{
		queue:        NewFIFOTaskQueue(),
		signal:       make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
		panicHandler: panicHandler,
	}

	go r.runLoop()

	return r
}

// Name returns the name of the task runner
func (r *SingleThreadTaskRunner) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// SetName sets the name of the task runner
func (r *SingleThreadTaskRunner) SetName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
}

// PostTask submits a task for execution. Tasks posted after Shutdown or Stop are dropped.
func (r *SingleThreadTaskRunner) PostTask(task Task) {
	if r.closed.Load() {
		return
	}

	r.queue.Push(task, TaskPriorityUserVisible)

	select {
	case r.signal <- struct{}{}:
	default:
		// A wake-up is already pending
	}
}

// IsCurrent reports whether ctx belongs to a closure running on this runner.
func (r *SingleThreadTaskRunner) IsCurrent(ctx context.Context) bool {
	current, ok := GetCurrentTaskRunner(ctx).(*SingleThreadTaskRunner)
	return ok && current == r
}

// Shutdown marks the runner as closed.
// Closures already queued are discarded; the runLoop exits after the
// closure it is currently executing.
func (r *SingleThreadTaskRunner) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.closed.Store(true)
		r.cancel()
	})
}

// IsClosed returns true if the runner has been stopped
func (r *SingleThreadTaskRunner) IsClosed() bool {
	return r.closed.Load()
}

// Stop shuts the runner down and waits for the runLoop to exit.
// Must not be called from a closure running on this runner.
func (r *SingleThreadTaskRunner) Stop() {
	r.once.Do(func() {
		r.Shutdown()
		<-r.stopped
		r.queue.Clear()
	})
}

// runLoop is the core of this runner, it occupies a dedicated goroutine
func (r *SingleThreadTaskRunner) runLoop() {
	defer close(r.stopped)

	runCtx := context.WithValue(r.ctx, taskRunnerKey, TaskRunner(r))

	for {
		if r.ctx.Err() != nil {
			return
		}

		item, ok := r.queue.Pop()
		if !ok {
			select {
			case <-r.signal:
				continue
			case <-r.ctx.Done():
				return
			}
		}

		r.runTask(runCtx, item.Task)
	}
}

func (r *SingleThreadTaskRunner) runTask(ctx context.Context, task Task) {
	defer func() {
		r.executed.Add(1)
		if rec := recover(); rec != nil {
			r.panicHandler.HandlePanic(ctx, r.observabilityName(), -1, rec, debug.Stack())
		}
	}()
	task(ctx)
}

func (r *SingleThreadTaskRunner) observabilityName() string {
	if name := r.Name(); name != "" {
		return name
	}
	return "single-thread"
}

// Stats returns current observability data for this runner.
func (r *SingleThreadTaskRunner) Stats() RunnerStats {
	return RunnerStats{
		Name:     r.observabilityName(),
		Type:     "single_thread",
		Pending:  r.queue.Len(),
		Executed: r.executed.Load(),
		Closed:   r.IsClosed(),
	}
}

// =============================================================================
// Synchronization Methods
// =============================================================================

// WaitIdle blocks until all currently queued tasks have completed execution.
// This is implemented by posting a barrier task and waiting for it to execute.
//
// Returns error if:
// - Context is cancelled or deadline exceeded
// - Runner is closed when WaitIdle is called
//
// Note: Tasks posted after WaitIdle is called are not waited for.
func (r *SingleThreadTaskRunner) WaitIdle(ctx context.Context) error {
	if r.IsClosed() {
		return fmt.Errorf("runner is closed")
	}
	if r.IsCurrent(ctx) {
		return fmt.Errorf("WaitIdle called from the runner's own goroutine")
	}

	done := make(chan struct{})
	r.PostTask(func(context.Context) {
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-r.stopped:
		return fmt.Errorf("runner stopped before becoming idle")
	case <-ctx.Done():
		return ctx.Err()
	}
}
