package core

import (
	"context"
	"runtime/debug"
	"sync"
	"time"
)

// GoroutineThreadPool manages a fixed set of worker goroutines.
// Workers pull closures from the pool's TaskScheduler and run them.
type GoroutineThreadPool struct {
	id        string
	workers   int
	scheduler *TaskScheduler
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex
}

// NewGoroutineThreadPool creates a pool that runs work in posting order.
// Panics if workers < 1.
func NewGoroutineThreadPool(id string, workers int, config *TaskSchedulerConfig) *GoroutineThreadPool {
	if workers < 1 {
		panic("GoroutineThreadPool: workers must be at least 1")
	}
	return &GoroutineThreadPool{
		id:        id,
		workers:   workers,
		scheduler: NewFIFOTaskScheduler(id, workers, config),
	}
}

// NewPriorityGoroutineThreadPool creates a pool that runs higher priorities first.
// Panics if workers < 1.
func NewPriorityGoroutineThreadPool(id string, workers int, config *TaskSchedulerConfig) *GoroutineThreadPool {
	if workers < 1 {
		panic("GoroutineThreadPool: workers must be at least 1")
	}
	return &GoroutineThreadPool{
		id:        id,
		workers:   workers,
		scheduler: NewPriorityTaskScheduler(id, workers, config),
	}
}

// Start starts all worker goroutines
func (tg *GoroutineThreadPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running {
		return
	}

	tg.ctx, tg.cancel = context.WithCancel(ctx)
	tg.running = true

	for i := 0; i < tg.workers; i++ {
		tg.wg.Add(1)
		go tg.workerLoop(i, tg.ctx)
	}
}

// Stop drops queued work, cancels the worker context and waits for the
// workers to return.
func (tg *GoroutineThreadPool) Stop() {
	tg.scheduler.Shutdown()

	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return
	}
	tg.runningMu.Unlock()

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()
}

// StopGraceful stops the thread pool gracefully, waiting for queued tasks to complete
// Returns error if timeout is exceeded before tasks complete
func (tg *GoroutineThreadPool) StopGraceful(timeout time.Duration) error {
	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		tg.scheduler.Shutdown()
		return nil
	}
	tg.runningMu.Unlock()

	err := tg.scheduler.ShutdownGraceful(timeout)

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()

	return err
}

// ID returns the ID of the thread pool
func (tg *GoroutineThreadPool) ID() string {
	return tg.id
}

// IsRunning returns whether the thread pool is running
func (tg *GoroutineThreadPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

func (tg *GoroutineThreadPool) workerLoop(id int, ctx context.Context) {
	defer tg.wg.Done()
	stopCh := ctx.Done()
	runCtx := context.WithValue(ctx, taskRunnerKey, TaskRunner(tg))

	for {
		task, ok := tg.scheduler.GetWork(stopCh)
		if !ok {
			return
		}

		tg.scheduler.OnTaskStart()
		func() {
			defer func() {
				tg.scheduler.OnTaskEnd()
				if r := recover(); r != nil {
					tg.scheduler.GetPanicHandler().HandlePanic(runCtx, tg.id, id, r, debug.Stack())
				}
			}()
			task(runCtx)
		}()
	}
}

// Join waits for all worker goroutines to finish
func (tg *GoroutineThreadPool) Join() {
	tg.wg.Wait()
}

// WorkerCount returns the number of workers
func (tg *GoroutineThreadPool) WorkerCount() int {
	return tg.workers
}

func (tg *GoroutineThreadPool) QueuedTaskCount() int {
	return tg.scheduler.QueuedTaskCount()
}

func (tg *GoroutineThreadPool) ActiveTaskCount() int {
	return tg.scheduler.ActiveTaskCount()
}

// PostTask queues a task at the default priority.
func (tg *GoroutineThreadPool) PostTask(task Task) {
	tg.scheduler.Post(task, TaskPriorityUserVisible)
}

// PostTaskWithPriority queues a task. Returns false if the pool is shutting
// down and the task was rejected.
func (tg *GoroutineThreadPool) PostTaskWithPriority(task Task, priority TaskPriority) bool {
	return tg.scheduler.Post(task, priority)
}

// Stats returns current observability data for this pool.
func (tg *GoroutineThreadPool) Stats() PoolStats {
	return PoolStats{
		ID:      tg.id,
		Workers: tg.workers,
		Queued:  tg.QueuedTaskCount(),
		Active:  tg.ActiveTaskCount(),
		Running: tg.IsRunning(),
	}
}
