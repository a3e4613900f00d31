package task

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/emitter"
)

// Context is one execution of a Task. Its fields are written on the
// coordination goroutine only and may be read from any goroutine.
type Context struct {
	id   string
	desc Descriptor
	m    *Manager
	exec execution

	mu         sync.RWMutex
	state      State
	progress   int
	phase      string
	startedAt  time.Time
	finishedAt time.Time

	local *emitter.Emitter[Listener]

	launched  atomic.Bool
	cancelReq atomic.Bool
	runCtx    context.Context
	cancelRun context.CancelFunc
	done      chan struct{}
	doneOnce  sync.Once

	// blocked is set while the execution is counted against its
	// component. Coordinator only.
	blocked bool
	// startErr fails the execution before it reaches the pool.
	// Coordinator only.
	startErr error
}

// execution is the typed half of a Context.
type execution interface {
	run(ctx context.Context) outcome
	deliver(state State, o outcome)
}

// outcome is what a worker reports back to the coordinator.
type outcome struct {
	value     any
	err       error
	cancelled bool
}

// resolve maps a worker outcome to the final state of the execution.
// Cancellation wins over the error the cancelled work may have returned.
func resolve(o outcome) State {
	switch {
	case o.cancelled:
		return StateCancelled
	case o.err != nil:
		return StateFailed
	default:
		return StateDone
	}
}

func newContext(m *Manager, id string, desc Descriptor) *Context {
	runCtx, cancel := context.WithCancel(m.ctx)
	return &Context{
		id:        id,
		desc:      desc,
		m:         m,
		state:     StatePending,
		local:     emitter.New(m.localHandler),
		runCtx:    runCtx,
		cancelRun: cancel,
		done:      make(chan struct{}),
	}
}

// ID is unique among all executions of the process.
func (c *Context) ID() string { return c.id }

// Task returns the descriptor of the executed task. Type-assert it to the
// concrete task type to reach anything else.
func (c *Context) Task() Descriptor { return c.desc }

func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Progress is the last reported percentage, 0..100.
func (c *Context) Progress() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.progress
}

// Phase is the last reported phase, empty if none.
func (c *Context) Phase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// StartedAt is zero until the execution started.
func (c *Context) StartedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startedAt
}

// FinishedAt is zero until the execution reached a final state.
func (c *Context) FinishedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finishedAt
}

// Duration reports the time between start and finish, or between start and
// now for a running execution. ok is false if the execution never started.
func (c *Context) Duration() (d time.Duration, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.startedAt.IsZero() {
		return 0, false
	}
	end := c.finishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(c.startedAt), true
}

// Done is closed once the execution reached a final state and its Done or
// Failed callback returned.
func (c *Context) Done() <-chan struct{} { return c.done }

// AddListener registers a listener for this execution only. nil is
// ignored. A listener that cannot be compared is rejected with
// emitter.ErrNotComparable.
func (c *Context) AddListener(l Listener) error {
	if l == nil {
		return nil
	}
	return c.local.Add(l)
}

// RemoveListener unregisters a listener added with AddListener.
func (c *Context) RemoveListener(l Listener) {
	if l != nil {
		c.local.Remove(l)
	}
}

func (c *Context) String() string {
	return fmt.Sprintf("Context{id=%s, task=%s, state=%s}", c.id, c.desc.ID(), c.State())
}

func (c *Context) post(fn func()) {
	c.m.coordinator.PostTask(func(context.Context) { fn() })
}

// announce fires the creation event. Runs on the coordinator.
func (c *Context) announce() {
	c.m.metrics.RecordStateTransition(c.desc.ID(), c.desc.Mode().String(), StateNone.String(), StatePending.String())
	e := ChangeEvent[State]{Old: StateNone, New: StatePending, Source: c}
	c.fire(func(l Listener) { l.StateChanged(e) })
}

// start launches a PENDING execution.
func (c *Context) start() error {
	if c.m.closed.Load() {
		return ErrManagerClosed
	}
	if c.State() != StatePending || !c.launched.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: context %s is %s", ErrIllegalState, c.id, c.State())
	}
	c.post(c.launch)
	return nil
}

// launch runs on the coordinator. STARTED is fired before the work is
// handed to the pool, so no tracker event can precede it.
func (c *Context) launch() {
	if c.cancelReq.Load() || c.State() != StatePending {
		return
	}

	c.mu.Lock()
	c.startedAt = time.Now()
	c.mu.Unlock()

	if !c.transition(StateStarted) {
		return
	}
	if c.startErr != nil {
		c.complete(outcome{err: c.startErr})
		return
	}
	if !c.m.pool.PostTaskWithPriority(c.work, priorityFor(c.desc.Mode())) {
		c.complete(outcome{cancelled: true})
	}
}

// work runs on a pool worker.
func (c *Context) work(context.Context) {
	var o outcome
	if c.runCtx.Err() != nil {
		o.cancelled = true
	} else {
		o = c.exec.run(c.runCtx)
		o.cancelled = c.runCtx.Err() != nil
	}
	c.post(func() { c.complete(o) })
}

// complete runs on the coordinator.
func (c *Context) complete(o outcome) {
	state := resolve(o)
	if !c.transition(state) {
		return
	}
	defer c.release()
	c.guard("deliver", func() { c.exec.deliver(state, o) })
}

// cancel requests cancellation. It never blocks.
func (c *Context) cancel() {
	if c.State().IsFinal() {
		return
	}
	if c.cancelReq.CompareAndSwap(false, true) {
		c.m.logger.Info("cancelling task", core.F("context", c.id), core.F("task", c.desc.ID()))
	}
	c.cancelRun()
	c.post(func() {
		if c.State() != StatePending {
			return
		}
		if c.transition(StateCancelled) {
			c.release()
		}
	})
}

// transition applies one lifecycle edge, runs the manager bookkeeping and
// fires the state event. Illegal edges are dropped. Runs on the coordinator.
func (c *Context) transition(to State) bool {
	c.mu.Lock()
	from := c.state
	if !from.CanTransitionTo(to) {
		c.mu.Unlock()
		c.m.logger.Warn("illegal transition ignored",
			core.F("context", c.id), core.F("from", from), core.F("to", to))
		return false
	}
	c.state = to
	if to.IsFinal() {
		c.finishedAt = time.Now()
	}
	c.mu.Unlock()

	c.m.track(c, from, to)

	e := ChangeEvent[State]{Old: from, New: to, Source: c}
	c.fire(func(l Listener) { l.StateChanged(e) })
	return true
}

func (c *Context) setProgress(percent int) {
	c.mu.Lock()
	if c.state.IsFinal() {
		c.mu.Unlock()
		return
	}
	old := c.progress
	c.progress = percent
	c.mu.Unlock()

	e := ChangeEvent[int]{Old: old, New: percent, Source: c}
	c.fire(func(l Listener) { l.ProgressChanged(e) })
}

func (c *Context) setPhase(phase string) {
	c.mu.Lock()
	if c.state.IsFinal() {
		c.mu.Unlock()
		return
	}
	old := c.phase
	c.phase = phase
	c.mu.Unlock()

	e := ChangeEvent[string]{Old: old, New: phase, Source: c}
	c.fire(func(l Listener) { l.PhaseChanged(e) })
}

// fire notifies task-id listeners, global listeners and then local
// listeners. Silent executions notify nobody.
func (c *Context) fire(notify func(Listener)) {
	if c.desc.Mode() == ModeSilent {
		return
	}
	if err := c.m.listeners.dispatch(c.desc.ID(), notify); err != nil {
		c.m.logger.Error("listener dispatch aborted", core.F("context", c.id), core.F("error", err))
		return
	}
	if err := c.local.Emit(notify); err != nil {
		c.m.logger.Error("local listener dispatch aborted", core.F("context", c.id), core.F("error", err))
	}
}

// guard runs a task callback and logs a panic instead of letting it reach
// the coordinator.
func (c *Context) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.m.logger.Error("task callback panicked",
				core.F("callback", name),
				core.F("context", c.id),
				core.F("panic", r),
				core.F("stack", string(debug.Stack())))
		}
	}()
	fn()
}

func (c *Context) release() {
	c.doneOnce.Do(func() {
		c.cancelRun()
		close(c.done)
	})
}

// abandon marks an execution the coordinator can no longer finish. Only
// called after the coordinator stopped.
func (c *Context) abandon() {
	c.mu.Lock()
	if !c.state.IsFinal() {
		c.state = StateCancelled
		c.finishedAt = time.Now()
	}
	c.mu.Unlock()
	c.release()
}

func priorityFor(mode Mode) core.TaskPriority {
	switch mode {
	case ModeBlocking:
		return core.TaskPriorityUserBlocking
	case ModeSilent:
		return core.TaskPriorityBestEffort
	default:
		return core.TaskPriorityUserVisible
	}
}

// result holds what WaitFor returns. Written on the coordinator before
// the context's done channel is closed.
type result[V any] struct {
	value V
	err   error
}

// worker binds a Context to its typed Task.
type worker[V, C any] struct {
	task Task[V, C]
	c    *Context
	res  result[V]
}

func (w *worker[V, C]) run(ctx context.Context) (o outcome) {
	defer func() {
		if r := recover(); r != nil {
			o = outcome{err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()
	v, err := w.task.Execute(ctx, &tracker[V, C]{w: w})
	return outcome{value: v, err: err}
}

func (w *worker[V, C]) deliver(state State, o outcome) {
	switch state {
	case StateDone:
		v, _ := o.value.(V)
		w.res.value = v
		w.task.Done(v)
	case StateFailed:
		w.res.err = o.err
		w.task.Failed(o.err)
	}
}

type tracker[V, C any] struct {
	w *worker[V, C]
}

func (t *tracker[V, C]) Publish(chunks ...C) {
	if len(chunks) == 0 {
		return
	}
	c := t.w.c
	batch := slices.Clone(chunks)
	c.post(func() {
		if c.State().IsFinal() {
			return
		}
		c.guard("process", func() { t.w.task.Process(batch) })
	})
}

func (t *tracker[V, C]) SetProgress(min, max, value int) error {
	if max <= min {
		return fmt.Errorf("%w: progress range [%d, %d] is empty", ErrInvalidArgument, min, max)
	}
	if value < min || value > max {
		return fmt.Errorf("%w: progress %d outside [%d, %d]", ErrInvalidArgument, value, min, max)
	}
	percent := int(int64(value-min) * 100 / int64(max-min))
	c := t.w.c
	c.post(func() { c.setProgress(percent) })
	return nil
}

func (t *tracker[V, C]) SetPhase(phase string) {
	c := t.w.c
	c.post(func() { c.setPhase(phase) })
}
