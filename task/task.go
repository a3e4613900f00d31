package task

import "context"

// Component is an opaque handle of the UI element a blocking execution
// targets. It must be comparable. nil stands for every top-level window.
type Component any

// Descriptor is the part of a Task that does not depend on its value types.
type Descriptor interface {
	// ID groups executions. It is not unique.
	ID() string
	Mode() Mode
	Component() Component
}

// Task is a unit of long-running work producing a V and publishing
// intermediate C chunks.
//
// Execute runs on a worker goroutine and should return promptly once ctx
// is cancelled. Done, Failed and Process run on the coordination goroutine.
type Task[V, C any] interface {
	Descriptor
	Execute(ctx context.Context, tracker Tracker[C]) (V, error)
	Done(value V)
	Failed(cause error)
	Process(chunks []C)
}

// Tracker is handed to Execute for reporting from the worker goroutine.
// Calls do not wait for listeners to run.
type Tracker[C any] interface {
	// Publish hands chunks to the Task's Process method.
	Publish(chunks ...C)
	// SetProgress reports value within [min, max] as a percentage.
	SetProgress(min, max, value int) error
	// SetPhase names the current step. Empty means no phase.
	SetPhase(phase string)
}

// BaseTask supplies the descriptor and no-op callbacks. Embed it and
// implement Execute.
type BaseTask[V, C any] struct {
	id        string
	mode      Mode
	component Component
}

// NewBaseTask returns a BaseTask with the given id and mode. A zero mode
// means ModeBackground.
func NewBaseTask[V, C any](id string, mode Mode) BaseTask[V, C] {
	return BaseTask[V, C]{id: id, mode: mode}
}

// NewBlockingBaseTask returns a ModeBlocking BaseTask targeting component.
func NewBlockingBaseTask[V, C any](id string, component Component) BaseTask[V, C] {
	return BaseTask[V, C]{id: id, mode: ModeBlocking, component: component}
}

func (b BaseTask[V, C]) ID() string { return b.id }

func (b BaseTask[V, C]) Mode() Mode {
	if b.mode == 0 {
		return ModeBackground
	}
	return b.mode
}

func (b BaseTask[V, C]) Component() Component { return b.component }

func (b BaseTask[V, C]) Done(V) {}

func (b BaseTask[V, C]) Failed(error) {}

func (b BaseTask[V, C]) Process([]C) {}

// FuncTask is a Task built from functions. Nil callbacks are skipped.
type FuncTask[V, C any] struct {
	BaseTask[V, C]
	Fn        func(ctx context.Context, tracker Tracker[C]) (V, error)
	OnDone    func(V)
	OnFailed  func(error)
	OnProcess func([]C)
}

var _ Task[int, int] = (*FuncTask[int, int])(nil)

// NewFuncTask creates a FuncTask running fn.
func NewFuncTask[V, C any](id string, mode Mode, fn func(ctx context.Context, tracker Tracker[C]) (V, error)) *FuncTask[V, C] {
	return &FuncTask[V, C]{BaseTask: NewBaseTask[V, C](id, mode), Fn: fn}
}

// WithComponent targets component and switches the task to ModeBlocking.
func (t *FuncTask[V, C]) WithComponent(component Component) *FuncTask[V, C] {
	t.component = component
	t.mode = ModeBlocking
	return t
}

func (t *FuncTask[V, C]) Execute(ctx context.Context, tracker Tracker[C]) (V, error) {
	if t.Fn == nil {
		var zero V
		return zero, nil
	}
	return t.Fn(ctx, tracker)
}

func (t *FuncTask[V, C]) Done(value V) {
	if t.OnDone != nil {
		t.OnDone(value)
	}
}

func (t *FuncTask[V, C]) Failed(cause error) {
	if t.OnFailed != nil {
		t.OnFailed(cause)
	}
}

func (t *FuncTask[V, C]) Process(chunks []C) {
	if t.OnProcess != nil {
		t.OnProcess(chunks)
	}
}
