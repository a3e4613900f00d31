package task

import (
	"context"
	"errors"
	"fmt"
)

// TaskControl is the value-type independent view of a Control, as stored
// and returned by a Manager.
type TaskControl interface {
	Context() *Context
	// Execute launches the execution if it is still PENDING.
	Execute() error
	// Cancel requests cancellation without waiting for it.
	Cancel()
	// Await is WaitFor with the value boxed.
	Await(ctx context.Context) (any, error)
}

// Control is the caller's handle on one execution.
type Control[V any] struct {
	c   *Context
	res *result[V]
}

var _ TaskControl = (*Control[int])(nil)

func (ctl *Control[V]) Context() *Context { return ctl.c }

// Execute launches the execution. It is a no-op for an execution that was
// already launched or has finished.
func (ctl *Control[V]) Execute() error {
	err := ctl.c.start()
	if errors.Is(err, ErrIllegalState) {
		return nil
	}
	return err
}

func (ctl *Control[V]) Cancel() {
	ctl.c.cancel()
}

// WaitFor launches a PENDING execution and blocks until it finishes or ctx
// ends. A FAILED execution yields an *ExecutionError, a CANCELLED one
// ErrCancelled and an ended ctx an *InterruptedError.
//
// WaitFor must not be called on the coordination goroutine; when ctx
// identifies it, ErrWaitOnCoordinator is returned.
func (ctl *Control[V]) WaitFor(ctx context.Context) (V, error) {
	var zero V
	if ctl.c.m.coordinator.IsCurrent(ctx) {
		return zero, ErrWaitOnCoordinator
	}
	if ctl.c.State() == StatePending {
		if err := ctl.c.start(); err != nil && !errors.Is(err, ErrIllegalState) {
			return zero, err
		}
	}

	select {
	case <-ctl.c.done:
	default:
		select {
		case <-ctl.c.done:
		case <-ctx.Done():
			return zero, &InterruptedError{ContextID: ctl.c.id, Cause: ctx.Err()}
		}
	}
	return ctl.result()
}

func (ctl *Control[V]) Await(ctx context.Context) (any, error) {
	v, err := ctl.WaitFor(ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (ctl *Control[V]) result() (V, error) {
	var zero V
	switch ctl.c.State() {
	case StateDone:
		return ctl.res.value, nil
	case StateFailed:
		return zero, &ExecutionError{ContextID: ctl.c.id, TaskID: ctl.c.desc.ID(), Cause: ctl.res.err}
	default:
		return zero, fmt.Errorf("%w: context %s", ErrCancelled, ctl.c.id)
	}
}
