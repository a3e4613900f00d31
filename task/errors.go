package task

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a nil or malformed argument.
	ErrInvalidArgument = errors.New("task: invalid argument")
	// ErrIllegalState reports an operation that the current lifecycle state does not allow.
	ErrIllegalState = errors.New("task: illegal state")
	// ErrCancelled is returned by WaitFor for an execution that ended CANCELLED.
	ErrCancelled = errors.New("task: cancelled")
	// ErrManagerClosed is returned once Shutdown has been called.
	ErrManagerClosed = errors.New("task: manager closed")
	// ErrWaitOnCoordinator is returned by WaitFor when called from the coordination goroutine.
	ErrWaitOnCoordinator = errors.New("task: WaitFor called on the coordination goroutine")
	// ErrExecution matches every *ExecutionError.
	ErrExecution = errors.New("task: execution failed")
	// ErrInterrupted matches every *InterruptedError.
	ErrInterrupted = errors.New("task: wait interrupted")
)

// ExecutionError is returned by WaitFor for an execution that ended FAILED.
type ExecutionError struct {
	ContextID string
	TaskID    string
	Cause     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("error executing task %s (context %s): %v", e.TaskID, e.ContextID, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

// InterruptedError is returned by WaitFor when the caller's context ends
// before the execution does. The execution itself keeps running.
type InterruptedError struct {
	ContextID string
	Cause     error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("interrupted while waiting for context %s: %v", e.ContextID, e.Cause)
}

func (e *InterruptedError) Unwrap() error { return e.Cause }

func (e *InterruptedError) Is(target error) bool { return target == ErrInterrupted }

// PanicError is the failure cause of an Execute call that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
