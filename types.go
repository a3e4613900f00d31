package taskmanager

import (
	"context"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/task"
)

// Re-export commonly used types from the task package for convenience.
// This allows users to import only the taskmanager package for most use cases.

type (
	Mode        = task.Mode
	State       = task.State
	Component   = task.Component
	Descriptor  = task.Descriptor
	Listener    = task.Listener
	Manager     = task.Manager
	TaskControl = task.TaskControl
	Predicate   = task.Predicate
	Blocker     = task.Blocker
	Context     = task.Context

	ManagerConfig = task.ManagerConfig
	ListenerFuncs = task.ListenerFuncs
)

// Generic re-exports.
type (
	Task[V, C any]     = task.Task[V, C]
	Tracker[C any]     = task.Tracker[C]
	BaseTask[V, C any] = task.BaseTask[V, C]
	FuncTask[V, C any] = task.FuncTask[V, C]
	Control[V any]     = task.Control[V]
	ChangeEvent[T any] = task.ChangeEvent[T]
)

const (
	ModeSilent     = task.ModeSilent
	ModeBackground = task.ModeBackground
	ModeBlocking   = task.ModeBlocking

	StatePending   = task.StatePending
	StateStarted   = task.StateStarted
	StateDone      = task.StateDone
	StateFailed    = task.StateFailed
	StateCancelled = task.StateCancelled
)

// Errors
var (
	ErrInvalidArgument   = task.ErrInvalidArgument
	ErrIllegalState      = task.ErrIllegalState
	ErrCancelled         = task.ErrCancelled
	ErrManagerClosed     = task.ErrManagerClosed
	ErrWaitOnCoordinator = task.ErrWaitOnCoordinator
	ErrExecution         = task.ErrExecution
	ErrInterrupted       = task.ErrInterrupted
)

// Predicates
var (
	BlockingTasks   = task.BlockingTasks
	BackgroundTasks = task.BackgroundTasks
	PendingTasks    = task.PendingTasks
	StartedTasks    = task.StartedTasks
	AllTasks        = task.AllTasks
	WithTaskID      = task.WithTaskID
	And             = task.And
	Or              = task.Or
	Not             = task.Not
)

var (
	NewManager           = task.NewManager
	DefaultManagerConfig = task.DefaultManagerConfig
	FormatDuration       = task.FormatDuration
)

// NewFuncTask creates a task from a function.
func NewFuncTask[V, C any](id string, mode Mode, fn func(ctx context.Context, tracker Tracker[C]) (V, error)) *FuncTask[V, C] {
	return task.NewFuncTask(id, mode, fn)
}

// Logger is re-exported for callers configuring a manager.
type Logger = core.Logger
