package core

import "time"

// TaskExecutionRecord captures one execution that reached a final state.
type TaskExecutionRecord struct {
	ContextID  string
	TaskID     string
	Mode       string
	State      string
	StartedAt  time.Time // zero if the execution was cancelled before it started
	FinishedAt time.Time
	Duration   time.Duration
}

// RunnerStats represents runtime observability state for a task runner.
type RunnerStats struct {
	Name     string
	Type     string
	Pending  int
	Executed int64
	Closed   bool
}

// PoolStats represents runtime observability state for a thread pool.
type PoolStats struct {
	ID      string
	Workers int
	Queued  int
	Active  int
	Running bool
}

// ManagerStats is a point-in-time view of a task manager's bookkeeping.
type ManagerStats struct {
	Name              string
	Live              int
	Pending           int
	Started           int
	BlockedComponents int
	Completed         int64
	Failed            int64
	Cancelled         int64
	LastTaskID        string
	LastFinishedAt    time.Time
	Closed            bool
}
