// Package taskmanager runs long-running units of work with a tracked
// lifecycle, progress reporting and listener notifications.
//
// Every execution moves PENDING -> STARTED -> DONE, FAILED or CANCELLED.
// State changes, progress and phase updates are delivered to listeners on
// a single coordination goroutine, so listeners never run concurrently
// with each other. Executions in BLOCKING mode additionally drive a Blocker
// that excludes interaction with a UI component while they run.
//
// # Quick Start
//
// Initialize the global manager at application startup:
//
//	taskmanager.InitGlobalManager(taskmanager.DefaultManagerConfig())
//	defer taskmanager.ShutdownGlobalManager(context.Background())
//
// Create and wait for an execution:
//
//	ctl, err := taskmanager.Create(taskmanager.NewFuncTask("import", taskmanager.ModeBackground,
//		func(ctx context.Context, tr taskmanager.Tracker[string]) (int, error) {
//			tr.SetPhase("reading")
//			_ = tr.SetProgress(0, 10, 5)
//			return 10, nil
//		}))
//	if err != nil {
//		return err
//	}
//	n, err := ctl.WaitFor(ctx)
//
// # Key Concepts
//
// Task: user supplied work with Done, Failed and Process callbacks. Embed
// BaseTask or use FuncTask.
//
// Mode: SILENT executions fire no events, BACKGROUND ones fire events,
// BLOCKING ones fire events and block their component while started.
//
// Listener: receives state, progress and phase changes. Register it for
// every execution, for one task id, or on a single execution.
//
// # Thread Safety
//
// Manager, Control and Context are safe for concurrent use. Listener
// callbacks and task callbacks run on the coordination goroutine and must
// not call WaitFor.
//
// The underlying runners, pools and queues live in the core package; the
// full API lives in the task package.
package taskmanager
