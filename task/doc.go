// Package task tracks long-running units of work through a fixed lifecycle.
//
// A Manager turns a user supplied Task into an execution (a Context plus a
// Control handle). Every execution starts PENDING, moves to STARTED when it
// is launched and ends in exactly one of DONE, FAILED or CANCELLED.
//
// All state belonging to an execution is written on one coordination
// goroutine owned by the Manager. Work functions run on a separate worker
// pool and reach the coordinator through their Tracker. Listener
// notifications and the Done/Failed/Process callbacks of a Task are always
// invoked on the coordinator, in the order the underlying changes happened.
//
// Basic usage:
//
//	m := task.NewManager(task.DefaultManagerConfig())
//	defer m.Shutdown(context.Background())
//
//	ctl, err := task.Create(m, task.NewFuncTask("load", task.ModeBackground,
//		func(ctx context.Context, tr task.Tracker[string]) (int, error) {
//			tr.SetPhase("loading")
//			return 42, nil
//		}))
//	if err != nil {
//		return err
//	}
//	v, err := ctl.WaitFor(context.Background())
package task
