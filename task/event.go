package task

// ChangeEvent describes one change of a value of an execution.
type ChangeEvent[T any] struct {
	Old    T
	New    T
	Source *Context
}

// Listener observes executions. Implementations must be comparable so they
// can be removed again; registering one that is not fails with
// emitter.ErrNotComparable. Use a pointer for struct types with func or map
// fields.
type Listener interface {
	StateChanged(e ChangeEvent[State])
	ProgressChanged(e ChangeEvent[int])
	PhaseChanged(e ChangeEvent[string])
}

// ListenerFuncs adapts optional functions to Listener. Register it by
// pointer.
type ListenerFuncs struct {
	OnState    func(ChangeEvent[State])
	OnProgress func(ChangeEvent[int])
	OnPhase    func(ChangeEvent[string])
}

var _ Listener = (*ListenerFuncs)(nil)

func (l *ListenerFuncs) StateChanged(e ChangeEvent[State]) {
	if l.OnState != nil {
		l.OnState(e)
	}
}

func (l *ListenerFuncs) ProgressChanged(e ChangeEvent[int]) {
	if l.OnProgress != nil {
		l.OnProgress(e)
	}
}

func (l *ListenerFuncs) PhaseChanged(e ChangeEvent[string]) {
	if l.OnPhase != nil {
		l.OnPhase(e)
	}
}
