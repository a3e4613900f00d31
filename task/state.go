package task

import "fmt"

// Mode controls how visible an execution is.
type Mode int

const (
	// ModeSilent executions fire no listener events.
	ModeSilent Mode = iota + 1
	// ModeBackground executions fire events and do not block any component.
	ModeBackground
	// ModeBlocking executions fire events and block their component while started.
	ModeBlocking
)

func (m Mode) String() string {
	switch m {
	case ModeSilent:
		return "silent"
	case ModeBackground:
		return "background"
	case ModeBlocking:
		return "blocking"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	return m >= ModeSilent && m <= ModeBlocking
}

// ParseMode converts the lowercase name produced by Mode.String back into
// a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "silent":
		return ModeSilent, nil
	case "background", "":
		return ModeBackground, nil
	case "blocking":
		return ModeBlocking, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidArgument, s)
	}
}

// State is the lifecycle position of an execution.
type State int

const (
	// StateNone is only ever the old value of the first event of an execution.
	StateNone State = iota
	StatePending
	StateStarted
	StateDone
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StatePending:
		return "pending"
	case StateStarted:
		return "started"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsFinal reports whether no transition can leave s.
func (s State) IsFinal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// CanTransitionTo reports whether s -> next is a legal lifecycle edge.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StateNone:
		return next == StatePending
	case StatePending:
		return next == StateStarted || next == StateCancelled
	case StateStarted:
		return next == StateDone || next == StateFailed || next == StateCancelled
	default:
		return false
	}
}
