package task

// Predicate selects executions.
type Predicate func(TaskControl) bool

func BlockingTasks(tc TaskControl) bool {
	return tc.Context().Task().Mode() == ModeBlocking
}

func BackgroundTasks(tc TaskControl) bool {
	return tc.Context().Task().Mode() == ModeBackground
}

func PendingTasks(tc TaskControl) bool {
	return tc.Context().State() == StatePending
}

func StartedTasks(tc TaskControl) bool {
	return tc.Context().State() == StateStarted
}

func AllTasks(TaskControl) bool {
	return true
}

// WithTaskID selects executions of tasks with the given id.
func WithTaskID(id string) Predicate {
	return func(tc TaskControl) bool {
		return tc.Context().Task().ID() == id
	}
}

// And matches when every predicate matches.
func And(preds ...Predicate) Predicate {
	return func(tc TaskControl) bool {
		for _, p := range preds {
			if !p(tc) {
				return false
			}
		}
		return true
	}
}

// Or matches when any predicate matches.
func Or(preds ...Predicate) Predicate {
	return func(tc TaskControl) bool {
		for _, p := range preds {
			if p(tc) {
				return true
			}
		}
		return false
	}
}

func Not(p Predicate) Predicate {
	return func(tc TaskControl) bool {
		return !p(tc)
	}
}
