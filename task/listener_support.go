package task

import (
	"fmt"
	"sync"

	"github.com/Swind/go-task-manager/emitter"
)

// ListenerSupport holds listeners for every execution of a Manager and
// listeners scoped to a task id.
type ListenerSupport struct {
	handler emitter.ExceptionHandler[Listener]
	global  *emitter.Emitter[Listener]

	mu   sync.RWMutex
	byID map[string]*emitter.Emitter[Listener]
}

func newListenerSupport(handler emitter.ExceptionHandler[Listener]) *ListenerSupport {
	return &ListenerSupport{
		handler: handler,
		global:  emitter.New(handler),
		byID:    make(map[string]*emitter.Emitter[Listener]),
	}
}

// Add registers l for every execution. nil is ignored. A listener that
// cannot be compared is rejected with emitter.ErrNotComparable.
func (s *ListenerSupport) Add(l Listener) error {
	if l == nil {
		return nil
	}
	return s.global.Add(l)
}

// Remove unregisters a listener added with Add.
func (s *ListenerSupport) Remove(l Listener) {
	if l != nil {
		s.global.Remove(l)
	}
}

// AddForTask registers l for executions whose task id is taskID.
func (s *ListenerSupport) AddForTask(taskID string, l Listener) error {
	if l == nil {
		return nil
	}
	if !emitter.Comparable(l) {
		return fmt.Errorf("%w: %T", emitter.ErrNotComparable, l)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[taskID]
	if !ok {
		e = emitter.New(s.handler)
		s.byID[taskID] = e
	}
	return e.Add(l)
}

// RemoveForTask unregisters a listener added with AddForTask.
func (s *ListenerSupport) RemoveForTask(taskID string, l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[taskID]
	if !ok {
		return
	}
	e.Remove(l)
	if e.Len() == 0 {
		delete(s.byID, taskID)
	}
}

// dispatch notifies the listeners of taskID, then the global ones. An
// error returned by the exception handler stops the dispatch.
func (s *ListenerSupport) dispatch(taskID string, notify func(Listener)) error {
	s.mu.RLock()
	scoped := s.byID[taskID]
	s.mu.RUnlock()

	if scoped != nil {
		if err := scoped.Emit(notify); err != nil {
			return err
		}
	}
	return s.global.Emit(notify)
}
