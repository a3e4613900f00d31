// Package emitter fans events out to a set of listeners.
//
// An Emitter keeps an immutable snapshot of its listeners. Add and Remove
// replace the snapshot under a mutex, Emit walks the snapshot it loaded
// without holding any lock, so a listener may add or remove listeners
// (including itself) while being notified. Such changes take effect from
// the next Emit.
//
// A listener that panics does not take the emitter down. The panic is
// recovered into a *ListenerError and handed to the ExceptionHandler the
// emitter was built with, which decides whether to keep notifying the
// remaining listeners.
package emitter

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Swind/go-task-manager/core"
)

// ErrNotComparable is returned by Add for a listener whose dynamic value
// cannot be compared with ==. Remove could never match it.
var ErrNotComparable = errors.New("emitter: listener is not comparable")

// ErrStop can be returned by an ExceptionHandler to skip the remaining
// listeners without reporting an error from Emit.
var ErrStop = errors.New("emitter: stop dispatch")

// ListenerError wraps a value recovered from a panicking listener.
type ListenerError struct {
	Value any
	Stack []byte
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *ListenerError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ExceptionHandler decides what happens after a listener panicked.
//
// Returning nil notifies the remaining listeners. Returning ErrStop skips
// them and Emit returns nil. Any other error skips them and is returned
// from Emit.
type ExceptionHandler[L comparable] interface {
	HandleListenerError(listener L, err *ListenerError) error
}

// HandlerFunc adapts a function to ExceptionHandler.
type HandlerFunc[L comparable] func(listener L, err *ListenerError) error

func (f HandlerFunc[L]) HandleListenerError(listener L, err *ListenerError) error {
	return f(listener, err)
}

// LoggingHandler logs the failure and keeps dispatching.
type LoggingHandler[L comparable] struct {
	Logger core.Logger
	Scope  string
}

func (h LoggingHandler[L]) HandleListenerError(listener L, err *ListenerError) error {
	logger := h.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	logger.Error("listener failed",
		core.F("scope", h.Scope),
		core.F("listener", fmt.Sprintf("%T", listener)),
		core.F("panic", err.Value),
		core.F("stack", string(err.Stack)),
	)
	return nil
}

// RethrowHandler aborts the dispatch and returns the listener error from Emit.
type RethrowHandler[L comparable] struct{}

func (RethrowHandler[L]) HandleListenerError(listener L, err *ListenerError) error {
	return err
}

// Emitter holds listeners of type L. The zero value is not usable; use New.
type Emitter[L comparable] struct {
	mu        sync.Mutex
	listeners atomic.Pointer[[]L]
	handler   ExceptionHandler[L]
}

// New creates an emitter. A nil handler falls back to LoggingHandler.
func New[L comparable](handler ExceptionHandler[L]) *Emitter[L] {
	if handler == nil {
		handler = LoggingHandler[L]{}
	}
	e := &Emitter[L]{handler: handler}
	e.listeners.Store(&[]L{})
	return e
}

// Comparable reports whether listener can be matched by Remove. A nil
// interface value is comparable.
func Comparable[L comparable](listener L) bool {
	return reflect.ValueOf(&listener).Elem().Comparable()
}

// Add registers listener. Adding the same listener twice registers it twice.
func (e *Emitter[L]) Add(listener L) error {
	if !Comparable(listener) {
		return fmt.Errorf("%w: %T", ErrNotComparable, listener)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := *e.listeners.Load()
	next := make([]L, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, listener)
	e.listeners.Store(&next)
	return nil
}

// Remove unregisters the first registration of listener. It reports
// whether anything was removed.
func (e *Emitter[L]) Remove(listener L) bool {
	if !Comparable(listener) {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := *e.listeners.Load()
	idx := slices.Index(cur, listener)
	if idx < 0 {
		return false
	}
	next := slices.Concat(cur[:idx], cur[idx+1:])
	e.listeners.Store(&next)
	return true
}

// Len returns the number of registrations.
func (e *Emitter[L]) Len() int {
	return len(*e.listeners.Load())
}

// Emit calls notify for every listener of the current snapshot in
// registration order.
func (e *Emitter[L]) Emit(notify func(L)) error {
	for _, l := range *e.listeners.Load() {
		lerr := e.call(l, notify)
		if lerr == nil {
			continue
		}
		if err := e.handler.HandleListenerError(l, lerr); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (e *Emitter[L]) call(l L, notify func(L)) (lerr *ListenerError) {
	defer func() {
		if r := recover(); r != nil {
			lerr = &ListenerError{Value: r, Stack: debug.Stack()}
		}
	}()
	notify(l)
	return nil
}
