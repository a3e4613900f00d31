package emitter

import (
	"errors"
	"testing"
)

type listener interface {
	On(v int)
}

type recorder struct {
	name string
	log  *[]string
	fail bool
}

func (r *recorder) On(v int) {
	*r.log = append(*r.log, r.name)
	if r.fail {
		panic("listener " + r.name + " failed")
	}
}

func emitOn(e *Emitter[listener], v int) error {
	return e.Emit(func(l listener) { l.On(v) })
}

// TestEmitter_RegistrationOrder verifies dispatch order and removal
// Given: An emitter with three listeners
// When: The middle one is removed between two emits
// Then: Listeners are called in registration order and the removed one is skipped
func TestEmitter_RegistrationOrder(t *testing.T) {
	// Arrange
	var got []string
	e := New[listener](nil)
	a := &recorder{name: "a", log: &got}
	b := &recorder{name: "b", log: &got}
	c := &recorder{name: "c", log: &got}
	e.Add(a)
	e.Add(b)
	e.Add(c)

	// Act
	if err := emitOn(e, 1); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if !e.Remove(b) {
		t.Fatal("Remove(b) = false")
	}
	if e.Remove(b) {
		t.Error("second Remove(b) = true")
	}
	_ = emitOn(e, 2)

	// Assert
	want := []string{"a", "b", "c", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, got[i], want[i])
		}
	}
	if e.Len() != 2 {
		t.Errorf("Len() = %d, want 2", e.Len())
	}
}

// TestEmitter_LoggingHandlerContinues verifies isolation under the logging policy
// Given: An emitter with the default policy and a panicking first listener
// When: An event is emitted
// Then: The second listener is still notified and Emit returns nil
func TestEmitter_LoggingHandlerContinues(t *testing.T) {
	var got []string
	e := New[listener](nil)
	e.Add(&recorder{name: "bad", log: &got, fail: true})
	e.Add(&recorder{name: "good", log: &got})

	if err := emitOn(e, 1); err != nil {
		t.Fatalf("Emit returned %v, want nil", err)
	}
	if len(got) != 2 || got[1] != "good" {
		t.Errorf("calls = %v, want [bad good]", got)
	}
}

// TestEmitter_RethrowHandlerAborts verifies the rethrow policy
// Given: An emitter with RethrowHandler and a panicking first listener
// When: An event is emitted
// Then: Emit returns a *ListenerError and the second listener is skipped
func TestEmitter_RethrowHandlerAborts(t *testing.T) {
	var got []string
	e := New[listener](RethrowHandler[listener]{})
	e.Add(&recorder{name: "bad", log: &got, fail: true})
	e.Add(&recorder{name: "good", log: &got})

	err := emitOn(e, 1)

	var lerr *ListenerError
	if !errors.As(err, &lerr) {
		t.Fatalf("Emit error = %v, want *ListenerError", err)
	}
	if lerr.Value != "listener bad failed" || len(lerr.Stack) == 0 {
		t.Errorf("unexpected listener error: %+v", lerr)
	}
	if len(got) != 1 {
		t.Errorf("calls = %v, want only [bad]", got)
	}
}

// TestEmitter_StopHandler verifies the quiet stop outcome
// Given: A handler that returns ErrStop
// When: The first listener panics
// Then: Dispatch stops and Emit returns nil
func TestEmitter_StopHandler(t *testing.T) {
	var got []string
	var seen listener
	e := New[listener](HandlerFunc[listener](func(l listener, err *ListenerError) error {
		seen = l
		return ErrStop
	}))
	bad := &recorder{name: "bad", log: &got, fail: true}
	e.Add(bad)
	e.Add(&recorder{name: "good", log: &got})

	if err := emitOn(e, 1); err != nil {
		t.Fatalf("Emit returned %v, want nil", err)
	}
	if len(got) != 1 {
		t.Errorf("calls = %v, want only [bad]", got)
	}
	if seen != listener(bad) {
		t.Error("handler did not receive the failing listener")
	}
}

// TestEmitter_MutationDuringEmit verifies snapshot semantics
// Given: A listener that registers another listener while being notified
// When: Two events are emitted
// Then: The new listener only sees the second event
func TestEmitter_MutationDuringEmit(t *testing.T) {
	var got []string
	e := New[listener](nil)
	late := &recorder{name: "late", log: &got}
	added := false
	e.Add(funcListener(func(v int) {
		got = append(got, "first")
		if !added {
			added = true
			e.Add(late)
		}
	}))

	_ = emitOn(e, 1)
	_ = emitOn(e, 2)

	want := []string{"first", "first", "late"}
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, got[i], want[i])
		}
	}
}

type funcListenerBox struct{ fn func(int) }

func (f *funcListenerBox) On(v int) { f.fn(v) }

func funcListener(fn func(int)) listener { return &funcListenerBox{fn: fn} }

// tally is a value listener whose map field makes it incomparable.
type tally struct{ seen map[int]int }

func (t tally) On(v int) { t.seen[v]++ }

// TestEmitter_RejectsIncomparable verifies listeners Remove cannot match
// Given: A value listener holding a map
// When: It is added and then removed
// Then: Add fails with ErrNotComparable, nothing is registered and Remove reports false
func TestEmitter_RejectsIncomparable(t *testing.T) {
	e := New[listener](nil)
	l := tally{seen: map[int]int{}}

	if err := e.Add(l); !errors.Is(err, ErrNotComparable) {
		t.Fatalf("Add error = %v, want ErrNotComparable", err)
	}
	if e.Len() != 0 {
		t.Errorf("Len = %d, want 0", e.Len())
	}
	if e.Remove(l) {
		t.Error("Remove of an incomparable listener = true")
	}
	if err := e.Add(&recorder{name: "ok", log: &[]string{}}); err != nil {
		t.Errorf("Add pointer listener: %v", err)
	}
	if !Comparable[listener](nil) {
		t.Error("nil listener reported incomparable")
	}
}

func TestListenerError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := &ListenerError{Value: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach the panic value")
	}
	if (&ListenerError{Value: "text"}).Unwrap() != nil {
		t.Error("non-error panic value should not unwrap")
	}
}
