package task

import (
	"errors"
	"testing"

	"github.com/Swind/go-task-manager/core"
)

func TestBlockCounter(t *testing.T) {
	b := newBlockCounter()

	if first, err := b.acquire("w"); err != nil || !first {
		t.Fatalf("first acquire = %v, %v; want true, nil", first, err)
	}
	if first, _ := b.acquire("w"); first {
		t.Fatal("second acquire should not report 0->1")
	}
	if first, _ := b.acquire(nil); !first {
		t.Fatal("nil component is counted on its own")
	}
	if b.len() != 2 {
		t.Fatalf("len = %d, want 2", b.len())
	}
	if b.release("w") {
		t.Fatal("release 2->1 should not report 1->0")
	}
	if !b.release("w") {
		t.Fatal("release 1->0 should report")
	}
	if b.release("w") {
		t.Fatal("release of an unknown component should not report")
	}
	if b.len() != 1 {
		t.Errorf("len = %d, want 1", b.len())
	}
}

// TestBlockCounter_IncomparableValue verifies the counter survives a bad key
// Given: A component whose dynamic value holds a slice
// When: It is acquired
// Then: acquire returns a *PanicError and nothing is counted
func TestBlockCounter_IncomparableValue(t *testing.T) {
	b := newBlockCounter()

	first, err := b.acquire(sliceHolder{v: []int{1}})

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("acquire error = %v, want *PanicError", err)
	}
	if first {
		t.Error("failed acquire should not report 0->1")
	}
	if b.len() != 0 {
		t.Errorf("len = %d, want 0", b.len())
	}
}

func TestLoggingBlocker_Forwards(t *testing.T) {
	next := newRecordingBlocker()
	b := &LoggingBlocker{Logger: core.NewNoOpLogger(), Next: next}

	b.Block("panel")
	b.Unblock("panel")

	if bl, ub := next.counts("panel"); bl != 1 || ub != 1 {
		t.Errorf("forwarded block=%d unblock=%d, want 1/1", bl, ub)
	}
}
