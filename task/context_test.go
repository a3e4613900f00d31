package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Swind/go-task-manager/emitter"
)

// TestContext_Duration verifies duration semantics
// Given: A task that sleeps briefly
// When: Duration is read before start, after finish and again later
// Then: It is absent first, then positive and frozen
func TestContext_Duration(t *testing.T) {
	m := newTestManager(t, nil)
	ctl, _ := Create(m, NewFuncTask("timed", ModeBackground, func(ctx context.Context, tr Tracker[int]) (int, error) {
		time.Sleep(15 * time.Millisecond)
		return 0, nil
	}))

	if _, ok := ctl.Context().Duration(); ok {
		t.Error("Duration reported before start")
	}
	if !ctl.Context().StartedAt().IsZero() {
		t.Error("StartedAt set before start")
	}

	_, _ = ctl.WaitFor(context.Background())

	d1, ok := ctl.Context().Duration()
	if !ok || d1 < 15*time.Millisecond {
		t.Fatalf("Duration = %v, %v; want >= 15ms", d1, ok)
	}
	time.Sleep(5 * time.Millisecond)
	d2, _ := ctl.Context().Duration()
	if d1 != d2 {
		t.Errorf("Duration changed after finish: %v -> %v", d1, d2)
	}
	if ctl.Context().FinishedAt().Before(ctl.Context().StartedAt()) {
		t.Error("FinishedAt before StartedAt")
	}
}

// TestTracker_SetProgressValidation verifies argument checks
// Given: A running task
// When: SetProgress is called with an empty range, an out of range value and a valid value
// Then: The first two fail with ErrInvalidArgument and the last sets 50%
func TestTracker_SetProgressValidation(t *testing.T) {
	m := newTestManager(t, nil)
	errs := make(chan error, 3)
	ctl, _ := Create(m, NewFuncTask("progress", ModeBackground, func(ctx context.Context, tr Tracker[int]) (int, error) {
		errs <- tr.SetProgress(5, 5, 5)
		errs <- tr.SetProgress(0, 10, 11)
		errs <- tr.SetProgress(-10, 10, 0)
		return 0, nil
	}))
	_, _ = ctl.WaitFor(context.Background())

	if err := <-errs; !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty range error = %v", err)
	}
	if err := <-errs; !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("out of range error = %v", err)
	}
	if err := <-errs; err != nil {
		t.Errorf("valid progress error = %v", err)
	}
	if got := ctl.Context().Progress(); got != 50 {
		t.Errorf("Progress = %d, want 50", got)
	}
}

// TestTracker_PublishReachesProcess verifies intermediate results
// Given: A task publishing chunks in two calls
// When: It runs
// Then: Process receives both batches in order before Done
func TestTracker_PublishReachesProcess(t *testing.T) {
	m := newTestManager(t, nil)
	log := &eventLog{}
	tk := NewFuncTask("publisher", ModeBackground, func(ctx context.Context, tr Tracker[int]) (int, error) {
		tr.Publish(1, 2)
		tr.Publish()
		tr.Publish(3)
		return 3, nil
	})
	tk.OnProcess = func(chunks []int) { log.add("process %v", chunks) }
	tk.OnDone = func(v int) { log.add("done %d", v) }

	ctl, _ := Create(m, tk)
	_, _ = ctl.WaitFor(context.Background())

	assertEntries(t, log.snapshot(), []string{"process [1 2]", "process [3]", "done 3"})
}

// TestTracker_DropsLateUpdates verifies terminal states are frozen
// Given: A tracker kept after its execution finished
// When: Phase and progress are reported through it
// Then: No event fires and the context fields keep their final values
func TestTracker_DropsLateUpdates(t *testing.T) {
	m := newTestManager(t, nil)
	log := &eventLog{}
	m.Listeners().Add(log.listener())

	var (
		mu   sync.Mutex
		kept Tracker[int]
	)
	ctl, _ := Create(m, NewFuncTask("leaky", ModeBackground, func(ctx context.Context, tr Tracker[int]) (int, error) {
		mu.Lock()
		kept = tr
		mu.Unlock()
		tr.SetPhase("working")
		return 0, nil
	}))
	_, _ = ctl.WaitFor(context.Background())
	before := len(log.snapshot())

	mu.Lock()
	kept.SetPhase("late")
	_ = kept.SetProgress(0, 10, 10)
	kept.Publish(1)
	mu.Unlock()
	flush(t, m)

	if got := len(log.snapshot()); got != before {
		t.Errorf("late updates fired %d events", got-before)
	}
	if ctl.Context().Phase() != "working" || ctl.Context().Progress() != 0 {
		t.Errorf("late updates changed the context: phase=%q progress=%d",
			ctl.Context().Phase(), ctl.Context().Progress())
	}
}

// TestContext_LocalListeners verifies per-execution registration
// Given: A local listener added and then removed
// When: The execution runs
// Then: The removed listener sees nothing, nil is ignored and incomparable listeners are rejected
func TestContext_LocalListeners(t *testing.T) {
	m := newTestManager(t, nil)
	kept := &eventLog{}
	removed := &eventLog{}

	ctl, _ := Create(m, NewFuncTask("local", ModeBackground, func(ctx context.Context, tr Tracker[int]) (int, error) {
		return 0, nil
	}))
	keptL, removedL := kept.listener(), removed.listener()
	ctl.Context().AddListener(nil)
	ctl.Context().AddListener(keptL)
	ctl.Context().AddListener(removedL)
	ctl.Context().RemoveListener(removedL)
	ctl.Context().RemoveListener(nil)
	bad := stateCounts{seen: map[State]int{}}
	if err := ctl.Context().AddListener(bad); !errors.Is(err, emitter.ErrNotComparable) {
		t.Errorf("AddListener error = %v, want ErrNotComparable", err)
	}
	ctl.Context().RemoveListener(bad)

	_, _ = ctl.WaitFor(context.Background())

	if len(removed.snapshot()) != 0 {
		t.Errorf("removed listener saw %q", removed.snapshot())
	}
	got := kept.snapshot()
	if len(got) == 0 || got[len(got)-1] != "state started->done" {
		t.Errorf("kept listener saw %q", got)
	}
}
