package task

import (
	"context"
	"testing"
)

// TestPredicates_Filtering verifies lookup through predicates
// Given: Pending executions of different modes and ids
// When: They are queried with the built-in predicates and combinators
// Then: Each query returns the matching subset
func TestPredicates_Filtering(t *testing.T) {
	m := newTestManager(t, nil)
	noop := func(ctx context.Context, tr Tracker[int]) (int, error) { return 0, nil }

	bg, _ := Create(m, NewFuncTask("bg", ModeBackground, noop))
	blk, _ := Create(m, NewFuncTask("blk", ModeBlocking, noop))
	_, _ = Create(m, NewFuncTask("quiet", ModeSilent, noop))

	tests := []struct {
		name string
		pred Predicate
		want int
	}{
		{"all", AllTasks, 3},
		{"blocking", BlockingTasks, 1},
		{"background", BackgroundTasks, 1},
		{"pending", PendingTasks, 3},
		{"started", StartedTasks, 0},
		{"by id", WithTaskID("blk"), 1},
		{"and", And(PendingTasks, BackgroundTasks), 1},
		{"or", Or(BlockingTasks, BackgroundTasks), 2},
		{"not", Not(BlockingTasks), 2},
		{"empty and", And(), 3},
		{"empty or", Or(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countSeq(m.GetTasks(tt.pred)); got != tt.want {
				t.Errorf("GetTasks(%s) = %d, want %d", tt.name, got, tt.want)
			}
		})
	}

	found, ok := m.FindTask(BlockingTasks)
	if !ok || found.Context() != blk.Context() {
		t.Errorf("FindTask(BlockingTasks) = %v, %v", found, ok)
	}
	if _, ok := m.FindTask(StartedTasks); ok {
		t.Error("FindTask(StartedTasks) found a task")
	}
	got, ok := m.GetTask(bg.Context().ID())
	if !ok || got.Context() != bg.Context() {
		t.Error("GetTask did not return the background execution")
	}
	if _, ok := m.GetTask("missing"); ok {
		t.Error("GetTask(missing) = true")
	}
}

func TestGetTasks_NilPredicatePanics(t *testing.T) {
	m := newTestManager(t, nil)
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil predicate")
		}
	}()
	m.GetTasks(nil)
}

func TestGetTasks_StopsEarly(t *testing.T) {
	m := newTestManager(t, nil)
	noop := func(ctx context.Context, tr Tracker[int]) (int, error) { return 0, nil }
	for range 5 {
		_, _ = Create(m, NewFuncTask("many", ModeBackground, noop))
	}

	seen := 0
	for range m.GetTasks(AllTasks) {
		seen++
		if seen == 2 {
			break
		}
	}
	if seen != 2 {
		t.Errorf("seen = %d, want 2", seen)
	}
}
