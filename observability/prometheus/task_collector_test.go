package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/task"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestTaskCollector_CountsDeliveredEvents verifies the listener collector
// Given: A manager with a TaskCollector registered globally
// When: One BACKGROUND and one SILENT execution finish
// Then: Only the BACKGROUND execution is counted
func TestTaskCollector_CountsDeliveredEvents(t *testing.T) {
	reg := prom.NewRegistry()
	collector, err := NewTaskCollector("taskmanager", reg)
	if err != nil {
		t.Fatalf("NewTaskCollector failed: %v", err)
	}

	m := task.NewManager(task.ManagerConfig{Logger: core.NewNoOpLogger()})
	defer m.Shutdown(context.Background())
	m.Listeners().Add(collector)

	run := func(id string, mode task.Mode) {
		ctl, err := task.Create(m, task.NewFuncTask(id, mode,
			func(ctx context.Context, tr task.Tracker[int]) (int, error) {
				tr.SetPhase("working")
				_ = tr.SetProgress(0, 2, 1)
				return 1, nil
			}))
		if err != nil {
			t.Fatalf("Create(%s) failed: %v", id, err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := ctl.WaitFor(ctx); err != nil {
			t.Fatalf("WaitFor(%s) failed: %v", id, err)
		}
	}
	run("visible", task.ModeBackground)
	run("hidden", task.ModeSilent)

	assertEventually(t, 2*time.Second, func() bool {
		return testutil.ToFloat64(collector.eventsTotal.WithLabelValues("visible", "done")) == 1
	})

	if got := testutil.ToFloat64(collector.eventsTotal.WithLabelValues("visible", "started")); got != 1 {
		t.Errorf("started events = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.phaseTotal.WithLabelValues("visible")); got != 1 {
		t.Errorf("phase events = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.eventsTotal.WithLabelValues("hidden", "done")); got != 0 {
		t.Errorf("silent execution counted %v done events, want 0", got)
	}
	if n := testutil.CollectAndCount(collector.progress); n != 0 {
		t.Errorf("progress series after completion = %d, want 0", n)
	}
}
