package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-task-manager/core"
)

func newTestManager(t *testing.T, mutate func(*ManagerConfig)) *Manager {
	t.Helper()
	cfg := ManagerConfig{
		Name:        t.Name(),
		Workers:     4,
		Logger:      core.NewNoOpLogger(),
		IDGenerator: &CounterIDGenerator{},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m := NewManager(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

// eventLog records listener events and callbacks as strings.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (l *eventLog) listener() *ListenerFuncs {
	return &ListenerFuncs{
		OnState: func(e ChangeEvent[State]) {
			l.add("state %s->%s", e.Old, e.New)
		},
		OnProgress: func(e ChangeEvent[int]) {
			l.add("progress %d", e.New)
		},
		OnPhase: func(e ChangeEvent[string]) {
			l.add("phase %s", e.New)
		},
	}
}

func assertEntries(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("entries = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q (all: %q)", i, got[i], want[i], got)
		}
	}
}

func waitDone(t *testing.T, c *Context) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("context %s did not finish, state %s", c.ID(), c.State())
	}
}

// flush waits until everything queued on the coordinator ran.
func flush(t *testing.T, m *Manager) {
	t.Helper()
	if err := m.coordinator.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}
}

// recordingBlocker counts calls per component.
type recordingBlocker struct {
	mu       sync.Mutex
	blocks   map[Component]int
	unblocks map[Component]int
}

func newRecordingBlocker() *recordingBlocker {
	return &recordingBlocker{blocks: map[Component]int{}, unblocks: map[Component]int{}}
}

func (b *recordingBlocker) Block(c Component) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocks[c]++
}

func (b *recordingBlocker) Unblock(c Component) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unblocks[c]++
}

func (b *recordingBlocker) counts(c Component) (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blocks[c], b.unblocks[c]
}

// recordingMetrics counts the calls the manager makes.
type recordingMetrics struct {
	core.NilMetrics
	transitions      atomic.Int32
	durations        atomic.Int32
	listenerFailures atomic.Int32
}

func (m *recordingMetrics) RecordStateTransition(taskID, mode, from, to string) {
	m.transitions.Add(1)
}

func (m *recordingMetrics) RecordTaskDuration(taskID, mode, state string, d time.Duration) {
	m.durations.Add(1)
}

func (m *recordingMetrics) RecordListenerFailure(scope string) {
	m.listenerFailures.Add(1)
}
