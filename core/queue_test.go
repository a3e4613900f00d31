package core

import (
	"context"
	"testing"
)

// TestPriorityTaskQueue_Stability verifies priority-based task ordering
// Given: A priority queue with mixed-priority tasks
// When: Tasks are popped from the queue
// Then: Tasks come out in priority order (UserBlocking > UserVisible > BestEffort) with FIFO for same priority
func TestPriorityTaskQueue_Stability(t *testing.T) {
	// Arrange
	q := NewPriorityTaskQueue()
	var order []string
	mk := func(name string) Task {
		return func(ctx context.Context) { order = append(order, name) }
	}

	// Act
	q.Push(mk("low-1"), TaskPriorityBestEffort)
	q.Push(mk("high-1"), TaskPriorityUserBlocking)
	q.Push(mk("low-2"), TaskPriorityBestEffort)
	q.Push(mk("high-2"), TaskPriorityUserBlocking)
	q.Push(mk("mid"), TaskPriorityUserVisible)

	for {
		item, ok := q.Pop()
		if !ok {
			break
		}
		item.Task(context.Background())
	}

	// Assert
	want := []string{"high-1", "high-2", "mid", "low-1", "low-2"}
	if len(order) != len(want) {
		t.Fatalf("popped %d tasks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d = %s, want %s", i, order[i], want[i])
		}
	}
}

// TestFIFOTaskQueue_IgnoresPriority verifies FIFO ordering
// Given: A FIFO queue with mixed-priority tasks
// When: Tasks are popped
// Then: They come out in push order regardless of priority
func TestFIFOTaskQueue_IgnoresPriority(t *testing.T) {
	// Arrange
	q := NewFIFOTaskQueue()
	var order []int
	for i := range 3 {
		q.Push(func(ctx context.Context) { order = append(order, i) }, TaskPriority(2-i))
	}

	// Act
	for q.Len() > 0 {
		item, _ := q.Pop()
		item.Task(context.Background())
	}

	// Assert
	for i, got := range order {
		if got != i {
			t.Errorf("position %d = %d, want %d", i, got, i)
		}
	}
}

// TestFIFOTaskQueue_LongDrain verifies ordering across slice growth and compaction
// Given: A FIFO queue that grew well beyond its default capacity
// When: Almost every task is popped
// Then: The remaining tasks come out in order
func TestFIFOTaskQueue_LongDrain(t *testing.T) {
	// Arrange
	q := NewFIFOTaskQueue()
	const total = 256
	var seen []int
	for i := range total {
		q.Push(func(ctx context.Context) { seen = append(seen, i) }, TaskPriorityUserVisible)
	}

	// Act
	for range total - 3 {
		q.Pop()
	}

	// Assert
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}
	for q.Len() > 0 {
		item, _ := q.Pop()
		item.Task(context.Background())
	}
	want := []int{total - 3, total - 2, total - 1}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("remaining[%d] = %d, want %d", i, seen[i], want[i])
		}
	}
}

// TestQueues_Clear verifies Clear drops everything
// Given: Both queue kinds with queued tasks
// When: Clear is called
// Then: Len is 0 and Pop reports empty
func TestQueues_Clear(t *testing.T) {
	for _, q := range []TaskQueue{NewFIFOTaskQueue(), NewPriorityTaskQueue()} {
		q.Push(func(ctx context.Context) {}, TaskPriorityUserVisible)
		q.Push(func(ctx context.Context) {}, TaskPriorityBestEffort)

		q.Clear()

		if q.Len() != 0 {
			t.Errorf("%T Len() = %d after Clear, want 0", q, q.Len())
		}
		if _, ok := q.Pop(); ok {
			t.Errorf("%T Pop() succeeded after Clear", q)
		}
	}
}
