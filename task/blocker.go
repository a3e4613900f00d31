package task

import (
	"runtime/debug"

	"github.com/Swind/go-task-manager/core"
)

// Blocker toggles input blocking on a component. A nil component means
// every top-level window. Both methods are called on the coordination
// goroutine and should return quickly.
type Blocker interface {
	Block(component Component)
	Unblock(component Component)
}

// NopBlocker ignores every call.
type NopBlocker struct{}

func (NopBlocker) Block(Component)   {}
func (NopBlocker) Unblock(Component) {}

// LoggingBlocker logs each call, then forwards it to Next if set.
type LoggingBlocker struct {
	Logger core.Logger
	Next   Blocker
}

func (b *LoggingBlocker) Block(component Component) {
	b.Logger.Info("blocking component", core.F("component", component))
	if b.Next != nil {
		b.Next.Block(component)
	}
}

func (b *LoggingBlocker) Unblock(component Component) {
	b.Logger.Info("unblocking component", core.F("component", component))
	if b.Next != nil {
		b.Next.Unblock(component)
	}
}

// blockCounter counts started blocking executions per component. It is
// only touched on the coordination goroutine.
type blockCounter struct {
	counts map[Component]int
}

func newBlockCounter() *blockCounter {
	return &blockCounter{counts: make(map[Component]int)}
}

// acquire reports whether component went from 0 to 1. A component whose
// dynamic value cannot be a map key yields an error and is not counted.
func (b *blockCounter) acquire(component Component) (first bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	b.counts[component]++
	return b.counts[component] == 1, nil
}

// release reports whether component went from 1 to 0.
func (b *blockCounter) release(component Component) bool {
	n, ok := b.counts[component]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(b.counts, component)
		return true
	}
	b.counts[component] = n - 1
	return false
}

func (b *blockCounter) len() int {
	return len(b.counts)
}
