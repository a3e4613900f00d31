package taskmanager

import (
	"context"
	"sync"

	"github.com/Swind/go-task-manager/task"
)

// =============================================================================
// Global Manager Helper (Singleton)
// =============================================================================

var (
	globalManager *task.Manager
	globalMu      sync.Mutex
)

// InitGlobalManager creates the global manager. Later calls are ignored
// until ShutdownGlobalManager is called.
func InitGlobalManager(cfg ManagerConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager != nil {
		return // Already initialized
	}

	globalManager = task.NewManager(cfg)
}

// GetGlobalManager returns the global manager instance.
// It panics if InitGlobalManager has not been called.
func GetGlobalManager() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("GlobalManager not initialized. Call InitGlobalManager() first.")
	}
	return globalManager
}

// ShutdownGlobalManager shuts the global manager down and forgets it.
func ShutdownGlobalManager(ctx context.Context) error {
	globalMu.Lock()
	m := globalManager
	globalManager = nil
	globalMu.Unlock()

	if m == nil {
		return nil
	}
	return m.Shutdown(ctx)
}

// Create registers a new execution of t on the global manager.
func Create[V, C any](t Task[V, C]) (*Control[V], error) {
	return task.Create(GetGlobalManager(), t)
}
