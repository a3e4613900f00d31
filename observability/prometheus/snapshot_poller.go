package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-manager/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// RunnerSnapshotProvider provides current runner stats snapshots.
type RunnerSnapshotProvider interface {
	Stats() core.RunnerStats
}

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// ManagerSnapshotProvider provides current manager stats snapshots.
type ManagerSnapshotProvider interface {
	Stats() core.ManagerStats
}

type (
	runnerFunc func() core.RunnerStats
	poolFunc   func() core.PoolStats
)

func (f runnerFunc) Stats() core.RunnerStats { return f() }
func (f poolFunc) Stats() core.PoolStats { return f() }

// managerInternals is what task.Manager exposes beyond its own Stats.
type managerInternals interface {
	ManagerSnapshotProvider
	Name() string
	CoordinatorStats() core.RunnerStats
	WorkerStats() core.PoolStats
}

// SnapshotPoller periodically exports Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	namespace string
	interval  time.Duration

	mu       sync.RWMutex
	runners  map[string]RunnerSnapshotProvider
	pools    map[string]PoolSnapshotProvider
	managers map[string]ManagerSnapshotProvider

	runnerPending  *prom.GaugeVec
	runnerExecuted *prom.GaugeVec
	runnerClosed   *prom.GaugeVec

	poolQueued  *prom.GaugeVec
	poolActive  *prom.GaugeVec
	poolWorkers *prom.GaugeVec
	poolRunning *prom.GaugeVec

	managerExecutions *prom.GaugeVec
	managerFinished   *prom.GaugeVec
	managerBlocked    *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = "taskmanager"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	p := &SnapshotPoller{
		namespace: namespace,
		interval:  interval,
		runners:   make(map[string]RunnerSnapshotProvider),
		pools:     make(map[string]PoolSnapshotProvider),
		managers:  make(map[string]ManagerSnapshotProvider),

		runnerPending:  gauge("runner_pending", "Number of pending closures per runner.", "runner", "type"),
		runnerExecuted: gauge("runner_executed", "Closures executed per runner.", "runner", "type"),
		runnerClosed:   gauge("runner_closed", "Runner closed state (1=closed, 0=open).", "runner", "type"),

		poolQueued:  gauge("pool_queued", "Queued tasks per pool.", "pool"),
		poolActive:  gauge("pool_active", "Active tasks per pool.", "pool"),
		poolWorkers: gauge("pool_workers", "Worker count per pool.", "pool"),
		poolRunning: gauge("pool_running", "Pool running state (1=running, 0=stopped).", "pool"),

		managerExecutions: gauge("manager_executions", "Unfinished executions per manager and state.", "manager", "state"),
		managerFinished:   gauge("manager_finished", "Finished executions per manager and final state.", "manager", "state"),
		managerBlocked:    gauge("manager_blocked_components", "Blocked components per manager.", "manager"),
	}

	for _, target := range []**prom.GaugeVec{
		&p.runnerPending, &p.runnerExecuted, &p.runnerClosed,
		&p.poolQueued, &p.poolActive, &p.poolWorkers, &p.poolRunning,
		&p.managerExecutions, &p.managerFinished, &p.managerBlocked,
	} {
		registered, err := registerCollector(reg, *target)
		if err != nil {
			return nil, err
		}
		*target = registered
	}

	return p, nil
}

// AddRunner adds or replaces a runner snapshot provider by name.
func (p *SnapshotPoller) AddRunner(name string, provider RunnerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	p.mu.Lock()
	p.runners[normalizeLabel(name, "runner")] = provider
	p.mu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	p.mu.Lock()
	p.pools[normalizeLabel(name, "pool")] = provider
	p.mu.Unlock()
}

// AddManager adds or replaces a manager snapshot provider by name. When the
// provider also reports its coordinator and worker pool (as task.Manager
// does), those are registered as a runner and a pool.
func (p *SnapshotPoller) AddManager(name string, provider ManagerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "manager")
	p.mu.Lock()
	p.managers[name] = provider
	p.mu.Unlock()

	if m, ok := provider.(managerInternals); ok {
		p.AddRunner(name+"-coordinator", runnerFunc(m.CoordinatorStats))
		p.AddPool(name+"-workers", poolFunc(m.WorkerStats))
	}
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for name, provider := range p.runners {
		stats := provider.Stats()
		typeLabel := normalizeLabel(stats.Type, "unknown")
		p.runnerPending.WithLabelValues(name, typeLabel).Set(float64(stats.Pending))
		p.runnerExecuted.WithLabelValues(name, typeLabel).Set(float64(stats.Executed))
		p.runnerClosed.WithLabelValues(name, typeLabel).Set(boolGauge(stats.Closed))
	}

	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
	}

	for name, provider := range p.managers {
		stats := provider.Stats()
		p.managerExecutions.WithLabelValues(name, "pending").Set(float64(stats.Pending))
		p.managerExecutions.WithLabelValues(name, "started").Set(float64(stats.Started))
		p.managerFinished.WithLabelValues(name, "done").Set(float64(stats.Completed))
		p.managerFinished.WithLabelValues(name, "failed").Set(float64(stats.Failed))
		p.managerFinished.WithLabelValues(name, "cancelled").Set(float64(stats.Cancelled))
		p.managerBlocked.WithLabelValues(name).Set(float64(stats.BlockedComponents))
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
