package task

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/emitter"
)

// ManagerConfig holds the collaborators of a Manager. Zero fields fall
// back to the values of DefaultManagerConfig.
type ManagerConfig struct {
	// Name labels logs, metrics and stats.
	Name string

	// Workers is the number of goroutines running Execute.
	Workers int

	// SubmitWorkers is the number of goroutines serving Submit.
	SubmitWorkers int

	// Blocker is driven by BLOCKING executions.
	Blocker Blocker

	// IDGenerator assigns context ids. Defaults to DefaultIDGenerator.
	IDGenerator IDGenerator

	// ListenerPolicy decides what happens when a manager-level listener
	// panics. Defaults to logging and continuing.
	ListenerPolicy emitter.ExceptionHandler[Listener]

	Logger       core.Logger
	Metrics      core.Metrics
	PanicHandler core.PanicHandler

	// HistoryCapacity bounds RecentTasks.
	HistoryCapacity int
}

// DefaultManagerConfig returns the configuration used for zero fields.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Name:            "task-manager",
		Workers:         10,
		SubmitWorkers:   2,
		Blocker:         NopBlocker{},
		IDGenerator:     DefaultIDGenerator,
		Logger:          core.NewDefaultLogger(),
		Metrics:         &core.NilMetrics{},
		HistoryCapacity: core.DefaultTaskHistoryCapacity,
	}
}

// Manager creates executions and keeps track of those that have not
// finished yet.
type Manager struct {
	name    string
	logger  core.Logger
	metrics core.Metrics
	blocker Blocker
	ids     IDGenerator

	coordinator *core.SingleThreadTaskRunner
	pool        *core.GoroutineThreadPool
	submitPool  *core.GoroutineThreadPool

	listeners    *ListenerSupport
	localHandler emitter.ExceptionHandler[Listener]

	tasks sync.Map // context id -> TaskControl
	live  atomic.Int64

	// Coordinator only.
	blocking *blockCounter

	blockedComponents atomic.Int64
	completed         atomic.Int64
	failed            atomic.Int64
	cancelled         atomic.Int64
	history           *core.ExecutionHistory

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// NewManager starts a Manager's coordinator and worker pools.
func NewManager(cfg ManagerConfig) *Manager {
	def := DefaultManagerConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if cfg.SubmitWorkers < 1 {
		cfg.SubmitWorkers = def.SubmitWorkers
	}
	if cfg.Blocker == nil {
		cfg.Blocker = def.Blocker
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = def.IDGenerator
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.Metrics == nil {
		cfg.Metrics = def.Metrics
	}
	if cfg.PanicHandler == nil {
		cfg.PanicHandler = &core.DefaultPanicHandler{Logger: cfg.Logger}
	}
	if cfg.ListenerPolicy == nil {
		cfg.ListenerPolicy = emitter.LoggingHandler[Listener]{Logger: cfg.Logger, Scope: cfg.Name}
	}

	schedCfg := &core.TaskSchedulerConfig{
		PanicHandler:        cfg.PanicHandler,
		Metrics:             cfg.Metrics,
		RejectedTaskHandler: &core.DefaultRejectedTaskHandler{Logger: cfg.Logger},
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		name:        cfg.Name,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		blocker:     cfg.Blocker,
		ids:         cfg.IDGenerator,
		coordinator: core.NewSingleThreadTaskRunner(cfg.PanicHandler),
		pool:        core.NewPriorityGoroutineThreadPool(cfg.Name+"-workers", cfg.Workers, schedCfg),
		submitPool:  core.NewGoroutineThreadPool(cfg.Name+"-submit", cfg.SubmitWorkers, schedCfg),
		listeners: newListenerSupport(countingHandler{
			inner: cfg.ListenerPolicy, metrics: cfg.Metrics, scope: "manager",
		}),
		localHandler: countingHandler{
			inner:   emitter.LoggingHandler[Listener]{Logger: cfg.Logger, Scope: cfg.Name + "-local"},
			metrics: cfg.Metrics,
			scope:   "context",
		},
		blocking: newBlockCounter(),
		history:  core.NewExecutionHistory(cfg.HistoryCapacity),
		ctx:      ctx,
		cancel:   cancel,
	}
	m.coordinator.SetName(cfg.Name + "-coordinator")
	m.pool.Start(context.Background())
	m.submitPool.Start(context.Background())

	return m
}

// Create registers a new PENDING execution of t. The execution is visible
// through GetTask before the first listener event fires.
func Create[V, C any](m *Manager, t Task[V, C]) (*Control[V], error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	if err := validateTask(t); err != nil {
		return nil, err
	}

	w := &worker[V, C]{task: t}
	c := newContext(m, m.ids.NextID(), t)
	c.exec = w
	w.c = c
	ctl := &Control[V]{c: c, res: &w.res}

	m.tasks.Store(c.id, TaskControl(ctl))
	m.live.Add(1)
	m.logger.Debug("task created",
		core.F("context", c.id), core.F("task", t.ID()), core.F("mode", t.Mode()))

	c.post(c.announce)
	return ctl, nil
}

func validateTask(d Descriptor) error {
	if d == nil {
		return fmt.Errorf("%w: nil task", ErrInvalidArgument)
	}
	if v := reflect.ValueOf(d); v.Kind() == reflect.Pointer && v.IsNil() {
		return fmt.Errorf("%w: nil task", ErrInvalidArgument)
	}
	if d.ID() == "" {
		return fmt.Errorf("%w: empty task id", ErrInvalidArgument)
	}
	if !d.Mode().Valid() {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidArgument, d.Mode())
	}
	if comp := d.Component(); comp != nil && !reflect.ValueOf(comp).Comparable() {
		return fmt.Errorf("%w: component of type %T is not comparable", ErrInvalidArgument, comp)
	}
	return nil
}

// Name returns the configured name.
func (m *Manager) Name() string { return m.name }

// Listeners returns the listener registry of this manager.
func (m *Manager) Listeners() *ListenerSupport { return m.listeners }

// GetTasks yields the unfinished executions matching pred, in no
// particular order. Executions created or finished during iteration may
// or may not be seen.
func (m *Manager) GetTasks(pred Predicate) iter.Seq[TaskControl] {
	if pred == nil {
		panic("task.Manager: predicate must not be nil")
	}
	return func(yield func(TaskControl) bool) {
		m.tasks.Range(func(_, v any) bool {
			tc := v.(TaskControl)
			if !pred(tc) {
				return true
			}
			return yield(tc)
		})
	}
}

// FindTask returns any unfinished execution matching pred.
func (m *Manager) FindTask(pred Predicate) (TaskControl, bool) {
	for tc := range m.GetTasks(pred) {
		return tc, true
	}
	return nil, false
}

// GetTask looks up an unfinished execution by context id.
func (m *Manager) GetTask(contextID string) (TaskControl, bool) {
	v, ok := m.tasks.Load(contextID)
	if !ok {
		return nil, false
	}
	return v.(TaskControl), true
}

// Submit runs fn on the submit pool. It is not tracked and fires no events.
func (m *Manager) Submit(fn core.Task) error {
	if fn == nil {
		return fmt.Errorf("%w: nil function", ErrInvalidArgument)
	}
	if m.closed.Load() {
		return ErrManagerClosed
	}
	if !m.submitPool.PostTaskWithPriority(fn, core.TaskPriorityUserVisible) {
		return ErrManagerClosed
	}
	return nil
}

// InvokeLater runs fn on the coordination goroutine after everything
// already queued there. fn may read execution state without racing
// listener callbacks. Its ctx makes WaitFor fail fast instead of
// deadlocking.
func (m *Manager) InvokeLater(fn core.Task) error {
	if fn == nil {
		return fmt.Errorf("%w: nil function", ErrInvalidArgument)
	}
	if m.closed.Load() {
		return ErrManagerClosed
	}
	m.coordinator.PostTask(fn)
	return nil
}

// track keeps the manager's books. It runs on the coordinator for every
// transition, before listeners are notified and regardless of mode.
func (m *Manager) track(c *Context, from, to State) {
	mode := c.desc.Mode()
	m.metrics.RecordStateTransition(c.desc.ID(), mode.String(), from.String(), to.String())

	if to == StateStarted && mode == ModeBlocking {
		comp := c.desc.Component()
		first, err := m.blocking.acquire(comp)
		switch {
		case err != nil:
			c.startErr = err
			m.logger.Error("cannot count blocking component",
				core.F("context", c.id), core.F("task", c.desc.ID()), core.F("error", err))
		case first:
			c.blocked = true
			c.guard("block", func() { m.blocker.Block(comp) })
		default:
			c.blocked = true
		}
		m.updateBlocked()
	}

	if !to.IsFinal() {
		return
	}

	if c.blocked {
		c.blocked = false
		if comp := c.desc.Component(); m.blocking.release(comp) {
			c.guard("unblock", func() { m.blocker.Unblock(comp) })
		}
		m.updateBlocked()
	}

	if _, loaded := m.tasks.LoadAndDelete(c.id); loaded {
		m.live.Add(-1)
	}

	switch to {
	case StateDone:
		m.completed.Add(1)
	case StateFailed:
		m.failed.Add(1)
	case StateCancelled:
		m.cancelled.Add(1)
	}

	c.mu.RLock()
	rec := core.TaskExecutionRecord{
		ContextID:  c.id,
		TaskID:     c.desc.ID(),
		Mode:       mode.String(),
		State:      to.String(),
		StartedAt:  c.startedAt,
		FinishedAt: c.finishedAt,
	}
	c.mu.RUnlock()
	if !rec.StartedAt.IsZero() {
		rec.Duration = rec.FinishedAt.Sub(rec.StartedAt)
		m.metrics.RecordTaskDuration(rec.TaskID, rec.Mode, rec.State, rec.Duration)
	}
	m.history.Add(rec)
}

func (m *Manager) updateBlocked() {
	n := m.blocking.len()
	m.blockedComponents.Store(int64(n))
	m.metrics.RecordBlockedComponents(n)
}

// RecentTasks returns up to limit finished executions, newest first.
func (m *Manager) RecentTasks(limit int) []core.TaskExecutionRecord {
	return m.history.Recent(limit)
}

// Stats returns a snapshot of the manager's bookkeeping.
func (m *Manager) Stats() core.ManagerStats {
	s := core.ManagerStats{
		Name:              m.name,
		BlockedComponents: int(m.blockedComponents.Load()),
		Completed:         m.completed.Load(),
		Failed:            m.failed.Load(),
		Cancelled:         m.cancelled.Load(),
		Closed:            m.closed.Load(),
	}
	for tc := range m.GetTasks(AllTasks) {
		s.Live++
		switch tc.Context().State() {
		case StatePending:
			s.Pending++
		case StateStarted:
			s.Started++
		}
	}
	if last, ok := m.history.Last(); ok {
		s.LastTaskID = last.TaskID
		s.LastFinishedAt = last.FinishedAt
	}
	return s
}

// CoordinatorStats reports on the coordination goroutine.
func (m *Manager) CoordinatorStats() core.RunnerStats { return m.coordinator.Stats() }

// WorkerStats reports on the pool running Execute.
func (m *Manager) WorkerStats() core.PoolStats { return m.pool.Stats() }

// Shutdown rejects new work, cancels every unfinished execution and waits
// for them to finish until ctx ends. The pools and the coordinator are
// stopped either way; executions still unfinished at that point are marked
// CANCELLED without events. Shutdown waits for Execute calls to return.
// Functions already queued by Submit still run within the same deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.logger.Info("shutting down task manager", core.F("name", m.name), core.F("live", m.live.Load()))

	for tc := range m.GetTasks(AllTasks) {
		tc.Context().cancel()
	}
	m.cancel()

	err := m.waitDrained(ctx)

	drain := defaultSubmitDrain
	if deadline, ok := ctx.Deadline(); ok {
		drain = time.Until(deadline)
	}
	if serr := m.submitPool.StopGraceful(drain); serr != nil {
		m.logger.Warn("submitted work dropped", core.F("name", m.name), core.F("error", serr))
		err = errors.Join(err, serr)
	}
	m.pool.Stop()
	m.coordinator.Stop()

	for tc := range m.GetTasks(AllTasks) {
		tc.Context().abandon()
		m.tasks.Delete(tc.Context().ID())
		m.live.Add(-1)
	}
	return err
}

// defaultSubmitDrain bounds the Submit drain when Shutdown has no deadline.
const defaultSubmitDrain = 5 * time.Second

func (m *Manager) waitDrained(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if m.live.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("task manager %s: %d executions still running: %w", m.name, m.live.Load(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// countingHandler records listener failures before applying the policy.
type countingHandler struct {
	inner   emitter.ExceptionHandler[Listener]
	metrics core.Metrics
	scope   string
}

func (h countingHandler) HandleListenerError(l Listener, err *emitter.ListenerError) error {
	h.metrics.RecordListenerFailure(h.scope)
	return h.inner.HandleListenerError(l, err)
}
