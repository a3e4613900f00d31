package prometheus

import (
	"github.com/Swind/go-task-manager/task"
	prom "github.com/prometheus/client_golang/prometheus"
)

// TaskCollector is a task.Listener that turns delivered events into
// Prometheus series. Register it on a manager's ListenerSupport; SILENT
// executions fire no events and are therefore not observed.
type TaskCollector struct {
	eventsTotal *prom.CounterVec
	progress    *prom.GaugeVec
	phaseTotal  *prom.CounterVec
}

var _ task.Listener = (*TaskCollector)(nil)

// NewTaskCollector creates and registers the collector's series.
func NewTaskCollector(namespace string, reg prom.Registerer) (*TaskCollector, error) {
	if namespace == "" {
		namespace = "taskmanager"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	eventsVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "state_events_total",
		Help:      "State change events delivered to listeners.",
	}, []string{"task", "state"})
	progressVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "task_progress_percent",
		Help:      "Last reported progress per task id.",
	}, []string{"task"})
	phaseVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "phase_changes_total",
		Help:      "Phase change events delivered to listeners.",
	}, []string{"task"})

	var err error
	if eventsVec, err = registerCollector(reg, eventsVec); err != nil {
		return nil, err
	}
	if progressVec, err = registerCollector(reg, progressVec); err != nil {
		return nil, err
	}
	if phaseVec, err = registerCollector(reg, phaseVec); err != nil {
		return nil, err
	}

	return &TaskCollector{eventsTotal: eventsVec, progress: progressVec, phaseTotal: phaseVec}, nil
}

// StateChanged counts the new state. Finished executions drop their
// progress series.
func (c *TaskCollector) StateChanged(e task.ChangeEvent[task.State]) {
	id := sourceTaskID(e.Source)
	c.eventsTotal.WithLabelValues(id, e.New.String()).Inc()
	if e.New.IsFinal() {
		c.progress.DeleteLabelValues(id)
	}
}

func (c *TaskCollector) ProgressChanged(e task.ChangeEvent[int]) {
	c.progress.WithLabelValues(sourceTaskID(e.Source)).Set(float64(e.New))
}

func (c *TaskCollector) PhaseChanged(e task.ChangeEvent[string]) {
	c.phaseTotal.WithLabelValues(sourceTaskID(e.Source)).Inc()
}

func sourceTaskID(src *task.Context) string {
	if src == nil {
		return "unknown"
	}
	return normalizeLabel(src.Task().ID(), "unknown")
}
