package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-task-manager/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	transitionsTotal      *prom.CounterVec
	taskDurationSeconds   *prom.HistogramVec
	listenerFailuresTotal *prom.CounterVec
	blockedComponents     prom.Gauge
	taskRejectedTotal     *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskmanager"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	transitionVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "state_transitions_total",
		Help:      "Total number of execution state transitions.",
	}, []string{"task", "mode", "from", "to"})
	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Started-to-finished time of executions in seconds.",
		Buckets:   buckets,
	}, []string{"task", "mode", "state"})
	listenerVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "listener_failures_total",
		Help:      "Total number of listeners that panicked during dispatch.",
	}, []string{"scope"})
	blocked := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "blocked_components",
		Help:      "Number of distinct components blocked by running executions.",
	})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of rejected closures.",
	}, []string{"runner", "reason"})

	var err error
	if transitionVec, err = registerCollector(reg, transitionVec); err != nil {
		return nil, err
	}
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if listenerVec, err = registerCollector(reg, listenerVec); err != nil {
		return nil, err
	}
	if blocked, err = registerCollector(reg, blocked); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		transitionsTotal:      transitionVec,
		taskDurationSeconds:   durationVec,
		listenerFailuresTotal: listenerVec,
		blockedComponents:     blocked,
		taskRejectedTotal:     rejectedVec,
	}, nil
}

// RecordStateTransition counts one lifecycle transition.
func (m *MetricsExporter) RecordStateTransition(taskID string, mode string, from string, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(
		normalizeLabel(taskID, "unknown"),
		normalizeLabel(mode, "unknown"),
		normalizeLabel(from, "none"),
		normalizeLabel(to, "unknown"),
	).Inc()
}

// RecordTaskDuration records the started-to-finished time of an execution.
func (m *MetricsExporter) RecordTaskDuration(taskID string, mode string, state string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(
		normalizeLabel(taskID, "unknown"),
		normalizeLabel(mode, "unknown"),
		normalizeLabel(state, "unknown"),
	).Observe(duration.Seconds())
}

// RecordListenerFailure counts a listener that panicked.
func (m *MetricsExporter) RecordListenerFailure(scope string) {
	if m == nil {
		return
	}
	m.listenerFailuresTotal.WithLabelValues(normalizeLabel(scope, "unknown")).Inc()
}

// RecordBlockedComponents sets the blocked components gauge.
func (m *MetricsExporter) RecordBlockedComponents(count int) {
	if m == nil {
		return
	}
	m.blockedComponents.Set(float64(count))
}

// RecordTaskRejected records task rejection events.
func (m *MetricsExporter) RecordTaskRejected(runnerName string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(runnerName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
