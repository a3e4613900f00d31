package prometheus

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("taskmanager", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordStateTransition("import", "background", "pending", "started")
	exporter.RecordStateTransition("import", "background", "started", "done")
	exporter.RecordTaskDuration("import", "background", "done", 250*time.Millisecond)
	exporter.RecordListenerFailure("manager")
	exporter.RecordBlockedComponents(3)
	exporter.RecordTaskRejected("task-manager-workers", "shutdown")

	started := testutil.ToFloat64(exporter.transitionsTotal.WithLabelValues("import", "background", "pending", "started"))
	if started != 1 {
		t.Fatalf("pending->started transitions = %v, want 1", started)
	}

	failures := testutil.ToFloat64(exporter.listenerFailuresTotal.WithLabelValues("manager"))
	if failures != 1 {
		t.Fatalf("listener failures = %v, want 1", failures)
	}

	if blocked := testutil.ToFloat64(exporter.blockedComponents); blocked != 3 {
		t.Fatalf("blocked components = %v, want 3", blocked)
	}

	rejected := testutil.ToFloat64(exporter.taskRejectedTotal.WithLabelValues("task-manager-workers", "shutdown"))
	if rejected != 1 {
		t.Fatalf("rejected total = %v, want 1", rejected)
	}

	histCount, err := histogramSampleCount(exporter.taskDurationSeconds.WithLabelValues("import", "background", "done"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if histCount != 1 {
		t.Fatalf("duration sample count = %d, want 1", histCount)
	}
}

func TestMetricsExporter_EmptyLabelsFallBack(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordStateTransition("", "", "", "pending")

	got := testutil.ToFloat64(exporter.transitionsTotal.WithLabelValues("unknown", "unknown", "none", "pending"))
	if got != 1 {
		t.Fatalf("fallback label transition count = %v, want 1", got)
	}
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("taskmanager", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("taskmanager", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.RecordListenerFailure("context")
	second.RecordListenerFailure("context")

	got := testutil.ToFloat64(first.listenerFailuresTotal.WithLabelValues("context"))
	if got != 2 {
		t.Fatalf("shared listener failure counter = %v, want 2", got)
	}
}

func TestMetricsExporter_NilReceiver(t *testing.T) {
	var exporter *MetricsExporter
	exporter.RecordStateTransition("a", "b", "c", "d")
	exporter.RecordBlockedComponents(1)
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
