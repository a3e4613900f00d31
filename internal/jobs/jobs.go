// Package jobs provides the demo tasks launched by taskctl.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/task"
)

// Kind selects the behaviour of a demo task.
type Kind string

const (
	// KindCount counts through its steps and succeeds.
	KindCount Kind = "count"
	// KindFail counts through its steps and then fails.
	KindFail Kind = "fail"
)

// ErrDemoFailure is returned by KindFail tasks.
var ErrDemoFailure = errors.New("demo task failed on purpose")

const (
	DefaultSteps     = 10
	DefaultStepDelay = 200 * time.Millisecond
)

// Spec describes one demo execution. It doubles as the POST /tasks body.
type Spec struct {
	Kind      Kind   `json:"kind"`
	ID        string `json:"id"`
	Mode      string `json:"mode"`
	Steps     int    `json:"steps"`
	StepMS    int    `json:"step_ms"`
	Component string `json:"component,omitempty"`
}

func (s Spec) withDefaults() Spec {
	if s.Kind == "" {
		s.Kind = KindCount
	}
	if s.ID == "" {
		s.ID = "long-running"
	}
	if s.Steps <= 0 {
		s.Steps = DefaultSteps
	}
	return s
}

// StepDelay returns the pause between two steps.
func (s Spec) StepDelay() time.Duration {
	if s.StepMS <= 0 {
		return DefaultStepDelay
	}
	return time.Duration(s.StepMS) * time.Millisecond
}

// LongTask counts through its steps, publishing each step number and
// reporting progress and phase as it goes. The result is the sum of the
// published numbers.
type LongTask struct {
	task.BaseTask[int, int]

	steps  int
	delay  time.Duration
	fail   bool
	logger core.Logger
}

// New builds the task described by spec. Components are plain strings so
// that they compare by value.
func New(spec Spec, logger core.Logger) (*LongTask, error) {
	spec = spec.withDefaults()
	if logger == nil {
		logger = core.NewNoOpLogger()
	}

	mode, err := task.ParseMode(spec.Mode)
	if err != nil {
		return nil, err
	}
	if spec.Kind != KindCount && spec.Kind != KindFail {
		return nil, fmt.Errorf("%w: unknown job kind %q", task.ErrInvalidArgument, spec.Kind)
	}

	base := task.NewBaseTask[int, int](spec.ID, mode)
	if mode == task.ModeBlocking {
		comp := spec.Component
		if comp == "" {
			comp = "main-window"
		}
		base = task.NewBlockingBaseTask[int, int](spec.ID, comp)
	}

	return &LongTask{
		BaseTask: base,
		steps:    spec.Steps,
		delay:    spec.StepDelay(),
		fail:     spec.Kind == KindFail,
		logger:   logger,
	}, nil
}

func (t *LongTask) Execute(ctx context.Context, tr task.Tracker[int]) (int, error) {
	sum := 0
	for i := range t.steps {
		tr.SetPhase(fmt.Sprintf("looking for %d", i+1))
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		case <-time.After(t.delay):
		}
		sum += i
		tr.Publish(i)
		if err := tr.SetProgress(0, t.steps, i+1); err != nil {
			return sum, err
		}
	}
	if t.fail {
		return sum, ErrDemoFailure
	}
	return sum, nil
}

func (t *LongTask) Done(value int) {
	t.logger.Info("demo task done", core.F("task", t.ID()), core.F("value", value))
}

func (t *LongTask) Failed(cause error) {
	t.logger.Error("demo task failed", core.F("task", t.ID()), core.F("error", cause))
}

func (t *LongTask) Process(chunks []int) {
	t.logger.Debug("demo task intermediate", core.F("task", t.ID()), core.F("chunks", chunks))
}

// Launch creates and starts the execution described by spec.
func Launch(m *task.Manager, spec Spec, logger core.Logger) (*task.Control[int], error) {
	t, err := New(spec, logger)
	if err != nil {
		return nil, err
	}
	ctl, err := task.Create(m, t)
	if err != nil {
		return nil, err
	}
	if err := ctl.Execute(); err != nil {
		return nil, err
	}
	return ctl, nil
}
