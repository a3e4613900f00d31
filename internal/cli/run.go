package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/internal/jobs"
	"github.com/Swind/go-task-manager/task"
)

type runOptions struct {
	count     int
	steps     int
	stepDelay time.Duration
	mode      string
	kind      string
	component string
	quiet     bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run demo tasks and print their progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.count, "count", "n", 3, "Number of executions")
	cmd.Flags().IntVar(&opts.steps, "steps", jobs.DefaultSteps, "Steps per execution")
	cmd.Flags().DurationVar(&opts.stepDelay, "step-delay", jobs.DefaultStepDelay, "Pause between steps")
	cmd.Flags().StringVar(&opts.mode, "mode", "background", "Execution mode: silent, background or blocking")
	cmd.Flags().StringVar(&opts.kind, "kind", string(jobs.KindCount), "Job kind: count or fail")
	cmd.Flags().StringVar(&opts.component, "component", "main-window", "Component blocked by blocking executions")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only print final results")
	return cmd
}

func runDemo(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	out := cmd.OutOrStdout()

	mc := cfg.ManagerConfig(logger, nil)
	mc.Blocker = &task.LoggingBlocker{Logger: logger}
	m := task.NewManager(mc)

	if !opts.quiet {
		m.Listeners().Add(&task.ListenerFuncs{
			OnState: func(e task.ChangeEvent[task.State]) {
				printf(out, "[%s] %s: %s -> %s\n", e.Source.ID(), e.Source.Task().ID(), e.Old, e.New)
			},
			OnProgress: func(e task.ChangeEvent[int]) {
				printf(out, "[%s] %3d%% %s\n", e.Source.ID(), e.New, e.Source.Phase())
			},
		})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := range opts.count {
		ctl, err := jobs.Launch(m, jobs.Spec{
			Kind:      jobs.Kind(opts.kind),
			ID:        fmt.Sprintf("demo-%d", i),
			Mode:      opts.mode,
			Steps:     opts.steps,
			StepMS:    int(opts.stepDelay / time.Millisecond),
			Component: opts.component,
		}, logger)
		if err != nil {
			_ = m.Shutdown(context.Background())
			return err
		}
		g.Go(func() error {
			sum, err := ctl.WaitFor(gctx)
			d, _ := ctl.Context().Duration()
			if err != nil {
				printf(out, "%s failed after %s: %v\n", ctl.Context().ID(), task.FormatDuration(d), err)
				return err
			}
			printf(out, "%s finished after %s with %d\n", ctl.Context().ID(), task.FormatDuration(d), sum)
			return nil
		})
	}

	waitErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", core.F("error", err))
	}

	stats := m.Stats()
	printf(out, "completed=%d failed=%d cancelled=%d elapsed=%s\n",
		stats.Completed, stats.Failed, stats.Cancelled, task.FormatDuration(time.Since(start)))
	return waitErr
}
