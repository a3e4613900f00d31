package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Swind/go-task-manager/config"
	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/internal/api"
	obs "github.com/Swind/go-task-manager/observability/prometheus"
	"github.com/Swind/go-task-manager/task"
)

func newServeCmd() *cobra.Command {
	var listen string
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a task manager over HTTP",
		Long: `Start an HTTP server exposing the live executions of a task manager:

  GET    /tasks          live executions (?mode=blocking|background|silent)
  POST   /tasks          launch a demo execution (rate limited)
  GET    /tasks/{id}     one live execution
  DELETE /tasks/{id}     cancel an execution
  GET    /history        recently finished executions (?limit=n)
  GET    /stats          manager, coordinator and worker statistics
  GET    /metrics        Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, listen, watch)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (overrides config)")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload the config file when it changes")
	return cmd
}

// services bundles everything serve starts, so tests can build it without
// binding a port.
type services struct {
	cfg      *config.Config
	logger   *core.DefaultLogger
	registry *prom.Registry
	manager  *task.Manager
	poller   *obs.SnapshotPoller
	server   *api.Server
}

func buildServices(cfg *config.Config) (*services, error) {
	logger := newLogger(cfg)

	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := cfg.Metrics.Namespace
	exporter, err := obs.NewMetricsExporter(ns, reg, obs.ExporterOptions{})
	if err != nil {
		return nil, err
	}
	collector, err := obs.NewTaskCollector(ns, reg)
	if err != nil {
		return nil, err
	}
	interval, err := cfg.PollInterval()
	if err != nil {
		return nil, err
	}
	poller, err := obs.NewSnapshotPoller(ns, reg, interval)
	if err != nil {
		return nil, err
	}

	mc := cfg.ManagerConfig(logger, exporter)
	mc.Blocker = &task.LoggingBlocker{Logger: logger}
	m := task.NewManager(mc)
	m.Listeners().Add(collector)
	poller.AddManager(m.Name(), m)

	server := api.NewServer(m, logger, cfg.Server.LaunchRate, cfg.Server.LaunchBurst)
	server.EnableMetrics(reg)

	return &services{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		manager:  m,
		poller:   poller,
		server:   server,
	}, nil
}

func serve(ctx context.Context, listen string, watch bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}

	svc, err := buildServices(cfg)
	if err != nil {
		return err
	}
	logger := svc.logger

	svc.poller.Start(ctx)
	defer svc.poller.Stop()

	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           svc.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("taskctl listening", core.F("addr", cfg.Server.Listen))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if watch {
		w, err := config.NewWatcher(configPath, logger, config.ApplyLogLevel(logger))
		if err != nil {
			logger.Warn("config watching disabled", core.F("error", err))
		} else {
			defer w.Close()
			g.Go(func() error {
				if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		httpErr := httpServer.Shutdown(shutdownCtx)
		managerErr := svc.manager.Shutdown(shutdownCtx)
		return errors.Join(httpErr, managerErr)
	})

	return g.Wait()
}
