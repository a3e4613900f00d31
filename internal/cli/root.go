// Package cli implements the taskctl command-line interface using Cobra.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Swind/go-task-manager/config"
	"github.com/Swind/go-task-manager/core"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taskctl",
		Short: "taskctl runs and serves managed tasks",
		Long: `taskctl drives a task manager: executions with a tracked lifecycle,
progress, phases and listener notifications.

Use "run" to execute demo tasks in the terminal and "serve" to expose a
manager over HTTP with Prometheus metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "taskmanager.toml", "Path to the TOML config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")

	cmd.AddCommand(newRunCmd(), newServeCmd())
	return cmd
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies the --log-level flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *core.DefaultLogger {
	return core.NewLeveledLogger(cfg.LogLevel())
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
