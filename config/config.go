// Package config loads task manager settings from a TOML file.
//
// A missing file is not an error: Load returns DefaultConfig. Environment
// variables prefixed with TASKMANAGER_ override file values.
//
// Example file:
//
//	[manager]
//	name = "desktop"
//	workers = 8
//
//	[listeners]
//	exception_policy = "log"
//
//	[logging]
//	level = "info"
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/emitter"
	"github.com/Swind/go-task-manager/task"
)

// Config is the root of the TOML document.
type Config struct {
	Manager   ManagerSection   `toml:"manager"`
	Listeners ListenersSection `toml:"listeners"`
	IDs       IDsSection       `toml:"ids"`
	Logging   LoggingSection   `toml:"logging"`
	Metrics   MetricsSection   `toml:"metrics"`
	Server    ServerSection    `toml:"server"`
}

type ManagerSection struct {
	Name          string `toml:"name"`
	Workers       int    `toml:"workers"`
	SubmitWorkers int    `toml:"submit_workers"`
	History       int    `toml:"history"`
}

// ListenersSection selects what happens when a manager-level listener panics.
type ListenersSection struct {
	// ExceptionPolicy is "log" (continue with the next listener) or
	// "rethrow" (abort delivery of the event).
	ExceptionPolicy string `toml:"exception_policy"`
}

type IDsSection struct {
	// Generator is "counter" or "uuid".
	Generator string `toml:"generator"`
}

type LoggingSection struct {
	Level string `toml:"level"`
}

type MetricsSection struct {
	Namespace string `toml:"namespace"`
	// PollInterval is a Go duration string for the snapshot poller.
	PollInterval string `toml:"poll_interval"`
}

// ServerSection configures `taskctl serve`.
type ServerSection struct {
	Listen string `toml:"listen"`
	// LaunchRate is the number of POST /tasks requests allowed per second.
	LaunchRate  float64 `toml:"launch_rate"`
	LaunchBurst int     `toml:"launch_burst"`
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() *Config {
	d := task.DefaultManagerConfig()
	return &Config{
		Manager: ManagerSection{
			Name:          d.Name,
			Workers:       d.Workers,
			SubmitWorkers: d.SubmitWorkers,
			History:       d.HistoryCapacity,
		},
		Listeners: ListenersSection{ExceptionPolicy: "log"},
		IDs:       IDsSection{Generator: "counter"},
		Logging:   LoggingSection{Level: "info"},
		Metrics:   MetricsSection{Namespace: "taskmanager", PollInterval: "1s"},
		Server: ServerSection{
			Listen:      "127.0.0.1:8080",
			LaunchRate:  5,
			LaunchBurst: 10,
		},
	}
}

// Load reads path on top of DefaultConfig, applies environment overrides
// and validates the result. An empty path or a missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies TASKMANAGER_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TASKMANAGER_NAME"); v != "" {
		c.Manager.Name = v
	}
	if v := os.Getenv("TASKMANAGER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Manager.Workers = n
		}
	}
	if v := os.Getenv("TASKMANAGER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TASKMANAGER_LISTEN"); v != "" {
		c.Server.Listen = v
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Manager.Workers < 1 {
		add("manager.workers", "must be at least 1, got %d", c.Manager.Workers)
	}
	if c.Manager.SubmitWorkers < 1 {
		add("manager.submit_workers", "must be at least 1, got %d", c.Manager.SubmitWorkers)
	}
	if c.Manager.History < 1 {
		add("manager.history", "must be at least 1, got %d", c.Manager.History)
	}

	switch strings.ToLower(c.Listeners.ExceptionPolicy) {
	case "log", "rethrow":
	default:
		add("listeners.exception_policy", "invalid policy '%s', must be one of: log, rethrow", c.Listeners.ExceptionPolicy)
	}

	switch strings.ToLower(c.IDs.Generator) {
	case "counter", "uuid":
	default:
		add("ids.generator", "invalid generator '%s', must be one of: counter, uuid", c.IDs.Generator)
	}

	if _, err := core.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "%v", err)
	}

	if _, err := c.PollInterval(); err != nil {
		add("metrics.poll_interval", "%v", err)
	}

	if c.Server.LaunchRate <= 0 {
		add("server.launch_rate", "must be positive, got %v", c.Server.LaunchRate)
	}
	if c.Server.LaunchBurst < 1 {
		add("server.launch_burst", "must be at least 1, got %d", c.Server.LaunchBurst)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PollInterval parses metrics.poll_interval. Empty means one second.
func (c *Config) PollInterval() (time.Duration, error) {
	if c.Metrics.PollInterval == "" {
		return time.Second, nil
	}
	d, err := time.ParseDuration(c.Metrics.PollInterval)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

// LogLevel returns the parsed logging level. Invalid values fall back to info.
func (c *Config) LogLevel() core.Level {
	level, _ := core.ParseLevel(c.Logging.Level)
	return level
}

// ManagerConfig translates the file settings into a task.ManagerConfig.
// logger and metrics may be nil.
func (c *Config) ManagerConfig(logger core.Logger, metrics core.Metrics) task.ManagerConfig {
	cfg := task.ManagerConfig{
		Name:            c.Manager.Name,
		Workers:         c.Manager.Workers,
		SubmitWorkers:   c.Manager.SubmitWorkers,
		HistoryCapacity: c.Manager.History,
		Logger:          logger,
		Metrics:         metrics,
	}

	if strings.EqualFold(c.IDs.Generator, "uuid") {
		cfg.IDGenerator = task.UUIDGenerator{}
	}
	if strings.EqualFold(c.Listeners.ExceptionPolicy, "rethrow") {
		cfg.ListenerPolicy = emitter.RethrowHandler[task.Listener]{}
	}
	return cfg
}
