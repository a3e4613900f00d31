package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Swind/go-task-manager/core"
)

const defaultDebounce = 100 * time.Millisecond

// LevelSetter is implemented by loggers whose level can change at runtime,
// such as *core.DefaultLogger.
type LevelSetter interface {
	SetLevel(core.Level)
}

// Watcher reloads a config file whenever it changes on disk. The parent
// directory is watched so that editors replacing the file are noticed.
type Watcher struct {
	path     string
	logger   core.Logger
	debounce time.Duration
	onReload func(*Config)

	watcher *fsnotify.Watcher
	current atomic.Pointer[Config]
}

// NewWatcher loads path once and prepares to watch it. onReload, if not
// nil, is called after every successful reload from the Run goroutine.
func NewWatcher(path string, logger core.Logger, onReload func(*Config)) (*Watcher, error) {
	if logger == nil {
		logger = core.NewNoOpLogger()
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		logger:   logger,
		debounce: defaultDebounce,
		onReload: onReload,
		watcher:  fw,
	}
	w.current.Store(cfg)
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Run processes file events until ctx is done or Close is called. Bursts
// of events are coalesced into one reload. A file that fails to load keeps
// the previous configuration.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", core.F("error", err))

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", core.F("path", w.path), core.F("error", err))
		return
	}
	w.current.Store(cfg)
	w.logger.Info("config reloaded", core.F("path", w.path), core.F("level", cfg.Logging.Level))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// ApplyLogLevel returns a reload callback that updates the level of l.
func ApplyLogLevel(l LevelSetter) func(*Config) {
	return func(cfg *Config) {
		l.SetLevel(cfg.LogLevel())
	}
}
