package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/daemon"
	"github.com/wingmanhq/wingman/internal/observer/apptracker"
	"github.com/wingmanhq/wingman/internal/observer/fswatch"
	"github.com/wingmanhq/wingman/internal/observer/input"
)

// ObserversComponent owns the three event producers: the filesystem watcher,
// the input monitor and the app-usage tracker.
type ObserversComponent struct {
	cfg          *config.Config
	registryComp *RegistryComponent

	fs      *fswatch.Observer
	source  *input.ChannelSource
	input   *input.Observer
	tracker *apptracker.Tracker

	initialized bool
	started     bool
	mu          sync.RWMutex
}

func NewObserversComponent(cfg *config.Config, registryComp *RegistryComponent) *ObserversComponent {
	return &ObserversComponent{cfg: cfg, registryComp: registryComp}
}

func (c *ObserversComponent) Name() string {
	return "Observers"
}

func (c *ObserversComponent) Dependencies() []string {
	return []string{"ActionRegistry"}
}

func (c *ObserversComponent) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg := c.registryComp.GetRegistry()
	if reg == nil {
		return fmt.Errorf("registry not initialized")
	}

	coalesce, err := config.DurationOrDefault(c.cfg.Watch.CoalesceWindow, config.DefaultWatchCoalesceWindow)
	if err != nil {
		return fmt.Errorf("parse coalesce window: %w", err)
	}
	flushIdle, err := config.DurationOrDefault(c.cfg.Input.FlushIdle, config.DefaultInputFlushIdle)
	if err != nil {
		return fmt.Errorf("parse input flush idle: %w", err)
	}
	pollInterval, err := config.DurationOrDefault(c.cfg.AppUsage.PollInterval, config.DefaultAppUsagePollInterval)
	if err != nil {
		return fmt.Errorf("parse app usage poll interval: %w", err)
	}
	flushInterval, err := config.DurationOrDefault(c.cfg.AppUsage.FlushInterval, config.DefaultAppUsageFlushInterval)
	if err != nil {
		return fmt.Errorf("parse app usage flush interval: %w", err)
	}

	c.fs = fswatch.New(reg, c.cfg.Watch.Dirs, coalesce)

	c.source = input.NewChannelSource()
	c.input = input.New(reg, c.source, flushIdle, c.cfg.Input.MaxTokens)

	c.tracker = apptracker.New(c.cfg.Daemon.DataDir, func() (string, string, bool) {
		app, win := c.input.CurrentFocus()
		return app, win, app != ""
	}, pollInterval, flushInterval)

	c.initialized = true
	return nil
}

func (c *ObserversComponent) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return fmt.Errorf("Observers not initialized")
	}

	if err := c.fs.Start(); err != nil {
		return fmt.Errorf("start filesystem observer: %w", err)
	}
	if err := c.input.Start(); err != nil {
		c.fs.Stop()
		return fmt.Errorf("start input observer: %w", err)
	}
	c.tracker.Start()

	c.started = true
	return nil
}

func (c *ObserversComponent) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}

	c.tracker.Stop()
	c.input.Stop()
	c.fs.Stop()
	c.started = false
	return nil
}

func (c *ObserversComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.initialized {
		return &daemon.ComponentHealth{Name: c.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	if !c.started {
		return &daemon.ComponentHealth{Name: c.Name(), Healthy: false, Error: fmt.Errorf("not started")}, nil
	}
	return &daemon.ComponentHealth{Name: c.Name(), Healthy: true}, nil
}

// Rebuild swaps the filesystem observer after a watch.dirs change: construct
// new, start, then drop the old one. In-flight events from the old observer
// are still admitted until it stops.
func (c *ObserversComponent) Rebuild(dirs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return fmt.Errorf("observers not started")
	}

	reg := c.registryComp.GetRegistry()
	coalesce, err := config.DurationOrDefault(c.cfg.Watch.CoalesceWindow, config.DefaultWatchCoalesceWindow)
	if err != nil {
		return err
	}

	replacement := fswatch.New(reg, dirs, coalesce)
	if err := replacement.Start(); err != nil {
		return fmt.Errorf("start replacement observer: %w", err)
	}

	old := c.fs
	c.fs = replacement
	old.Stop()

	slog.Info("Filesystem observer rebuilt", "dirs", len(dirs))
	return nil
}

func (c *ObserversComponent) GetInput() *input.Observer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.input
}

func (c *ObserversComponent) GetSource() *input.ChannelSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

func (c *ObserversComponent) GetTracker() *apptracker.Tracker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tracker
}
