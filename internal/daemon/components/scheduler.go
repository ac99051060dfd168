package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/daemon"
	"github.com/wingmanhq/wingman/internal/detector"
	"github.com/wingmanhq/wingman/internal/lifecycle"
	"github.com/wingmanhq/wingman/internal/registry"
	"github.com/wingmanhq/wingman/internal/scheduler"
	"github.com/wingmanhq/wingman/internal/summarizer"
)

// SchedulerComponent owns the periodic engine plus the workers it drives: the
// pattern detector, the rolling summariser, and the persistence flush.
type SchedulerComponent struct {
	cfg           *config.Config
	registryComp  *RegistryComponent
	llmComp       *LLMComponent
	lifecycleComp *LifecycleComponent
	observersComp *ObserversComponent

	engine    *scheduler.Engine
	detector  *detector.Detector
	summaries *summarizer.Summarizer

	initialized bool
	mu          sync.RWMutex
}

func NewSchedulerComponent(cfg *config.Config, registryComp *RegistryComponent, llmComp *LLMComponent, lifecycleComp *LifecycleComponent, observersComp *ObserversComponent) *SchedulerComponent {
	return &SchedulerComponent{
		cfg:           cfg,
		registryComp:  registryComp,
		llmComp:       llmComp,
		lifecycleComp: lifecycleComp,
		observersComp: observersComp,
	}
}

func (c *SchedulerComponent) Name() string {
	return "Scheduler"
}

func (c *SchedulerComponent) Dependencies() []string {
	return []string{"ActionRegistry", "LLMClient", "SuggestionLifecycle", "Observers"}
}

// suggestionSink adapts the lifecycle manager to the detector's sink.
type suggestionSink struct {
	manager *lifecycle.Manager
}

func (s suggestionSink) Add(description, hash string, actions []registry.Action) {
	s.manager.Add(description, hash, actions)
}

func (s suggestionSink) IsIgnored(hash string) bool { return s.manager.IsIgnored(hash) }
func (s suggestionSink) IsMuted() bool              { return s.manager.IsMuted() }
func (s suggestionSink) HasActive() bool            { return s.manager.HasActive() }

func (c *SchedulerComponent) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg := c.registryComp.GetRegistry()
	client := c.llmComp.GetClient()
	manager := c.lifecycleComp.GetManager()
	if reg == nil || client == nil || manager == nil {
		return fmt.Errorf("required dependencies not initialized")
	}

	c.detector = detector.New(reg, suggestionSink{manager: manager}, client, c.cfg.Detector)

	c.summaries = summarizer.New(reg, client, c.cfg.Summaries, c.cfg.Daemon.DataDir)
	c.summaries.Load()

	minuteInterval, err := config.DurationOrDefault(c.cfg.Summaries.MinuteInterval, config.DefaultSummariesMinuteInterval)
	if err != nil {
		return fmt.Errorf("parse minute interval: %w", err)
	}
	tenMinuteInterval, err := config.DurationOrDefault(c.cfg.Summaries.TenMinuteInterval, config.DefaultSummariesTenMinuteInterval)
	if err != nil {
		return fmt.Errorf("parse ten-minute interval: %w", err)
	}
	persistInterval, err := config.DurationOrDefault(c.cfg.Watch.PersistInterval, config.DefaultWatchPersistInterval)
	if err != nil {
		return fmt.Errorf("parse persist interval: %w", err)
	}

	detectInterval := c.cfg.Watch.PatternIntervalSeconds
	if detectInterval <= 0 {
		detectInterval = config.DefaultWatchPatternIntervalSeconds
	}

	engine := scheduler.NewEngine()
	jobs := []struct {
		name string
		spec string
		fn   func(ctx context.Context)
	}{
		{"pattern-detector", fmt.Sprintf("@every %ds", detectInterval), c.detector.Tick},
		{"minute-summary", fmt.Sprintf("@every %s", minuteInterval), c.summaries.MinuteTick},
		{"ten-minute-summary", fmt.Sprintf("@every %s", tenMinuteInterval), c.summaries.TenMinuteTick},
		{"store-flush", fmt.Sprintf("@every %s", persistInterval), func(context.Context) { c.flushStores() }},
	}
	for _, job := range jobs {
		if err := engine.AddJob(job.name, job.spec, job.fn); err != nil {
			return err
		}
	}
	c.engine = engine

	c.initialized = true
	return nil
}

func (c *SchedulerComponent) flushStores() {
	if err := c.registryComp.GetRegistry().Persist(); err != nil {
		slog.Warn("Registry flush failed", "error", err)
	}
	if err := c.lifecycleComp.GetManager().Persist(); err != nil {
		slog.Warn("Suggestions flush failed", "error", err)
	}
	if err := c.llmComp.GetLog().Persist(); err != nil {
		slog.Warn("AI interaction log flush failed", "error", err)
	}
	if err := c.summaries.Persist(); err != nil {
		slog.Warn("Summaries flush failed", "error", err)
	}
}

func (c *SchedulerComponent) Start(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return fmt.Errorf("Scheduler not initialized")
	}
	return c.engine.Start(ctx)
}

func (c *SchedulerComponent) Stop(ctx context.Context) error {
	c.mu.RLock()
	engine := c.engine
	c.mu.RUnlock()

	if engine == nil {
		return nil
	}
	if err := engine.Stop(ctx); err != nil {
		return err
	}
	if c.summaries != nil {
		return c.summaries.Persist()
	}
	return nil
}

func (c *SchedulerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.initialized {
		return &daemon.ComponentHealth{Name: c.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	if !c.engine.IsRunning() {
		return &daemon.ComponentHealth{Name: c.Name(), Healthy: false, Error: fmt.Errorf("not running")}, nil
	}
	return &daemon.ComponentHealth{Name: c.Name(), Healthy: true}, nil
}

func (c *SchedulerComponent) GetSummarizer() *summarizer.Summarizer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summaries
}
