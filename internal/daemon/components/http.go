package components

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/daemon"
	"github.com/wingmanhq/wingman/internal/server"
)

// HTTPServerComponent owns the control-plane HTTP listener.
type HTTPServerComponent struct {
	cfg           *config.Config
	registryComp  *RegistryComponent
	llmComp       *LLMComponent
	lifecycleComp *LifecycleComponent
	observersComp *ObserversComponent
	schedulerComp *SchedulerComponent

	// requestShutdown cancels the daemon's root context.
	requestShutdown func()

	server      *http.Server
	shutdownTTL time.Duration
	initialized bool
	started     bool
	mu          sync.RWMutex
}

func NewHTTPServerComponent(cfg *config.Config, registryComp *RegistryComponent, llmComp *LLMComponent, lifecycleComp *LifecycleComponent, observersComp *ObserversComponent, schedulerComp *SchedulerComponent, requestShutdown func()) *HTTPServerComponent {
	return &HTTPServerComponent{
		cfg:             cfg,
		registryComp:    registryComp,
		llmComp:         llmComp,
		lifecycleComp:   lifecycleComp,
		observersComp:   observersComp,
		schedulerComp:   schedulerComp,
		requestShutdown: requestShutdown,
	}
}

func (c *HTTPServerComponent) Name() string {
	return "HTTPServer"
}

func (c *HTTPServerComponent) Dependencies() []string {
	return []string{"ActionRegistry", "LLMClient", "SuggestionLifecycle", "Observers", "Scheduler"}
}

func (c *HTTPServerComponent) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	api := server.New(server.Options{
		Config:          c.cfg,
		Registry:        c.registryComp.GetRegistry(),
		Lifecycle:       c.lifecycleComp.GetManager(),
		Summaries:       c.schedulerComp.GetSummarizer(),
		Tracker:         c.observersComp.GetTracker(),
		Interactions:    c.llmComp.GetLog(),
		Input:           c.observersComp.GetInput(),
		RebuildWatcher:  c.observersComp.Rebuild,
		PersistAll:      c.persistAll,
		RequestShutdown: c.requestShutdown,
	})

	readTimeout, err := config.DurationOrDefault(c.cfg.Backend.ReadTimeout, config.DefaultBackendReadTimeout)
	if err != nil {
		return fmt.Errorf("parse read timeout: %w", err)
	}
	writeTimeout, err := config.DurationOrDefault(c.cfg.Backend.WriteTimeout, config.DefaultBackendWriteTimeout)
	if err != nil {
		return fmt.Errorf("parse write timeout: %w", err)
	}
	idleTimeout, err := config.DurationOrDefault(c.cfg.Backend.IdleTimeout, config.DefaultBackendIdleTimeout)
	if err != nil {
		return fmt.Errorf("parse idle timeout: %w", err)
	}
	shutdownTimeout, err := config.DurationOrDefault(c.cfg.Backend.ShutdownTimeout, config.DefaultBackendShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse shutdown timeout: %w", err)
	}

	c.server = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", c.cfg.Backend.Port),
		Handler:      api.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	c.shutdownTTL = shutdownTimeout

	c.initialized = true
	slog.Info("HTTPServer initialized", "component", c.Name(), "port", c.cfg.Backend.Port)
	return nil
}

func (c *HTTPServerComponent) persistAll() error {
	if err := c.registryComp.GetRegistry().Persist(); err != nil {
		return err
	}
	if err := c.lifecycleComp.GetManager().Persist(); err != nil {
		return err
	}
	if err := c.llmComp.GetLog().Persist(); err != nil {
		return err
	}
	if err := c.schedulerComp.GetSummarizer().Persist(); err != nil {
		return err
	}
	return c.observersComp.GetTracker().Persist()
}

func (c *HTTPServerComponent) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return fmt.Errorf("HTTPServer not initialized")
	}

	go func() {
		slog.Info("HTTP server listening", "component", c.Name(), "addr", c.server.Addr)
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "component", c.Name(), "error", err)
		}
	}()

	c.started = true
	return nil
}

func (c *HTTPServerComponent) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, c.shutdownTTL)
	defer cancel()

	if err := c.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTPServer shutdown error", "component", c.Name(), "error", err)
		return err
	}

	c.started = false
	return nil
}

func (c *HTTPServerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
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
