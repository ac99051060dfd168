package components

import (
	"context"
	"fmt"
	"sync"

	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/daemon"
	"github.com/wingmanhq/wingman/internal/executor"
	"github.com/wingmanhq/wingman/internal/lifecycle"
)

// LifecycleComponent owns the sandbox executor and the suggestion manager.
type LifecycleComponent struct {
	cfg          *config.Config
	registryComp *RegistryComponent
	llmComp      *LLMComponent

	executor    *executor.Executor
	manager     *lifecycle.Manager
	initialized bool
	mu          sync.RWMutex
}

func NewLifecycleComponent(cfg *config.Config, registryComp *RegistryComponent, llmComp *LLMComponent) *LifecycleComponent {
	return &LifecycleComponent{cfg: cfg, registryComp: registryComp, llmComp: llmComp}
}

func (c *LifecycleComponent) Name() string {
	return "SuggestionLifecycle"
}

func (c *LifecycleComponent) Dependencies() []string {
	return []string{"ActionRegistry", "LLMClient"}
}

func (c *LifecycleComponent) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg := c.registryComp.GetRegistry()
	client := c.llmComp.GetClient()
	if reg == nil || client == nil {
		return fmt.Errorf("required dependencies not initialized")
	}

	exec, err := executor.New(reg, client, c.cfg.Automation, c.cfg.Daemon.DataDir)
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}
	c.executor = exec

	c.manager = lifecycle.NewManager(c.cfg.Daemon.DataDir, exec, lifecycle.Weights{
		PerFileOp: int64(c.cfg.Automation.SecondsPerFileOp),
		PerRename: int64(c.cfg.Automation.SecondsPerRename),
	})
	c.manager.Load()

	c.initialized = true
	return nil
}

func (c *LifecycleComponent) Start(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return fmt.Errorf("SuggestionLifecycle not initialized")
	}
	return nil
}

func (c *LifecycleComponent) Stop(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.manager == nil {
		return nil
	}
	return c.manager.Persist()
}

func (c *LifecycleComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.initialized {
		return &daemon.ComponentHealth{Name: c.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	return &daemon.ComponentHealth{Name: c.Name(), Healthy: true}, nil
}

func (c *LifecycleComponent) GetManager() *lifecycle.Manager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager
}
