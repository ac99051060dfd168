package components

import (
	"context"
	"fmt"
	"sync"

	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/daemon"
	"github.com/wingmanhq/wingman/internal/registry"
)

// RegistryComponent owns the process-wide action registry.
type RegistryComponent struct {
	cfg         *config.Config
	registry    *registry.Registry
	initialized bool
	mu          sync.RWMutex
}

func NewRegistryComponent(cfg *config.Config) *RegistryComponent {
	return &RegistryComponent{cfg: cfg}
}

func (c *RegistryComponent) Name() string {
	return "ActionRegistry"
}

func (c *RegistryComponent) Dependencies() []string {
	return nil
}

func (c *RegistryComponent) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.registry = registry.New(c.cfg.Daemon.DataDir, c.cfg.Watch.RecentOpsCapacity)
	c.registry.Load()
	c.initialized = true
	return nil
}

func (c *RegistryComponent) Start(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return fmt.Errorf("ActionRegistry not initialized")
	}
	return nil
}

func (c *RegistryComponent) Stop(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.registry == nil {
		return nil
	}
	return c.registry.Persist()
}

func (c *RegistryComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.initialized {
		return &daemon.ComponentHealth{Name: c.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	return &daemon.ComponentHealth{Name: c.Name(), Healthy: true}, nil
}

func (c *RegistryComponent) GetRegistry() *registry.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry
}
