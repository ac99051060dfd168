package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/daemon"
	"github.com/wingmanhq/wingman/internal/llm"
)

// LLMComponent owns the model client and the interaction log.
type LLMComponent struct {
	cfg         *config.Config
	client      *llm.Client
	log         *llm.InteractionLog
	initialized bool
	mu          sync.RWMutex
}

func NewLLMComponent(cfg *config.Config) *LLMComponent {
	return &LLMComponent{cfg: cfg}
}

func (c *LLMComponent) Name() string {
	return "LLMClient"
}

func (c *LLMComponent) Dependencies() []string {
	return nil
}

func (c *LLMComponent) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log = llm.NewInteractionLog(c.cfg.Daemon.DataDir)
	if err := c.log.Load(); err != nil {
		slog.Warn("AI interaction log unreadable, starting empty", "error", err)
	}

	client, err := llm.NewClient(c.cfg.Models, c.log)
	if err != nil {
		return err
	}
	c.client = client
	c.initialized = true
	return nil
}

func (c *LLMComponent) Start(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return fmt.Errorf("LLMClient not initialized")
	}
	return nil
}

func (c *LLMComponent) Stop(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.log == nil {
		return nil
	}
	return c.log.Persist()
}

func (c *LLMComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.initialized {
		return &daemon.ComponentHealth{Name: c.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	if !c.client.Ready() {
		return &daemon.ComponentHealth{Name: c.Name(), Healthy: false, Error: fmt.Errorf("model credentials not configured")}, nil
	}
	return &daemon.ComponentHealth{Name: c.Name(), Healthy: true}, nil
}

func (c *LLMComponent) GetClient() *llm.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

func (c *LLMComponent) GetLog() *llm.InteractionLog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.log
}
