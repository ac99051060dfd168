// Package llm exposes the single text-in/text-out capability every agent in
// the system shares. Pattern detection, script generation, refinement and
// summarisation differ only in prompt text and agent tag.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wingmanhq/wingman/internal/config"
	wingmanErrors "github.com/wingmanhq/wingman/internal/errors"
	"github.com/wingmanhq/wingman/internal/model"
	"github.com/wingmanhq/wingman/internal/model/contract"
	anthropicProvider "github.com/wingmanhq/wingman/internal/model/providers/anthropic"
	geminiProvider "github.com/wingmanhq/wingman/internal/model/providers/gemini"
	openaiProvider "github.com/wingmanhq/wingman/internal/model/providers/openai"
)

type Client struct {
	provider   model.Provider
	modelName  string
	timeout    time.Duration
	maxRetries int
	log        *InteractionLog
}

func NewClient(cfg config.ModelsConfig, log *InteractionLog) (*Client, error) {
	timeout, err := config.DurationOrDefault(cfg.RequestTimeout, config.DefaultModelRequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse model request timeout: %w", err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = config.DefaultModelMaxRetries
	}

	c := &Client{
		modelName:  cfg.Name,
		timeout:    timeout,
		maxRetries: maxRetries,
		log:        log,
	}

	if cfg.APIKey == "" {
		slog.Warn("No model credentials configured, LLM features disabled until provided")
		return c, nil
	}

	switch cfg.Provider {
	case "gemini", "":
		p, err := geminiProvider.New(cfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("init gemini provider: %w", err)
		}
		c.provider = p
	case "openai":
		c.provider = openaiProvider.New(cfg.APIKey, cfg.BaseURL)
	case "anthropic":
		c.provider = anthropicProvider.New(cfg.APIKey)
	default:
		return nil, wingmanErrors.Wrap(wingmanErrors.ErrConfiguration, fmt.Sprintf("unknown model provider %q", cfg.Provider))
	}

	return c, nil
}

// Ask sends one prompt and returns the raw response text. Transient provider
// failures are retried with exponential backoff; the interaction is logged on
// success and on terminal failure.
func (c *Client) Ask(ctx context.Context, prompt, agent string) (string, error) {
	if c.provider == nil {
		return "", wingmanErrors.Wrap(wingmanErrors.ErrConfiguration, "model credentials not configured")
	}

	req := contract.CompletionRequest{
		Model:    c.modelName,
		Messages: []contract.Message{{Role: "user", Content: prompt}},
	}

	var lastErr error
	backoff := time.Second

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.provider.Generate(callCtx, req)
		cancel()

		if err == nil {
			text := strings.TrimSpace(resp.Content)
			if c.log != nil {
				c.log.Append(agent, prompt, text)
			}
			return text, nil
		}

		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) {
			break
		}

		slog.Warn("Model call failed, retrying", "agent", agent, "attempt", attempt, "error", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = c.maxRetries
		}
		backoff *= 2
	}

	if c.log != nil {
		c.log.Append(agent, prompt, fmt.Sprintf("ERROR: %v", lastErr))
	}
	return "", fmt.Errorf("model call failed for %s: %v: %w", agent, lastErr, wingmanErrors.ErrLLM)
}

// Ready reports whether a provider is configured.
func (c *Client) Ready() bool {
	return c != nil && c.provider != nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout", "deadline exceeded", "rate limit", "quota",
		"too many requests", "unavailable", "overloaded",
		"connection reset", "temporar", "502", "503", "529",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
