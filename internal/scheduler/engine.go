// Package scheduler runs the system's periodic work — detector ticks,
// summary ticks, persistence flushes — as named cron jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	wingmanErrors "github.com/wingmanhq/wingman/internal/errors"
)

type Engine struct {
	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    []string
	running bool
}

func NewEngine() *Engine {
	return &Engine{cron: cron.New()}
}

// AddJob registers a periodic function under a cron spec such as
// "@every 10s". Must be called before Start.
func (e *Engine) AddJob(name, spec string, fn func(ctx context.Context)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return wingmanErrors.Internal("cannot add job %s while scheduler is running", name)
	}

	_, err := e.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Scheduled job panicked", "job", name, "panic", r)
			}
		}()
		ctx := e.context()
		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	})
	if err != nil {
		return fmt.Errorf("add job %s (%s): %w", name, spec, err)
	}

	e.jobs = append(e.jobs, name)
	return nil
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.cron.Start()
	e.running = true

	slog.Info("Scheduler started", "jobs", e.jobs)
	return nil
}

// Stop cancels the job context and waits for in-flight jobs to finish, up to
// the caller's context deadline.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.cancel()
	stopCtx := e.cron.Stop()
	e.mu.Unlock()

	select {
	case <-stopCtx.Done():
		slog.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		slog.Warn("Scheduler stop cut short", "reason", ctx.Err())
		return ctx.Err()
	}
}

func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) context() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}
