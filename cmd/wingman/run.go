package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wingmanhq/wingman/internal/daemon"
	"github.com/wingmanhq/wingman/internal/daemon/components"
	"github.com/wingmanhq/wingman/internal/store"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the observation and automation daemon",
	Long:  `Runs the observers, the pattern detector, the rolling summariser and the control-plane API as one long-running process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		if err := store.EnsureDataDir(cfg.Daemon.DataDir); err != nil {
			return err
		}
		lock, err := store.AcquireInstanceLock(cfg.Daemon.DataDir)
		if err != nil {
			return err
		}
		defer lock.Release()

		daemonMgr, err := daemon.NewDaemon(cfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon manager: %w", err)
		}

		// The /shutdown endpoint cancels the same context signals do.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		registryComp := components.NewRegistryComponent(cfg)
		llmComp := components.NewLLMComponent(cfg)
		lifecycleComp := components.NewLifecycleComponent(cfg, registryComp, llmComp)
		observersComp := components.NewObserversComponent(cfg, registryComp)
		schedulerComp := components.NewSchedulerComponent(cfg, registryComp, llmComp, lifecycleComp, observersComp)
		httpComp := components.NewHTTPServerComponent(cfg, registryComp, llmComp, lifecycleComp, observersComp, schedulerComp, cancel)

		daemonMgr.AddComponent(registryComp)
		daemonMgr.AddComponent(llmComp)
		daemonMgr.AddComponent(lifecycleComp)
		daemonMgr.AddComponent(observersComp)
		daemonMgr.AddComponent(schedulerComp)
		daemonMgr.AddComponent(httpComp)

		err = daemonMgr.Start(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("Wingman stopped gracefully")
				return nil
			}
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
