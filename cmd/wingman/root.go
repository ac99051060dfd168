package main

import (
	"fmt"
	"os"

	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "wingman",
	Short: "Wingman desktop automation assistant",
	Long:  `Wingman watches local activity, detects short repetitive workflows, and — with your consent — generates and runs scripts that automate them.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Logging.Level, cfg.Logging.Enabled)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.wingman/config.yaml)")
	rootCmd.PersistentFlags().String("logging.level", config.DefaultLoggingLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("backend.port", config.DefaultBackendPort, "control-plane port")
}
