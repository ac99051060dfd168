package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/wingmanhq/wingman/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Backend    BackendConfig    `koanf:"backend"`
	Watch      WatchConfig      `koanf:"watch"`
	Input      InputConfig      `koanf:"input"`
	AppUsage   AppUsageConfig   `koanf:"app_usage"`
	Models     ModelsConfig     `koanf:"models"`
	Detector   DetectorConfig   `koanf:"detector"`
	Automation AutomationConfig `koanf:"automation"`
	Summaries  SummariesConfig  `koanf:"summaries"`
	Logging    LoggingConfig    `koanf:"logging"`
	Daemon     DaemonConfig     `koanf:"daemon"`
}

type BackendConfig struct {
	Port            int    `koanf:"port"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type WatchConfig struct {
	Dirs                   []string `koanf:"dirs"`
	RecentOpsCapacity      int      `koanf:"recent_ops_capacity"`
	PatternIntervalSeconds int      `koanf:"pattern_interval_seconds"`
	CoalesceWindow         string   `koanf:"coalesce_window"`
	PersistInterval        string   `koanf:"persist_interval"`
}

type InputConfig struct {
	FlushIdle string `koanf:"flush_idle"`
	MaxTokens int    `koanf:"max_tokens"`
}

type AppUsageConfig struct {
	PollInterval  string `koanf:"poll_interval"`
	FlushInterval string `koanf:"flush_interval"`
}

type ModelsConfig struct {
	Provider       string `koanf:"provider"`
	Name           string `koanf:"name"`
	APIKey         string `koanf:"api_key"`
	BaseURL        string `koanf:"base_url"`
	RequestTimeout string `koanf:"request_timeout"`
	MaxRetries     int    `koanf:"max_retries"`
}

type DetectorConfig struct {
	WindowSeconds   int `koanf:"window_seconds"`
	CooldownSeconds int `koanf:"cooldown_seconds"`
	MinActions      int `koanf:"min_actions"`
	MinSubstantive  int `koanf:"min_substantive"`
}

type AutomationConfig struct {
	MaxAttempts      int    `koanf:"max_attempts"`
	ScriptTimeout    string `koanf:"script_timeout"`
	InstallTimeout   string `koanf:"install_timeout"`
	SecondsPerFileOp int    `koanf:"seconds_per_file_op"`
	SecondsPerRename int    `koanf:"seconds_per_rename"`
	InterpreterPath  string `koanf:"interpreter_path"`
}

type SummariesConfig struct {
	MinuteInterval    string `koanf:"minute_interval"`
	TenMinuteInterval string `koanf:"ten_minute_interval"`
	MinActions        int    `koanf:"min_actions"`
	Capacity          int    `koanf:"capacity"`
}

type LoggingConfig struct {
	Enabled bool   `koanf:"enabled"`
	Level   string `koanf:"level"`
}

type DaemonConfig struct {
	DataDir                string `koanf:"data_dir"`
	ShutdownTimeout        string `koanf:"shutdown_timeout"`
	StartupShutdownTimeout string `koanf:"startup_shutdown_timeout"`
	HealthCheckInterval    string `koanf:"health_check_interval"`
}

const (
	DefaultBackendPort            = 8002
	DefaultBackendReadTimeout     = "10s"
	DefaultBackendWriteTimeout    = "30s"
	DefaultBackendIdleTimeout     = "60s"
	DefaultBackendShutdownTimeout = "5s"

	DefaultWatchRecentOpsCapacity      = 1000
	DefaultWatchPatternIntervalSeconds = 10
	DefaultWatchCoalesceWindow         = "50ms"
	DefaultWatchPersistInterval        = "30s"

	DefaultInputFlushIdle = "3s"
	DefaultInputMaxTokens = 64

	DefaultAppUsagePollInterval  = "1s"
	DefaultAppUsageFlushInterval = "1m"

	DefaultModelProvider       = "gemini"
	DefaultModelName           = "gemini-2.5-flash-lite"
	DefaultModelRequestTimeout = "30s"
	DefaultModelMaxRetries     = 3

	DefaultDetectorWindowSeconds   = 20
	DefaultDetectorCooldownSeconds = 60
	DefaultDetectorMinActions      = 3
	DefaultDetectorMinSubstantive  = 2

	DefaultAutomationMaxAttempts      = 3
	DefaultAutomationScriptTimeout    = "60s"
	DefaultAutomationInstallTimeout   = "120s"
	DefaultAutomationSecondsPerFileOp = 20
	DefaultAutomationSecondsPerRename = 25

	DefaultSummariesMinuteInterval    = "1m"
	DefaultSummariesTenMinuteInterval = "10m"
	DefaultSummariesMinActions        = 3
	DefaultSummariesCapacity          = 500

	DefaultLoggingLevel = "info"

	DefaultDaemonShutdownTimeout        = "30s"
	DefaultDaemonStartupShutdownTimeout = "10s"
	DefaultDaemonHealthCheckInterval    = "30s"
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"backend.port":             DefaultBackendPort,
		"backend.read_timeout":     DefaultBackendReadTimeout,
		"backend.write_timeout":    DefaultBackendWriteTimeout,
		"backend.idle_timeout":     DefaultBackendIdleTimeout,
		"backend.shutdown_timeout": DefaultBackendShutdownTimeout,

		"watch.dirs":                     []string{"~/Desktop", "~/Downloads", "~/Documents"},
		"watch.recent_ops_capacity":      DefaultWatchRecentOpsCapacity,
		"watch.pattern_interval_seconds": DefaultWatchPatternIntervalSeconds,
		"watch.coalesce_window":          DefaultWatchCoalesceWindow,
		"watch.persist_interval":         DefaultWatchPersistInterval,

		"input.flush_idle": DefaultInputFlushIdle,
		"input.max_tokens": DefaultInputMaxTokens,

		"app_usage.poll_interval":  DefaultAppUsagePollInterval,
		"app_usage.flush_interval": DefaultAppUsageFlushInterval,

		"models.provider":        DefaultModelProvider,
		"models.name":            DefaultModelName,
		"models.request_timeout": DefaultModelRequestTimeout,
		"models.max_retries":     DefaultModelMaxRetries,

		"detector.window_seconds":   DefaultDetectorWindowSeconds,
		"detector.cooldown_seconds": DefaultDetectorCooldownSeconds,
		"detector.min_actions":      DefaultDetectorMinActions,
		"detector.min_substantive":  DefaultDetectorMinSubstantive,

		"automation.max_attempts":        DefaultAutomationMaxAttempts,
		"automation.script_timeout":      DefaultAutomationScriptTimeout,
		"automation.install_timeout":     DefaultAutomationInstallTimeout,
		"automation.seconds_per_file_op": DefaultAutomationSecondsPerFileOp,
		"automation.seconds_per_rename":  DefaultAutomationSecondsPerRename,

		"summaries.minute_interval":     DefaultSummariesMinuteInterval,
		"summaries.ten_minute_interval": DefaultSummariesTenMinuteInterval,
		"summaries.min_actions":         DefaultSummariesMinActions,
		"summaries.capacity":            DefaultSummariesCapacity,

		"logging.enabled": true,
		"logging.level":   DefaultLoggingLevel,

		"daemon.data_dir":                 filepath.Join(os.Getenv("HOME"), ".wingman"),
		"daemon.shutdown_timeout":         DefaultDaemonShutdownTimeout,
		"daemon.startup_shutdown_timeout": DefaultDaemonStartupShutdownTimeout,
		"daemon.health_check_interval":    DefaultDaemonHealthCheckInterval,
	}
}

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".wingman", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables
	k.Load(env.Provider("WINGMAN_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "WINGMAN_")), "_", ".", -1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	// Standard env vars for model credentials
	if cfg.Models.APIKey == "" {
		switch cfg.Models.Provider {
		case "gemini":
			cfg.Models.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			cfg.Models.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.Models.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	return &cfg, nil
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	dataDir, err := pathutil.Expand(cfg.Daemon.DataDir)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.Daemon.DataDir = dataDir
	}

	cfg.Watch.Dirs = pathutil.ExpandAll(cfg.Watch.Dirs)
	return nil
}
