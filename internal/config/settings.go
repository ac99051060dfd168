package config

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/wingmanhq/wingman/internal/pathutil"
)

// Flatten returns the user-facing view of the configuration, keyed the same
// way config.yaml is.
func (c *Config) Flatten() map[string]any {
	return map[string]any{
		"backend.port":                   c.Backend.Port,
		"watch.dirs":                     c.Watch.Dirs,
		"watch.recent_ops_capacity":      c.Watch.RecentOpsCapacity,
		"watch.pattern_interval_seconds": c.Watch.PatternIntervalSeconds,
		"logging.enabled":                c.Logging.Enabled,
		"logging.level":                  c.Logging.Level,
		"models.provider":                c.Models.Provider,
		"models.name":                    c.Models.Name,
		"models.api_key_set":             c.Models.APIKey != "",
		"automation.seconds_per_file_op": c.Automation.SecondsPerFileOp,
		"automation.seconds_per_rename":  c.Automation.SecondsPerRename,
	}
}

// Apply merges a flattened update map into the configuration. It reports
// whether watch.dirs changed, which callers use to rebuild the filesystem
// observer.
func (c *Config) Apply(updates map[string]any) (watchDirsChanged bool, err error) {
	for key, raw := range updates {
		switch key {
		case "backend.port":
			port, ok := asInt(raw)
			if !ok || port < 1 || port > 65535 {
				return false, fmt.Errorf("invalid port: %v", raw)
			}
			c.Backend.Port = port
		case "watch.dirs":
			dirs, ok := asStringSlice(raw)
			if !ok {
				return false, fmt.Errorf("watch.dirs must be a list of paths")
			}
			expanded := pathutil.ExpandAll(dirs)
			if !equalStrings(c.Watch.Dirs, expanded) {
				c.Watch.Dirs = expanded
				watchDirsChanged = true
			}
		case "watch.recent_ops_capacity":
			n, ok := asInt(raw)
			if !ok || n < 1 {
				return false, fmt.Errorf("invalid capacity: %v", raw)
			}
			c.Watch.RecentOpsCapacity = n
		case "watch.pattern_interval_seconds":
			n, ok := asInt(raw)
			if !ok || n < 1 {
				return false, fmt.Errorf("invalid interval: %v", raw)
			}
			c.Watch.PatternIntervalSeconds = n
		case "logging.enabled":
			b, ok := raw.(bool)
			if !ok {
				return false, fmt.Errorf("logging.enabled must be a bool")
			}
			c.Logging.Enabled = b
		case "models.provider":
			s, ok := raw.(string)
			if !ok {
				return false, fmt.Errorf("models.provider must be a string")
			}
			c.Models.Provider = s
		case "models.name":
			s, ok := raw.(string)
			if !ok {
				return false, fmt.Errorf("models.name must be a string")
			}
			c.Models.Name = s
		case "models.api_key":
			s, ok := raw.(string)
			if !ok {
				return false, fmt.Errorf("models.api_key must be a string")
			}
			c.Models.APIKey = s
		default:
			return false, fmt.Errorf("unknown config key: %s", key)
		}
	}
	return watchDirsChanged, nil
}

// Save writes the configuration back to config.yaml in the data directory.
func (c *Config) Save() error {
	doc := map[string]any{
		"backend": map[string]any{
			"port": c.Backend.Port,
		},
		"watch": map[string]any{
			"dirs":                     c.Watch.Dirs,
			"recent_ops_capacity":      c.Watch.RecentOpsCapacity,
			"pattern_interval_seconds": c.Watch.PatternIntervalSeconds,
		},
		"logging": map[string]any{
			"enabled": c.Logging.Enabled,
			"level":   c.Logging.Level,
		},
		"models": map[string]any{
			"provider": c.Models.Provider,
			"name":     c.Models.Name,
			"api_key":  c.Models.APIKey,
		},
	}

	b, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	path := filepath.Join(c.Daemon.DataDir, "config.yaml")
	return atomic.WriteFile(path, bytes.NewReader(b))
}

func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func asStringSlice(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
