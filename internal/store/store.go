// Package store holds the on-disk layout of the data directory and the
// JSON persistence helpers shared by every component store.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

const (
	ActionRegistryFile     = "action_registry.json"
	AIInteractionsFile     = "ai_interactions.json"
	AppUsageFile           = "app_usage.json"
	MinuteSummariesFile    = "summaries_minute.json"
	TenMinuteSummariesFile = "summaries_ten_minute.json"
	SuggestionsFile        = "suggestions.json"
	ConfigFile             = "config.yaml"
	LockFile               = "wingman.lock"
	ScriptDir              = "scripts"
)

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("data directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}

// SaveJSON serialises v and atomically replaces the file at path
// (write-to-temp + rename).
func SaveJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return atomic.WriteFile(path, bytes.NewReader(b))
}

// LoadJSON reads the file at path into v. A missing or empty file leaves v
// untouched and returns false; corruption is reported as an error so callers
// can fall back to an empty store.
func LoadJSON(path string, v any) (bool, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(content) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(content, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return true, nil
}
