package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads and merges settings from global and project paths.
// Order of precedence (highest to lowest): project settings, global
// settings, defaults. Missing files are not errors; malformed JSON is.
func Load(globalPath, projectPath string) (*Settings, error) {
	cfg := DefaultSettings()

	if globalPath != "" {
		if err := mergeSettingsFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global settings: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeSettingsFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project settings: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads settings from the conventional paths.
func LoadDefault() (*Settings, error) {
	return Load(GlobalSettingsPath(), ProjectSettingsPath())
}

// mergeSettingsFile reads a JSON settings file and lays its set fields over
// the base. Missing files are silently skipped.
func mergeSettingsFile(base *Settings, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.LogFile != "" {
		base.LogFile = loaded.LogFile
	}
	if loaded.LogLevel != "" {
		base.LogLevel = loaded.LogLevel
	}
	if loaded.HistoryPath != "" {
		base.HistoryPath = loaded.HistoryPath
	}
	if loaded.PollIntervalMS > 0 {
		base.PollIntervalMS = loaded.PollIntervalMS
	}
	if loaded.MaxWorkers > 0 {
		base.MaxWorkers = loaded.MaxWorkers
	}
	if loaded.WatchFlow != nil {
		base.WatchFlow = loaded.WatchFlow
	}

	return nil
}
