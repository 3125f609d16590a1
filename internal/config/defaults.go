package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// DefaultSettings returns the built-in configuration, rooted in the XDG
// base directories.
func DefaultSettings() *Settings {
	return &Settings{
		LogFile:        filepath.Join(xdg.StateHome, "stepflow", "stepflow.log"),
		LogLevel:       "info",
		HistoryPath:    filepath.Join(xdg.DataHome, "stepflow", "history.db"),
		PollIntervalMS: 250,
		MaxWorkers:     4,
	}
}

// GlobalSettingsPath is where the user-wide settings file lives.
func GlobalSettingsPath() string {
	return filepath.Join(xdg.ConfigHome, "stepflow", "settings.json")
}

// ProjectSettingsPath is the per-project override, relative to cwd.
func ProjectSettingsPath() string {
	return filepath.Join(".stepflow", "settings.json")
}
