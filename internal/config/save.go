package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Save persists settings as JSON, creating parent directories as needed.
func Save(cfg *Settings, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing settings to %s: %w", path, err)
	}

	return nil
}

// SaveIfMissing writes the settings only when no file exists at path yet,
// so a first run leaves the user an editable settings file without ever
// clobbering one they already have.
func SaveIfMissing(cfg *Settings, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking settings at %s: %w", path, err)
	}
	return Save(cfg, path)
}
