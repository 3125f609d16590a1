package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadMissingFilesUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "nope.json"), filepath.Join(dir, "also-nope.json"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := DefaultSettings()
	if cfg.LogLevel != want.LogLevel || cfg.PollIntervalMS != want.PollIntervalMS {
		t.Errorf("got %+v, want defaults %+v", cfg, want)
	}
	if !cfg.Watch() {
		t.Error("watching should default on")
	}
}

func TestLoadProjectOverridesGlobal(t *testing.T) {
	dir := t.TempDir()
	global := writeFile(t, dir, "global.json", `{"log_level": "debug", "max_workers": 8}`)
	project := writeFile(t, dir, "project.json", `{"log_level": "warn", "watch_flow": false}`)

	cfg, err := Load(global, project)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want project override %q", cfg.LogLevel, "warn")
	}
	if cfg.MaxWorkers != 8 {
		t.Errorf("MaxWorkers = %d, want global value 8", cfg.MaxWorkers)
	}
	if cfg.Watch() {
		t.Error("project settings disabled watching")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.json", `{"log_level": `)
	if _, err := Load(bad, ""); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deep", "nested", "settings.json")

	cfg := DefaultSettings()
	cfg.LogLevel = "trace"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.LogLevel != "trace" {
		t.Errorf("LogLevel = %q, want %q", loaded.LogLevel, "trace")
	}
}

func TestSaveIfMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	cfg := DefaultSettings()
	cfg.LogLevel = "debug"
	if err := SaveIfMissing(cfg, path); err != nil {
		t.Fatalf("SaveIfMissing() error: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", loaded.LogLevel, "debug")
	}

	// An existing file is never overwritten.
	cfg.LogLevel = "trace"
	if err := SaveIfMissing(cfg, path); err != nil {
		t.Fatalf("second SaveIfMissing() error: %v", err)
	}
	loaded, err = Load(path, "")
	if err != nil {
		t.Fatalf("Load() after second save: %v", err)
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("LogLevel after no-op save = %q, want %q", loaded.LogLevel, "debug")
	}
}
