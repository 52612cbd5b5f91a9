package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig verifies the built-in defaults
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Classifier.DefaultPatchWidth != 512 || cfg.Classifier.DefaultPatchHeight != 512 {
		t.Errorf("Expected default patch 512x512, got %dx%d",
			cfg.Classifier.DefaultPatchWidth, cfg.Classifier.DefaultPatchHeight)
	}
	if cfg.Classifier.DefaultDownsample != 1.0 {
		t.Errorf("Expected default downsample 1.0, got %f", cfg.Classifier.DefaultDownsample)
	}
	if !cfg.Verification.Enabled {
		t.Errorf("Expected verification enabled by default")
	}
	if cfg.Verification.OutputDir == "" {
		t.Errorf("Expected a default verification output directory")
	}
}

// TestLoadConfigMissingFile falls back to defaults for a missing file
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed for missing file: %v", err)
	}
	if cfg.Classifier.DefaultPatchWidth != 512 {
		t.Errorf("Expected defaults for missing file")
	}
}

// TestLoadConfigOverrides merges file values over defaults
func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
classifier:
  defaultPatchWidth: 256
verification:
  enabled: false
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Classifier.DefaultPatchWidth != 256 {
		t.Errorf("Expected patch width override 256, got %d", cfg.Classifier.DefaultPatchWidth)
	}
	if cfg.Verification.Enabled {
		t.Errorf("Expected verification disabled by config")
	}
	// Untouched values keep their defaults
	if cfg.Classifier.DefaultPatchHeight != 512 {
		t.Errorf("Expected default patch height 512, got %d", cfg.Classifier.DefaultPatchHeight)
	}
}

// TestSaveConfigRoundTrip saves and reloads a configuration
func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Verification.PreviewMaxSize = 2048

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	back, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if back.Verification.PreviewMaxSize != 2048 {
		t.Errorf("Expected preview size 2048 after round trip, got %d",
			back.Verification.PreviewMaxSize)
	}
}

// TestLoadConfigMalformed surfaces YAML errors
func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("classifier: ["), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("Expected error for malformed config")
	}
}
