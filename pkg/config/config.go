// Package config provides configuration loading and management for
// bioclassify. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Classifier parameters
	Classifier struct {
		// DefaultPatchWidth is the tile width used when the model declares no shape
		DefaultPatchWidth int `yaml:"defaultPatchWidth"`

		// DefaultPatchHeight is the tile height used when the model declares no shape
		DefaultPatchHeight int `yaml:"defaultPatchHeight"`

		// DefaultDownsample is the resolution factor the classifier runs at
		DefaultDownsample float64 `yaml:"defaultDownsample"`
	} `yaml:"classifier"`

	// Verification parameters
	Verification struct {
		// Enabled controls whether the model's test fixtures are run after building
		Enabled bool `yaml:"enabled"`

		// OutputDir is the directory verification images are written to
		OutputDir string `yaml:"outputDir"`

		// PreviewMaxSize caps the longer edge of saved preview images in pixels
		PreviewMaxSize int `yaml:"previewMaxSize"`
	} `yaml:"verification"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default classifier parameters
	cfg.Classifier.DefaultPatchWidth = 512
	cfg.Classifier.DefaultPatchHeight = 512
	cfg.Classifier.DefaultDownsample = 1.0

	// Set default verification parameters
	cfg.Verification.Enabled = true
	cfg.Verification.OutputDir = "verification_results"
	cfg.Verification.PreviewMaxSize = 1024

	// Set default output parameters
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
