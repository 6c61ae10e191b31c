package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load(flags *Flags) (*Config, error) {
	cfg := Default()

	configPath := flags.Config
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	flags.apply(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Build.Fingerprint {
	case "timestamp", "hash":
	default:
		return fmt.Errorf("invalid fingerprint strategy %q (want timestamp or hash)", c.Build.Fingerprint)
	}
	switch c.Texture.Filter {
	case "lanczos", "catmullrom", "linear":
	default:
		return fmt.Errorf("invalid texture filter %q", c.Texture.Filter)
	}
	if c.Build.WatchInterval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %v", c.Build.WatchInterval)
	}
	switch c.Build.Platform {
	case "", "windows", "osx", "linux":
	default:
		return fmt.Errorf("invalid platform %q (want windows, osx or linux)", c.Build.Platform)
	}
	if c.Build.StateDir == "" {
		return fmt.Errorf("state directory must not be empty")
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./cecompiler.yaml",
		filepath.Join(ConfigDir(), "cecompiler.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "CEForge")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "CEForge")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "ceforge")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "ceforge")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
