package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadConfigFromFile reads and parses a YAML configuration file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML bytes into a Config. It starts with defaults and
// overlays values from the YAML. ${VAR} references are expanded from the
// environment first; unset variables are left as literal references so key
// resolution can tell them apart from real values.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	expanded := os.Expand(string(data), func(name string) string {
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return "${" + name + "}"
	})

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// SaveConfigToFile writes a Config as YAML to path, creating the directory.
func SaveConfigToFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FindConfigFile searches for config files in standard locations.
// Returns the path of the first found, or empty string.
func FindConfigFile() string {
	candidates := []string{
		"contextclaw.yaml",
		"contextclaw.yml",
		"config.yaml",
		"config.yml",
		"configs/contextclaw.yaml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "contextclaw", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
