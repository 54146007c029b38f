package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a harness configuration from the given YAML file
// path, then applies defaults for unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches standard locations and loads the first config found,
// or returns the built-in defaults when none exists. Search order:
// ./cellbench.yaml, ~/.cellbench/config.yaml
func LoadDefault() (*Config, error) {
	candidates := []string{"cellbench.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".cellbench", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := &Config{}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogsDir == "" {
		cfg.LogsDir = "evaluation_logs"
	}
	if cfg.ReportsDir == "" {
		cfg.ReportsDir = "evaluation_reports"
	}
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = "."
	}
	if cfg.ReplayDir == "" {
		cfg.ReplayDir = "replay_artifacts"
	}
	if cfg.StageTimeout == "" {
		cfg.StageTimeout = "5m"
	}
	if len(cfg.Pipelines) == 0 {
		cfg.Pipelines = []string{"scripted"}
	}
}

// StageTimeoutDuration parses the advisory stage timeout.
func (c *Config) StageTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.StageTimeout)
	if err != nil {
		return 0, fmt.Errorf("stage_timeout: %w", err)
	}
	return d, nil
}
