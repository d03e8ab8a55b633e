package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Relayer.PollingInterval == 0 {
		cfg.Relayer.PollingInterval = 30 * time.Second
	}
	if cfg.Relayer.MaxWindowSize == 0 {
		cfg.Relayer.MaxWindowSize = 100
	}
	if cfg.Relayer.ConfirmationLag == 0 {
		cfg.Relayer.ConfirmationLag = 12
	}
	if cfg.Relayer.DedupCapacity == 0 {
		cfg.Relayer.DedupCapacity = 1024
	}
	if cfg.Checkpoint.Path == "" {
		cfg.Checkpoint.Path = "relayer_state.json"
	}
	if cfg.Source.ChainID == "" {
		cfg.Source.ChainID = "1"
	}
	if cfg.Destination.ChainID == "" {
		cfg.Destination.ChainID = "137"
	}
}
