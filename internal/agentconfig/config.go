// Package agentconfig handles Agent configuration loading and validation.
//
// # Configuration Sources
//
// Configuration is loaded from (in order of precedence):
// 1. Command-line flags
// 2. Environment variables (LOGPIPE_*)
// 3. Config file (YAML)
// 4. Defaults
//
// # Example Config File
//
//	ingestion:
//	  url: https://ingest.logpipe.internal
//
//	agent:
//	  app_name: checkout-service
//
//	batching:
//	  batch_size: 500
//	  flush_interval: 1s
package agentconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete Agent configuration.
type Config struct {
	Ingestion IngestionConfig `yaml:"ingestion"`
	Agent     AgentIdentity   `yaml:"agent"`
	Batching  BatchingConfig  `yaml:"batching"`
}

// IngestionConfig defines how to reach the Ingestion service.
type IngestionConfig struct {
	URL            string        `yaml:"url"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
}

// AgentIdentity names the application this Agent instance is embedded in.
// Every entry logged through this Agent is tagged with AppName.
type AgentIdentity struct {
	AppName string `yaml:"app_name"`
}

// BatchingConfig controls the Agent's buffer/batch/ship behavior (§4.1).
type BatchingConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	SpillDir      string        `yaml:"spill_dir,omitempty"`
}

// DefaultConfig returns a config with the spec's default batching
// parameters: size-triggered drain plus a 1-second flush timer.
func DefaultConfig() *Config {
	return &Config{
		Ingestion: IngestionConfig{
			RequestTimeout: 30 * time.Second,
		},
		Batching: BatchingConfig{
			BatchSize:     100,
			FlushInterval: 1 * time.Second,
		},
	}
}

// LoadFromFile loads configuration from a YAML file, starting from
// DefaultConfig so unset fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Ingestion.URL == "" {
		return fmt.Errorf("ingestion.url is required")
	}
	if c.Agent.AppName == "" {
		return fmt.Errorf("agent.app_name is required")
	}
	if c.Batching.BatchSize <= 0 {
		return fmt.Errorf("batching.batch_size must be positive")
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides.
// Environment variables use the LOGPIPE_ prefix:
//   - LOGPIPE_INGESTION_URL
//   - LOGPIPE_AGENT_APP_NAME
//   - LOGPIPE_BATCH_SIZE
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LOGPIPE_INGESTION_URL"); v != "" {
		c.Ingestion.URL = v
	}
	if v := os.Getenv("LOGPIPE_AGENT_APP_NAME"); v != "" {
		c.Agent.AppName = v
	}
	if v := os.Getenv("LOGPIPE_BATCH_SIZE"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			c.Batching.BatchSize = n
		}
	}
}

func parsePositiveInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid integer %q", s)
		}
		n = n*10 + int(c-'0')
	}
	if n <= 0 {
		return 0, fmt.Errorf("value must be positive")
	}
	return n, nil
}
