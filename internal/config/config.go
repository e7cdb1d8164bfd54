package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ReaperConfig tunes the orphan sweep loop.
type ReaperConfig struct {
	IntervalMS int64 `yaml:"interval_ms"`
	MaxAgeMS   int64 `yaml:"max_age_ms"`
}

// Config is the server configuration, loaded from toolgate.yaml.
type Config struct {
	ListenAddr     string       `yaml:"listen_address"`
	Port           string       `yaml:"port"`
	RedisAddr      string       `yaml:"redis_address"`
	ToolsDir       string       `yaml:"tools_dir"`
	MaxConcurrent  int          `yaml:"max_concurrent"`
	AlertThreshold int          `yaml:"alert_threshold"`
	Reaper         ReaperConfig `yaml:"reaper"`
}

func (c *Config) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1"
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.ToolsDir == "" {
		c.ToolsDir = "./tools"
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.AlertThreshold <= 0 {
		c.AlertThreshold = 5
	}
	if c.Reaper.IntervalMS <= 0 {
		c.Reaper.IntervalMS = 30_000
	}
	if c.Reaper.MaxAgeMS <= 0 {
		c.Reaper.MaxAgeMS = 120_000
	}
}

// ReaperInterval returns the sweep interval as a duration.
func (c *Config) ReaperInterval() time.Duration {
	return time.Duration(c.Reaper.IntervalMS) * time.Millisecond
}

// ReaperMaxAge returns the orphan age cutoff as a duration.
func (c *Config) ReaperMaxAge() time.Duration {
	return time.Duration(c.Reaper.MaxAgeMS) * time.Millisecond
}

// Load reads and parses the config file at path, applying defaults for
// any keys left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}
