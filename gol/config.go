package gol

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds run settings that do not come from the grid file.
type Config struct {
	Workers         int           `yaml:"workers"`
	Threads         int           `yaml:"threads"`
	WorkerAddrs     []string      `yaml:"worker_addrs"`     // empty runs every worker in-process
	ShutdownWorkers bool          `yaml:"shutdown_workers"` // ask remote workers to exit when the run ends
	StepTimeout     time.Duration `yaml:"step_timeout"`
	RunTimeout      time.Duration `yaml:"run_timeout"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	LogLevel        string        `yaml:"log_level"`
	LogJSON         bool          `yaml:"log_json"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig enables the Redis sink when Addr is set.
type RedisConfig struct {
	Addr string        `yaml:"addr"`
	Key  string        `yaml:"key"`
	TTL  time.Duration `yaml:"ttl"`
}

func DefaultConfig() Config {
	return Config{
		Workers:  1,
		Threads:  1,
		LogLevel: "info",
		Redis:    RedisConfig{Key: "gol:run"},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	switch {
	case cfg.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrConfig, cfg.Workers)
	case cfg.Threads < 1:
		return fmt.Errorf("%w: threads must be at least 1, got %d", ErrConfig, cfg.Threads)
	case len(cfg.WorkerAddrs) > 0 && len(cfg.WorkerAddrs) < cfg.Workers:
		return fmt.Errorf("%w: %d workers requested but only %d addresses given",
			ErrConfig, cfg.Workers, len(cfg.WorkerAddrs))
	case cfg.StepTimeout < 0 || cfg.RunTimeout < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrConfig)
	}
	return nil
}

// Dialer returns the dialer matching the configured topology.
func (cfg Config) Dialer(local LocalDialer) Dialer {
	if len(cfg.WorkerAddrs) == 0 {
		return local
	}
	return RPCDialer{Addrs: cfg.WorkerAddrs, ShutdownOnClose: cfg.ShutdownWorkers}
}
