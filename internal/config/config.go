// Package config loads the core's ambient configuration: the default
// quality-of-service parameters new services inherit, the allocator
// defaults ports inherit, and the two environment variables the core
// consumes (a log-level override and a prefix override, which places
// the process in an isolated "domain").
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// DefaultPrefix is used when neither the config file nor ICEORYX2_PREFIX
// sets one.
const DefaultPrefix = "/tmp/iceoryx2"

// Config is the top-level, YAML-backed configuration.
type Config struct {
	Global   GlobalConfig   `yaml:"global"`
	Service  ServiceDefaults `yaml:"service"`
	Reaper   ReaperConfig   `yaml:"reaper"`
}

// GlobalConfig holds process-wide settings.
type GlobalConfig struct {
	// Prefix is the directory under which nodes/, services/, and
	// segments/ are rooted. Two processes with
	// different prefixes operate in isolated domains.
	Prefix string `yaml:"prefix"`
	// LogLevel is one of debug|info|warn|error.
	LogLevel string `yaml:"log_level"`
}

// ServiceDefaults are inherited by a ServiceBuilder unless overridden
// per-service.
type ServiceDefaults struct {
	MaxPorts           int           `yaml:"max_ports"`
	HistorySize        uint32        `yaml:"history_size"`
	ReceiveBufferSize  uint32        `yaml:"receive_buffer_size"`
	SafeOverflow       bool          `yaml:"safe_overflow"`
	Deadline           time.Duration `yaml:"deadline"`
	InitialMaxSliceLen uint32        `yaml:"initial_max_slice_len"`
	AllocationStrategy string        `yaml:"allocation_strategy"` // Static|PowerOfTwo|BestFit
}

// ReaperConfig tunes the dead-node reaper.
type ReaperConfig struct {
	Interval     time.Duration `yaml:"interval"`
	BusyBackoff  time.Duration `yaml:"busy_backoff"`
}

// Default returns the configuration a process gets with no config file
// and no environment overrides.
func Default() *Config {
	return &Config{
		Global: GlobalConfig{Prefix: DefaultPrefix, LogLevel: "info"},
		Service: ServiceDefaults{
			MaxPorts:           16,
			HistorySize:        0,
			ReceiveBufferSize:  8,
			SafeOverflow:       true,
			Deadline:           0,
			InitialMaxSliceLen: 1,
			AllocationStrategy: "PowerOfTwo",
		},
		Reaper: ReaperConfig{
			Interval:    1 * time.Second,
			BusyBackoff: 10 * time.Millisecond,
		},
	}
}

// Load reads a YAML config file at path (if it exists), applies
// environment variable overrides on top, and returns the effective
// configuration. A missing file is not an error — it just means the
// defaults plus env overrides apply.
func Load(path string) (*Config, error) {
	// Best-effort .env loading for local dev/test harnesses before reading
	// the environment.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if prefix := os.Getenv("ICEORYX2_PREFIX"); prefix != "" {
		cfg.Global.Prefix = prefix
	}
	if level := os.Getenv("ICEORYX2_LOG_LEVEL"); level != "" {
		cfg.Global.LogLevel = strings.ToLower(level)
	}
}
