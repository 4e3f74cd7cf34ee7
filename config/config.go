// Package config loads clipcore's runtime configuration from YAML, JSON,
// or environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level clipcore configuration.
type Config struct {
	Environment string           `yaml:"environment" json:"environment"`
	Transport   *TransportConfig `yaml:"transport" json:"transport"`
	Sync        *SyncConfig      `yaml:"sync" json:"sync"`
	Storage     *StorageConfig   `yaml:"storage" json:"storage"`
	Logging     *LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// TransportConfig holds the transport settings (spec §4.H, §4.I, §6). The
// transport/primary, transport/fallback and pairing packages do not read
// these fields; they use their own built-in defaults.
type TransportConfig struct {
	// Port is the default TCP/TLS port for the primary transport (spec default: 8765).
	Port int `yaml:"port" json:"port"`
	// ReachabilityTimeout is the pairing TCP probe timeout (spec §4.E: 3s).
	// The pairing manager uses its own pairing.ReachabilityTimeout constant.
	ReachabilityTimeout time.Duration `yaml:"reachability_timeout" json:"reachability_timeout"`
	// ReconnectBaseDelay is the base of the exponential backoff (spec default: 2s).
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay" json:"reconnect_base_delay"`
	// ReconnectMaxDelay caps the backoff (spec default: 60s).
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay" json:"reconnect_max_delay"`
	// ReconnectMaxAttempts caps consecutive reconnect attempts (spec default: 10).
	ReconnectMaxAttempts int `yaml:"reconnect_max_attempts" json:"reconnect_max_attempts"`
	// FallbackServiceID identifies the well-known fallback channel service (spec §4.I).
	FallbackServiceID string `yaml:"fallback_service_id" json:"fallback_service_id"`
}

// SyncConfig holds the sync-engine policy settings (spec §4.J, §6). Of these,
// only SweepInterval is read (by clipcore-sweep); sync.New sets the engine's
// TTL, loop-suppression and debounce values from its own defaults.
type SyncConfig struct {
	// DefaultTTL is applied to locally created clipboard items (spec default: 24h).
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`
	// LoopSuppressionWindow is the window in which an outbound change matching
	// the last local write is dropped (spec default: 2s).
	LoopSuppressionWindow time.Duration `yaml:"loop_suppression_window" json:"loop_suppression_window"`
	// NotificationDebounce is the background-delivery debounce window (spec default: 500ms).
	NotificationDebounce time.Duration `yaml:"notification_debounce" json:"notification_debounce"`
	// SweepInterval controls how often the background sweeper runs (spec §4.K: ~daily).
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// StorageConfig selects and configures the trust/clipboard store backends.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend" json:"backend"`
	// Path is the sqlite database file path when Backend == "sqlite".
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig controls the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes configuration to a YAML or JSON file based on its extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Default returns a Config populated entirely with defaults.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Transport == nil {
		cfg.Transport = &TransportConfig{}
	}
	if cfg.Transport.Port == 0 {
		cfg.Transport.Port = 8765
	}
	if cfg.Transport.ReachabilityTimeout == 0 {
		cfg.Transport.ReachabilityTimeout = 3 * time.Second
	}
	if cfg.Transport.ReconnectBaseDelay == 0 {
		cfg.Transport.ReconnectBaseDelay = 2 * time.Second
	}
	if cfg.Transport.ReconnectMaxDelay == 0 {
		cfg.Transport.ReconnectMaxDelay = 60 * time.Second
	}
	if cfg.Transport.ReconnectMaxAttempts == 0 {
		cfg.Transport.ReconnectMaxAttempts = 10
	}
	if cfg.Transport.FallbackServiceID == "" {
		cfg.Transport.FallbackServiceID = "dev.appconnect.fallback"
	}

	if cfg.Sync == nil {
		cfg.Sync = &SyncConfig{}
	}
	if cfg.Sync.DefaultTTL == 0 {
		cfg.Sync.DefaultTTL = 24 * time.Hour
	}
	if cfg.Sync.LoopSuppressionWindow == 0 {
		cfg.Sync.LoopSuppressionWindow = 2 * time.Second
	}
	if cfg.Sync.NotificationDebounce == 0 {
		cfg.Sync.NotificationDebounce = 500 * time.Millisecond
	}
	if cfg.Sync.SweepInterval == 0 {
		cfg.Sync.SweepInterval = 24 * time.Hour
	}

	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{}
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "clipcore.db"
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
