package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config).
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// SkipEnvSubstitution disables ${VAR} substitution in Storage.Path, the
	// only field Load substitutes.
	SkipEnvSubstitution bool
}

// DefaultLoaderOptions returns default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config"}
}

// Load loads configuration with environment-specific file fallback, then
// applies environment-variable overrides (highest priority).
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg, err := loadConfigFile(filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env)))
	if err != nil {
		cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "default.yaml"))
		if err != nil {
			cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "config.yaml"))
			if err != nil {
				cfg = &Config{}
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}
	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		cfg.Storage.Path = SubstituteEnvVars(cfg.Storage.Path)
	}

	applyEnvironmentOverrides(cfg)
	return cfg, nil
}

// loadConfigFile parses path without applying defaults, so Load can fill in
// the requested environment before setDefaults runs.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config file (tried YAML and JSON): %w", err)
		}
	}
	return cfg, nil
}

// MustLoad loads configuration or panics on error. Load falls back to the
// built-in defaults when no config file can be read or parsed, so a missing
// or broken file does not make MustLoad panic.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
