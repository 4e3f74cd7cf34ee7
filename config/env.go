package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// envVarPattern matches ${VAR} or ${VAR:default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment values.
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// LoadDotEnv loads a .env file if present; a missing file is not an error,
// matching godotenv's use in local development harnesses.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// GetEnvironment returns the current environment from CLIPCORE_ENV or ENVIRONMENT.
func GetEnvironment() string {
	env := os.Getenv("CLIPCORE_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction reports whether the current environment is production.
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// applyEnvironmentOverrides overrides config fields with environment variables,
// highest priority, applied after file load and default substitution.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("CLIPCORE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Transport.Port = p
		}
	}
	if v := os.Getenv("CLIPCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CLIPCORE_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("CLIPCORE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("CLIPCORE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true"
	}
}
