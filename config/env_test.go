package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvVars(t *testing.T) {
	os.Setenv("CLIPCORE_TEST_VAR", "hello")
	defer os.Unsetenv("CLIPCORE_TEST_VAR")

	assert.Equal(t, "hello world", SubstituteEnvVars("${CLIPCORE_TEST_VAR} world"))
	assert.Equal(t, "fallback", SubstituteEnvVars("${CLIPCORE_MISSING_VAR:fallback}"))
	assert.Equal(t, "", SubstituteEnvVars("${CLIPCORE_MISSING_VAR}"))
}

func TestGetEnvironment(t *testing.T) {
	os.Unsetenv("CLIPCORE_ENV")
	os.Unsetenv("ENVIRONMENT")
	assert.Equal(t, "development", GetEnvironment())

	os.Setenv("CLIPCORE_ENV", "PRODUCTION")
	defer os.Unsetenv("CLIPCORE_ENV")
	assert.Equal(t, "production", GetEnvironment())
	assert.True(t, IsProduction())
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	cfg := Default()
	os.Setenv("CLIPCORE_PORT", "5555")
	os.Setenv("CLIPCORE_STORAGE_BACKEND", "sqlite")
	defer os.Unsetenv("CLIPCORE_PORT")
	defer os.Unsetenv("CLIPCORE_STORAGE_BACKEND")

	applyEnvironmentOverrides(cfg)
	assert.Equal(t, 5555, cfg.Transport.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}
