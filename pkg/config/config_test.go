package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "./aegis-data", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 5, cfg.BreakerThreshold)
	assert.Equal(t, 5*time.Minute, cfg.BreakerCooldown)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aegis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/aegis
workers: 4
breaker_cooldown: 1m
endpoints:
  - https://api.example.com/health
`), 0o644))
	t.Setenv("AEGIS_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/aegis", cfg.DataDir)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Minute, cfg.BreakerCooldown)
	assert.Equal(t, []string{"https://api.example.com/health"}, cfg.Endpoints)

	// Unset fields keep their defaults.
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aegis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 4\n"), 0o644))
	t.Setenv("AEGIS_CONFIG", path)
	t.Setenv("AEGIS_WORKERS", "8")
	t.Setenv("AEGIS_LOG_LEVEL", "debug")
	t.Setenv("AEGIS_ENDPOINTS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Endpoints)
}

func TestWorkersFloor(t *testing.T) {
	t.Setenv("AEGIS_WORKERS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Workers)
}

func TestMissingConfigFileIsError(t *testing.T) {
	t.Setenv("AEGIS_CONFIG", "/no/such/file.yaml")

	_, err := Load()
	assert.Error(t, err)
}
