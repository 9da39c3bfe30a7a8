package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp/internal/geo"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	ac := cfg.AnnealConfig()
	assert.Equal(t, 1000.0, ac.InitialTemperature)
	assert.Equal(t, 10000, ac.MaxIterations)
	assert.Equal(t, geo.Kilometers, ac.Unit)
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vrp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  solve_timeout: 5s
jobs:
  workers: 2
annealing:
  cooling_rate: 0.99
distance_unit: miles
`), 0o600))

	t.Setenv("JOB_WORKERS", "8")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("AUTH_MODE", "DEV")
	t.Setenv("JOB_TIMEOUT", "90s")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.SolveTimeout)
	assert.Equal(t, 8, cfg.Jobs.Workers, "env overrides file")
	assert.Equal(t, 64, cfg.Jobs.Queue, "default survives")
	assert.Equal(t, 0.99, cfg.Annealing.CoolingRate)
	assert.Equal(t, geo.Miles, cfg.Unit())
	assert.Equal(t, "dev", cfg.Auth.Mode)
	assert.Equal(t, 90*time.Second, cfg.Jobs.Timeout)
	assert.Equal(t, 1_000_000, cfg.Server.MaxIterations)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.Server.TrustedProxies)

	red := cfg.Redacted()
	assert.Equal(t, true, red["redis"])
	assert.Equal(t, false, red["database"])
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("VRP_CONFIG", "")

	t.Setenv("PORT", "eighty")
	_, err := Load("")
	assert.ErrorContains(t, err, "PORT")

	t.Setenv("PORT", "8080")
	t.Setenv("SA_COOLING_RATE", "1.5")
	_, err = Load("")
	assert.ErrorContains(t, err, "cooling rate")

	t.Setenv("SA_COOLING_RATE", "")
	t.Setenv("AUTH_MODE", "hmac")
	_, err = Load("")
	assert.ErrorContains(t, err, "AUTH_HMAC_SECRET")

	t.Setenv("AUTH_MODE", "off")
	t.Setenv("DISTANCE_UNIT", "cubits")
	_, err = Load("")
	assert.ErrorIs(t, err, geo.ErrInvalidUnit)

	t.Setenv("DISTANCE_UNIT", "km")
	t.Setenv("MAX_ITERATIONS", "100")
	_, err = Load("")
	assert.ErrorContains(t, err, "exceeds server.max_iterations")

	t.Setenv("MAX_ITERATIONS", "")
	t.Setenv("JOB_TIMEOUT", "0s")
	_, err = Load("")
	assert.ErrorContains(t, err, "jobs.timeout")

	t.Setenv("JOB_TIMEOUT", "")
	t.Setenv("TRUSTED_PROXIES", "proxy.internal")
	_, err = Load("")
	assert.ErrorContains(t, err, "trusted proxy")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
