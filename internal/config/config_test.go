package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "pfmtransfer.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "dynamic", cfg.Transfer.ThresholdMode)
	assert.Equal(t, 5, cfg.Transfer.MaxMatches)
	assert.InDelta(t, 0.5, cfg.Transfer.OutlierThreshold, 0.001)
	assert.Equal(t, 1, cfg.Transfer.Tolerance)
	assert.Equal(t, "global", cfg.Transfer.AlignMode)
	assert.InDelta(t, 0.05, cfg.Sweep.Step, 0.001)
	assert.Equal(t, 4, cfg.Sweep.Concurrency)
	assert.Equal(t, 4, cfg.Oracle.MinOverlap)
	assert.True(t, cfg.Oracle.BothStrands)
	assert.Equal(t, []float64{6, 4, 8}, cfg.Oracle.ClassifierWeights)
	assert.Equal(t, 3, cfg.Oracle.Retry.MaxAttempts)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate("predict"))
	assert.NoError(t, cfg.Validate("sweep"))
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/pfm
transfer:
  threshold_mode: static
  cutoff: 0.7
oracle:
  distance:
    path: /opt/stamp/bin/stamp-json
    args: ["-tc", "SSD"]
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "static", cfg.Transfer.ThresholdMode)
	assert.InDelta(t, 0.7, cfg.Transfer.Cutoff, 0.001)
	assert.Equal(t, "/opt/stamp/bin/stamp-json", cfg.Oracle.Distance.Path)
	assert.Equal(t, []string{"-tc", "SSD"}, cfg.Oracle.Distance.Args)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Transfer.MaxMatches)
}

func TestLoadIgnoresTierKeys(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
transfer:
  tiers:
    high: 0.6
    medium: 0.7
    low: 0.9
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate("predict"))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("PFMTRANSFER_STORE_DRIVER", "postgres")
	t.Setenv("PFMTRANSFER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PFMTRANSFER_SERVER_PORT=3000\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("PFMTRANSFER_SERVER_PORT") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("transfer: [\n"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "test.db"
	cfg.Transfer.ThresholdMode = "dynamic"
	cfg.Transfer.Cutoff = 0.5
	cfg.Transfer.MaxMatches = 5
	cfg.Transfer.OutlierThreshold = 0.5
	cfg.Transfer.AlignMode = "global"
	cfg.Sweep = SweepConfig{Start: 0, Stop: 1, Step: 0.05, Concurrency: 4}
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.NoError(t, cfg.Validate("predict"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("predict")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.Driver = "none"
	assert.NoError(t, cfg.Validate("predict"))

	cfg.Store.Driver = "mysql"
	err = cfg.Validate("predict")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateTransfer(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Transfer.ThresholdMode = "adaptive" }, "threshold_mode"},
		{"static cutoff above 1", func(c *Config) { c.Transfer.ThresholdMode = "static"; c.Transfer.Cutoff = 1.5 }, "transfer.cutoff"},
		{"max matches zero", func(c *Config) { c.Transfer.MaxMatches = 0 }, "max_matches"},
		{"max matches too large", func(c *Config) { c.Transfer.MaxMatches = 1001 }, "max_matches"},
		{"outlier too small", func(c *Config) { c.Transfer.OutlierThreshold = 0.05 }, "outlier_threshold"},
		{"align mode", func(c *Config) { c.Transfer.AlignMode = "semi" }, "align_mode"},
		{"negative rate", func(c *Config) { c.Oracle.Rate.PerSecond = -1 }, "oracle.rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("predict")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateSweep(t *testing.T) {
	cfg := validDefaults()
	cfg.Sweep.Step = 0
	err := cfg.Validate("sweep")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "step > 0")
	assert.NoError(t, cfg.Validate("predict"), "sweep settings only checked for sweep")

	cfg = validDefaults()
	cfg.Sweep.Concurrency = 65
	err = cfg.Validate("sweep")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sweep.concurrency")
}
