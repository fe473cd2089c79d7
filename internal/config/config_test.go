package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "7860", cfg.Server.Port)
	assert.Equal(t, "chrome", cfg.Server.BrowserTarget)
	assert.Equal(t, 40, cfg.Upload.MaxMB)
	assert.Equal(t, 12, cfg.Jobs.TTLHours)
	assert.Equal(t, 2, cfg.Jobs.Workers)
	assert.Equal(t, 8, cfg.Jobs.QueueSize)
	assert.Equal(t, 180, cfg.Homr.TimeoutSeconds)
	assert.Equal(t, "pdftoppm", cfg.PDF.PdftoppmPath)
	assert.Equal(t, 300, cfg.PDF.DPI)
	assert.NotEmpty(t, cfg.Jobs.RootDir)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_UPLOAD_MB", "10")
	t.Setenv("JOB_WORKERS", "4")
	t.Setenv("HOMR_TIMEOUT", "60")
	t.Setenv("BROWSER_TARGET", "safari")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Upload.MaxMB)
	assert.Equal(t, 4, cfg.Jobs.Workers)
	assert.Equal(t, 60, cfg.Homr.TimeoutSeconds)
	assert.Equal(t, "safari", cfg.Server.BrowserTarget)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("MAX_UPLOAD_MB", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadNormalizesBrowserTarget(t *testing.T) {
	t.Setenv("BROWSER_TARGET", "firefox")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "chrome", cfg.Server.BrowserTarget)
}

func TestDerivedValues(t *testing.T) {
	cfg := Config{
		Upload: UploadConfig{MaxMB: 40},
		Jobs:   JobsConfig{TTLHours: 12},
		Homr:   HomrConfig{TimeoutSeconds: 180},
	}

	assert.Equal(t, int64(40*1024*1024), cfg.Upload.MaxBytes())
	assert.Equal(t, 12*time.Hour, cfg.Jobs.TTL())
	assert.Equal(t, 180*time.Second, cfg.Homr.Timeout())
}
