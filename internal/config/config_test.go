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

	assert.Equal(t, 10, cfg.Database.MaxOpen)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
	assert.Equal(t, DefaultBatchSize, cfg.Worker.BatchSize)
	assert.Equal(t, DefaultPollInterval, cfg.Worker.PollInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HEALTHIMPORT_DATABASE_DSN", "postgres://worker:pw@localhost/vitalsync")
	t.Setenv("HEALTHIMPORT_DATABASE_AUTO_MIGRATE", "true")
	t.Setenv("HEALTHIMPORT_STORAGE_BUCKET", "vitalsync-exports")
	t.Setenv("HEALTHIMPORT_STORAGE_ENDPOINT", "http://localhost:4566")
	t.Setenv("HEALTHIMPORT_WORKER_POLL_INTERVAL", "30s")
	t.Setenv("HEALTHIMPORT_WORKER_BATCH_SIZE", "100")
	t.Setenv("HEALTHIMPORT_SCORECARD_BASE_URL", "http://scorecards.internal")
	t.Setenv("HEALTHIMPORT_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://worker:pw@localhost/vitalsync", cfg.Database.DSN)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "vitalsync-exports", cfg.Storage.Bucket)
	assert.Equal(t, "http://localhost:4566", cfg.Storage.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 100, cfg.Worker.BatchSize)
	assert.Equal(t, "http://scorecards.internal", cfg.Scorecard.BaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsNonPositiveWorkerSettings(t *testing.T) {
	t.Setenv("HEALTHIMPORT_WORKER_BATCH_SIZE", "0")
	t.Setenv("HEALTHIMPORT_WORKER_POLL_INTERVAL", "0s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, cfg.Worker.BatchSize)
	assert.Equal(t, DefaultPollInterval, cfg.Worker.PollInterval)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.Database.DSN = "postgres://localhost/vitalsync"
	assert.NoError(t, cfg.Validate())

	assert.Error(t, cfg.ValidateWorker())
	cfg.Storage.Bucket = "vitalsync-exports"
	assert.NoError(t, cfg.ValidateWorker())
}
