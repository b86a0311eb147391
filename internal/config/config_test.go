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

	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, 7*24*time.Hour, cfg.Store.ResultTTL)
	assert.Equal(t, "docling", cfg.Queue.Name)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Equal(t, 50, cfg.Worker.MaxTasks)
	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Worker.RetryDelay)
	assert.Equal(t, 900*time.Second, cfg.Worker.HardTimeLimit)
	assert.Equal(t, 540*time.Second, cfg.Worker.SoftTimeLimit)
	assert.Equal(t, 30*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, "X-API-Key", cfg.Auth.APIKeyHeader)
	assert.Zero(t, cfg.Embedding.BatchSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("TASK_RETRY_DELAY", "5")
	t.Setenv("RESULT_TTL", "1h")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Worker.RetryDelay)
	assert.Equal(t, time.Hour, cfg.Store.ResultTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("WORKER_HARD_TIME_LIMIT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "WORKER_HARD_TIME_LIMIT")
}

func TestValidateWeakTokenInProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DOCLING_API_TOKEN", "changeme")

	cfg, err := Load()
	require.NoError(t, err)
	_, err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCLING_API_TOKEN")
}

func TestValidateWeakTokenInDevelopmentWarns(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("DOCLING_API_TOKEN", "test")

	cfg, err := Load()
	require.NoError(t, err)
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
}

func TestValidateBackends(t *testing.T) {
	t.Setenv("DOCLING_API_TOKEN", "a-sufficiently-long-token")
	t.Setenv("STORE_BACKEND", "postgres")

	cfg, err := Load()
	require.NoError(t, err)
	_, err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg.Database.URL = "postgres://localhost/docling"
	_, err = cfg.Validate()
	assert.NoError(t, err)
}

func TestWeakToken(t *testing.T) {
	assert.True(t, WeakToken(""))
	assert.True(t, WeakToken("ADMIN"))
	assert.True(t, WeakToken("short-token"))
	assert.False(t, WeakToken("k3y-with-enough-entropy"))
}

func TestConversionDefaultOptions(t *testing.T) {
	t.Setenv("DEFAULT_CHUNK_SIZE", "1024")

	cfg, err := Load()
	require.NoError(t, err)
	opts := cfg.Conversion.DefaultOptions()
	assert.Equal(t, 1024, opts.ChunkSize)
	assert.Equal(t, 50, opts.ChunkOverlap)
	assert.True(t, opts.ExtractTables)

	assert.Equal(t, 512, ConversionConfig{}.DefaultOptions().ChunkSize)

	t.Setenv("DEFAULT_CHUNK_OVERLAP", "2000")
	cfg, err = Load()
	require.NoError(t, err)
	_, err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestValidateEmbeddingBatchSize(t *testing.T) {
	t.Setenv("EMBEDDING_BATCH_SIZE", "-1")

	cfg, err := Load()
	require.NoError(t, err)
	_, err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMBEDDING_BATCH_SIZE")
}
