package database

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docconvert/internal/config"
)

func TestNewPoolRequiresURL(t *testing.T) {
	_, err := NewPool(context.Background(), config.DatabaseConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig(config.DatabaseConfig{URL: "postgres://u:p@db.internal:5432/docling", MaxConns: 8})
	require.NoError(t, err)
	assert.Equal(t, int32(8), cfg.MaxConns)
	assert.Equal(t, "db.internal", cfg.ConnConfig.Host)
	assert.Equal(t, "docling", cfg.ConnConfig.RuntimeParams["application_name"])

	cfg, err = poolConfig(config.DatabaseConfig{URL: "postgres://u:p@db.internal:5432/docling?application_name=reporting"})
	require.NoError(t, err)
	assert.Equal(t, "reporting", cfg.ConnConfig.RuntimeParams["application_name"])

	_, err = poolConfig(config.DatabaseConfig{URL: "://nope"})
	assert.Error(t, err)
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, config.DatabaseConfig{URL: url})
	require.NoError(t, err)
	defer pool.Close()

	_, file, _, _ := runtime.Caller(0)
	dir := filepath.Join(filepath.Dir(file), "..", "..", "migrations")

	require.NoError(t, RunMigrations(ctx, pool, dir))
	require.NoError(t, RunMigrations(ctx, pool, dir))

	var n int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM schema_migrations").Scan(&n))
	assert.GreaterOrEqual(t, n, 1)
}
