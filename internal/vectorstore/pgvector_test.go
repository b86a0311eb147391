package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docconvert/internal/database"
	"github.com/nikhilbhutani/docconvert/internal/models"
	"github.com/nikhilbhutani/docconvert/pkg/chunker"
)

func TestPgVectorUpsertAndDelete(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	_, file, _, _ := runtime.Caller(0)
	require.NoError(t, database.RunMigrations(ctx, pool, filepath.Join(filepath.Dir(file), "..", "..", "migrations")))

	s := NewPgVectorStore(pool)
	taskID := uuid.NewString()
	chunks := []models.DocumentChunk{
		{ID: chunker.ChunkID(taskID, 0), Content: "alpha", Metadata: models.ChunkMetadata{ChunkIndex: 0, TokenCount: 1}, Embedding: []float32{1, 0, 0}},
		{ID: chunker.ChunkID(taskID, 1), Content: "beta", Metadata: models.ChunkMetadata{ChunkIndex: 1, TokenCount: 1}, Embedding: []float32{0, 1, 0}},
	}

	require.NoError(t, s.Upsert(ctx, taskID, chunks))
	require.NoError(t, s.Upsert(ctx, taskID, chunks))

	var n int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM document_chunks WHERE task_id = $1", taskID).Scan(&n))
	assert.Equal(t, 2, n)

	require.NoError(t, s.DeleteTask(ctx, taskID))
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM document_chunks WHERE task_id = $1", taskID).Scan(&n))
	assert.Zero(t, n)
}
