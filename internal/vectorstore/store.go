package vectorstore

import (
	"context"

	"github.com/nikhilbhutani/docconvert/internal/models"
)

// ChunkSink persists embedded chunks outside the task record so they can
// be queried by similarity. Writes are keyed by chunk id and idempotent.
type ChunkSink interface {
	Upsert(ctx context.Context, taskID string, chunks []models.DocumentChunk) error
	DeleteTask(ctx context.Context, taskID string) error
}
