package store

import (
	"context"
	"errors"
	"time"

	"github.com/nikhilbhutani/docconvert/internal/models"
)

var (
	ErrNotFound     = errors.New("task not found")
	ErrTaskInFlight = errors.New("task is still in flight")
)

// Store persists task and batch records keyed by application ids. The
// queue's own job id is kept on the record for tracing but never used as
// a key.
type Store interface {
	// Create inserts the submission record unless one already exists.
	Create(ctx context.Context, rec models.TaskRecord) error
	Get(ctx context.Context, taskID string) (*models.TaskRecord, error)
	// WriteResult performs the terminal transition. Only the first terminal
	// write is applied; it reports whether this call was the one.
	WriteResult(ctx context.Context, rec models.TaskRecord) (bool, error)
	// Delete removes a terminal record. It returns false when the record is
	// absent and ErrTaskInFlight when it has not finished.
	Delete(ctx context.Context, taskID string) (bool, error)

	CreateBatch(ctx context.Context, b models.Batch) error
	GetBatch(ctx context.Context, batchID string) (*models.Batch, error)

	Ping(ctx context.Context) error
}

// Purger is implemented by backends without native expiry.
type Purger interface {
	PurgeExpired(ctx context.Context, olderThan time.Time) (int64, error)
}
