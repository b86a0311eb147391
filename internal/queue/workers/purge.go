package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/docconvert/internal/queue"
	"github.com/nikhilbhutani/docconvert/internal/store"
)

// PurgeWorker removes expired records from stores without native expiry.
type PurgeWorker struct {
	purger store.Purger
}

func NewPurgeWorker(p store.Purger) *PurgeWorker {
	return &PurgeWorker{purger: p}
}

func (w *PurgeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.PurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.OlderThanSeconds <= 0 {
		return nil
	}

	cutoff := time.Now().UTC().Add(-time.Duration(payload.OlderThanSeconds) * time.Second)
	n, err := w.purger.PurgeExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge expired: %w", err)
	}
	slog.Info("purged expired tasks", "count", n, "cutoff", cutoff)
	return nil
}
