package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// LogMiddleware writes one line per job delivery.
func LogMiddleware(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		jobID, _ := asynq.GetTaskID(ctx)
		err := next.ProcessTask(ctx, t)
		if err != nil {
			slog.Debug("job returned error", "type", t.Type(), "job_id", jobID, "duration", time.Since(start), "error", err)
			return err
		}
		slog.Debug("job done", "type", t.Type(), "job_id", jobID, "duration", time.Since(start))
		return nil
	})
}
