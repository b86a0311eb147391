package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/docconvert/internal/conversion"
	"github.com/nikhilbhutani/docconvert/internal/metrics"
	"github.com/nikhilbhutani/docconvert/internal/models"
	"github.com/nikhilbhutani/docconvert/internal/queue"
	"github.com/nikhilbhutani/docconvert/internal/store"
	"github.com/nikhilbhutani/docconvert/internal/vectorstore"
)

const persistTimeout = 30 * time.Second

type Executor interface {
	Execute(ctx context.Context, task models.Task) conversion.Outcome
}

type Notifier interface {
	Notify(ctx context.Context, url string, payload models.TaskResponse)
}

// ConversionWorker runs one attempt per job delivery and records terminal
// outcomes. Retries are left to the queue.
type ConversionWorker struct {
	executor Executor
	store    store.Store
	sink     vectorstore.ChunkSink
	notifier Notifier
	policy   conversion.RetryPolicy
	recycler *Recycler
}

// NewConversionWorker wires the worker. sink, notifier and recycler may be nil.
func NewConversionWorker(exec Executor, s store.Store, sink vectorstore.ChunkSink, notifier Notifier, policy conversion.RetryPolicy, recycler *Recycler) *ConversionWorker {
	return &ConversionWorker{
		executor: exec,
		store:    s,
		sink:     sink,
		notifier: notifier,
		policy:   policy,
		recycler: recycler,
	}
}

func (w *ConversionWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ConvertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	jobID, _ := asynq.GetTaskID(ctx)
	queueName, _ := asynq.GetQueueName(ctx)

	return w.handle(ctx, payload.Task, job{attempt: retried + 1, id: jobID, queue: queueName})
}

type job struct {
	attempt int
	id      string
	queue   string
}

func (w *ConversionWorker) handle(ctx context.Context, task models.Task, j job) error {
	log := slog.With("task_id", task.TaskID, "attempt", j.attempt)
	if task.BatchID != "" {
		log = log.With("batch_id", task.BatchID)
	}

	if rec, err := w.store.Get(ctx, task.TaskID); err == nil && rec.Status.Terminal() {
		log.Info("task already terminal, skipping", "status", rec.Status)
		return nil
	}

	log.Info("processing task")
	out := w.run(ctx, task, log)
	decision := w.policy.Decide(j.attempt, out.Err)

	switch decision.State {
	case conversion.StateSucceeded:
		rec := models.NewCompletedRecord(task, *out.Result, j.attempt, time.Now().UTC())
		return w.finish(ctx, rec, j, out, log)

	case conversion.StateRetryScheduled:
		log.Warn("attempt failed, retry scheduled",
			"error", out.Err, "kind", conversion.Kind(out.Err), "retry_in", decision.Delay)
		metrics.RecordTask("retry")
		return out.Err

	default:
		log.Error("task failed",
			"error", out.Err, "kind", conversion.Kind(out.Err), "retryable", conversion.Retryable(out.Err))
		rec := models.NewFailedRecord(task, out.Err.Error(), out.ElapsedMS(), j.attempt, time.Now().UTC())
		if err := w.finish(ctx, rec, j, out, log); err != nil {
			return err
		}
		return fmt.Errorf("%v: %w", out.Err, asynq.SkipRetry)
	}
}

// run executes one attempt under the hard limit and warns once the soft
// limit has passed.
func (w *ConversionWorker) run(ctx context.Context, task models.Task, log *slog.Logger) conversion.Outcome {
	if w.policy.HardLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.policy.HardLimit)
		defer cancel()
	}
	if w.policy.SoftLimit > 0 {
		soft := time.AfterFunc(w.policy.SoftLimit, func() {
			log.Warn("task exceeded soft time limit", "soft_limit", w.policy.SoftLimit)
		})
		defer soft.Stop()
	}

	out := w.executor.Execute(ctx, task)
	if out.Err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.Err = &conversion.ConversionError{
			Err: fmt.Errorf("exceeded hard time limit: %w", out.Err),
		}
	}
	return out
}

// finish persists the terminal record and runs the side effects that must
// happen once per task: vector upsert, metrics, webhook.
func (w *ConversionWorker) finish(ctx context.Context, rec models.TaskRecord, j job, out conversion.Outcome, log *slog.Logger) error {
	rec.QueueJobID = j.id
	rec.Queue = j.queue

	// The attempt context may already be past its deadline.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	won, err := w.store.WriteResult(persistCtx, rec)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if !won {
		log.Info("terminal result already recorded, ignoring duplicate")
		return nil
	}

	metrics.RecordTask(string(rec.Status))
	metrics.RecordProcessing(out.Duration)
	if w.recycler != nil {
		w.recycler.TaskFinished()
	}

	if rec.Status == models.StatusCompleted && len(rec.Chunks) > 0 {
		metrics.RecordChunks(len(rec.Chunks))
		if w.sink != nil {
			if err := w.sink.Upsert(persistCtx, rec.TaskID, rec.Chunks); err != nil {
				log.Error("failed to store chunk vectors", "error", err)
			}
		}
	}

	log.Info("task finished", "status", rec.Status, "duration_ms", out.ElapsedMS())

	if rec.WebhookURL != "" && w.notifier != nil {
		w.notifier.Notify(persistCtx, rec.WebhookURL, rec.Response())
	}
	return nil
}

// RetryDelay is installed as the server's RetryDelayFunc so every retry
// waits the policy's fixed delay.
func RetryDelay(policy conversion.RetryPolicy) asynq.RetryDelayFunc {
	return func(n int, err error, t *asynq.Task) time.Duration {
		if t.Type() == queue.TypeDocumentConvert {
			return policy.Delay
		}
		return asynq.DefaultRetryDelayFunc(n, err, t)
	}
}
