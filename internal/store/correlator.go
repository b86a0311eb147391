package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/docconvert/internal/models"
)

type JobState string

const (
	JobPending   JobState = "pending"
	JobScheduled JobState = "scheduled"
	JobRetry     JobState = "retry"
	JobActive    JobState = "active"
	JobArchived  JobState = "archived"
	JobCompleted JobState = "completed"
)

var ErrJobNotFound = errors.New("queue job not found")

// JobInfo is the queue's live view of a job.
type JobInfo struct {
	State   JobState
	LastErr string
	Retried int
}

type JobInspector interface {
	JobInfo(ctx context.Context, queue, jobID string) (*JobInfo, error)
}

// Correlator answers polling requests from the store, consulting the queue
// only for records that have not reached a terminal state.
type Correlator struct {
	store     Store
	inspector JobInspector
}

func NewCorrelator(s Store, inspector JobInspector) *Correlator {
	return &Correlator{store: s, inspector: inspector}
}

func (c *Correlator) Lookup(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	rec, err := c.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() || c.inspector == nil || rec.QueueJobID == "" {
		return rec, nil
	}

	info, err := c.inspector.JobInfo(ctx, rec.Queue, rec.QueueJobID)
	if errors.Is(err, ErrJobNotFound) {
		// The job may have finished between the two reads.
		return c.reread(ctx, rec)
	}
	if err != nil {
		slog.Warn("queue inspection failed", "task_id", taskID, "job_id", rec.QueueJobID, "error", err)
		return rec, nil
	}

	switch info.State {
	case JobActive:
		rec.Status = models.StatusProcessing
		rec.Attempts = info.Retried + 1
	case JobRetry:
		rec.Status = models.StatusProcessing
		rec.Attempts = info.Retried
	case JobPending, JobScheduled:
		rec.Status = models.StatusPending
		// A requeued retry has already been seen as processing.
		if info.Retried > 0 {
			rec.Status = models.StatusProcessing
		}
		rec.Attempts = info.Retried
	case JobCompleted:
		return c.reread(ctx, rec)
	case JobArchived:
		return c.archived(ctx, rec, info)
	}
	return rec, nil
}

func (c *Correlator) reread(ctx context.Context, rec *models.TaskRecord) (*models.TaskRecord, error) {
	fresh, err := c.store.Get(ctx, rec.TaskID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		slog.Warn("task re-read failed", "task_id", rec.TaskID, "error", err)
		return rec, nil
	}
	return fresh, nil
}

// archived handles a job the queue gave up on without the worker ever
// recording an outcome, e.g. a worker killed past its deadline on the
// last attempt. The failure is persisted so later polls agree.
func (c *Correlator) archived(ctx context.Context, rec *models.TaskRecord, info *JobInfo) (*models.TaskRecord, error) {
	fresh, err := c.reread(ctx, rec)
	if err != nil || fresh.Status.Terminal() {
		return fresh, err
	}

	msg := info.LastErr
	if msg == "" {
		msg = "task abandoned by queue"
	}
	task := models.Task{
		TaskID:     rec.TaskID,
		BatchID:    rec.BatchID,
		Source:     rec.Source,
		Options:    rec.Options,
		WebhookURL: rec.WebhookURL,
		Metadata:   rec.Metadata,
		CreatedAt:  rec.CreatedAt,
	}
	failed := models.NewFailedRecord(task, msg, 0, info.Retried+1, time.Now().UTC())
	failed.QueueJobID = rec.QueueJobID
	failed.Queue = rec.Queue

	if _, err := c.store.WriteResult(ctx, failed); err != nil {
		slog.Warn("persist abandoned task failed", "task_id", rec.TaskID, "error", err)
		return &failed, nil
	}
	return c.reread(ctx, &failed)
}
