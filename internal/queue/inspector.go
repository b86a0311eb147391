package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/docconvert/internal/store"
)

// Inspector exposes the queue's live job state to the correlator and the
// stats endpoints.
type Inspector struct {
	inspector *asynq.Inspector
	queue     string
}

func NewInspector(opt asynq.RedisConnOpt, queue string) *Inspector {
	return &Inspector{inspector: asynq.NewInspector(opt), queue: queue}
}

func (i *Inspector) Close() error {
	return i.inspector.Close()
}

func (i *Inspector) JobInfo(ctx context.Context, queue, jobID string) (*store.JobInfo, error) {
	if queue == "" {
		queue = i.queue
	}
	info, err := i.inspector.GetTaskInfo(queue, jobID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, store.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task info: %w", err)
	}
	return &store.JobInfo{
		State:   jobState(info.State),
		LastErr: info.LastErr,
		Retried: info.Retried,
	}, nil
}

func jobState(s asynq.TaskState) store.JobState {
	switch s {
	case asynq.TaskStateActive:
		return store.JobActive
	case asynq.TaskStateScheduled:
		return store.JobScheduled
	case asynq.TaskStateRetry:
		return store.JobRetry
	case asynq.TaskStateArchived:
		return store.JobArchived
	case asynq.TaskStateCompleted:
		return store.JobCompleted
	default:
		return store.JobPending
	}
}

type Stats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Processed int    `json:"processed_total"`
}

// Stats reports queue counters. A queue that has never seen a job reports zeros.
func (i *Inspector) Stats(ctx context.Context) (*Stats, error) {
	info, err := i.inspector.GetQueueInfo(i.queue)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return &Stats{Queue: i.queue}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queue info: %w", err)
	}
	return &Stats{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Completed: info.Completed,
		Failed:    info.Archived,
		Processed: info.ProcessedTotal,
	}, nil
}

// WorkersActive counts worker processes currently registered with the broker.
func (i *Inspector) WorkersActive(ctx context.Context) (int, error) {
	servers, err := i.inspector.Servers()
	if err != nil {
		return 0, fmt.Errorf("list servers: %w", err)
	}
	n := 0
	for _, s := range servers {
		if s.Status == "active" {
			n++
		}
	}
	return n, nil
}
