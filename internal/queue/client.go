package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/docconvert/internal/config"
)

// Enqueuer is what the submission service needs from the queue.
type Enqueuer interface {
	EnqueueConvert(payload ConvertPayload) (jobID string, err error)
	QueueName() string
}

type Client struct {
	client    *asynq.Client
	queue     string
	maxRetry  int
	timeout   time.Duration
	retention time.Duration
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(redis config.RedisConfig, queue config.QueueConfig, worker config.WorkerConfig) *Client {
	maxRetry := worker.MaxAttempts - 1
	if maxRetry < 0 {
		maxRetry = 0
	}
	return &Client{
		client:    asynq.NewClient(RedisOpt(redis)),
		queue:     queue.Name,
		maxRetry:  maxRetry,
		timeout:   worker.HardTimeLimit,
		retention: time.Hour,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) QueueName() string {
	return c.queue
}

// EnqueueConvert schedules one conversion job. The queue retries at most
// MaxAttempts-1 times; the worker decides whether a failure may be retried.
func (c *Client) EnqueueConvert(payload ConvertPayload) (string, error) {
	return c.enqueue(TypeDocumentConvert, payload,
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.timeout),
		asynq.Retention(c.retention),
	)
}

func (c *Client) enqueue(taskType string, payload interface{}, opts ...asynq.Option) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	info, err := c.client.Enqueue(task, opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return info.ID, nil
}

// NewPurgeTask builds the periodic purge job registered with the scheduler.
func NewPurgeTask(olderThan time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(PurgePayload{OlderThanSeconds: int64(olderThan.Seconds())})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeStorePurge, data, asynq.MaxRetry(1)), nil
}
