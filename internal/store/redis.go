package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docconvert/internal/models"
)

const (
	taskKeyPrefix  = "docling:task:"
	batchKeyPrefix = "docling:batch:"
)

// writeResultScript applies a terminal record unless the stored one is
// already terminal.
var writeResultScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, rec = pcall(cjson.decode, cur)
  if ok and (rec.status == 'completed' or rec.status == 'failed') then
    return 0
  end
end
if tonumber(ARGV[2]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

var deleteScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  return 0
end
local ok, rec = pcall(cjson.decode, cur)
if ok and rec.status ~= 'completed' and rec.status ~= 'failed' then
  return -1
end
redis.call('DEL', KEYS[1])
return 1
`)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func taskKey(id string) string  { return taskKeyPrefix + id }
func batchKey(id string) string { return batchKeyPrefix + id }

func (s *RedisStore) Create(ctx context.Context, rec models.TaskRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal task record: %w", err)
	}
	if err := s.client.SetNX(ctx, taskKey(rec.TaskID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("create task %s: %w", rec.TaskID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	val, err := s.client.Get(ctx, taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}

	var rec models.TaskRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", taskID, err)
	}
	return &rec, nil
}

func (s *RedisStore) WriteResult(ctx context.Context, rec models.TaskRecord) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal task record: %w", err)
	}
	n, err := writeResultScript.Run(ctx, s.client, []string{taskKey(rec.TaskID)}, data, s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("write result %s: %w", rec.TaskID, err)
	}
	return n == 1, nil
}

func (s *RedisStore) Delete(ctx context.Context, taskID string) (bool, error) {
	n, err := deleteScript.Run(ctx, s.client, []string{taskKey(taskID)}).Int()
	if err != nil {
		return false, fmt.Errorf("delete task %s: %w", taskID, err)
	}
	switch n {
	case -1:
		return false, ErrTaskInFlight
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

func (s *RedisStore) CreateBatch(ctx context.Context, b models.Batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	if err := s.client.SetNX(ctx, batchKey(b.BatchID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("create batch %s: %w", b.BatchID, err)
	}
	return nil
}

func (s *RedisStore) GetBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	val, err := s.client.Get(ctx, batchKey(batchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", batchID, err)
	}

	var b models.Batch
	if err := json.Unmarshal(val, &b); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", batchID, err)
	}
	return &b, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
