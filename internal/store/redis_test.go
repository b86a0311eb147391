package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docconvert/internal/models"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, 7*24*time.Hour), mr
}

func sampleTask(id string) models.Task {
	return models.Task{
		TaskID:    id,
		Source:    models.Source{URL: "https://example.com/" + id + ".pdf"},
		Options:   models.DefaultConversionOptions(),
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func completed(id, content string) models.TaskRecord {
	return models.NewCompletedRecord(sampleTask(id), models.TaskResult{Content: content, PageCount: 1}, 1, time.Now().UTC())
}

func TestRedisCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	rec := models.NewPendingRecord(sampleTask("t1"))
	rec.QueueJobID = "job-1"
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "job-1", got.QueueJobID)
	assert.Equal(t, rec.CreatedAt, got.CreatedAt)

	assert.Equal(t, 7*24*time.Hour, mr.TTL("docling:task:t1"))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisCreateNeverOverwritesTerminal(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	written, err := s.WriteResult(ctx, completed("t1", "done"))
	require.NoError(t, err)
	assert.True(t, written, "result written before the submission record")

	require.NoError(t, s.Create(ctx, models.NewPendingRecord(sampleTask("t1"))))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestRedisWriteResultIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)
	require.NoError(t, s.Create(ctx, models.NewPendingRecord(sampleTask("t1"))))

	first, err := s.WriteResult(ctx, completed("t1", "first"))
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.WriteResult(ctx, models.NewFailedRecord(sampleTask("t1"), "late failure", 5, 3, time.Now()))
	require.NoError(t, err)
	assert.False(t, second)

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.Content)
	assert.Equal(t, "first", *got.Content)
}

func TestRedisConcurrentTerminalWrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)
	require.NoError(t, s.Create(ctx, models.NewPendingRecord(sampleTask("t1"))))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.WriteResult(ctx, completed("t1", "x"))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRedisDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	ok, err := s.Delete(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Create(ctx, models.NewPendingRecord(sampleTask("t1"))))
	_, err = s.Delete(ctx, "t1")
	assert.ErrorIs(t, err, ErrTaskInFlight)

	_, err = s.WriteResult(ctx, completed("t1", "x"))
	require.NoError(t, err)
	ok, err = s.Delete(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Get(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisBatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	b := models.Batch{BatchID: "b1", TaskIDs: []string{"t1", "t2"}, WebhookURL: "https://hooks.example.com", CreatedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, s.CreateBatch(ctx, b))

	got, err := s.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, b.TaskIDs, got.TaskIDs)
	assert.Equal(t, b.WebhookURL, got.WebhookURL)

	_, err = s.GetBatch(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Ping(ctx))
}
