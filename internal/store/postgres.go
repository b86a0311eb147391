package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/docconvert/internal/models"
)

// PostgresStore keeps the full record as JSONB next to the columns the
// terminal-write guard and the purge sweep need.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, rec models.TaskRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal task record: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO conversion_tasks (task_id, batch_id, status, record, created_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5)
		 ON CONFLICT (task_id) DO NOTHING`,
		rec.TaskID, rec.BatchID, string(rec.Status), data, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create task %s: %w", rec.TaskID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	var data []byte
	err := s.db.QueryRow(ctx, "SELECT record FROM conversion_tasks WHERE task_id = $1", taskID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}

	var rec models.TaskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", taskID, err)
	}
	return &rec, nil
}

func (s *PostgresStore) WriteResult(ctx context.Context, rec models.TaskRecord) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal task record: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`INSERT INTO conversion_tasks (task_id, batch_id, status, record, created_at, completed_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		 ON CONFLICT (task_id) DO UPDATE
		 SET status = EXCLUDED.status, record = EXCLUDED.record, completed_at = EXCLUDED.completed_at
		 WHERE conversion_tasks.status NOT IN ('completed', 'failed')`,
		rec.TaskID, rec.BatchID, string(rec.Status), data, rec.CreatedAt, rec.CompletedAt,
	)
	if err != nil {
		return false, fmt.Errorf("write result %s: %w", rec.TaskID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Delete(ctx context.Context, taskID string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		"DELETE FROM conversion_tasks WHERE task_id = $1 AND status IN ('completed', 'failed')",
		taskID,
	)
	if err != nil {
		return false, fmt.Errorf("delete task %s: %w", taskID, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM conversion_tasks WHERE task_id = $1)", taskID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check task %s: %w", taskID, err)
	}
	if exists {
		return false, ErrTaskInFlight
	}
	return false, nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, b models.Batch) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO conversion_batches (batch_id, task_ids, webhook_url, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4)
		 ON CONFLICT (batch_id) DO NOTHING`,
		b.BatchID, b.TaskIDs, b.WebhookURL, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create batch %s: %w", b.BatchID, err)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	var (
		b       models.Batch
		webhook *string
	)
	err := s.db.QueryRow(ctx,
		"SELECT batch_id, task_ids, webhook_url, created_at FROM conversion_batches WHERE batch_id = $1",
		batchID,
	).Scan(&b.BatchID, &b.TaskIDs, &webhook, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", batchID, err)
	}
	if webhook != nil {
		b.WebhookURL = *webhook
	}
	return &b, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// PurgeExpired deletes terminal records completed before olderThan, with
// their chunk vectors.
func (s *PostgresStore) PurgeExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`WITH expired AS (
			DELETE FROM conversion_tasks
			WHERE status IN ('completed', 'failed') AND completed_at < $1
			RETURNING task_id
		), chunks AS (
			DELETE FROM document_chunks WHERE task_id IN (SELECT task_id FROM expired)
		)
		SELECT count(*) FROM expired`,
		olderThan,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("purge expired tasks: %w", err)
	}
	return n, nil
}
