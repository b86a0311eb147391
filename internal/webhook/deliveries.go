package webhook

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDeliveryLog appends every attempt to webhook_deliveries.
type PgDeliveryLog struct {
	db *pgxpool.Pool
}

func NewPgDeliveryLog(db *pgxpool.Pool) *PgDeliveryLog {
	return &PgDeliveryLog{db: db}
}

func (l *PgDeliveryLog) Record(ctx context.Context, d Delivery) error {
	var (
		status  *int
		errText *string
	)
	if d.StatusCode != 0 {
		status = &d.StatusCode
	}
	if d.Err != nil {
		msg := d.Err.Error()
		errText = &msg
	}

	_, err := l.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (id, task_id, url, event, payload, status_code, response_body, success, error, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New(), d.TaskID, d.URL, d.Event, d.Payload, status, d.ResponseBody, d.Success(), errText, d.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}
