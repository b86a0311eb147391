package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nikhilbhutani/docconvert/internal/models"
	"github.com/nikhilbhutani/docconvert/internal/store"
)

// BatchStatus is derived from the member tasks on every read.
type BatchStatus struct {
	BatchID        string              `json:"batch_id"`
	Status         models.TaskStatus   `json:"status"`
	TotalDocuments int                 `json:"total_documents"`
	Pending        int                 `json:"pending"`
	Processing     int                 `json:"processing"`
	Completed      int                 `json:"completed"`
	Failed         int                 `json:"failed"`
	Missing        int                 `json:"missing"`
	TaskIDs        []string            `json:"task_ids"`
	Tasks          []BatchMemberStatus `json:"tasks"`
	CreatedAt      time.Time           `json:"created_at"`
}

type BatchMemberStatus struct {
	TaskID string            `json:"task_id"`
	Status models.TaskStatus `json:"status,omitempty"`
	Error  *string           `json:"error,omitempty"`
}

func (s *Service) BatchStatus(ctx context.Context, batchID string) (*BatchStatus, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	bs := &BatchStatus{
		BatchID:        batch.BatchID,
		TotalDocuments: len(batch.TaskIDs),
		TaskIDs:        batch.TaskIDs,
		CreatedAt:      batch.CreatedAt,
		Tasks:          make([]BatchMemberStatus, 0, len(batch.TaskIDs)),
	}
	for _, id := range batch.TaskIDs {
		rec, err := s.correlator.Lookup(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted or expired members.
			bs.Missing++
			bs.Tasks = append(bs.Tasks, BatchMemberStatus{TaskID: id})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lookup batch member %s: %w", id, err)
		}

		switch rec.Status {
		case models.StatusPending:
			bs.Pending++
		case models.StatusProcessing:
			bs.Processing++
		case models.StatusCompleted:
			bs.Completed++
		case models.StatusFailed:
			bs.Failed++
		}
		bs.Tasks = append(bs.Tasks, BatchMemberStatus{TaskID: id, Status: rec.Status, Error: rec.Error})
	}
	bs.Status = bs.derive()
	return bs, nil
}

// derive folds member counts into one status: pending until a member starts,
// processing while any member is unfinished, failed only when every member
// failed.
func (bs *BatchStatus) derive() models.TaskStatus {
	finished := bs.Completed + bs.Failed + bs.Missing
	switch {
	case finished == bs.TotalDocuments && bs.Failed == bs.TotalDocuments:
		return models.StatusFailed
	case finished == bs.TotalDocuments:
		return models.StatusCompleted
	case bs.Processing == 0 && finished == 0:
		return models.StatusPending
	default:
		return models.StatusProcessing
	}
}
