package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nikhilbhutani/docconvert/internal/models"
)

type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) Upsert(ctx context.Context, taskID string, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk %s metadata: %w", c.ID, err)
		}

		var embedding *pgvector.Vector
		if c.Embedding != nil {
			v := pgvector.NewVector(c.Embedding)
			embedding = &v
		}

		batch.Queue(
			`INSERT INTO document_chunks (id, task_id, chunk_index, content, embedding, token_count, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO UPDATE SET content = $4, embedding = $5, token_count = $6, metadata = $7`,
			c.ID, taskID, c.Metadata.ChunkIndex, c.Content, embedding, c.Metadata.TokenCount, meta,
		)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert chunks for %s: %w", taskID, err)
	}
	return tx.Commit(ctx)
}

func (s *PgVectorStore) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM document_chunks WHERE task_id = $1", taskID); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", taskID, err)
	}
	return nil
}
