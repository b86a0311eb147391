package models

import (
	"errors"
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Source identifies the input document. Exactly one of URL and FilePath is set.
type Source struct {
	URL      string `json:"url,omitempty"`
	FilePath string `json:"file_path,omitempty"`
	Filename string `json:"filename,omitempty"`
}

func (s Source) Validate() error {
	switch {
	case s.URL != "" && s.FilePath != "":
		return errors.New("either url or file_path must be provided, not both")
	case s.URL == "" && s.FilePath == "":
		return errors.New("either url or file_path must be provided")
	}
	return nil
}

// Task is the unit of work carried by a queue job.
type Task struct {
	TaskID     string            `json:"task_id"`
	BatchID    string            `json:"batch_id,omitempty"`
	Source     Source            `json:"source"`
	Options    ConversionOptions `json:"options"`
	WebhookURL string            `json:"webhook_url,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

type ChunkMetadata struct {
	ChunkIndex int `json:"chunk_index"`
	CharStart  int `json:"char_start"`
	CharEnd    int `json:"char_end"`
	ChunkSize  int `json:"chunk_size"`
	TokenCount int `json:"token_count"`
}

type DocumentChunk struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Metadata  ChunkMetadata `json:"metadata"`
	Embedding []float32     `json:"embedding"`
}

type Table struct {
	ID       string     `json:"id"`
	Page     *int       `json:"page"`
	Headers  []string   `json:"headers"`
	Rows     [][]string `json:"rows"`
	Markdown string     `json:"markdown"`
}

// TaskResult is the normalized output of one conversion attempt.
type TaskResult struct {
	Filename         string
	DocumentType     string
	Content          string
	Chunks           []DocumentChunk
	Tables           []Table
	Metadata         map[string]any
	PageCount        int
	ProcessingTimeMS int64
}

// TaskRecord is the persisted correlation record for a task. Submission
// fields are written once at creation; result fields once at the terminal
// transition.
type TaskRecord struct {
	TaskID     string            `json:"task_id"`
	BatchID    string            `json:"batch_id,omitempty"`
	Status     TaskStatus        `json:"status"`
	Source     Source            `json:"source"`
	Options    ConversionOptions `json:"options"`
	WebhookURL string            `json:"webhook_url,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`

	// Queue tracing only; never a lookup key.
	QueueJobID string `json:"queue_job_id,omitempty"`
	Queue      string `json:"queue,omitempty"`

	Filename         *string         `json:"filename,omitempty"`
	DocumentType     *string         `json:"document_type,omitempty"`
	Content          *string         `json:"content,omitempty"`
	Chunks           []DocumentChunk `json:"chunks,omitempty"`
	Tables           []Table         `json:"tables,omitempty"`
	PageCount        *int            `json:"page_count,omitempty"`
	ProcessingTimeMS *int64          `json:"processing_time_ms,omitempty"`
	Error            *string         `json:"error,omitempty"`
	Attempts         int             `json:"attempts,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func NewPendingRecord(t Task) TaskRecord {
	return TaskRecord{
		TaskID:     t.TaskID,
		BatchID:    t.BatchID,
		Status:     StatusPending,
		Source:     t.Source,
		Options:    t.Options,
		WebhookURL: t.WebhookURL,
		Metadata:   t.Metadata,
		CreatedAt:  t.CreatedAt,
	}
}

// NewCompletedRecord merges submission metadata with converter metadata;
// converter keys win on conflict.
func NewCompletedRecord(t Task, res TaskResult, attempts int, completedAt time.Time) TaskRecord {
	rec := NewPendingRecord(t)
	rec.Status = StatusCompleted
	rec.Attempts = attempts
	rec.CompletedAt = &completedAt

	meta := make(map[string]any, len(t.Metadata)+len(res.Metadata))
	for k, v := range t.Metadata {
		meta[k] = v
	}
	for k, v := range res.Metadata {
		meta[k] = v
	}
	rec.Metadata = meta

	filename := res.Filename
	if filename == "" {
		filename = t.Source.Filename
	}
	docType := res.DocumentType
	content := res.Content
	pages := res.PageCount
	elapsed := res.ProcessingTimeMS

	rec.Filename = &filename
	rec.DocumentType = &docType
	rec.Content = &content
	rec.Chunks = res.Chunks
	rec.Tables = res.Tables
	rec.PageCount = &pages
	rec.ProcessingTimeMS = &elapsed
	return rec
}

// NewFailedRecord keeps only the error, the filename and the attempt
// duration; every other result field stays null.
func NewFailedRecord(t Task, errMsg string, elapsedMS int64, attempts int, completedAt time.Time) TaskRecord {
	rec := NewPendingRecord(t)
	rec.Status = StatusFailed
	rec.Attempts = attempts
	rec.CompletedAt = &completedAt
	rec.Error = &errMsg
	rec.ProcessingTimeMS = &elapsedMS
	if t.Source.Filename != "" {
		filename := t.Source.Filename
		rec.Filename = &filename
	}
	return rec
}

// TaskResponse is the public shape returned by polling and POSTed to webhooks.
type TaskResponse struct {
	TaskID           string          `json:"task_id"`
	BatchID          string          `json:"batch_id,omitempty"`
	Status           TaskStatus      `json:"status"`
	Filename         *string         `json:"filename"`
	DocumentType     *string         `json:"document_type"`
	Content          *string         `json:"content"`
	Chunks           []DocumentChunk `json:"chunks"`
	Tables           []Table         `json:"tables"`
	Metadata         map[string]any  `json:"metadata"`
	PageCount        *int            `json:"page_count"`
	ProcessingTimeMS *int64          `json:"processing_time_ms"`
	Error            *string         `json:"error"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at"`
}

func (r TaskRecord) Response() TaskResponse {
	meta := r.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return TaskResponse{
		TaskID:           r.TaskID,
		BatchID:          r.BatchID,
		Status:           r.Status,
		Filename:         r.Filename,
		DocumentType:     r.DocumentType,
		Content:          r.Content,
		Chunks:           r.Chunks,
		Tables:           r.Tables,
		Metadata:         meta,
		PageCount:        r.PageCount,
		ProcessingTimeMS: r.ProcessingTimeMS,
		Error:            r.Error,
		CreatedAt:        r.CreatedAt,
		CompletedAt:      r.CompletedAt,
	}
}

// Batch is immutable after creation. Its status is always derived from the
// member tasks and never stored.
type Batch struct {
	BatchID    string    `json:"batch_id"`
	TaskIDs    []string  `json:"task_ids"`
	WebhookURL string    `json:"webhook_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
