package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/docconvert/internal/conversion"
	"github.com/nikhilbhutani/docconvert/internal/document"
	"github.com/nikhilbhutani/docconvert/internal/metrics"
	"github.com/nikhilbhutani/docconvert/internal/models"
	"github.com/nikhilbhutani/docconvert/internal/queue"
	"github.com/nikhilbhutani/docconvert/internal/storage"
	"github.com/nikhilbhutani/docconvert/internal/store"
	"github.com/nikhilbhutani/docconvert/internal/vectorstore"
)

const (
	DefaultMaxBatchSize = 100
	uploadPrefix        = "uploads/"
)

type Request struct {
	Source     models.Source
	Options    models.ConversionOptions
	WebhookURL string
	Metadata   map[string]any
}

type BatchRequest struct {
	URLs       []string
	Options    models.ConversionOptions
	WebhookURL string
	Metadata   map[string]any
}

// Service creates tasks, fans batches out into member tasks and answers
// status queries.
type Service struct {
	store      store.Store
	correlator *store.Correlator
	queue      queue.Enqueuer
	uploads    storage.Storage
	sink       vectorstore.ChunkSink
	maxBatch   int
}

// NewService wires the submission side. uploads and sink may be nil.
func NewService(s store.Store, correlator *store.Correlator, q queue.Enqueuer, uploads storage.Storage, sink vectorstore.ChunkSink, maxBatch int) *Service {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	return &Service{
		store:      s,
		correlator: correlator,
		queue:      q,
		uploads:    uploads,
		sink:       sink,
		maxBatch:   maxBatch,
	}
}

// Submit validates the request, enqueues the job and persists the pending
// record. The task id is returned before any work starts.
func (s *Service) Submit(ctx context.Context, req Request) (*models.TaskRecord, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	return s.submit(ctx, newTask(req, ""))
}

// SubmitUpload stores the uploaded file under the task id and submits a
// task referencing it.
func (s *Service) SubmitUpload(ctx context.Context, filename, contentType string, r io.Reader, req Request) (*models.TaskRecord, error) {
	if s.uploads == nil {
		return nil, errors.New("upload storage is not configured")
	}
	safe := document.SanitizeFilename(filename)
	if strings.Trim(safe, ". ") == "" {
		return nil, &conversion.ValidationError{Msg: "file must have a filename"}
	}
	if err := req.Options.Validate(); err != nil {
		return nil, &conversion.ValidationError{Msg: err.Error()}
	}
	if err := validateWebhook(req.WebhookURL); err != nil {
		return nil, err
	}

	task := newTask(req, "")
	key := path.Join(uploadPrefix+task.TaskID, safe)
	if err := s.uploads.Upload(ctx, key, r, contentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	task.Source = models.Source{FilePath: key, Filename: safe}

	slog.Info("file uploaded", "task_id", task.TaskID, "filename", safe)
	return s.submit(ctx, task)
}

// SubmitBatch creates one independent task per URL, all sharing a batch id.
// Every URL is validated before anything is enqueued.
func (s *Service) SubmitBatch(ctx context.Context, req BatchRequest) (*models.Batch, error) {
	switch {
	case len(req.URLs) == 0:
		return nil, &conversion.ValidationError{Msg: "urls must contain at least one url"}
	case len(req.URLs) > s.maxBatch:
		return nil, &conversion.ValidationError{Msg: fmt.Sprintf("urls must contain at most %d urls", s.maxBatch)}
	}
	for _, u := range req.URLs {
		if err := validateURL("url", u); err != nil {
			return nil, err
		}
	}
	if err := req.Options.Validate(); err != nil {
		return nil, &conversion.ValidationError{Msg: err.Error()}
	}
	if err := validateWebhook(req.WebhookURL); err != nil {
		return nil, err
	}

	batch := models.Batch{
		BatchID:    uuid.NewString(),
		WebhookURL: req.WebhookURL,
		CreatedAt:  time.Now().UTC(),
	}
	for _, u := range req.URLs {
		task := newTask(Request{
			Source:     models.Source{URL: u},
			Options:    req.Options,
			WebhookURL: req.WebhookURL,
			Metadata:   req.Metadata,
		}, batch.BatchID)
		task.CreatedAt = batch.CreatedAt

		if _, err := s.submit(ctx, task); err != nil {
			return nil, fmt.Errorf("submit batch member %d: %w", len(batch.TaskIDs), err)
		}
		batch.TaskIDs = append(batch.TaskIDs, task.TaskID)
	}

	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	slog.Info("batch submitted", "batch_id", batch.BatchID, "tasks", len(batch.TaskIDs))
	return &batch, nil
}

func (s *Service) submit(ctx context.Context, task models.Task) (*models.TaskRecord, error) {
	jobID, err := s.queue.EnqueueConvert(queue.ConvertPayload{Task: task})
	if err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	rec := models.NewPendingRecord(task)
	rec.QueueJobID = jobID
	rec.Queue = s.queue.QueueName()
	// A fast worker may already have written the terminal record; Create
	// leaves it in place.
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	metrics.RecordSubmitted(1)
	slog.Info("task submitted", "task_id", task.TaskID, "job_id", jobID, "batch_id", task.BatchID)
	return &rec, nil
}

func (s *Service) Get(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	return s.correlator.Lookup(ctx, taskID)
}

// Delete removes a finished task, its stored chunk vectors and its
// uploaded source file.
func (s *Service) Delete(ctx context.Context, taskID string) (bool, error) {
	rec, err := s.store.Get(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	deleted, err := s.store.Delete(ctx, taskID)
	if err != nil || !deleted {
		return deleted, err
	}
	if s.sink != nil {
		if err := s.sink.DeleteTask(ctx, taskID); err != nil {
			slog.Error("failed to delete chunk vectors", "task_id", taskID, "error", err)
		}
	}
	if s.uploads != nil && strings.HasPrefix(rec.Source.FilePath, uploadPrefix+taskID+"/") {
		if err := s.uploads.Delete(ctx, rec.Source.FilePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.Error("failed to delete upload", "task_id", taskID, "path", rec.Source.FilePath, "error", err)
		}
	}
	slog.Info("task deleted", "task_id", taskID)
	return true, nil
}

func newTask(req Request, batchID string) models.Task {
	return models.Task{
		TaskID:     uuid.NewString(),
		BatchID:    batchID,
		Source:     req.Source,
		Options:    req.Options,
		WebhookURL: req.WebhookURL,
		Metadata:   req.Metadata,
		CreatedAt:  time.Now().UTC(),
	}
}

func validate(req Request) error {
	if err := req.Source.Validate(); err != nil {
		return &conversion.ValidationError{Msg: err.Error()}
	}
	if req.Source.URL != "" {
		if err := validateURL("url", req.Source.URL); err != nil {
			return err
		}
	}
	if err := req.Options.Validate(); err != nil {
		return &conversion.ValidationError{Msg: err.Error()}
	}
	return validateWebhook(req.WebhookURL)
}

func validateWebhook(raw string) error {
	if raw == "" {
		return nil
	}
	return validateURL("webhook_url", raw)
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &conversion.ValidationError{Msg: fmt.Sprintf("%s must be an absolute http(s) url: %q", field, raw)}
	}
	return nil
}
