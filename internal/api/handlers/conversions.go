package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nikhilbhutani/docconvert/internal/models"
	"github.com/nikhilbhutani/docconvert/internal/tasks"
)

const maxJSONBody = 1 << 20

type ConversionHandler struct {
	svc       *tasks.Service
	maxUpload int64
	defaults  models.ConversionOptions
}

// NewConversionHandler uses defaults for any option a request leaves out.
func NewConversionHandler(svc *tasks.Service, maxUpload int64, defaults models.ConversionOptions) *ConversionHandler {
	return &ConversionHandler{svc: svc, maxUpload: maxUpload, defaults: defaults}
}

type convertRequest struct {
	URL        string                   `json:"url"`
	Options    models.ConversionOptions `json:"options"`
	WebhookURL string                   `json:"webhook_url"`
	Metadata   map[string]any           `json:"metadata"`
}

type batchRequest struct {
	URLs       []string                 `json:"urls"`
	Options    models.ConversionOptions `json:"options"`
	WebhookURL string                   `json:"webhook_url"`
	Metadata   map[string]any           `json:"metadata"`
}

type taskCreatedResponse struct {
	TaskID    string            `json:"task_id"`
	Status    models.TaskStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	Message   string            `json:"message"`
}

type batchCreatedResponse struct {
	BatchID        string            `json:"batch_id"`
	TaskIDs        []string          `json:"task_ids"`
	TotalDocuments int               `json:"total_documents"`
	Status         models.TaskStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
}

func (h *ConversionHandler) Convert(w http.ResponseWriter, r *http.Request) {
	req := convertRequest{Options: h.defaults}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	rec, err := h.svc.Submit(r.Context(), tasks.Request{
		Source:     models.Source{URL: req.URL},
		Options:    req.Options,
		WebhookURL: req.WebhookURL,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeServiceError(w, r, err, "task not found")
		return
	}
	writeJSON(w, http.StatusAccepted, created(rec))
}

func (h *ConversionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", h.maxUpload))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	opts, err := optionsFromQuery(r.URL.Query(), h.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.svc.SubmitUpload(r.Context(), header.Filename, header.Header.Get("Content-Type"), file, tasks.Request{
		Options:    opts,
		WebhookURL: r.URL.Query().Get("webhook_url"),
	})
	if err != nil {
		writeServiceError(w, r, err, "task not found")
		return
	}
	writeJSON(w, http.StatusAccepted, created(rec))
}

func (h *ConversionHandler) Batch(w http.ResponseWriter, r *http.Request) {
	req := batchRequest{Options: h.defaults}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := h.svc.SubmitBatch(r.Context(), tasks.BatchRequest{
		URLs:       req.URLs,
		Options:    req.Options,
		WebhookURL: req.WebhookURL,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeServiceError(w, r, err, "batch not found")
		return
	}
	writeJSON(w, http.StatusAccepted, batchCreatedResponse{
		BatchID:        batch.BatchID,
		TaskIDs:        batch.TaskIDs,
		TotalDocuments: len(batch.TaskIDs),
		Status:         models.StatusPending,
		CreatedAt:      batch.CreatedAt,
	})
}

func created(rec *models.TaskRecord) taskCreatedResponse {
	return taskCreatedResponse{
		TaskID:    rec.TaskID,
		Status:    models.StatusPending,
		CreatedAt: rec.CreatedAt,
		Message:   "Document conversion task created",
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// optionsFromQuery reads conversion options from upload query parameters,
// keeping defaults for anything absent.
func optionsFromQuery(q url.Values, opts models.ConversionOptions) (models.ConversionOptions, error) {
	if v := q.Get("output_format"); v != "" {
		opts.OutputFormat = models.OutputFormat(v)
	}

	bools := map[string]*bool{
		"extract_tables":      &opts.ExtractTables,
		"extract_images":      &opts.ExtractImages,
		"ocr_enabled":         &opts.OCREnabled,
		"generate_embeddings": &opts.GenerateEmbeddings,
	}
	for key, dst := range bools {
		v := q.Get(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("%s must be a boolean", key)
		}
		*dst = b
	}

	ints := map[string]*int{
		"chunk_size":    &opts.ChunkSize,
		"chunk_overlap": &opts.ChunkOverlap,
	}
	for key, dst := range ints {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("%s must be an integer", key)
		}
		*dst = n
	}
	return opts, nil
}
