package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docconvert/internal/config"
	"github.com/nikhilbhutani/docconvert/internal/models"
	"github.com/nikhilbhutani/docconvert/internal/queue"
	"github.com/nikhilbhutani/docconvert/internal/storage"
	"github.com/nikhilbhutani/docconvert/internal/store"
	"github.com/nikhilbhutani/docconvert/internal/tasks"
)

const apiToken = "test-token-0123456789"

type fakeQueue struct {
	mu       sync.Mutex
	payloads []queue.ConvertPayload
}

func (q *fakeQueue) EnqueueConvert(p queue.ConvertPayload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, p)
	return fmt.Sprintf("job-%d", len(q.payloads)), nil
}

func (q *fakeQueue) QueueName() string { return "docling" }

type fakeStats struct{}

func (fakeStats) Stats(context.Context) (*queue.Stats, error) {
	return &queue.Stats{Queue: "docling", Pending: 2, Active: 1}, nil
}

func (fakeStats) WorkersActive(context.Context) (int, error) { return 3, nil }

type testServer struct {
	handler http.Handler
	store   store.Store
	queue   *fakeQueue
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	s := store.NewRedisStore(rdb, time.Hour)
	uploads, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	q := &fakeQueue{}
	svc := tasks.NewService(s, store.NewCorrelator(s, nil), q, uploads, nil, 3)

	cfg := &config.Config{
		Version: "1.2.3",
		Server:  config.ServerConfig{MaxUploadBytes: 1 << 20, CORSOrigins: []string{"*"}},
		Auth:    config.AuthConfig{APIKeyHeader: "X-API-Key", APIToken: apiToken},
	}
	h := NewRouter(cfg, svc, fakeStats{}, nil, rdb).Setup()
	return testServer{handler: h, store: s, queue: q}
}

func (ts testServer) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("X-API-Key", apiToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestConvertAndPoll(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/convert",
		[]byte(`{"url":"https://example.com/a.pdf","options":{"generate_embeddings":true},"metadata":{"k":"v"}}`), "application/json")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	body := decode(t, rec)
	taskID := body["task_id"].(string)
	assert.Equal(t, "pending", body["status"])
	assert.NotEmpty(t, body["created_at"])

	require.Len(t, ts.queue.payloads, 1)
	opts := ts.queue.payloads[0].Task.Options
	assert.True(t, opts.GenerateEmbeddings)
	assert.Equal(t, 512, opts.ChunkSize)

	rec = ts.do(t, http.MethodGet, "/api/v1/tasks/"+taskID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "pending", got["status"])
	assert.Nil(t, got["content"])
	assert.NotContains(t, got, "queue_job_id")
}

func TestConvertValidation(t *testing.T) {
	ts := newTestServer(t)
	cases := []string{
		`{}`,
		`{"url":"ftp://example.com/a.pdf"}`,
		`{"url":"https://example.com/a.pdf","options":{"chunk_size":50}}`,
		`{"url":"https://example.com/a.pdf","options":{"output_format":"pdf"}}`,
		`not json`,
	}
	for _, body := range cases {
		rec := ts.do(t, http.MethodPost, "/api/v1/convert", []byte(body), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, decode(t, rec), "error")
	}
	assert.Empty(t, ts.queue.payloads)
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "my report.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := ts.do(t, http.MethodPost, "/api/v1/convert/upload?output_format=text&chunk_size=256", buf.Bytes(), mw.FormDataContentType())
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Len(t, ts.queue.payloads, 1)
	task := ts.queue.payloads[0].Task
	assert.Equal(t, models.FormatText, task.Options.OutputFormat)
	assert.Equal(t, 256, task.Options.ChunkSize)
	assert.Equal(t, "my report.pdf", task.Source.Filename)
	assert.True(t, strings.HasPrefix(task.Source.FilePath, "uploads/"))
}

func TestUploadRejectsBadQuery(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "a.pdf")
	require.NoError(t, err)
	fw.Write([]byte("x"))
	require.NoError(t, mw.Close())

	rec := ts.do(t, http.MethodPost, "/api/v1/convert/upload?ocr_enabled=maybe", buf.Bytes(), mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/convert/upload", []byte("nope"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/convert/batch",
		[]byte(`{"urls":["https://example.com/a.pdf","https://example.com/b.pdf"]}`), "application/json")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, float64(2), body["total_documents"])
	assert.Len(t, body["task_ids"], 2)

	rec = ts.do(t, http.MethodGet, "/api/v1/batches/"+body["batch_id"].(string), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode(t, rec)
	assert.Equal(t, "pending", status["status"])
	assert.Equal(t, float64(2), status["pending"])

	rec = ts.do(t, http.MethodPost, "/api/v1/convert/batch",
		[]byte(`{"urls":["https://e.com/1","https://e.com/2","https://e.com/3","https://e.com/4"]}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/batches/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteTask(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	rec := ts.do(t, http.MethodDelete, "/api/v1/tasks/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/convert", []byte(`{"url":"https://example.com/a.pdf"}`), "application/json")
	require.Equal(t, http.StatusAccepted, rec.Code)
	taskID := decode(t, rec)["task_id"].(string)

	rec = ts.do(t, http.MethodDelete, "/api/v1/tasks/"+taskID, nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	task := models.Task{TaskID: taskID, CreatedAt: time.Now().UTC()}
	_, err := ts.store.WriteResult(ctx, models.NewFailedRecord(task, "boom", 3, 1, time.Now().UTC()))
	require.NoError(t, err)

	rec = ts.do(t, http.MethodGet, "/api/v1/tasks/"+taskID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "failed", got["status"])
	assert.Equal(t, "boom", got["error"])

	rec = ts.do(t, http.MethodDelete, "/api/v1/tasks/"+taskID, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/tasks/"+taskID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndStats(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	h := decode(t, rec)
	assert.Equal(t, "healthy", h["status"])
	assert.Equal(t, "1.2.3", h["version"])
	assert.Equal(t, true, h["redis_connected"])
	assert.Equal(t, float64(3), h["workers_active"])

	for _, path := range []string{"/readyz", "/healthz", "/health/live", "/health/ready"} {
		rec = ts.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/stats", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode(t, rec)
	assert.Equal(t, float64(2), s["pending"])
	assert.Equal(t, float64(1), s["active"])
	assert.Equal(t, float64(0), s["average_processing_time_ms"])

	rec = ts.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docling_requests_total")
}
