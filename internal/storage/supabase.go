package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SupabaseStorage keeps uploads in a Supabase Storage bucket so API and
// worker hosts do not need a shared filesystem.
type SupabaseStorage struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

func NewSupabaseStorage(supabaseURL, serviceKey, bucket string) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL:    supabaseURL + "/storage/v1",
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (s *SupabaseStorage) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	objectURL := fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, path)
	req, err := http.NewRequestWithContext(ctx, method, objectURL, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("x-upsert", "true")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func (s *SupabaseStorage) Upload(ctx context.Context, path string, data io.Reader, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp, err := s.do(ctx, http.MethodPost, path, data, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("upload %s: status %d: %s", path, resp.StatusCode, msg)
	}
	return nil
}

func (s *SupabaseStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := s.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	if missing(resp.StatusCode) {
		resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("open %s: status %d", path, resp.StatusCode)
	}
	return resp.Body, nil
}

func (s *SupabaseStorage) Delete(ctx context.Context, path string) error {
	resp, err := s.do(ctx, http.MethodDelete, path, nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 && !missing(resp.StatusCode) {
		return fmt.Errorf("delete %s: status %d", path, resp.StatusCode)
	}
	return nil
}

// Supabase answers 400 "Object not found" for missing keys.
func missing(status int) bool {
	return status == http.StatusNotFound || status == http.StatusBadRequest
}
