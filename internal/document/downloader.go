package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StatusError is returned for a non-2xx download response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download %s: status %d", e.URL, e.StatusCode)
}

var ErrTooLarge = errors.New("download exceeds size limit")

type Downloaded struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

type Downloader struct {
	client   *http.Client
	tempDir  string
	maxBytes int64
}

func NewDownloader(timeout time.Duration, tempDir string, maxBytes int64) *Downloader {
	return &Downloader{
		client:   &http.Client{Timeout: timeout},
		tempDir:  tempDir,
		maxBytes: maxBytes,
	}
}

// Download fetches rawURL into a temp file. The caller removes Path.
func (d *Downloader) Download(ctx context.Context, rawURL string) (*Downloaded, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	filename := filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	if filename == "" {
		filename = FilenameFromURL(rawURL)
	}
	filename = SanitizeFilename(filename)

	contentType := resp.Header.Get("Content-Type")
	ext := downloadExtension(rawURL, filename, contentType)

	if err := os.MkdirAll(d.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	f, err := os.CreateTemp(d.tempDir, "docling-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	body := io.Reader(resp.Body)
	if d.maxBytes > 0 {
		body = io.LimitReader(resp.Body, d.maxBytes+1)
	}
	n, err := io.Copy(f, body)
	closeErr := f.Close()
	switch {
	case err != nil:
		os.Remove(f.Name())
		return nil, fmt.Errorf("read download body: %w", err)
	case closeErr != nil:
		os.Remove(f.Name())
		return nil, fmt.Errorf("write temp file: %w", closeErr)
	case d.maxBytes > 0 && n > d.maxBytes:
		os.Remove(f.Name())
		return nil, fmt.Errorf("download %s: %w (%d bytes)", rawURL, ErrTooLarge, d.maxBytes)
	}

	slog.Info("file downloaded", "url", rawURL, "filename", filename, "size_bytes", n)

	return &Downloaded{
		Path:        f.Name(),
		Filename:    filename,
		ContentType: contentType,
		Size:        n,
	}, nil
}

func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["filename"])
}

func downloadExtension(rawURL, filename, contentType string) string {
	if ext := ExtensionFromURL(rawURL); ext != "" {
		return ext
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		return ext
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		for m, t := range mimeTypes {
			if m == mediaType && t != TypeImage {
				return "." + string(t)
			}
		}
		if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
			return exts[0]
		}
	}
	return ".pdf"
}
