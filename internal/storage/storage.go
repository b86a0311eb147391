package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nikhilbhutani/docconvert/internal/config"
)

var ErrNotFound = errors.New("object not found")

// Storage holds uploaded documents until a worker picks them up. Paths are
// relative keys shared by the API and worker processes.
type Storage interface {
	Upload(ctx context.Context, path string, data io.Reader, contentType string) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "local", "":
		return NewLocalStorage(cfg.LocalDir)
	case "supabase":
		return NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
