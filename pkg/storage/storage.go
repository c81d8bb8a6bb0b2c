// Package storage keeps uploaded guest-book photos on disk until they are
// recognized, and purges them after a retention window.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("file not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	BatchID     uuid.UUID `json:"batch_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // relative to the batch directory
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the interface for file storage operations. Files are
// grouped by batch, one batch per recognition request.
type Storage interface {
	Upload(ctx context.Context, batchID uuid.UUID, filename, contentType string, r io.Reader) (*FileInfo, error)
	Open(ctx context.Context, batchID, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)
	Delete(ctx context.Context, batchID, fileID uuid.UUID) error
	List(ctx context.Context, batchID uuid.UUID) ([]*FileInfo, error)
	// Purge deletes files created before cutoff and returns how many went.
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}

// Config holds storage configuration
type Config struct {
	LocalPath string
}

// New creates the local filesystem storage.
func New(cfg *Config) (Storage, error) {
	return NewLocalStorage(cfg.LocalPath)
}
