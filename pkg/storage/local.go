package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaDir = ".meta"

// LocalStorage implements Storage using the local filesystem
type LocalStorage struct {
	basePath string
	now      func() time.Time
}

// NewLocalStorage creates a new local filesystem storage
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, now: time.Now}, nil
}

// Upload stores a file and returns its metadata
func (s *LocalStorage) Upload(ctx context.Context, batchID uuid.UUID, filename, contentType string, r io.Reader) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fileID := uuid.New()

	batchDir := s.batchDir(batchID)
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create batch directory: %w", err)
	}

	stored := fmt.Sprintf("%s_%s", fileID.String()[:8], sanitizeFilename(filename))
	filePath := filepath.Join(batchDir, stored)

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &FileInfo{
		ID:          fileID,
		BatchID:     batchID,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		Path:        stored,
		CreatedAt:   s.now(),
	}
	if err := s.saveMetadata(info); err != nil {
		os.Remove(filePath)
		return nil, err
	}
	return info, nil
}

// Open returns a reader for a stored file.
func (s *LocalStorage) Open(ctx context.Context, batchID, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.getInfo(batchID, fileID)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.batchDir(batchID), info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

// Delete removes a file by its ID
func (s *LocalStorage) Delete(ctx context.Context, batchID, fileID uuid.UUID) error {
	info, err := s.getInfo(batchID, fileID)
	if err != nil {
		return err
	}
	return s.remove(info)
}

// List returns all files of a batch
func (s *LocalStorage) List(ctx context.Context, batchID uuid.UUID) ([]*FileInfo, error) {
	dir := filepath.Join(s.batchDir(batchID), metaDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []*FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		info, err := s.getInfo(batchID, id)
		if err != nil {
			continue
		}
		files = append(files, info)
	}
	return files, nil
}

// Purge walks every batch and deletes files created before cutoff. Batch
// directories left empty are removed too.
func (s *LocalStorage) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	batches, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, fmt.Errorf("failed to list batches: %w", err)
	}

	purged := 0
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		if !b.IsDir() {
			continue
		}
		batchID, err := uuid.Parse(b.Name())
		if err != nil {
			continue
		}
		files, err := s.List(ctx, batchID)
		if err != nil {
			return purged, err
		}
		kept := 0
		for _, f := range files {
			if !f.CreatedAt.Before(cutoff) {
				kept++
				continue
			}
			if err := s.remove(f); err != nil {
				return purged, err
			}
			purged++
		}
		if kept == 0 {
			if err := os.RemoveAll(s.batchDir(batchID)); err != nil {
				return purged, fmt.Errorf("failed to remove batch directory: %w", err)
			}
		}
	}
	return purged, nil
}

func (s *LocalStorage) batchDir(batchID uuid.UUID) string {
	return filepath.Join(s.basePath, batchID.String())
}

func (s *LocalStorage) metaPath(batchID, fileID uuid.UUID) string {
	return filepath.Join(s.batchDir(batchID), metaDir, fileID.String()+".json")
}

func (s *LocalStorage) getInfo(batchID, fileID uuid.UUID) (*FileInfo, error) {
	data, err := os.ReadFile(s.metaPath(batchID, fileID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

func (s *LocalStorage) remove(info *FileInfo) error {
	filePath := filepath.Join(s.batchDir(info.BatchID), info.Path)
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(s.metaPath(info.BatchID, info.ID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	return nil
}

func (s *LocalStorage) saveMetadata(info *FileInfo) error {
	dir := filepath.Join(s.batchDir(info.BatchID), metaDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(info.BatchID, info.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
