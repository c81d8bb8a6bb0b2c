package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/FACorreiaa/gift-ledger/pkg/storage"
)

// BatchImages lists the photos kept for a recognition batch, so rows marked
// for review can be checked against the original sheet.
func (s *LedgerService) BatchImages(ctx context.Context, batchID uuid.UUID) ([]*storage.FileInfo, error) {
	if s.uploads == nil {
		return nil, ErrStorageDisabled
	}
	files, err := s.uploads.List(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch images: %w", err)
	}
	return files, nil
}

// BatchImage returns one kept photo.
func (s *LedgerService) BatchImage(ctx context.Context, batchID, fileID uuid.UUID) (*File, error) {
	if s.uploads == nil {
		return nil, ErrStorageDisabled
	}
	rc, info, err := s.uploads.Open(ctx, batchID, fileID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read batch image: %w", err)
	}
	return &File{Name: info.Name, ContentType: info.ContentType, Data: data}, nil
}

// DeleteBatchImage removes a kept photo before the purge would.
func (s *LedgerService) DeleteBatchImage(ctx context.Context, batchID, fileID uuid.UUID) error {
	if s.uploads == nil {
		return ErrStorageDisabled
	}
	if err := s.uploads.Delete(ctx, batchID, fileID); err != nil {
		return err
	}
	s.logger.Info("batch image deleted",
		slog.String("batch_id", batchID.String()),
		slog.String("file_id", fileID.String()),
	)
	return nil
}
