package storage

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	batch := uuid.New()
	info, err := s.Upload(ctx, batch, "../장부 1.jpg", "image/jpeg", strings.NewReader("jpegdata"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), info.Size)
	assert.Equal(t, "../장부 1.jpg", info.Name)
	assert.NotContains(t, info.Path, "/")

	rc, got, err := s.Open(ctx, batch, info.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(data))
	assert.Equal(t, "image/jpeg", got.ContentType)

	files, err := s.List(ctx, batch)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	require.NoError(t, s.Delete(ctx, batch, info.ID))
	_, _, err = s.Open(ctx, batch, info.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	files, err = s.List(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLocalStoragePurge(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewLocalStorage(base)
	require.NoError(t, err)

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := old.Add(48 * time.Hour)

	oldBatch, mixedBatch := uuid.New(), uuid.New()

	s.now = func() time.Time { return old }
	_, err = s.Upload(ctx, oldBatch, "a.png", "image/png", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = s.Upload(ctx, mixedBatch, "b.png", "image/png", strings.NewReader("b"))
	require.NoError(t, err)

	s.now = func() time.Time { return fresh }
	keep, err := s.Upload(ctx, mixedBatch, "c.png", "image/png", strings.NewReader("c"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(base+"/stray.txt", []byte("x"), 0o644))

	n, err := s.Purge(ctx, old.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = os.Stat(s.batchDir(oldBatch))
	assert.True(t, os.IsNotExist(err), "emptied batch removed")

	files, err := s.List(ctx, mixedBatch)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, keep.ID, files[0].ID)
}
