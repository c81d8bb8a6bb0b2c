package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ocr"
)

type photoEngine struct{ text map[string]string }

func (e *photoEngine) Name() string { return "photo" }

func (e *photoEngine) Recognize(_ context.Context, img ocr.Image) (ocr.Recognition, error) {
	return ocr.Recognition{Text: e.text[img.Name]}, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRunTextToCSV(t *testing.T) {
	dir := t.TempDir()
	txt := writeFile(t, dir, "dump.txt", "김철수 원50,- 大2\n이영희 원30,-\n")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{txt}, &stdout, &stderr, &photoEngine{})
	require.NoError(t, err)

	assert.Equal(t, "\ufeff번호,성명,금액,비고\n1,김철수,50000,大2\n2,이영희,30000,\n", stdout.String())
	assert.Contains(t, stderr.String(), "총 2건 80,000원")
}

func TestRunMixesImagesAndTextInOrder(t *testing.T) {
	dir := t.TempDir()
	img := writeFile(t, dir, "page1.jpg", "jpeg bytes")
	txt := writeFile(t, dir, "page2.txt", "홍길동 원10,-")
	engine := &photoEngine{text: map[string]string{"page1.jpg": "박민수 원5,-"}}

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-format", "json", img, txt}, &stdout, &stderr, engine)
	require.NoError(t, err)

	out := stdout.String()
	assert.Less(t, strings.Index(out, "박민수"), strings.Index(out, "홍길동"))
	assert.Contains(t, out, `"total": 15000`)
}

func TestRunShareAndXLSX(t *testing.T) {
	dir := t.TempDir()
	txt := writeFile(t, dir, "dump.txt", "김철수 원50,-")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-format", "share", "-share-base", "https://ledger.example.com/", txt}, &stdout, &stderr, &photoEngine{}))
	assert.True(t, strings.HasPrefix(stdout.String(), "https://ledger.example.com/?data="))

	xlsx := filepath.Join(dir, "out.xlsx")
	stdout.Reset()
	require.NoError(t, run(context.Background(), []string{"-format", "xlsx", "-o", xlsx, txt}, &stdout, &stderr, &photoEngine{}))
	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	assert.Empty(t, stdout.String())
}

func TestRunRosterSuggestions(t *testing.T) {
	dir := t.TempDir()
	roster := writeFile(t, dir, "roster.txt", "김철수\n이영희\n")
	txt := writeFile(t, dir, "dump.txt", "김철수님 원50,-")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-roster", roster, txt}, &stdout, &stderr, &photoEngine{}))
	assert.Contains(t, stderr.String(), "김철수님 -> 김철수")
}

func TestRunErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	ctx := context.Background()

	assert.Error(t, run(ctx, nil, &stdout, &stderr, &photoEngine{}))
	assert.Error(t, run(ctx, []string{"-strategy", "columns", "x.txt"}, &stdout, &stderr, &photoEngine{}))
	assert.Error(t, run(ctx, []string{filepath.Join(t.TempDir(), "missing.txt")}, &stdout, &stderr, &photoEngine{}))

	txt := writeFile(t, t.TempDir(), "dump.txt", "김철수 원50,-")
	assert.Error(t, run(ctx, []string{"-format", "pdf", txt}, &stdout, &stderr, &photoEngine{}))
}
