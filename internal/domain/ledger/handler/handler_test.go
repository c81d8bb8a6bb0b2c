package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/repository"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/service"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ocr"
	"github.com/FACorreiaa/gift-ledger/pkg/metrics"
	"github.com/FACorreiaa/gift-ledger/pkg/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scriptedEngine struct {
	text map[string]string
	err  error
}

func (e *scriptedEngine) Name() string { return "scripted" }

func (e *scriptedEngine) Recognize(_ context.Context, img ocr.Image) (ocr.Recognition, error) {
	if e.err != nil {
		return ocr.Recognition{}, e.err
	}
	return ocr.Recognition{Text: e.text[img.Name]}, nil
}

func newServer(t *testing.T, engine ocr.Engine, cfg RouterConfig) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	svc, err := service.NewLedgerService("per-line", "https://ledger.example.com/", discardLogger())
	require.NoError(t, err)
	if engine != nil {
		svc.WithProcessor(service.NewProcessor(engine, service.DefaultProcessorConfig(), nil, discardLogger()))
	}
	m := metrics.New()
	srv := httptest.NewServer(NewRouter(NewLedgerHandler(svc, discardLogger()), m, cfg))
	t.Cleanup(srv.Close)
	return srv, m
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestParseEndpoint(t *testing.T) {
	srv, m := newServer(t, nil, RouterConfig{})

	resp := postJSON(t, srv.URL+"/api/v1/ledger/parse", map[string]any{"text": "김철수 원50,- 大2\n이영희 원30,-"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[service.LedgerOutput](t, resp)
	require.Len(t, out.Records, 2)
	assert.Equal(t, int64(80000), out.Summary.Total)
	assert.Equal(t, "80,000원", out.Summary.TotalDisplay)

	bad := postJSON(t, srv.URL+"/api/v1/ledger/parse", map[string]any{"text": "x", "strategy": "columns"})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.Contains(t, decode[errorResponse](t, bad).Error, "unknown parsing strategy")

	resp, err := http.Post(srv.URL+"/api/v1/ledger/parse", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "POST /api/v1/ledger/parse", "400")))
}

func multipartImages(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, ct := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="images"; filename="`+name+`"`)
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("photo-" + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRecognizeEndpoint(t *testing.T) {
	t.Run("merges accepted images", func(t *testing.T) {
		srv, _ := newServer(t, &scriptedEngine{text: map[string]string{"a.jpg": "김철수 원50,-"}}, RouterConfig{})
		body, ct := multipartImages(t, map[string]string{"a.jpg": "image/jpeg", "b.gif": "image/gif"})

		resp, err := http.Post(srv.URL+"/api/v1/ledger/recognize", ct, body)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		out := decode[service.RecognizeOutput](t, resp)
		assert.Equal(t, 1, out.Rejected)
		require.Len(t, out.Records, 1)
		assert.Equal(t, "김철수", out.Records[0].Name)
	})

	t.Run("all images failing is a bad gateway", func(t *testing.T) {
		srv, _ := newServer(t, &scriptedEngine{err: errors.New("engine crashed")}, RouterConfig{})
		body, ct := multipartImages(t, map[string]string{"a.jpg": "image/jpeg"})

		resp, err := http.Post(srv.URL+"/api/v1/ledger/recognize", ct, body)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		out := decode[map[string]any](t, resp)
		assert.NotEmpty(t, out["error"])
		assert.Len(t, out["images"], 1)
	})

	t.Run("no engine configured", func(t *testing.T) {
		srv, _ := newServer(t, nil, RouterConfig{})
		body, ct := multipartImages(t, map[string]string{"a.jpg": "image/jpeg"})

		resp, err := http.Post(srv.URL+"/api/v1/ledger/recognize", ct, body)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestExportCSVEndpoint(t *testing.T) {
	srv, _ := newServer(t, nil, RouterConfig{})
	records := []ledger.Record{{Number: 1, Name: "김철수", Amount: 50000}}

	resp := postJSON(t, srv.URL+"/api/v1/ledger/export/csv?dialect=raw", map[string]any{"records": records})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(params["filename"], "축의금_부조금_"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "\ufeff번호,성명,금액,비고\n1,김철수,50000,\n", string(body))

	neg := postJSON(t, srv.URL+"/api/v1/ledger/export/csv", map[string]any{"records": []ledger.Record{{Name: "x", Amount: -5}}})
	assert.Equal(t, http.StatusBadRequest, neg.StatusCode)
}

func TestImportCSVEndpoint(t *testing.T) {
	srv, _ := newServer(t, nil, RouterConfig{})

	resp, err := http.Post(srv.URL+"/api/v1/ledger/import/csv", "text/csv", strings.NewReader("번호,성명,금액,비고\n1,김철수,\"50,000\",\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[service.ImportOutput](t, resp)
	require.Len(t, out.Records, 1)
	assert.Equal(t, int64(50000), out.Records[0].Amount)
}

func TestShareEndpoints(t *testing.T) {
	srv, _ := newServer(t, nil, RouterConfig{})
	records := []ledger.Record{{Number: 1, Name: "김철수", Amount: 50000}}

	resp := postJSON(t, srv.URL+"/api/v1/ledger/share", map[string]any{"records": records})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	link := decode[service.ShareOutput](t, resp)

	got, err := http.Get(srv.URL + "/api/v1/ledger/shared?data=" + url.QueryEscape(link.Data))
	require.NoError(t, err)
	defer got.Body.Close()
	shared := decode[service.SharedOutput](t, got)
	assert.True(t, shared.Shared)
	assert.Equal(t, records, shared.Records)

	broken, err := http.Get(srv.URL + "/api/v1/ledger/shared?data=not-base64")
	require.NoError(t, err)
	defer broken.Body.Close()
	assert.Equal(t, http.StatusOK, broken.StatusCode)
	assert.False(t, decode[service.SharedOutput](t, broken).Shared)
}

func TestOptionalFeaturesReportUnavailable(t *testing.T) {
	srv, _ := newServer(t, nil, RouterConfig{})

	resp := postJSON(t, srv.URL+"/api/v1/ledgers", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	search, err := http.Get(srv.URL + "/api/v1/guests/search?q=김")
	require.NoError(t, err)
	defer search.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, search.StatusCode)

	badID, err := http.Get(srv.URL + "/api/v1/ledgers/not-a-uuid")
	require.NoError(t, err)
	defer badID.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badID.StatusCode)
}

func TestBatchImageEndpoints(t *testing.T) {
	ctx := context.Background()
	uploads, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	batch := uuid.New()
	info, err := uploads.Upload(ctx, batch, "장부.png", "image/png", strings.NewReader("png bytes"))
	require.NoError(t, err)

	svc, err := service.NewLedgerService("per-line", "", discardLogger())
	require.NoError(t, err)
	svc.WithUploads(uploads)
	srv := httptest.NewServer(NewRouter(NewLedgerHandler(svc, discardLogger()), metrics.New(), RouterConfig{}))
	t.Cleanup(srv.Close)

	base := srv.URL + "/api/v1/batches/" + batch.String() + "/images"

	list, err := http.Get(base)
	require.NoError(t, err)
	defer list.Body.Close()
	require.Equal(t, http.StatusOK, list.StatusCode)
	listed := decode[struct {
		Images []storage.FileInfo `json:"images"`
	}](t, list)
	require.Len(t, listed.Images, 1)
	assert.Equal(t, info.ID, listed.Images[0].ID)

	img, err := http.Get(base + "/" + info.ID.String())
	require.NoError(t, err)
	defer img.Body.Close()
	require.Equal(t, http.StatusOK, img.StatusCode)
	assert.Equal(t, "image/png", img.Header.Get("Content-Type"))
	disposition, _, err := mime.ParseMediaType(img.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "inline", disposition)
	data, err := io.ReadAll(img.Body)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))

	del := func(path string) int {
		req, err := http.NewRequest(http.MethodDelete, path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusNoContent, del(base+"/"+info.ID.String()))
	assert.Equal(t, http.StatusNotFound, del(base+"/"+info.ID.String()))
	assert.Equal(t, http.StatusBadRequest, del(base+"/not-a-uuid"))

	gone, err := http.Get(base + "/" + info.ID.String())
	require.NoError(t, err)
	defer gone.Body.Close()
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestBatchImagesWithoutStorage(t *testing.T) {
	srv, _ := newServer(t, nil, RouterConfig{})
	resp, err := http.Get(srv.URL + "/api/v1/batches/" + uuid.NewString() + "/images")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(repository.ErrNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(service.ErrMailDisabled))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(&http.MaxBytesError{Limit: 1}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestMiddleware(t *testing.T) {
	t.Run("rate limit", func(t *testing.T) {
		srv, _ := newServer(t, nil, RouterConfig{RatePerSecond: 0.001, RateBurst: 1})

		first := postJSON(t, srv.URL+"/api/v1/ledger/parse", map[string]any{"text": ""})
		assert.Equal(t, http.StatusOK, first.StatusCode)
		second := postJSON(t, srv.URL+"/api/v1/ledger/parse", map[string]any{"text": ""})
		assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)

		health, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer health.Body.Close()
		assert.Equal(t, http.StatusOK, health.StatusCode)
	})

	t.Run("body limit", func(t *testing.T) {
		srv, _ := newServer(t, nil, RouterConfig{MaxUploadBytes: 16})
		resp := postJSON(t, srv.URL+"/api/v1/ledger/parse", map[string]any{"text": strings.Repeat("가", 100)})
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	t.Run("cors preflight", func(t *testing.T) {
		srv, _ := newServer(t, nil, RouterConfig{AllowedOrigins: []string{"https://app.example.com"}})
		req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/ledger/parse", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		srv, _ := newServer(t, nil, RouterConfig{})
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "go_goroutines")
	})
}
