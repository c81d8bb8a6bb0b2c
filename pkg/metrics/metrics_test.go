package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveImage("tesseract", "ok", 1.5)
	m.ObserveImage("tesseract", "error", 0.1)
	m.AddRecords("per-line", 12)
	m.AddRecords("per-line", 0)
	m.ObserveRequest("POST", "/api/v1/ledger/parse", "200", 0.01)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImagesTotal.WithLabelValues("tesseract", "ok")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.RecordsParsed.WithLabelValues("per-line")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/v1/ledger/parse", "200")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveImage("x", "ok", 1)
	m.AddRecords("per-line", 1)
	m.ObserveRequest("GET", "/", "200", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.AddRecords("whole-block", 1)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `gift_ledger_records_parsed_total{strategy="whole-block"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
