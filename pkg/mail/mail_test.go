package mail

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendWithoutKeySkips(t *testing.T) {
	m := New("", "from@example.com", discardLogger())
	assert.False(t, m.Enabled())

	res, err := m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "장부"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestSendRequiresRecipients(t *testing.T) {
	m := New("", "from@example.com", discardLogger())
	_, err := m.Send(context.Background(), Message{To: []string{" "}})
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestSendPostsToResend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email_123"}`))
	}))
	defer srv.Close()

	client := resend.NewClient("re_test")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	m := NewWithClient(client, "장부 <ledger@example.com>", discardLogger())
	res, err := m.Send(context.Background(), Message{
		To:      []string{"host@example.com"},
		Subject: "축의금 장부",
		HTML:    "<p>합계</p>",
		Attachments: []Attachment{
			{Filename: "축의금_부조금_20240518.csv", ContentType: "text/csv", Content: []byte("번호,성명,금액,비고\n")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "email_123", res.ID)
	assert.False(t, res.Skipped)

	assert.Equal(t, "축의금 장부", got["subject"])
	assert.Equal(t, []any{"host@example.com"}, got["to"])
	require.Len(t, got["attachments"], 1)
}
