// Package share encodes a ledger into a URL so it can be opened on another
// device without a server round trip.
//
// The payload is the JSON array of records, percent-encoded the way
// JavaScript's encodeURIComponent does it, then standard base64, placed in
// the "data" query parameter. Links built by the web page decode here and
// the other way round.
package share

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/parser"
)

// Param is the query parameter holding the payload.
const Param = "data"

// Encode returns the share payload for records.
func Encode(records []ledger.Record) (string, error) {
	if records == nil {
		records = []ledger.Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return "", fmt.Errorf("encode records: %w", err)
	}
	payload := strings.TrimSuffix(buf.String(), "\n")

	return base64.StdEncoding.EncodeToString([]byte(escapeURIComponent(payload))), nil
}

// BuildURL appends the payload for records to base as the data parameter,
// keeping any query the base already has.
func BuildURL(base string, records []ledger.Record) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	data, err := Encode(records)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set(Param, data)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Decode reverses Encode. Any malformed payload yields (nil, false): a bad
// link opens an empty ledger rather than an error page. Records come back
// with the numbers they were encoded with; string amounts from older links
// are accepted.
func Decode(data string, logger *slog.Logger) ([]ledger.Record, bool) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(data) == "" {
		return nil, false
	}

	// A "+" that went through a query string unescaped arrives as a space.
	data = strings.ReplaceAll(data, " ", "+")

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		logger.Warn("share link has invalid base64", slog.Any("error", err))
		return nil, false
	}

	payload, err := url.PathUnescape(string(raw))
	if err != nil {
		logger.Warn("share link has invalid escapes", slog.Any("error", err))
		return nil, false
	}

	var rows []sharedRecord
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		logger.Warn("share link payload is not a record list", slog.Any("error", err))
		return nil, false
	}
	if rows == nil {
		return nil, false
	}

	records := make([]ledger.Record, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return records, true
}

// FromURL extracts and decodes the data parameter of a full link.
func FromURL(link string, logger *slog.Logger) ([]ledger.Record, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, false
	}
	return Decode(u.Query().Get(Param), logger)
}

// sharedRecord tolerates amounts and counts written as strings.
type sharedRecord struct {
	Number       int             `json:"number"`
	Name         string          `json:"name"`
	Amount       json.RawMessage `json:"amount"`
	Notes        string          `json:"notes"`
	AdultTickets int             `json:"adultTickets"`
	ChildTickets int             `json:"childTickets"`
}

func (s sharedRecord) record() ledger.Record {
	r := ledger.Record{
		Number: s.Number,
		Name:   s.Name,
		Notes:  s.Notes,
	}
	if s.AdultTickets > 0 {
		r.AdultTickets = s.AdultTickets
	}
	if s.ChildTickets > 0 {
		r.ChildTickets = s.ChildTickets
	}

	var n int64
	var str string
	switch {
	case len(s.Amount) == 0:
	case json.Unmarshal(s.Amount, &n) == nil:
		if n > 0 {
			r.Amount = n
		}
	case json.Unmarshal(s.Amount, &str) == nil:
		r.Amount = parser.NormalizeAmount(str)
	}
	return r
}
