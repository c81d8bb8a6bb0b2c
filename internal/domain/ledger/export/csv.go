// Package export renders ledger records as CSV and XLSX downloads and reads
// edited CSV files back in.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
)

// Dialect selects how CSV fields are written.
type Dialect string

const (
	// DialectRaw joins fields with commas and no quoting, byte-for-byte what
	// the guest-book web page has always produced. A name or note containing
	// a comma shifts the columns of that row.
	DialectRaw Dialect = "raw"
	// DialectQuoted quotes fields per RFC 4180 when they contain commas,
	// quotes or line breaks.
	DialectQuoted Dialect = "quoted"
)

// Header is the first CSV line.
const Header = "번호,성명,금액,비고"

// utf8BOM makes spreadsheet apps open the file as UTF-8.
const utf8BOM = "\ufeff"

var ErrUnknownDialect = errors.New("unknown csv dialect")

// ParseDialect resolves a dialect name; empty means raw.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case "", DialectRaw:
		return DialectRaw, nil
	case DialectQuoted:
		return DialectQuoted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, s)
	}
}

// CSVOptions configures CSV output.
type CSVOptions struct {
	Dialect Dialect
	// BOM prefixes the output with a UTF-8 byte order mark, as downloads do.
	BOM bool
}

// DefaultCSVOptions returns the options used for browser downloads.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{Dialect: DialectRaw, BOM: true}
}

// csvRow is the quoted-dialect row layout and the import layout. Alternate
// header spellings cover the older table page and hand-made sheets.
type csvRow struct {
	Number  string `csv:"번호"`
	Name    string `csv:"성명"`
	Name2   string `csv:"이름"`
	Amount  string `csv:"금액"`
	Amount2 string `csv:"축의금"`
	Notes   string `csv:"비고"`
	Adult   string `csv:"식권_대인"`
	Child   string `csv:"식권_소인"`
}

type quotedRow struct {
	Number int    `csv:"번호"`
	Name   string `csv:"성명"`
	Amount int64  `csv:"금액"`
	Notes  string `csv:"비고"`
}

// CSV renders records with the given options.
func CSV(records []ledger.Record, opts CSVOptions) ([]byte, error) {
	var body []byte
	switch opts.Dialect {
	case "", DialectRaw:
		body = []byte(RawCSV(records))
	case DialectQuoted:
		rows := make([]quotedRow, len(records))
		for i, r := range records {
			rows[i] = quotedRow{Number: r.Number, Name: r.Name, Amount: r.Amount, Notes: r.Notes}
		}
		out, err := gocsv.MarshalBytes(&rows)
		if err != nil {
			return nil, fmt.Errorf("marshal csv: %w", err)
		}
		body = out
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, opts.Dialect)
	}

	if !opts.BOM {
		return body, nil
	}
	return append([]byte(utf8BOM), body...), nil
}

// RawCSV renders the header and one unquoted line per record, each line
// terminated by \n. Amounts are the exact integer, never the 만/억 reading.
func RawCSV(records []ledger.Record) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')
	for _, r := range records {
		b.WriteString(strconv.Itoa(r.Number))
		b.WriteByte(',')
		b.WriteString(r.Name)
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(r.Amount, 10))
		b.WriteByte(',')
		b.WriteString(r.Notes)
		b.WriteByte('\n')
	}
	return b.String()
}

// Filename returns the download name for a ledger exported on day t,
// e.g. 축의금_부조금_20240315.csv.
func Filename(t time.Time, ext string) string {
	return fmt.Sprintf("축의금_부조금_%s.%s", t.Format("20060102"), strings.TrimPrefix(ext, "."))
}

func stripUTF8BOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte(utf8BOM))
}
