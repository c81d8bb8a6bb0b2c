package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger/parser"
)

// ImportError describes a row that could not be read back.
type ImportError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
}

func (e ImportError) Error() string {
	return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Message)
}

// ImportResult contains the records read from an edited CSV file.
type ImportResult struct {
	Records     []ledger.Record
	Errors      []ImportError
	TotalRows   int
	ParsedRows  int
	SkippedRows int
}

// ImportCSV reads a ledger CSV written by either dialect, or by a
// spreadsheet app after hand edits. Amounts go through
// parser.NormalizeAmount so "50,000" and "원50,-" both work. Rows with no
// name and no amount are skipped. Records are renumbered in file order.
func ImportCSV(data []byte) (*ImportResult, error) {
	data = stripUTF8BOM(data)
	result := &ImportResult{Records: make([]ledger.Record, 0)}
	if len(bytes.TrimSpace(data)) == 0 {
		return result, nil
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var rows []*csvRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	for i, row := range rows {
		result.TotalRows++
		rowNum := i + 2 // header is row 1

		name := strings.TrimSpace(firstNonEmpty(row.Name, row.Name2))
		amountRaw := strings.TrimSpace(firstNonEmpty(row.Amount, row.Amount2))
		if name == "" && amountRaw == "" {
			result.SkippedRows++
			continue
		}

		rec := ledger.Record{
			Name:   name,
			Amount: parser.NormalizeAmount(amountRaw),
			Notes:  strings.TrimSpace(row.Notes),
		}
		if amountRaw != "" && rec.Amount == 0 && strings.Trim(amountRaw, "0,") != "" {
			result.Errors = append(result.Errors, ImportError{
				Row:     rowNum,
				Column:  "금액",
				Message: fmt.Sprintf("unreadable amount %q, set to 0", amountRaw),
			})
		}
		rec.AdultTickets = atoiOrZero(row.Adult)
		rec.ChildTickets = atoiOrZero(row.Child)

		result.Records = append(result.Records, rec)
		result.ParsedRows++
	}

	result.Records = ledger.Renumber(result.Records)
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
