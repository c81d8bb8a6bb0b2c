package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/gift-ledger/pkg/money"
)

// SheetName is the worksheet holding the ledger.
const SheetName = "장부"

var xlsxHeaders = []string{"번호", "성명", "금액", "비고", "식권_대인", "식권_소인"}

// XLSX returns a workbook with one row per record and a total row below.
// title, when set, is written above the table.
func XLSX(title string, records []ledger.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}
	amountFmt := "#,##0"
	amountStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &amountFmt})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	row := 1
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(SheetName, cell, v)
	}
	styleRow := func(style int) {
		first, _ := excelize.CoordinatesToCellName(1, row)
		last, _ := excelize.CoordinatesToCellName(len(xlsxHeaders), row)
		_ = f.SetCellStyle(SheetName, first, last, style)
	}

	if title != "" {
		write(1, title)
		styleRow(bold)
		row += 2
	}

	for i, h := range xlsxHeaders {
		write(i+1, h)
	}
	styleRow(bold)
	row++

	firstDataRow := row
	for _, r := range records {
		write(1, r.Number)
		write(2, r.Name)
		write(3, r.Amount)
		write(4, r.Notes)
		write(5, r.AdultTickets)
		write(6, r.ChildTickets)
		row++
	}
	if len(records) > 0 {
		first, _ := excelize.CoordinatesToCellName(3, firstDataRow)
		last, _ := excelize.CoordinatesToCellName(3, row-1)
		_ = f.SetCellStyle(SheetName, first, last, amountStyle)
	}

	summary := ledger.Summarize(records)
	write(2, "합계")
	write(3, summary.Total)
	write(4, summary.TotalKorean)
	write(5, summary.AdultTickets)
	write(6, summary.ChildTickets)
	styleRow(bold)
	totalCell, _ := excelize.CoordinatesToCellName(3, row)
	_ = f.SetCellStyle(SheetName, totalCell, totalCell, amountStyle)

	_ = f.SetColWidth(SheetName, "A", "A", 8)  // number
	_ = f.SetColWidth(SheetName, "B", "B", 20) // name
	_ = f.SetColWidth(SheetName, "C", "C", 14) // amount
	_ = f.SetColWidth(SheetName, "D", "D", 18) // notes
	_ = f.SetColWidth(SheetName, "E", "F", 10) // tickets

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// TotalLabel is the caption written beside the grand total in reports.
func TotalLabel(records []ledger.Record) string {
	s := ledger.Summarize(records)
	return fmt.Sprintf("총 %d건 %s (%s)", s.Count, s.TotalDisplay, money.KoreanMagnitude(s.Total))
}
