// Package ledger holds the guest-book row model shared by the parser,
// exporters, share links and persistence.
package ledger

import (
	"errors"

	"github.com/FACorreiaa/gift-ledger/pkg/money"
)

// NameNeedsReview is the placeholder name the whole-block strategy emits
// when no name-like text was found.
const NameNeedsReview = "확인 필요"

var ErrInvalidRecords = errors.New("invalid records")

// Record is one row of the ledger: who gave, how much, and any meal-ticket note.
type Record struct {
	Number       int    `json:"number"`
	Name         string `json:"name"`
	Amount       int64  `json:"amount"`
	Notes        string `json:"notes"`
	AdultTickets int    `json:"adultTickets,omitempty"`
	ChildTickets int    `json:"childTickets,omitempty"`
}

// NeedsReview reports whether the row should be checked by a person.
func (r Record) NeedsReview() bool {
	return r.Name == "" || r.Name == NameNeedsReview || r.Amount == 0
}

// Renumber returns a copy of records numbered 1..n in slice order.
func Renumber(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		r.Number = i + 1
		out[i] = r
	}
	return out
}

// Total sums the amounts of all records.
func Total(records []Record) int64 {
	amounts := make([]int64, len(records))
	for i, r := range records {
		amounts[i] = r.Amount
	}
	return money.SumWon(amounts...).Amount()
}

// Summary aggregates a table for display.
type Summary struct {
	Count        int    `json:"count"`
	Total        int64  `json:"total"`
	TotalDisplay string `json:"totalDisplay"`
	TotalKorean  string `json:"totalKorean"`
	AdultTickets int    `json:"adultTickets"`
	ChildTickets int    `json:"childTickets"`
	NeedsReview  int    `json:"needsReview"`
}

// Summarize computes the totals shown under the ledger table.
func Summarize(records []Record) Summary {
	total := money.NewWon(Total(records))
	s := Summary{
		Count:        len(records),
		Total:        total.Amount(),
		TotalDisplay: total.Display(),
		TotalKorean:  total.Korean(),
	}
	for _, r := range records {
		s.AdultTickets += r.AdultTickets
		s.ChildTickets += r.ChildTickets
		if r.NeedsReview() {
			s.NeedsReview++
		}
	}
	return s
}

// Validate rejects records that could not have come out of a parser or an
// edit: negative amounts or ticket counts.
func Validate(records []Record) error {
	for _, r := range records {
		if r.Amount < 0 || r.AdultTickets < 0 || r.ChildTickets < 0 {
			return ErrInvalidRecords
		}
	}
	return nil
}
