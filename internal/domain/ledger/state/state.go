// Package state holds the working ledger of one session: the uploaded photos
// and the table built from them. Every update returns a new State and
// leaves its input untouched, so handlers and the CLI can keep history or
// share a State between goroutines without locking.
package state

import (
	"errors"
	"slices"
	"strings"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
)

var ErrIndexOutOfRange = errors.New("index out of range")

// acceptedTypes are the only uploads the OCR step will take.
var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// File is an uploaded guest-book photo.
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Accepted reports whether the file type is one the OCR step reads.
func (f File) Accepted() bool {
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return acceptedTypes[ct]
}

// State is the session's photos and ledger table.
type State struct {
	Files   []File          `json:"files"`
	Records []ledger.Record `json:"records"`
	// Shared is true when the table was opened from a share link.
	Shared bool `json:"shared"`
}

// New returns an empty State.
func New() State {
	return State{Files: []File{}, Records: []ledger.Record{}}
}

// FromShared starts a session from records decoded out of a share link.
func FromShared(records []ledger.Record) State {
	s := New()
	s.Records = ledger.Renumber(records)
	s.Shared = len(records) > 0
	return s
}

// AddFiles appends the accepted files and reports how many were rejected
// for their type.
func (s State) AddFiles(files ...File) (State, int) {
	next := s.clone()
	rejected := 0
	for _, f := range files {
		if !f.Accepted() {
			rejected++
			continue
		}
		next.Files = append(next.Files, f)
	}
	return next, rejected
}

// RemoveFile drops the photo at idx.
func (s State) RemoveFile(idx int) (State, error) {
	if idx < 0 || idx >= len(s.Files) {
		return s, ErrIndexOutOfRange
	}
	next := s.clone()
	next.Files = slices.Delete(next.Files, idx, idx+1)
	return next, nil
}

// AppendRecords adds records below the existing table, in order, and
// renumbers the whole table 1..n.
func (s State) AppendRecords(records ...ledger.Record) State {
	next := s.clone()
	next.Records = ledger.Renumber(append(next.Records, records...))
	return next
}

// Edit is a user correction to one row. Nil fields are left unchanged.
type Edit struct {
	Name         *string `json:"name,omitempty"`
	Amount       *int64  `json:"amount,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	AdultTickets *int    `json:"adultTickets,omitempty"`
	ChildTickets *int    `json:"childTickets,omitempty"`
}

// EditRecord applies a correction to the row at idx. Negative amounts and
// counts are stored as 0.
func (s State) EditRecord(idx int, e Edit) (State, error) {
	if idx < 0 || idx >= len(s.Records) {
		return s, ErrIndexOutOfRange
	}
	next := s.clone()
	r := next.Records[idx]
	if e.Name != nil {
		r.Name = strings.TrimSpace(*e.Name)
	}
	if e.Amount != nil {
		r.Amount = max(*e.Amount, 0)
	}
	if e.Notes != nil {
		r.Notes = strings.TrimSpace(*e.Notes)
	}
	if e.AdultTickets != nil {
		r.AdultTickets = max(*e.AdultTickets, 0)
	}
	if e.ChildTickets != nil {
		r.ChildTickets = max(*e.ChildTickets, 0)
	}
	next.Records[idx] = r
	return next, nil
}

// RemoveRecord deletes the row at idx and renumbers the rest.
func (s State) RemoveRecord(idx int) (State, error) {
	if idx < 0 || idx >= len(s.Records) {
		return s, ErrIndexOutOfRange
	}
	next := s.clone()
	next.Records = ledger.Renumber(slices.Delete(next.Records, idx, idx+1))
	return next, nil
}

// Reset clears photos and table.
func (s State) Reset() State {
	return New()
}

// Summary returns the totals for the current table.
func (s State) Summary() ledger.Summary {
	return ledger.Summarize(s.Records)
}

func (s State) clone() State {
	return State{
		Files:   slices.Clone(nonNil(s.Files)),
		Records: slices.Clone(nonNil(s.Records)),
		Shared:  s.Shared,
	}
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
