// Package repository persists saved ledgers.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
)

var ErrNotFound = errors.New("ledger not found")

// Ledger is a saved event ledger.
type Ledger struct {
	ID        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	Strategy  string          `json:"strategy"`
	Total     int64           `json:"total"`
	Records   []ledger.Record `json:"records"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// GuestRow is one record together with the ledger it belongs to.
type GuestRow struct {
	LedgerID    uuid.UUID
	LedgerTitle string
	SavedAt     time.Time
	Record      ledger.Record
}

// LedgerRepository defines persistence for saved ledgers.
type LedgerRepository interface {
	Create(ctx context.Context, l *Ledger) error
	Get(ctx context.Context, id uuid.UUID) (*Ledger, error)
	Update(ctx context.Context, l *Ledger) error
	// List returns ledgers newest first, without records.
	List(ctx context.Context, limit, offset int) ([]*Ledger, error)
	AllGuests(ctx context.Context) ([]GuestRow, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
