package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/gift-ledger/pkg/db"
)

var recordColumns = []string{
	"ledger_id", "number", "name", "amount", "notes", "adult_tickets", "child_tickets",
}

// PostgresLedgerRepository implements LedgerRepository using PostgreSQL.
type PostgresLedgerRepository struct {
	pool db.Pool
}

func NewPostgresLedgerRepository(pool db.Pool) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{pool: pool}
}

// Create stores a ledger and its records in one transaction. Records are
// renumbered and the total recomputed before writing.
func (r *PostgresLedgerRepository) Create(ctx context.Context, l *Ledger) error {
	if err := ledger.Validate(l.Records); err != nil {
		return err
	}
	l.Records = ledger.Renumber(l.Records)
	l.Total = ledger.Total(l.Records)

	return r.withTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO ledgers (title, strategy, total)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at`
		if err := tx.QueryRow(ctx, query, l.Title, l.Strategy, l.Total).
			Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert ledger: %w", err)
		}
		return copyRecords(ctx, tx, l.ID, l.Records)
	})
}

// Get loads a ledger with its records in order.
func (r *PostgresLedgerRepository) Get(ctx context.Context, id uuid.UUID) (*Ledger, error) {
	query := `
		SELECT id, title, strategy, total, created_at, updated_at
		FROM ledgers
		WHERE id = $1`

	l := &Ledger{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.Title, &l.Strategy, &l.Total, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT number, name, amount, notes, adult_tickets, child_tickets
		FROM ledger_records
		WHERE ledger_id = $1
		ORDER BY number`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger records: %w", err)
	}
	defer rows.Close()

	l.Records = []ledger.Record{}
	for rows.Next() {
		var rec ledger.Record
		if err := rows.Scan(&rec.Number, &rec.Name, &rec.Amount, &rec.Notes, &rec.AdultTickets, &rec.ChildTickets); err != nil {
			return nil, fmt.Errorf("failed to scan ledger record: %w", err)
		}
		l.Records = append(l.Records, rec)
	}
	return l, rows.Err()
}

// Update replaces the title, strategy and every record of a ledger.
func (r *PostgresLedgerRepository) Update(ctx context.Context, l *Ledger) error {
	if err := ledger.Validate(l.Records); err != nil {
		return err
	}
	l.Records = ledger.Renumber(l.Records)
	l.Total = ledger.Total(l.Records)

	return r.withTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE ledgers
			SET title = $2, strategy = $3, total = $4, updated_at = now()
			WHERE id = $1
			RETURNING created_at, updated_at`
		err := tx.QueryRow(ctx, query, l.ID, l.Title, l.Strategy, l.Total).Scan(&l.CreatedAt, &l.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to update ledger: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM ledger_records WHERE ledger_id = $1`, l.ID); err != nil {
			return fmt.Errorf("failed to clear ledger records: %w", err)
		}
		return copyRecords(ctx, tx, l.ID, l.Records)
	})
}

func (r *PostgresLedgerRepository) List(ctx context.Context, limit, offset int) ([]*Ledger, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, title, strategy, total, created_at, updated_at
		FROM ledgers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledgers: %w", err)
	}
	defer rows.Close()

	var out []*Ledger
	for rows.Next() {
		l := &Ledger{}
		if err := rows.Scan(&l.ID, &l.Title, &l.Strategy, &l.Total, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// AllGuests returns every saved record with its ledger, for the search index.
func (r *PostgresLedgerRepository) AllGuests(ctx context.Context) ([]GuestRow, error) {
	query := `
		SELECT l.id, l.title, l.created_at,
			r.number, r.name, r.amount, r.notes, r.adult_tickets, r.child_tickets
		FROM ledger_records r
		JOIN ledgers l ON l.id = r.ledger_id
		ORDER BY l.created_at, r.number`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list guests: %w", err)
	}
	defer rows.Close()

	var out []GuestRow
	for rows.Next() {
		var g GuestRow
		if err := rows.Scan(
			&g.LedgerID, &g.LedgerTitle, &g.SavedAt,
			&g.Record.Number, &g.Record.Name, &g.Record.Amount, &g.Record.Notes,
			&g.Record.AdultTickets, &g.Record.ChildTickets,
		); err != nil {
			return nil, fmt.Errorf("failed to scan guest: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes ledgers not updated since before.
func (r *PostgresLedgerRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM ledgers WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old ledgers: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresLedgerRepository) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func copyRecords(ctx context.Context, tx pgx.Tx, ledgerID uuid.UUID, records []ledger.Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"ledger_records"}, recordColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			rec := records[i]
			return []any{ledgerID, rec.Number, rec.Name, rec.Amount, rec.Notes, rec.AdultTickets, rec.ChildTickets}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to copy ledger records: %w", err)
	}
	return nil
}
