package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
)

var ledgerCols = []string{"id", "title", "strategy", "total", "created_at", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestCreate(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresLedgerRepository(mock)

	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO ledgers").
		WithArgs("김철수 결혼식", "per-line", int64(80000)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, now, now))
	mock.ExpectCopyFrom(pgx.Identifier{"ledger_records"}, recordColumns).WillReturnResult(2)
	mock.ExpectCommit()

	l := &Ledger{
		Title:    "김철수 결혼식",
		Strategy: "per-line",
		Records: []ledger.Record{
			{Number: 7, Name: "이영희", Amount: 50000},
			{Number: 9, Name: "박민수", Amount: 30000},
		},
	}
	require.NoError(t, repo.Create(context.Background(), l))

	assert.Equal(t, id, l.ID)
	assert.Equal(t, int64(80000), l.Total)
	assert.Equal(t, 1, l.Records[0].Number)
	assert.Equal(t, 2, l.Records[1].Number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRollsBackOnCopyFailure(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresLedgerRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO ledgers").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(uuid.New(), time.Now(), time.Now()))
	mock.ExpectCopyFrom(pgx.Identifier{"ledger_records"}, recordColumns).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &Ledger{Records: []ledger.Record{{Name: "a", Amount: 1}}})
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsNegativeAmounts(t *testing.T) {
	repo := NewPostgresLedgerRepository(newMock(t))
	err := repo.Create(context.Background(), &Ledger{Records: []ledger.Record{{Amount: -1}}})
	assert.ErrorIs(t, err, ledger.ErrInvalidRecords)
}

func TestGet(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresLedgerRepository(mock)

	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM ledgers WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(ledgerCols).AddRow(id, "돌잔치", "whole-block", int64(100000), now, now))
	mock.ExpectQuery("SELECT (.+) FROM ledger_records").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"number", "name", "amount", "notes", "adult_tickets", "child_tickets"}).
			AddRow(1, "홍길동", int64(100000), "대인2 소인1", 2, 1))

	l, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "돌잔치", l.Title)
	require.Len(t, l.Records, 1)
	assert.Equal(t, ledger.Record{Number: 1, Name: "홍길동", Amount: 100000, Notes: "대인2 소인1", AdultTickets: 2, ChildTickets: 1}, l.Records[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresLedgerRepository(mock)

	mock.ExpectQuery("SELECT (.+) FROM ledgers").WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresLedgerRepository(mock)

	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE ledgers").
		WithArgs(id, "장부", "per-line", int64(10000)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("DELETE FROM ledger_records").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"ledger_records"}, recordColumns).WillReturnResult(1)
	mock.ExpectCommit()

	err := repo.Update(context.Background(), &Ledger{
		ID: id, Title: "장부", Strategy: "per-line",
		Records: []ledger.Record{{Name: "a", Amount: 10000}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresLedgerRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE ledgers").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &Ledger{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllGuests(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresLedgerRepository(mock)

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery("FROM ledger_records r JOIN ledgers l").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "title", "created_at", "number", "name", "amount", "notes", "adult_tickets", "child_tickets",
		}).
			AddRow(id, "결혼식", now, 1, "김철수", int64(50000), "", 0, 0).
			AddRow(id, "결혼식", now, 2, "이영희", int64(30000), "大1", 1, 0))

	guests, err := repo.AllGuests(context.Background())
	require.NoError(t, err)
	require.Len(t, guests, 2)
	assert.Equal(t, "이영희", guests[1].Record.Name)
	assert.Equal(t, 1, guests[1].Record.AdultTickets)
	assert.Equal(t, id, guests[0].LedgerID)
}

func TestDeleteOlderThan(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresLedgerRepository(mock)

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectExec("DELETE FROM ledgers WHERE updated_at < \\$1").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
