package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/gift-ledger/internal/domain/ledger"
)

func TestAddFiles(t *testing.T) {
	s := New()

	next, rejected := s.AddFiles(
		File{Name: "a.jpg", ContentType: "image/jpeg"},
		File{Name: "b.png", ContentType: "image/png"},
		File{Name: "c.jpg", ContentType: "image/jpg"},
		File{Name: "d.gif", ContentType: "image/gif"},
		File{Name: "e.pdf", ContentType: "application/pdf"},
		File{Name: "f.png", ContentType: "IMAGE/PNG; charset=binary"},
	)

	assert.Equal(t, 2, rejected)
	require.Len(t, next.Files, 4)
	assert.Equal(t, "a.jpg", next.Files[0].Name)
	assert.Equal(t, "f.png", next.Files[3].Name)
	assert.Empty(t, s.Files, "input state unchanged")
}

func TestRemoveFile(t *testing.T) {
	s, _ := New().AddFiles(
		File{Name: "a.jpg", ContentType: "image/jpeg"},
		File{Name: "b.jpg", ContentType: "image/jpeg"},
	)

	next, err := s.RemoveFile(0)
	require.NoError(t, err)
	require.Len(t, next.Files, 1)
	assert.Equal(t, "b.jpg", next.Files[0].Name)
	assert.Len(t, s.Files, 2)

	_, err = s.RemoveFile(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestAppendRecordsKeepsOrderAndRenumbers(t *testing.T) {
	first := []ledger.Record{{Number: 1, Name: "a"}, {Number: 2, Name: "b"}}
	second := []ledger.Record{{Number: 1, Name: "c"}}

	s := New().AppendRecords(first...).AppendRecords(second...)

	require.Len(t, s.Records, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, s.Records[i].Name)
		assert.Equal(t, i+1, s.Records[i].Number)
	}
	assert.Equal(t, 1, second[0].Number, "input records unchanged")
}

func TestEditRecord(t *testing.T) {
	s := New().AppendRecords(ledger.Record{Name: ledger.NameNeedsReview, Amount: 50})

	name := " 홍길동 "
	amount := int64(50000)
	adults := -3
	next, err := s.EditRecord(0, Edit{Name: &name, Amount: &amount, AdultTickets: &adults})
	require.NoError(t, err)

	assert.Equal(t, ledger.Record{Number: 1, Name: "홍길동", Amount: 50000}, next.Records[0])
	assert.Equal(t, ledger.NameNeedsReview, s.Records[0].Name, "input state unchanged")

	_, err = s.EditRecord(5, Edit{})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestRemoveRecord(t *testing.T) {
	s := New().AppendRecords(ledger.Record{Name: "a"}, ledger.Record{Name: "b"}, ledger.Record{Name: "c"})

	next, err := s.RemoveRecord(1)
	require.NoError(t, err)
	assert.Equal(t, []ledger.Record{{Number: 1, Name: "a"}, {Number: 2, Name: "c"}}, next.Records)

	_, err = s.RemoveRecord(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestResetAndShared(t *testing.T) {
	s := FromShared([]ledger.Record{{Number: 4, Name: "a", Amount: 1000}})
	assert.True(t, s.Shared)
	assert.Equal(t, 1, s.Records[0].Number)
	assert.Equal(t, int64(1000), s.Summary().Total)

	s, _ = s.AddFiles(File{Name: "x.png", ContentType: "image/png"})
	r := s.Reset()
	assert.Empty(t, r.Files)
	assert.Empty(t, r.Records)
	assert.False(t, r.Shared)

	assert.False(t, FromShared(nil).Shared)
}
