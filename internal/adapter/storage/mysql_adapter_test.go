package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/codemarket/internal/core/domain"
)

func newMockAdapter(t *testing.T) (*MySQLAdapter, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLAdapter(db), mock
}

func TestMigrate(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS transfers").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS journal").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, adapter.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendTransfer(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	tr := domain.Transfer{
		ID:        "6f1c1f8e-3d1e-4c59-9a57-9f3d1d2c0a11",
		Item:      "u8",
		Count:     3,
		UnitPrice: decimal.RequireFromString("2.50"),
		Seller:    "alice",
		Buyer:     "bob",
		SellerID:  "a11ce",
		BuyerID:   "b0b",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transfers")).
		WithArgs(tr.ID, tr.Item, tr.Count, tr.UnitPrice, tr.Seller, tr.Buyer, tr.SellerID, tr.BuyerID, tr.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, adapter.Append(context.Background(), tr))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendTransfer_Error(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec("INSERT INTO transfers").WillReturnError(errors.New("connection reset"))

	err := adapter.Append(context.Background(), domain.Transfer{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert transfer")
}

var transferColumns = []string{"id", "item", "count", "unit_price", "seller", "buyer", "seller_id", "buyer_id", "created_at"}

func TestListByIdentity(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows(transferColumns).
		AddRow("t1", "u8", 2, "1.5", "alice", "bob", "a11ce", "b0b", at).
		AddRow("t2", "str", 1, "4", "carol", "alice", "ca401", "a11ce", at.Add(time.Second))

	mock.ExpectQuery("SELECT (.+) FROM transfers WHERE seller_id = \\? OR buyer_id = \\?").
		WithArgs("a11ce", "a11ce").
		WillReturnRows(rows)

	got, err := adapter.ListByIdentity(context.Background(), "a11ce")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "a11ce", got[0].SellerID)
	assert.True(t, got[0].UnitPrice.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, "carol", got[1].Seller)
	assert.Equal(t, at.Add(time.Second), got[1].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByIdentity_TextDatetime(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	// Without parseTime the driver hands DATETIME back as bytes.
	rows := sqlmock.NewRows(transferColumns).
		AddRow("t1", "u8", 2, "1.5", "alice", "bob", "a11ce", "b0b", []byte("2026-01-02 03:04:05.000000")).
		AddRow("t2", "u8", 1, "1.5", "alice", "bob", "a11ce", "b0b", []byte("2026-01-02 03:04:06"))

	mock.ExpectQuery("SELECT (.+) FROM transfers").WillReturnRows(rows)

	got, err := adapter.ListByIdentity(context.Background(), "a11ce")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), got[0].CreatedAt)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC), got[1].CreatedAt)
}

func TestParseMySQLDSN_ForcesParseTime(t *testing.T) {
	tests := []string{
		"root:root@tcp(localhost:3306)/codemarket",
		"root:root@tcp(localhost:3306)/codemarket?parseTime=false",
		"root:root@tcp(localhost:3306)/codemarket?parseTime=true&timeout=5s",
	}
	for _, dsn := range tests {
		cfg, err := ParseMySQLDSN(dsn)
		require.NoError(t, err, dsn)
		assert.True(t, cfg.ParseTime, dsn)
		assert.Equal(t, "codemarket", cfg.DBName)
	}

	_, err := ParseMySQLDSN("not a dsn")
	assert.Error(t, err)
}

func TestDBTime_Scan(t *testing.T) {
	var dt dbTime
	require.NoError(t, dt.Scan("2026-03-04 05:06:07.123456"))
	assert.Equal(t, time.Date(2026, 3, 4, 5, 6, 7, 123456000, time.UTC), dt.Time)

	require.NoError(t, dt.Scan(nil))
	assert.True(t, dt.IsZero())

	assert.Error(t, dt.Scan(int64(5)))
	assert.Error(t, dt.Scan([]byte("yesterday")))
}

func TestAppendEntries(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	at := time.Now()

	entries := []domain.JournalEntry{
		{Version: 4, Vendor: "alice", Item: "u8", Kind: domain.JournalSell, Change: -2, Price: decimal.NewFromInt(1), CreatedAt: at},
		{Version: 4, Vendor: "bob", Item: "u8", Kind: domain.JournalReceive, Change: 2, Price: decimal.NewFromInt(1), CreatedAt: at},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT IGNORE INTO journal")
	prep.ExpectExec().WithArgs(uint64(4), "alice", "u8", "sell", -2, entries[0].Price, at).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(uint64(4), "bob", "u8", "receive", 2, entries[1].Price, at).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, adapter.AppendEntries(context.Background(), entries))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEntries_RollbackOnFailure(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT IGNORE INTO journal")
	prep.ExpectExec().WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := adapter.AppendEntries(context.Background(), []domain.JournalEntry{{Version: 1, Kind: domain.JournalStock}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEntries_Empty(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	require.NoError(t, adapter.AppendEntries(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
