package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rl1809/codemarket/internal/core/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transfers (
		id          CHAR(36)       NOT NULL PRIMARY KEY,
		item        VARCHAR(128)   NOT NULL,
		count       INT            NOT NULL,
		unit_price  DECIMAL(20,8)  NOT NULL,
		seller      VARCHAR(255)   NOT NULL,
		buyer       VARCHAR(255)   NOT NULL,
		seller_id   CHAR(36)       NOT NULL,
		buyer_id    CHAR(36)       NOT NULL,
		created_at  DATETIME(6)    NOT NULL,
		INDEX idx_transfers_seller_id (seller_id),
		INDEX idx_transfers_buyer_id (buyer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS journal (
		version     BIGINT UNSIGNED NOT NULL,
		vendor      VARCHAR(255)    NOT NULL,
		item        VARCHAR(128)    NOT NULL,
		kind        VARCHAR(16)     NOT NULL,
		` + "`change`" + `    INT             NOT NULL,
		price       DECIMAL(20,8)   NOT NULL,
		created_at  DATETIME(6)     NOT NULL,
		PRIMARY KEY (version, vendor, item, kind)
	)`,
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// Migrate creates the transfer and journal tables when missing.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) Append(ctx context.Context, t domain.Transfer) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO transfers (id, item, count, unit_price, seller, buyer, seller_id, buyer_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Item, t.Count, t.UnitPrice, t.Seller, t.Buyer, t.SellerID, t.BuyerID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListByIdentity(ctx context.Context, identity string) ([]domain.Transfer, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, item, count, unit_price, seller, buyer, seller_id, buyer_id, created_at
		FROM transfers WHERE seller_id = ? OR buyer_id = ?
		ORDER BY created_at, id`, identity, identity,
	)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var out []domain.Transfer
	for rows.Next() {
		var (
			t       domain.Transfer
			created dbTime
		)
		if err := rows.Scan(&t.ID, &t.Item, &t.Count, &t.UnitPrice, &t.Seller, &t.Buyer, &t.SellerID, &t.BuyerID, &created); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		t.CreatedAt = created.Time
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return out, nil
}

func (m *MySQLAdapter) AppendEntries(ctx context.Context, entries []domain.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT IGNORE INTO journal (version, vendor, item, kind, `+"`change`"+`, price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare journal insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Version, e.Vendor, e.Item, string(e.Kind), e.Change, e.Price, e.CreatedAt); err != nil {
			return fmt.Errorf("insert journal entry %d: %w", e.Version, err)
		}
	}

	return tx.Commit()
}
