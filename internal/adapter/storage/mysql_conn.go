package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// OpenMySQL opens a pool on dsn. DATETIME columns always come back as
// time.Time, whatever the dsn says about parseTime.
func OpenMySQL(dsn string) (*sql.DB, error) {
	cfg, err := ParseMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	return sql.OpenDB(conn), nil
}

func ParseMySQLDSN(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg, nil
}

const dbTimeLayout = "2006-01-02 15:04:05.999999"

// dbTime scans a DATETIME column from either a parsed time or its text form.
type dbTime struct {
	time.Time
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	case nil:
		t.Time = time.Time{}
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
	return nil
}

func (t *dbTime) parse(s string) error {
	parsed, err := time.ParseInLocation(dbTimeLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("parse datetime %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}
