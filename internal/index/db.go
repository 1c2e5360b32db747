package index

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// driverName is go-sqlite3 with a Unicode-aware fold() function. SQLite's own
// lower() and LIKE only fold ASCII.
const driverName = "sqlite3_shelf"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

type DB struct {
	*sql.DB
}

func NewDB(dbPath string) (*DB, error) {
	// WAL lets the search path read while the ingester writes.
	db, err := sql.Open(driverName, dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &DB{db}, nil
}

// InitSchema applies the embedded schema. It is idempotent.
func (d *DB) InitSchema() error {
	if _, err := d.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
