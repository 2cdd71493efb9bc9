package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects driver-specific SQL (placeholders, id columns).
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// Open opens the record store. Postgres DSNs go through the pgx stdlib
// driver; anything else is treated as a SQLite file path (":memory:" for
// tests).
func Open(dsn string) (*sql.DB, Dialect, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, DialectPostgres, fmt.Errorf("opening postgres database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, DialectPostgres, fmt.Errorf("pinging postgres database: %w", err)
		}
		return db, DialectPostgres, nil
	}

	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, DialectSQLite, fmt.Errorf("creating data directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, DialectSQLite, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, DialectSQLite, fmt.Errorf("pinging sqlite database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, DialectSQLite, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, DialectSQLite, fmt.Errorf("setting journal mode: %w", err)
	}
	return db, DialectSQLite, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS extracted_agreements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	quarter TEXT NOT NULL,
	year INTEGER NOT NULL,
	source_filename TEXT NOT NULL,
	issuer TEXT NOT NULL,
	card_name TEXT NOT NULL,
	min_apr TEXT NOT NULL,
	max_apr TEXT NOT NULL,
	penalty_apr TEXT NOT NULL,
	annual_fee TEXT NOT NULL,
	late_fee TEXT NOT NULL,
	foreign_txn_fee TEXT NOT NULL,
	cash_advance_fee TEXT NOT NULL,
	balance_transfer_fee TEXT NOT NULL,
	min_interest_charge TEXT NOT NULL,
	rewards TEXT NOT NULL,
	exclusions TEXT NOT NULL,
	card_type TEXT NOT NULL,
	institution_type TEXT NOT NULL,
	change_description TEXT NOT NULL,
	change_type TEXT NOT NULL,
	fee_structure TEXT NOT NULL,
	rewards_structure TEXT NOT NULL,
	extraction_date TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agreements_quarter_year ON extracted_agreements (quarter, year);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS extracted_agreements (
	id BIGSERIAL PRIMARY KEY,
	quarter TEXT NOT NULL,
	year INTEGER NOT NULL,
	source_filename TEXT NOT NULL,
	issuer TEXT NOT NULL,
	card_name TEXT NOT NULL,
	min_apr TEXT NOT NULL,
	max_apr TEXT NOT NULL,
	penalty_apr TEXT NOT NULL,
	annual_fee TEXT NOT NULL,
	late_fee TEXT NOT NULL,
	foreign_txn_fee TEXT NOT NULL,
	cash_advance_fee TEXT NOT NULL,
	balance_transfer_fee TEXT NOT NULL,
	min_interest_charge TEXT NOT NULL,
	rewards TEXT NOT NULL,
	exclusions TEXT NOT NULL,
	card_type TEXT NOT NULL,
	institution_type TEXT NOT NULL,
	change_description TEXT NOT NULL,
	change_type TEXT NOT NULL,
	fee_structure TEXT NOT NULL,
	rewards_structure TEXT NOT NULL,
	extraction_date TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agreements_quarter_year ON extracted_agreements (quarter, year);
`

// Migrate creates the schema if it does not exist yet.
func Migrate(db *sql.DB, dialect Dialect) error {
	schema := sqliteSchema
	if dialect == DialectPostgres {
		schema = postgresSchema
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// rebind converts ?-style placeholders into the dialect's own form.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
