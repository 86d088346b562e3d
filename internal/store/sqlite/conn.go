package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) a SQLite database at the given path and enables
// WAL journal mode. The URI parameters give better concurrency for
// read-heavy workloads.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS time_entries (
    entry_id        TEXT PRIMARY KEY,
    case_id         TEXT NOT NULL,
    user_id         TEXT NOT NULL,
    description     TEXT NOT NULL,
    activity_type   TEXT NOT NULL,
    work_date       TIMESTAMP NOT NULL,
    hours           REAL NOT NULL,
    minutes         INTEGER NOT NULL,
    billable_rate   TEXT NOT NULL,
    is_billable     INTEGER NOT NULL,
    computed_amount TEXT NOT NULL,
    billing_status  TEXT NOT NULL DEFAULT 'unbilled',
    invoice_id      TEXT,
    notes           TEXT,
    creation_time   TIMESTAMP NOT NULL,
    update_time     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_case_status ON time_entries (case_id, billing_status, work_date);

CREATE TABLE IF NOT EXISTS invoices (
    invoice_id     TEXT PRIMARY KEY,
    invoice_number TEXT NOT NULL UNIQUE,
    case_id        TEXT NOT NULL,
    client_id      TEXT NOT NULL,
    total_amount   TEXT NOT NULL,
    status         TEXT NOT NULL,
    issued_at      TIMESTAMP NOT NULL,
    due_date       TIMESTAMP,
    paid_at        TIMESTAMP,
    update_time    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS invoice_sequence (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    next_value INTEGER NOT NULL
);
INSERT OR IGNORE INTO invoice_sequence (id, next_value) VALUES (1, 0);
`

// EnsureSchema creates the billing tables when missing. SQLite is the
// embedded target; migrations are simply re-runnable DDL.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
