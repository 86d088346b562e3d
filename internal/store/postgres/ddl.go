package postgres

import (
	"context"
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS time_entries (
    entry_id        TEXT PRIMARY KEY,
    case_id         TEXT NOT NULL,
    user_id         TEXT NOT NULL,
    description     TEXT NOT NULL,
    activity_type   TEXT NOT NULL,
    work_date       DATE NOT NULL,
    hours           DOUBLE PRECISION NOT NULL,
    minutes         INTEGER NOT NULL,
    billable_rate   NUMERIC(12,2) NOT NULL,
    is_billable     BOOLEAN NOT NULL,
    computed_amount NUMERIC(12,2) NOT NULL,
    billing_status  TEXT NOT NULL DEFAULT 'unbilled',
    invoice_id      TEXT,
    notes           TEXT,
    creation_time   TIMESTAMPTZ NOT NULL DEFAULT now(),
    update_time     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_entries_case_status ON time_entries (case_id, billing_status, work_date);

CREATE TABLE IF NOT EXISTS invoices (
    invoice_id     TEXT PRIMARY KEY,
    invoice_number TEXT NOT NULL UNIQUE,
    case_id        TEXT NOT NULL,
    client_id      TEXT NOT NULL,
    total_amount   NUMERIC(12,2) NOT NULL,
    status         TEXT NOT NULL,
    issued_at      TIMESTAMPTZ NOT NULL,
    due_date       TIMESTAMPTZ,
    paid_at        TIMESTAMPTZ,
    update_time    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS invoice_sequence (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    next_value BIGINT NOT NULL
);
INSERT INTO invoice_sequence (id, next_value) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
`

// Bootstrap opens the database, applies the schema and verifies
// connectivity. The DDL is re-runnable so deployments without a separate
// migration step stay simple.
func Bootstrap(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema applies the billing DDL.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
