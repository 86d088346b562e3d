// Package postgres is the production store driver, backed by the pgx
// stdlib adapter over database/sql.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/lncworks/casebilling/internal/model"
	"github.com/lncworks/casebilling/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Entries() store.TimeEntries { return &entries{db: s.db} }
func (s *pgStore) Invoices() store.Invoices   { return &invoices{db: s.db} }

// HealthPing implements health.HealthPinger for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

// --- Time entries ---

type entries struct{ db *sql.DB }

const entryColumns = `entry_id, case_id, user_id, description, activity_type, work_date,
       hours, minutes, billable_rate, is_billable, computed_amount,
       billing_status, invoice_id, notes, creation_time, update_time`

type rowScanner interface{ Scan(dest ...any) error }

func scanEntry(r rowScanner) (*model.TimeEntry, error) {
	var e model.TimeEntry
	var invoiceID, notes *string
	if err := r.Scan(&e.EntryID, &e.CaseID, &e.UserID, &e.Description, &e.ActivityType, &e.WorkDate,
		&e.Hours, &e.Minutes, &e.BillableRate, &e.IsBillable, &e.ComputedAmount,
		&e.BillingStatus, &invoiceID, &notes, &e.CreationTime, &e.UpdateTime); err != nil {
		return nil, err
	}
	e.InvoiceID = invoiceID
	e.Notes = notes
	return &e, nil
}

func (t *entries) Create(ctx context.Context, e *model.TimeEntry) (*model.TimeEntry, error) {
	out := *e
	if out.EntryID == "" {
		out.EntryID = uuid.New().String()
	}
	out.BillingStatus = model.BillingUnbilled
	out.InvoiceID = nil
	row := t.db.QueryRowContext(ctx, `
        INSERT INTO time_entries
            (entry_id, case_id, user_id, description, activity_type, work_date,
             hours, minutes, billable_rate, is_billable, computed_amount, billing_status, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'unbilled',$12)
        RETURNING creation_time, update_time`,
		out.EntryID, out.CaseID, out.UserID, out.Description, out.ActivityType, out.WorkDate,
		out.Hours, out.Minutes, out.BillableRate, out.IsBillable, out.ComputedAmount, out.Notes)
	if err := row.Scan(&out.CreationTime, &out.UpdateTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *entries) GetByID(ctx context.Context, entryID string) (*model.TimeEntry, error) {
	row := t.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE entry_id=$1`, entryID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: time entry %s", model.ErrNotFound, entryID)
	}
	return e, err
}

func (t *entries) List(ctx context.Context, req model.ListEntriesRequest) ([]*model.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if req.CaseID != "" {
		query += " AND case_id = " + arg(req.CaseID)
	}
	if req.UserID != "" {
		query += " AND user_id = " + arg(req.UserID)
	}
	if req.From != nil {
		query += " AND work_date >= " + arg(*req.From)
	}
	if req.To != nil {
		query += " AND work_date <= " + arg(*req.To)
	}
	if req.BillingStatus != nil {
		query += " AND billing_status = " + arg(*req.BillingStatus)
	}
	if req.Billable != nil {
		query += " AND is_billable = " + arg(*req.Billable)
	}
	query += " ORDER BY work_date, creation_time"
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", req.Limit)
	}
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *entries) Update(ctx context.Context, e *model.TimeEntry) (*model.TimeEntry, error) {
	res, err := t.db.ExecContext(ctx, `
        UPDATE time_entries
        SET case_id=$1, description=$2, activity_type=$3, work_date=$4, hours=$5, minutes=$6,
            billable_rate=$7, is_billable=$8, computed_amount=$9, notes=$10, update_time=now()
        WHERE entry_id=$11 AND billing_status='unbilled'`,
		e.CaseID, e.Description, e.ActivityType, e.WorkDate, e.Hours, e.Minutes,
		e.BillableRate, e.IsBillable, e.ComputedAmount, e.Notes, e.EntryID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := t.GetByID(ctx, e.EntryID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: time entry %s is not unbilled", model.ErrConflict, e.EntryID)
	}
	return t.GetByID(ctx, e.EntryID)
}

func (t *entries) Delete(ctx context.Context, entryID string) error {
	res, err := t.db.ExecContext(ctx,
		`DELETE FROM time_entries WHERE entry_id=$1 AND billing_status='unbilled'`, entryID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := t.GetByID(ctx, entryID); err != nil {
			return err
		}
		return fmt.Errorf("%w: time entry %s is not unbilled", model.ErrConflict, entryID)
	}
	return nil
}

func (t *entries) Stats(ctx context.Context, req model.StatsRequest) (*model.BillingStats, error) {
	query := `
        SELECT COALESCE(SUM(computed_amount) FILTER (WHERE billing_status='unbilled'), 0),
               COALESCE(SUM(hours + minutes/60.0), 0)
        FROM time_entries WHERE is_billable`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if req.CaseID != "" {
		query += " AND case_id = " + arg(req.CaseID)
	}
	if req.From != nil {
		query += " AND work_date >= " + arg(*req.From)
	}
	if req.To != nil {
		query += " AND work_date <= " + arg(*req.To)
	}
	stats := &model.BillingStats{}
	var hours decimal.Decimal
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(&stats.UnbilledAmount, &hours); err != nil {
		return nil, err
	}
	stats.BillableHours = hours
	if stats.BillableHours.IsPositive() {
		stats.AverageRate = stats.UnbilledAmount.Div(stats.BillableHours).RoundBank(2)
	}
	return stats, nil
}

// --- Invoices ---

type invoices struct{ db *sql.DB }

const invoiceColumns = `invoice_id, invoice_number, case_id, client_id, total_amount,
       status, issued_at, due_date, paid_at, update_time`

func scanInvoice(r rowScanner) (*model.Invoice, error) {
	var inv model.Invoice
	var due, paid sql.NullTime
	if err := r.Scan(&inv.InvoiceID, &inv.InvoiceNumber, &inv.CaseID, &inv.ClientID, &inv.TotalAmount,
		&inv.Status, &inv.IssuedAt, &due, &paid, &inv.UpdateTime); err != nil {
		return nil, err
	}
	if due.Valid {
		d := due.Time
		inv.DueDate = &d
	}
	if paid.Valid {
		p := paid.Time
		inv.PaidAt = &p
	}
	return &inv, nil
}

// Generate selects the candidate rows FOR UPDATE, then claims them with a
// guarded UPDATE inside the same transaction. A concurrent generate over
// an overlapping range either blocks on the row locks and then sees
// nothing unbilled, or trips the rows-affected check; either way exactly
// one invoice claims each entry.
func (v *invoices) Generate(ctx context.Context, req model.GenerateInvoiceRequest, issuedAt time.Time) (*model.Invoice, error) {
	tx, err := v.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
        SELECT entry_id, computed_amount FROM time_entries
        WHERE case_id=$1 AND billing_status='unbilled' AND is_billable
          AND work_date >= $2 AND work_date <= $3
        ORDER BY work_date, creation_time
        FOR UPDATE`,
		req.CaseID, req.From, req.To)
	if err != nil {
		return nil, err
	}
	var ids []string
	total := decimal.Zero
	for rows.Next() {
		var id string
		var amount decimal.Decimal
		if err := rows.Scan(&id, &amount); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
		total = total.Add(amount)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: case %s between %s and %s", model.ErrEmptyInvoice,
			req.CaseID, req.From.Format("2006-01-02"), req.To.Format("2006-01-02"))
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`UPDATE invoice_sequence SET next_value = next_value + 1 WHERE id = 1 RETURNING next_value`).Scan(&seq); err != nil {
		return nil, err
	}

	inv := &model.Invoice{
		InvoiceID:     uuid.New().String(),
		InvoiceNumber: fmt.Sprintf("INV-%06d", seq),
		CaseID:        req.CaseID,
		ClientID:      req.ClientID,
		LineItemIDs:   ids,
		TotalAmount:   total,
		Status:        model.InvoiceDraft,
		IssuedAt:      issuedAt.UTC(),
	}
	row := tx.QueryRowContext(ctx, `
        INSERT INTO invoices (invoice_id, invoice_number, case_id, client_id, total_amount, status, issued_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING update_time`,
		inv.InvoiceID, inv.InvoiceNumber, inv.CaseID, inv.ClientID, inv.TotalAmount, inv.Status, inv.IssuedAt)
	if err := row.Scan(&inv.UpdateTime); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
        UPDATE time_entries SET billing_status='invoiced', invoice_id=$1, update_time=now()
        WHERE entry_id = ANY($2) AND billing_status='unbilled'`, inv.InvoiceID, ids)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n != int64(len(ids)) {
		return nil, fmt.Errorf("%w: %d of %d entries were claimed by a concurrent invoice", model.ErrConflict, int64(len(ids))-n, len(ids))
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inv, nil
}

func (v *invoices) GetByID(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	row := v.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_id=$1`, invoiceID)
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: invoice %s", model.ErrNotFound, invoiceID)
	}
	if err != nil {
		return nil, err
	}
	if inv.LineItemIDs, err = v.lineItems(ctx, invoiceID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (v *invoices) lineItems(ctx context.Context, invoiceID string) ([]string, error) {
	rows, err := v.db.QueryContext(ctx, `
        SELECT entry_id FROM time_entries WHERE invoice_id=$1
        ORDER BY work_date, creation_time`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (v *invoices) List(ctx context.Context, caseID string) ([]*model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	var args []any
	if caseID != "" {
		query += " WHERE case_id = $1"
		args = append(args, caseID)
	}
	query += " ORDER BY issued_at DESC"
	rows, err := v.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, inv := range out {
		if inv.LineItemIDs, err = v.lineItems(ctx, inv.InvoiceID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (v *invoices) Send(ctx context.Context, invoiceID string, dueDate time.Time) (*model.Invoice, error) {
	res, err := v.db.ExecContext(ctx, `
        UPDATE invoices SET status='pending',
            due_date = COALESCE(due_date, $1),
            update_time = now()
        WHERE invoice_id=$2 AND status IN ('draft','pending')`,
		dueDate.UTC(), invoiceID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, v.transitionError(ctx, invoiceID, "send")
	}
	return v.GetByID(ctx, invoiceID)
}

func (v *invoices) RecordPayment(ctx context.Context, invoiceID string, amount decimal.Decimal, paidAt time.Time) (*model.Invoice, error) {
	inv, err := v.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.Status.Payable() {
		return nil, fmt.Errorf("%w: invoice %s is %s, payment requires pending or overdue", model.ErrConflict, invoiceID, inv.Status)
	}
	if !amount.Equal(inv.TotalAmount) {
		return nil, fmt.Errorf("%w: got %s, outstanding total is %s", model.ErrOverpayment,
			amount.StringFixed(2), inv.TotalAmount.StringFixed(2))
	}
	res, err := v.db.ExecContext(ctx, `
        UPDATE invoices SET status='paid', paid_at=$1, update_time=now()
        WHERE invoice_id=$2 AND status IN ('pending','overdue')`,
		paidAt.UTC(), invoiceID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, v.transitionError(ctx, invoiceID, "payment")
	}
	return v.GetByID(ctx, invoiceID)
}

func (v *invoices) Void(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	tx, err := v.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
        UPDATE invoices SET status='void', update_time=now()
        WHERE invoice_id=$1 AND status IN ('draft','pending','overdue')`, invoiceID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, v.transitionError(ctx, invoiceID, "void")
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE time_entries SET billing_status='unbilled', invoice_id=NULL, update_time=now()
        WHERE invoice_id=$1`, invoiceID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return v.GetByID(ctx, invoiceID)
}

func (v *invoices) MarkOverdue(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	if _, err := v.db.ExecContext(ctx, `
        UPDATE invoices SET status='overdue', update_time=now()
        WHERE invoice_id=$1 AND status='pending'`, invoiceID); err != nil {
		return nil, err
	}
	return v.GetByID(ctx, invoiceID)
}

func (v *invoices) transitionError(ctx context.Context, invoiceID, op string) error {
	inv, err := v.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot %s invoice %s in status %s", model.ErrConflict, op, invoiceID, inv.Status)
}
