// Package sqlite is the embedded store driver used for local deployments
// and for the store compliance tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lncworks/casebilling/internal/billing"
	"github.com/lncworks/casebilling/internal/model"
	"github.com/lncworks/casebilling/internal/store"
)

// New constructs a SQLite-backed store over an open connection.
func New(db *sql.DB) store.Store { return &sqlStore{db: db} }

type sqlStore struct{ db *sql.DB }

func (s *sqlStore) Entries() store.TimeEntries { return &entries{db: s.db} }
func (s *sqlStore) Invoices() store.Invoices   { return &invoices{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *sqlStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

// --- Time entries ---

type entries struct{ db *sql.DB }

const entryColumns = `entry_id, case_id, user_id, description, activity_type, work_date,
       hours, minutes, billable_rate, is_billable, computed_amount,
       billing_status, invoice_id, notes, creation_time, update_time`

type rowScanner interface{ Scan(dest ...any) error }

func scanEntry(r rowScanner) (*model.TimeEntry, error) {
	var e model.TimeEntry
	var rate, amount string
	var invoiceID, notes sql.NullString
	if err := r.Scan(&e.EntryID, &e.CaseID, &e.UserID, &e.Description, &e.ActivityType, &e.WorkDate,
		&e.Hours, &e.Minutes, &rate, &e.IsBillable, &amount,
		&e.BillingStatus, &invoiceID, &notes, &e.CreationTime, &e.UpdateTime); err != nil {
		return nil, err
	}
	var err error
	if e.BillableRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("corrupt billable_rate for entry %s: %w", e.EntryID, err)
	}
	if e.ComputedAmount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("corrupt computed_amount for entry %s: %w", e.EntryID, err)
	}
	if invoiceID.Valid {
		e.InvoiceID = &invoiceID.String
	}
	if notes.Valid {
		e.Notes = &notes.String
	}
	return &e, nil
}

func (t *entries) Create(ctx context.Context, e *model.TimeEntry) (*model.TimeEntry, error) {
	out := *e
	if out.EntryID == "" {
		out.EntryID = uuid.New().String()
	}
	out.BillingStatus = model.BillingUnbilled
	out.InvoiceID = nil
	now := time.Now().UTC()
	out.CreationTime = now
	out.UpdateTime = now

	_, err := t.db.ExecContext(ctx, `
        INSERT INTO time_entries (`+entryColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		out.EntryID, out.CaseID, out.UserID, out.Description, out.ActivityType, out.WorkDate,
		out.Hours, out.Minutes, out.BillableRate.String(), out.IsBillable, out.ComputedAmount.String(),
		out.BillingStatus, nil, out.Notes, out.CreationTime, out.UpdateTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *entries) GetByID(ctx context.Context, entryID string) (*model.TimeEntry, error) {
	row := t.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE entry_id = ?`, entryID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: time entry %s", model.ErrNotFound, entryID)
	}
	return e, err
}

func (t *entries) List(ctx context.Context, req model.ListEntriesRequest) ([]*model.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE 1=1`
	var args []any
	if req.CaseID != "" {
		query += " AND case_id = ?"
		args = append(args, req.CaseID)
	}
	if req.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, req.UserID)
	}
	if req.From != nil {
		query += " AND work_date >= ?"
		args = append(args, *req.From)
	}
	if req.To != nil {
		query += " AND work_date <= ?"
		args = append(args, *req.To)
	}
	if req.BillingStatus != nil {
		query += " AND billing_status = ?"
		args = append(args, *req.BillingStatus)
	}
	if req.Billable != nil {
		query += " AND is_billable = ?"
		args = append(args, *req.Billable)
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

// Update rewrites the mutable fields of an unbilled entry. The guard on
// billing_status makes invoiced entries immutable without a read-then-write
// race.
func (t *entries) Update(ctx context.Context, e *model.TimeEntry) (*model.TimeEntry, error) {
	res, err := t.db.ExecContext(ctx, `
        UPDATE time_entries
        SET case_id=?, description=?, activity_type=?, work_date=?, hours=?, minutes=?,
            billable_rate=?, is_billable=?, computed_amount=?, notes=?, update_time=?
        WHERE entry_id=? AND billing_status='unbilled'`,
		e.CaseID, e.Description, e.ActivityType, e.WorkDate, e.Hours, e.Minutes,
		e.BillableRate.String(), e.IsBillable, e.ComputedAmount.String(), e.Notes, time.Now().UTC(),
		e.EntryID)
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
		`DELETE FROM time_entries WHERE entry_id=? AND billing_status='unbilled'`, entryID)
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

// Stats sums durations and amounts with decimal arithmetic in Go rather
// than SQLite's float coercion, so rollups match the cent-exact amounts
// stored on the entries.
func (t *entries) Stats(ctx context.Context, req model.StatsRequest) (*model.BillingStats, error) {
	query := `SELECT hours, minutes, computed_amount, billing_status FROM time_entries WHERE is_billable = 1`
	var args []any
	if req.CaseID != "" {
		query += " AND case_id = ?"
		args = append(args, req.CaseID)
	}
	if req.From != nil {
		query += " AND work_date >= ?"
		args = append(args, *req.From)
	}
	if req.To != nil {
		query += " AND work_date <= ?"
		args = append(args, *req.To)
	}
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	stats := &model.BillingStats{}
	for rows.Next() {
		var hours float64
		var minutes int
		var amount string
		var status model.BillingStatus
		if err := rows.Scan(&hours, &minutes, &amount, &status); err != nil {
			return nil, err
		}
		stats.BillableHours = stats.BillableHours.Add(billing.DurationHours(hours, minutes))
		if status == model.BillingUnbilled {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return nil, err
			}
			stats.UnbilledAmount = stats.UnbilledAmount.Add(amt)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
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
	var total string
	var due, paid sql.NullTime
	if err := r.Scan(&inv.InvoiceID, &inv.InvoiceNumber, &inv.CaseID, &inv.ClientID, &total,
		&inv.Status, &inv.IssuedAt, &due, &paid, &inv.UpdateTime); err != nil {
		return nil, err
	}
	var err error
	if inv.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("corrupt total_amount for invoice %s: %w", inv.InvoiceID, err)
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

// Generate claims every matching unbilled entry and creates the invoice in
// one transaction. The guarded UPDATE is the claim: if a concurrent
// generate already took any selected entry the row count comes up short
// and the whole transaction rolls back with ErrConflict.
func (v *invoices) Generate(ctx context.Context, req model.GenerateInvoiceRequest, issuedAt time.Time) (*model.Invoice, error) {
	tx, err := v.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
        SELECT entry_id, computed_amount FROM time_entries
        WHERE case_id=? AND billing_status='unbilled' AND is_billable=1
          AND work_date >= ? AND work_date <= ?
        ORDER BY work_date, creation_time`,
		req.CaseID, req.From, req.To)
	if err != nil {
		return nil, err
	}
	var ids []string
	total := decimal.Zero
	for rows.Next() {
		var id, amount string
		if err := rows.Scan(&id, &amount); err != nil {
			_ = rows.Close()
			return nil, err
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
		total = total.Add(amt)
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
		UpdateTime:    issuedAt.UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO invoices (`+invoiceColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?,?)`,
		inv.InvoiceID, inv.InvoiceNumber, inv.CaseID, inv.ClientID, inv.TotalAmount.String(),
		inv.Status, inv.IssuedAt, nil, nil, inv.UpdateTime); err != nil {
		return nil, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := []any{inv.InvoiceID, time.Now().UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := tx.ExecContext(ctx, `
        UPDATE time_entries SET billing_status='invoiced', invoice_id=?, update_time=?
        WHERE entry_id IN (`+placeholders+`) AND billing_status='unbilled'`, args...)
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
	row := v.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_id = ?`, invoiceID)
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
        SELECT entry_id FROM time_entries WHERE invoice_id = ?
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
		query += " WHERE case_id = ?"
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

// Send moves draft to pending and stamps the due date if unset. Sending a
// pending invoice again is a no-op rather than an error.
func (v *invoices) Send(ctx context.Context, invoiceID string, dueDate time.Time) (*model.Invoice, error) {
	res, err := v.db.ExecContext(ctx, `
        UPDATE invoices SET status='pending',
            due_date = COALESCE(due_date, ?),
            update_time = ?
        WHERE invoice_id=? AND status IN ('draft','pending')`,
		dueDate.UTC(), time.Now().UTC(), invoiceID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, v.transitionError(ctx, invoiceID, "send")
	}
	return v.GetByID(ctx, invoiceID)
}

// RecordPayment settles an invoice in full. Anything other than an exact
// match is rejected: partial payments are intentionally unsupported.
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
        UPDATE invoices SET status='paid', paid_at=?, update_time=?
        WHERE invoice_id=? AND status IN ('pending','overdue')`,
		paidAt.UTC(), time.Now().UTC(), invoiceID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, v.transitionError(ctx, invoiceID, "payment")
	}
	return v.GetByID(ctx, invoiceID)
}

// Void reverts every line item to unbilled and marks the invoice void in
// one transaction. The total is retained for audit; only status changes.
func (v *invoices) Void(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	tx, err := v.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
        UPDATE invoices SET status='void', update_time=?
        WHERE invoice_id=? AND status IN ('draft','pending','overdue')`,
		time.Now().UTC(), invoiceID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, v.transitionError(ctx, invoiceID, "void")
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE time_entries SET billing_status='unbilled', invoice_id=NULL, update_time=?
        WHERE invoice_id=?`, time.Now().UTC(), invoiceID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return v.GetByID(ctx, invoiceID)
}

func (v *invoices) MarkOverdue(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	if _, err := v.db.ExecContext(ctx, `
        UPDATE invoices SET status='overdue', update_time=?
        WHERE invoice_id=? AND status='pending'`, time.Now().UTC(), invoiceID); err != nil {
		return nil, err
	}
	return v.GetByID(ctx, invoiceID)
}

// transitionError distinguishes an unknown invoice from an illegal
// transition after a guarded update matched nothing.
func (v *invoices) transitionError(ctx context.Context, invoiceID, op string) error {
	inv, err := v.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot %s invoice %s in status %s", model.ErrConflict, op, invoiceID, inv.Status)
}
