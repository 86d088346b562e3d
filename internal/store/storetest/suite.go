// Package storetest holds a driver-agnostic compliance suite run against
// every store.Store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lncworks/casebilling/internal/model"
	"github.com/lncworks/casebilling/internal/store"
)

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return v
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func mkEntry(t *testing.T, s store.Store, caseID string, workDate time.Time, hours float64, minutes int, rate, amount string) *model.TimeEntry {
	t.Helper()
	e, err := s.Entries().Create(context.Background(), &model.TimeEntry{
		CaseID:         caseID,
		UserID:         "nurse-1",
		Description:    "record review",
		ActivityType:   model.ActivityReview,
		WorkDate:       workDate,
		Hours:          hours,
		Minutes:        minutes,
		BillableRate:   d(t, rate),
		IsBillable:     true,
		ComputedAmount: d(t, amount),
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	return e
}

// Run exercises the compliance suite against a store.Store implementation.
// makeStore must return a clean, isolated store per call.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("EntryCRUD", func(t *testing.T) { testEntryCRUD(t, makeStore(t)) })
	t.Run("EntryFilters", func(t *testing.T) { testEntryFilters(t, makeStore(t)) })
	t.Run("InvoiceLifecycle", func(t *testing.T) { testInvoiceLifecycle(t, makeStore(t)) })
	t.Run("InvoiceVoidReleasesEntries", func(t *testing.T) { testVoid(t, makeStore(t)) })
	t.Run("InvoiceNumbersMonotonic", func(t *testing.T) { testInvoiceNumbers(t, makeStore(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, makeStore(t)) })
}

func testEntryCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()
	caseID := "case-" + uuid.New().String()

	e := mkEntry(t, s, caseID, date(2026, 3, 10), 2, 30, "150.00", "375.00")
	if e.EntryID == "" {
		t.Fatal("Create returned empty entry id")
	}
	if e.BillingStatus != model.BillingUnbilled {
		t.Fatalf("new entry status = %s, want unbilled", e.BillingStatus)
	}

	got, err := s.Entries().GetByID(ctx, e.EntryID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.BillableRate.Equal(d(t, "150.00")) || !got.ComputedAmount.Equal(d(t, "375.00")) {
		t.Fatalf("decimal round trip mismatch: rate=%s amount=%s", got.BillableRate, got.ComputedAmount)
	}
	if !got.WorkDate.UTC().Equal(date(2026, 3, 10)) {
		t.Fatalf("work date round trip mismatch: %v", got.WorkDate)
	}

	got.Description = "revised description"
	got.Hours = 3
	got.ComputedAmount = d(t, "450.00")
	upd, err := s.Entries().Update(ctx, got)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd.Description != "revised description" || upd.Hours != 3 {
		t.Fatalf("Update not applied: %+v", upd)
	}
	if !upd.UpdateTime.After(upd.CreationTime) && !upd.UpdateTime.Equal(upd.CreationTime) {
		t.Fatalf("update_time went backwards: %v < %v", upd.UpdateTime, upd.CreationTime)
	}

	if err := s.Entries().Delete(ctx, e.EntryID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Entries().GetByID(ctx, e.EntryID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByID after delete: expected not found, got %v", err)
	}
	if err := s.Entries().Delete(ctx, e.EntryID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Delete twice: expected not found, got %v", err)
	}
}

func testEntryFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	caseA := "case-" + uuid.New().String()
	caseB := "case-" + uuid.New().String()

	mkEntry(t, s, caseA, date(2026, 3, 1), 1, 0, "150.00", "150.00")
	mkEntry(t, s, caseA, date(2026, 3, 15), 2, 0, "150.00", "300.00")
	mkEntry(t, s, caseB, date(2026, 3, 15), 1, 0, "150.00", "150.00")

	lst, err := s.Entries().List(ctx, model.ListEntriesRequest{CaseID: caseA})
	if err != nil || len(lst) != 2 {
		t.Fatalf("List by case: n=%d err=%v", len(lst), err)
	}
	// Oldest first.
	if !lst[0].WorkDate.Before(lst[1].WorkDate) {
		t.Fatalf("entries not ordered by work date: %v then %v", lst[0].WorkDate, lst[1].WorkDate)
	}

	from := date(2026, 3, 10)
	lst, err = s.Entries().List(ctx, model.ListEntriesRequest{CaseID: caseA, From: &from})
	if err != nil || len(lst) != 1 {
		t.Fatalf("List with from filter: n=%d err=%v", len(lst), err)
	}

	unbilled := model.BillingUnbilled
	lst, err = s.Entries().List(ctx, model.ListEntriesRequest{CaseID: caseB, BillingStatus: &unbilled})
	if err != nil || len(lst) != 1 {
		t.Fatalf("List by status: n=%d err=%v", len(lst), err)
	}

	lst, err = s.Entries().List(ctx, model.ListEntriesRequest{CaseID: caseA, Limit: 1})
	if err != nil || len(lst) != 1 {
		t.Fatalf("List with limit: n=%d err=%v", len(lst), err)
	}
}

func testInvoiceLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	caseID := "case-" + uuid.New().String()

	e1 := mkEntry(t, s, caseID, date(2026, 3, 1), 1, 0, "100.00", "100.00")
	e2 := mkEntry(t, s, caseID, date(2026, 3, 2), 2, 30, "100.13", "250.33")
	e3 := mkEntry(t, s, caseID, date(2026, 3, 3), 0, 45, "100.13", "75.10")

	req := model.GenerateInvoiceRequest{
		CaseID:   caseID,
		ClientID: "client-1",
		From:     date(2026, 3, 1),
		To:       date(2026, 3, 31),
	}
	issued := date(2026, 4, 1)
	inv, err := s.Invoices().Generate(ctx, req, issued)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if inv.Status != model.InvoiceDraft {
		t.Fatalf("new invoice status = %s, want draft", inv.Status)
	}
	if !inv.TotalAmount.Equal(d(t, "425.43")) {
		t.Fatalf("invoice total = %s, want 425.43", inv.TotalAmount)
	}
	if len(inv.LineItemIDs) != 3 {
		t.Fatalf("line items = %v, want 3 ids", inv.LineItemIDs)
	}

	// Claimed entries are invoiced and immutable.
	for _, id := range []string{e1.EntryID, e2.EntryID, e3.EntryID} {
		got, err := s.Entries().GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID %s: %v", id, err)
		}
		if got.BillingStatus != model.BillingInvoiced || got.InvoiceID == nil || *got.InvoiceID != inv.InvoiceID {
			t.Fatalf("entry %s not claimed: status=%s invoice=%v", id, got.BillingStatus, got.InvoiceID)
		}
	}
	e1.Description = "tamper"
	if _, err := s.Entries().Update(ctx, e1); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("Update invoiced entry: expected conflict, got %v", err)
	}
	if err := s.Entries().Delete(ctx, e1.EntryID); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("Delete invoiced entry: expected conflict, got %v", err)
	}

	// A second generate over the same range finds nothing unbilled.
	if _, err := s.Invoices().Generate(ctx, req, issued); !errors.Is(err, model.ErrEmptyInvoice) {
		t.Fatalf("second Generate: expected empty invoice error, got %v", err)
	}

	// Send stamps a due date and moves to pending; it is idempotent.
	due := date(2026, 5, 1)
	inv, err = s.Invoices().Send(ctx, inv.InvoiceID, due)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if inv.Status != model.InvoicePending || inv.DueDate == nil {
		t.Fatalf("after Send: status=%s due=%v", inv.Status, inv.DueDate)
	}
	firstDue := *inv.DueDate
	inv, err = s.Invoices().Send(ctx, inv.InvoiceID, date(2026, 6, 1))
	if err != nil {
		t.Fatalf("Send twice: %v", err)
	}
	if !inv.DueDate.Equal(firstDue) {
		t.Fatalf("second Send moved due date: %v -> %v", firstDue, *inv.DueDate)
	}

	// Payment must match the total exactly.
	if _, err := s.Invoices().RecordPayment(ctx, inv.InvoiceID, d(t, "425.44"), date(2026, 4, 15)); !errors.Is(err, model.ErrOverpayment) {
		t.Fatalf("mismatched payment: expected overpayment error, got %v", err)
	}
	if _, err := s.Invoices().RecordPayment(ctx, inv.InvoiceID, d(t, "400.00"), date(2026, 4, 15)); !errors.Is(err, model.ErrOverpayment) {
		t.Fatalf("partial payment: expected overpayment error, got %v", err)
	}
	inv, err = s.Invoices().RecordPayment(ctx, inv.InvoiceID, d(t, "425.43"), date(2026, 4, 15))
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if inv.Status != model.InvoicePaid || inv.PaidAt == nil {
		t.Fatalf("after payment: status=%s paidAt=%v", inv.Status, inv.PaidAt)
	}

	// Paid is terminal.
	if _, err := s.Invoices().Void(ctx, inv.InvoiceID); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("Void paid invoice: expected conflict, got %v", err)
	}
	if _, err := s.Invoices().RecordPayment(ctx, inv.InvoiceID, d(t, "425.43"), date(2026, 4, 16)); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("pay paid invoice: expected conflict, got %v", err)
	}

	// Unknown invoice ids surface not found.
	if _, err := s.Invoices().GetByID(ctx, uuid.New().String()); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByID unknown: expected not found, got %v", err)
	}
	if _, err := s.Invoices().Send(ctx, uuid.New().String(), due); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Send unknown: expected not found, got %v", err)
	}
}

func testVoid(t *testing.T, s store.Store) {
	ctx := context.Background()
	caseID := "case-" + uuid.New().String()

	e := mkEntry(t, s, caseID, date(2026, 3, 5), 1, 0, "150.00", "150.00")
	req := model.GenerateInvoiceRequest{CaseID: caseID, ClientID: "client-1", From: date(2026, 3, 1), To: date(2026, 3, 31)}
	inv, err := s.Invoices().Generate(ctx, req, date(2026, 4, 1))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	voided, err := s.Invoices().Void(ctx, inv.InvoiceID)
	if err != nil {
		t.Fatalf("Void: %v", err)
	}
	if voided.Status != model.InvoiceVoid {
		t.Fatalf("after Void: status=%s", voided.Status)
	}
	// The total is retained for audit.
	if !voided.TotalAmount.Equal(inv.TotalAmount) {
		t.Fatalf("Void changed total: %s -> %s", inv.TotalAmount, voided.TotalAmount)
	}

	// Line items return to unbilled and are billable again.
	got, err := s.Entries().GetByID(ctx, e.EntryID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.BillingStatus != model.BillingUnbilled || got.InvoiceID != nil {
		t.Fatalf("entry not released: status=%s invoice=%v", got.BillingStatus, got.InvoiceID)
	}
	if _, err := s.Invoices().Generate(ctx, req, date(2026, 4, 2)); err != nil {
		t.Fatalf("Generate after void: %v", err)
	}
}

func testInvoiceNumbers(t *testing.T, s store.Store) {
	ctx := context.Background()
	var last string
	for i := 0; i < 3; i++ {
		caseID := "case-" + uuid.New().String()
		mkEntry(t, s, caseID, date(2026, 3, 5), 1, 0, "150.00", "150.00")
		inv, err := s.Invoices().Generate(ctx, model.GenerateInvoiceRequest{
			CaseID: caseID, ClientID: "client-1", From: date(2026, 3, 1), To: date(2026, 3, 31),
		}, date(2026, 4, 1))
		if err != nil {
			t.Fatalf("Generate %d: %v", i, err)
		}
		if inv.InvoiceNumber <= last {
			t.Fatalf("invoice numbers not increasing: %q then %q", last, inv.InvoiceNumber)
		}
		last = inv.InvoiceNumber
	}
}

func testStats(t *testing.T, s store.Store) {
	ctx := context.Background()
	caseID := "case-" + uuid.New().String()

	mkEntry(t, s, caseID, date(2026, 3, 1), 2, 0, "150.00", "300.00")
	mkEntry(t, s, caseID, date(2026, 3, 2), 1, 30, "100.00", "150.00")

	// Non-billable work counts toward neither hours nor amounts.
	if _, err := s.Entries().Create(ctx, &model.TimeEntry{
		CaseID: caseID, UserID: "nurse-1", Description: "internal admin",
		ActivityType: model.ActivityAdministrative, WorkDate: date(2026, 3, 3),
		Hours: 5, Minutes: 0, BillableRate: decimal.Zero, IsBillable: false,
		ComputedAmount: decimal.Zero,
	}); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	stats, err := s.Entries().Stats(ctx, model.StatsRequest{CaseID: caseID})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if !stats.UnbilledAmount.Equal(d(t, "450.00")) {
		t.Fatalf("unbilled amount = %s, want 450.00", stats.UnbilledAmount)
	}
	if !stats.BillableHours.Equal(d(t, "3.5")) {
		t.Fatalf("billable hours = %s, want 3.5", stats.BillableHours)
	}
	// 450.00 / 3.5 rounded to cents.
	if !stats.AverageRate.Equal(d(t, "128.57")) {
		t.Fatalf("average rate = %s, want 128.57", stats.AverageRate)
	}

	// An empty scope reports zeros, not an error.
	empty, err := s.Entries().Stats(ctx, model.StatsRequest{CaseID: "case-" + uuid.New().String()})
	if err != nil {
		t.Fatalf("Stats on empty scope: %v", err)
	}
	if !empty.UnbilledAmount.IsZero() || !empty.BillableHours.IsZero() || !empty.AverageRate.IsZero() {
		t.Fatalf("empty stats not zero: %+v", empty)
	}
}
