package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lncworks/casebilling/internal/model"
	"github.com/lncworks/casebilling/internal/store"
)

// --- Fakes ---

type invoiceStore struct {
	byID        map[string]*model.Invoice
	overdueIDs  []string
	sentDue     time.Time
	generateReq *model.GenerateInvoiceRequest
	issued      time.Time
}

func newInvoiceStore(invs ...*model.Invoice) *invoiceStore {
	s := &invoiceStore{byID: make(map[string]*model.Invoice)}
	for _, inv := range invs {
		s.byID[inv.InvoiceID] = inv
	}
	return s
}

func (s *invoiceStore) Entries() store.TimeEntries { panic("unused") }
func (s *invoiceStore) Invoices() store.Invoices   { return (*fakeInvoices)(s) }

type fakeInvoices invoiceStore

func (f *fakeInvoices) Generate(_ context.Context, req model.GenerateInvoiceRequest, issuedAt time.Time) (*model.Invoice, error) {
	f.generateReq = &req
	f.issued = issuedAt
	return &model.Invoice{InvoiceID: "inv-new", Status: model.InvoiceDraft, IssuedAt: issuedAt}, nil
}
func (f *fakeInvoices) GetByID(_ context.Context, id string) (*model.Invoice, error) {
	inv, ok := f.byID[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}
func (f *fakeInvoices) List(_ context.Context, caseID string) ([]*model.Invoice, error) {
	var out []*model.Invoice
	for _, inv := range f.byID {
		cp := *inv
		out = append(out, &cp)
	}
	return out, nil
}
func (f *fakeInvoices) Send(_ context.Context, id string, dueDate time.Time) (*model.Invoice, error) {
	f.sentDue = dueDate
	inv := f.byID[id]
	inv.Status = model.InvoicePending
	inv.DueDate = &dueDate
	cp := *inv
	return &cp, nil
}
func (f *fakeInvoices) RecordPayment(_ context.Context, id string, amount decimal.Decimal, paidAt time.Time) (*model.Invoice, error) {
	inv := f.byID[id]
	inv.Status = model.InvoicePaid
	inv.PaidAt = &paidAt
	cp := *inv
	return &cp, nil
}
func (f *fakeInvoices) Void(context.Context, string) (*model.Invoice, error) { panic("unused") }
func (f *fakeInvoices) MarkOverdue(_ context.Context, id string) (*model.Invoice, error) {
	f.overdueIDs = append(f.overdueIDs, id)
	inv := f.byID[id]
	inv.Status = model.InvoiceOverdue
	cp := *inv
	return &cp, nil
}

// --- Tests ---

func TestInvoiceGenerateValidation(t *testing.T) {
	fs := newInvoiceStore()
	svc := NewInvoiceService(fs, &fixedClock{t: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}, 30)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	if _, err := svc.Generate(context.Background(), model.GenerateInvoiceRequest{ClientID: "c1", From: from, To: to}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("missing case: expected validation error, got %v", err)
	}
	if _, err := svc.Generate(context.Background(), model.GenerateInvoiceRequest{CaseID: "case-1", ClientID: "c1", From: to, To: from}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("inverted range: expected validation error, got %v", err)
	}

	inv, err := svc.Generate(context.Background(), model.GenerateInvoiceRequest{CaseID: "case-1", ClientID: "c1", From: from, To: to})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if inv.Status != model.InvoiceDraft {
		t.Fatalf("status = %s, want draft", inv.Status)
	}
	if fs.generateReq == nil || fs.generateReq.CaseID != "case-1" {
		t.Fatalf("request not delegated: %+v", fs.generateReq)
	}
	if !fs.issued.Equal(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("issuedAt = %v, want the service clock reading", fs.issued)
	}
}

func TestInvoiceGetAppliesOverdue(t *testing.T) {
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	past := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	fs := newInvoiceStore(
		&model.Invoice{InvoiceID: "inv-late", Status: model.InvoicePending, DueDate: &past},
		&model.Invoice{InvoiceID: "inv-current", Status: model.InvoicePending, DueDate: &future},
		&model.Invoice{InvoiceID: "inv-draft", Status: model.InvoiceDraft},
	)
	svc := NewInvoiceService(fs, &fixedClock{t: now}, 30)

	inv, err := svc.Get(context.Background(), "inv-late")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if inv.Status != model.InvoiceOverdue {
		t.Fatalf("past-due pending invoice read back as %s, want overdue", inv.Status)
	}
	if len(fs.overdueIDs) != 1 || fs.overdueIDs[0] != "inv-late" {
		t.Fatalf("overdue transition not persisted: %v", fs.overdueIDs)
	}

	inv, err = svc.Get(context.Background(), "inv-current")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if inv.Status != model.InvoicePending {
		t.Fatalf("current invoice flipped to %s", inv.Status)
	}

	// Drafts have no due date and never go overdue.
	inv, err = svc.Get(context.Background(), "inv-draft")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if inv.Status != model.InvoiceDraft {
		t.Fatalf("draft flipped to %s", inv.Status)
	}
}

func TestInvoiceListAppliesOverdue(t *testing.T) {
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	past := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	fs := newInvoiceStore(
		&model.Invoice{InvoiceID: "inv-late", CaseID: "case-1", Status: model.InvoicePending, DueDate: &past},
		&model.Invoice{InvoiceID: "inv-paid", CaseID: "case-1", Status: model.InvoicePaid},
	)
	svc := NewInvoiceService(fs, &fixedClock{t: now}, 30)

	invs, err := svc.List(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	byID := make(map[string]model.InvoiceStatus, len(invs))
	for _, inv := range invs {
		byID[inv.InvoiceID] = inv.Status
	}
	if byID["inv-late"] != model.InvoiceOverdue {
		t.Fatalf("inv-late = %s, want overdue", byID["inv-late"])
	}
	if byID["inv-paid"] != model.InvoicePaid {
		t.Fatalf("inv-paid = %s, want paid", byID["inv-paid"])
	}
}

func TestInvoiceSendStampsNetDueDate(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	fs := newInvoiceStore(&model.Invoice{InvoiceID: "inv-1", Status: model.InvoiceDraft})
	svc := NewInvoiceService(fs, &fixedClock{t: now}, 30)

	inv, err := svc.Send(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := now.AddDate(0, 0, 30)
	if inv.DueDate == nil || !inv.DueDate.Equal(want) {
		t.Fatalf("due date = %v, want %v", inv.DueDate, want)
	}
}

func TestInvoiceRecordPayment(t *testing.T) {
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	past := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	fs := newInvoiceStore(&model.Invoice{InvoiceID: "inv-1", Status: model.InvoicePending, DueDate: &past})
	svc := NewInvoiceService(fs, &fixedClock{t: now}, 30)

	if _, err := svc.RecordPayment(context.Background(), "inv-1", mustDecimal(t, "-5.00")); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("negative amount: expected validation error, got %v", err)
	}
	if _, err := svc.RecordPayment(context.Background(), "missing", mustDecimal(t, "10.00")); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown invoice: expected not found, got %v", err)
	}

	inv, err := svc.RecordPayment(context.Background(), "inv-1", mustDecimal(t, "10.00"))
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if inv.Status != model.InvoicePaid || inv.PaidAt == nil {
		t.Fatalf("after payment: status=%s paidAt=%v", inv.Status, inv.PaidAt)
	}
	// The pending-past-due invoice was marked overdue before settling.
	if len(fs.overdueIDs) != 1 || fs.overdueIDs[0] != "inv-1" {
		t.Fatalf("overdue transition not applied before payment: %v", fs.overdueIDs)
	}
}
