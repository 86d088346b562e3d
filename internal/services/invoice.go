package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lncworks/casebilling/internal/model"
	"github.com/lncworks/casebilling/internal/store"
)

// InvoiceService orchestrates the invoice lifecycle. The atomic claim of
// line items lives in the store drivers; this layer validates requests
// and applies the overdue transition when invoices are read.
type InvoiceService struct {
	store   store.Store
	clock   Clock
	dueDays int
}

func NewInvoiceService(s store.Store, clock Clock, dueDays int) *InvoiceService {
	return &InvoiceService{store: s, clock: clock, dueDays: dueDays}
}

func (s *InvoiceService) Generate(ctx context.Context, req model.GenerateInvoiceRequest) (*model.Invoice, error) {
	if req.CaseID == "" || req.ClientID == "" {
		return nil, fmt.Errorf("%w: caseId and clientId are required", model.ErrValidation)
	}
	if req.To.Before(req.From) {
		return nil, fmt.Errorf("%w: date range end precedes start", model.ErrValidation)
	}
	return s.store.Invoices().Generate(ctx, req, s.clock.Now())
}

// Get returns the invoice, persisting the pending-to-overdue transition
// if its due date has passed. Overdue is a pure function of
// (status, dueDate, now); persisting it on read is just bookkeeping.
func (s *InvoiceService) Get(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	inv, err := s.store.Invoices().GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.PastDue(s.clock.Now()) {
		return s.store.Invoices().MarkOverdue(ctx, invoiceID)
	}
	return inv, nil
}

func (s *InvoiceService) List(ctx context.Context, caseID string) ([]*model.Invoice, error) {
	invs, err := s.store.Invoices().List(ctx, caseID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	for i, inv := range invs {
		if inv.PastDue(now) {
			if refreshed, err := s.store.Invoices().MarkOverdue(ctx, inv.InvoiceID); err == nil {
				invs[i] = refreshed
			}
		}
	}
	return invs, nil
}

// Send issues a draft invoice, stamping a net-N due date when none is set.
// Sending an already-pending invoice is idempotent.
func (s *InvoiceService) Send(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	due := s.clock.Now().AddDate(0, 0, s.dueDays)
	return s.store.Invoices().Send(ctx, invoiceID, due)
}

// RecordPayment settles an invoice in full; any mismatched amount is
// rejected rather than credited partially.
func (s *InvoiceService) RecordPayment(ctx context.Context, invoiceID string, amount decimal.Decimal) (*model.Invoice, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: payment amount must not be negative", model.ErrValidation)
	}
	// Apply the overdue transition first so a pending invoice past its
	// due date is paid out of the overdue state.
	if inv, err := s.store.Invoices().GetByID(ctx, invoiceID); err != nil {
		return nil, err
	} else if inv.PastDue(s.clock.Now()) {
		if _, err := s.store.Invoices().MarkOverdue(ctx, invoiceID); err != nil {
			return nil, err
		}
	}
	return s.store.Invoices().RecordPayment(ctx, invoiceID, amount, s.clock.Now())
}

func (s *InvoiceService) Void(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	return s.store.Invoices().Void(ctx, invoiceID)
}
