package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lncworks/casebilling/internal/model"
)

// Store exposes the persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Entries() TimeEntries
	Invoices() Invoices
}

// TimeEntries persists discrete units of work. Update and Delete apply
// only while the entry is unbilled; drivers enforce this with guarded
// writes and return model.ErrConflict otherwise.
type TimeEntries interface {
	Create(ctx context.Context, e *model.TimeEntry) (*model.TimeEntry, error)
	GetByID(ctx context.Context, entryID string) (*model.TimeEntry, error)
	List(ctx context.Context, req model.ListEntriesRequest) ([]*model.TimeEntry, error)
	Update(ctx context.Context, e *model.TimeEntry) (*model.TimeEntry, error)
	Delete(ctx context.Context, entryID string) error
	Stats(ctx context.Context, req model.StatsRequest) (*model.BillingStats, error)
}

// Invoices owns the invoice lifecycle. Generate and Void mutate invoice
// and line items inside a single transaction; two concurrent Generate
// calls over overlapping ranges cannot both claim the same entry; the
// loser fails with model.ErrConflict.
type Invoices interface {
	Generate(ctx context.Context, req model.GenerateInvoiceRequest, issuedAt time.Time) (*model.Invoice, error)
	GetByID(ctx context.Context, invoiceID string) (*model.Invoice, error)
	List(ctx context.Context, caseID string) ([]*model.Invoice, error)
	Send(ctx context.Context, invoiceID string, dueDate time.Time) (*model.Invoice, error)
	RecordPayment(ctx context.Context, invoiceID string, amount decimal.Decimal, paidAt time.Time) (*model.Invoice, error)
	Void(ctx context.Context, invoiceID string) (*model.Invoice, error)
	MarkOverdue(ctx context.Context, invoiceID string) (*model.Invoice, error)
}
