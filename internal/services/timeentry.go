package services

import (
	"context"

	"github.com/lncworks/casebilling/internal/billing"
	"github.com/lncworks/casebilling/internal/model"
	"github.com/lncworks/casebilling/internal/store"
)

// TimeEntryService orchestrates time-entry use cases. Amounts are always
// computed server-side so the stored computedAmount can never drift from
// the duration and rate on the row.
type TimeEntryService struct {
	store store.Store
}

func NewTimeEntryService(s store.Store) *TimeEntryService {
	return &TimeEntryService{store: s}
}

// Create persists a manual entry after stamping its computed amount.
func (s *TimeEntryService) Create(ctx context.Context, e *model.TimeEntry) (*model.TimeEntry, error) {
	amount, err := billing.Amount(e.Hours, e.Minutes, e.BillableRate)
	if err != nil {
		return nil, err
	}
	e.ComputedAmount = amount
	return s.store.Entries().Create(ctx, e)
}

func (s *TimeEntryService) Get(ctx context.Context, entryID string) (*model.TimeEntry, error) {
	return s.store.Entries().GetByID(ctx, entryID)
}

func (s *TimeEntryService) List(ctx context.Context, req model.ListEntriesRequest) ([]*model.TimeEntry, error) {
	return s.store.Entries().List(ctx, req)
}

// Update recomputes the amount and rewrites the entry. The store rejects
// the write unless the entry is still unbilled.
func (s *TimeEntryService) Update(ctx context.Context, e *model.TimeEntry) (*model.TimeEntry, error) {
	amount, err := billing.Amount(e.Hours, e.Minutes, e.BillableRate)
	if err != nil {
		return nil, err
	}
	e.ComputedAmount = amount
	return s.store.Entries().Update(ctx, e)
}

func (s *TimeEntryService) Delete(ctx context.Context, entryID string) error {
	return s.store.Entries().Delete(ctx, entryID)
}

func (s *TimeEntryService) Stats(ctx context.Context, req model.StatsRequest) (*model.BillingStats, error) {
	return s.store.Entries().Stats(ctx, req)
}
