package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lncworks/casebilling/internal/auth"
	"github.com/lncworks/casebilling/internal/model"
	"github.com/lncworks/casebilling/internal/services"
	"github.com/lncworks/casebilling/internal/store"
)

type brokenStore struct{ err error }

func (s *brokenStore) Entries() store.TimeEntries { return (*brokenEntries)(s) }
func (s *brokenStore) Invoices() store.Invoices   { panic("unused") }

type brokenEntries brokenStore

func (f *brokenEntries) Create(context.Context, *model.TimeEntry) (*model.TimeEntry, error) {
	panic("unused")
}
func (f *brokenEntries) GetByID(context.Context, string) (*model.TimeEntry, error) {
	panic("unused")
}
func (f *brokenEntries) List(context.Context, model.ListEntriesRequest) ([]*model.TimeEntry, error) {
	return nil, f.err
}
func (f *brokenEntries) Update(context.Context, *model.TimeEntry) (*model.TimeEntry, error) {
	panic("unused")
}
func (f *brokenEntries) Delete(context.Context, string) error { panic("unused") }
func (f *brokenEntries) Stats(context.Context, model.StatsRequest) (*model.BillingStats, error) {
	panic("unused")
}

// A store failure during export must yield a JSON error response, never
// CSV headers followed by a JSON body.
func TestExportStoreFailureKeepsJSONResponse(t *testing.T) {
	handler := NewTimeEntryHandler(services.NewTimeEntryService(&brokenStore{err: errors.New("database is locked")}))

	req := httptest.NewRequest("GET", "/api/time-entries/export", nil)
	req = req.WithContext(auth.WithActor(req.Context(), auth.Actor{UserID: "nurse-1", Role: auth.RoleAdmin}))

	rec := httptest.NewRecorder()
	handler.ExportTimeEntries(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q, want application/json", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "" {
		t.Fatalf("attachment header should not be set on failure, got %q", cd)
	}
	if strings.Contains(rec.Body.String(), "Case Number") {
		t.Fatalf("response must not mix CSV with the error body: %q", rec.Body.String())
	}
}
