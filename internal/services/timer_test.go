package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lncworks/casebilling/internal/model"
	"github.com/lncworks/casebilling/internal/sessions"
	"github.com/lncworks/casebilling/internal/store"
)

// --- Fakes ---

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type entryStore struct {
	created []*model.TimeEntry
}

func (s *entryStore) Entries() store.TimeEntries { return (*fakeEntries)(s) }
func (s *entryStore) Invoices() store.Invoices   { panic("unused") }

type fakeEntries entryStore

func (f *fakeEntries) Create(_ context.Context, e *model.TimeEntry) (*model.TimeEntry, error) {
	out := *e
	out.EntryID = "entry-1"
	out.BillingStatus = model.BillingUnbilled
	f.created = append(f.created, &out)
	return &out, nil
}
func (f *fakeEntries) GetByID(context.Context, string) (*model.TimeEntry, error) { panic("unused") }
func (f *fakeEntries) List(context.Context, model.ListEntriesRequest) ([]*model.TimeEntry, error) {
	panic("unused")
}
func (f *fakeEntries) Update(context.Context, *model.TimeEntry) (*model.TimeEntry, error) {
	panic("unused")
}
func (f *fakeEntries) Delete(context.Context, string) error { panic("unused") }
func (f *fakeEntries) Stats(context.Context, model.StatsRequest) (*model.BillingStats, error) {
	panic("unused")
}

type failingEntryStore struct{ err error }

func (s *failingEntryStore) Entries() store.TimeEntries { return (*failingEntries)(s) }
func (s *failingEntryStore) Invoices() store.Invoices   { panic("unused") }

type failingEntries failingEntryStore

func (f *failingEntries) Create(context.Context, *model.TimeEntry) (*model.TimeEntry, error) {
	return nil, f.err
}
func (f *failingEntries) GetByID(context.Context, string) (*model.TimeEntry, error) { panic("unused") }
func (f *failingEntries) List(context.Context, model.ListEntriesRequest) ([]*model.TimeEntry, error) {
	panic("unused")
}
func (f *failingEntries) Update(context.Context, *model.TimeEntry) (*model.TimeEntry, error) {
	panic("unused")
}
func (f *failingEntries) Delete(context.Context, string) error { panic("unused") }
func (f *failingEntries) Stats(context.Context, model.StatsRequest) (*model.BillingStats, error) {
	panic("unused")
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return v
}

// --- Tests ---

func TestTimerStopRecordsBucketedEntry(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	fs := &entryStore{}
	svc := NewTimerService(sessions.New(), fs, mustDecimal(t, "150.00"), clock)

	sess, err := svc.Start(context.Background(), "nurse-1", "case-1", model.ActivityResearch)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// 47m30s of elapsed wall time lands in the 45-minute bucket.
	clock.t = clock.t.Add(47*time.Minute + 30*time.Second)
	entry, err := svc.Stop(context.Background(), "nurse-1", StopRequest{SessionID: sess.SessionID})
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if entry.Hours != 0 || entry.Minutes != 45 {
		t.Fatalf("bucketed duration = (%v, %d), want (0, 45)", entry.Hours, entry.Minutes)
	}
	if !entry.BillableRate.Equal(mustDecimal(t, "150.00")) {
		t.Fatalf("rate = %s, want default 150.00", entry.BillableRate)
	}
	if !entry.ComputedAmount.Equal(mustDecimal(t, "112.50")) {
		t.Fatalf("amount = %s, want 112.50", entry.ComputedAmount)
	}
	if !entry.WorkDate.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("work date = %v, want start-of-day of session start", entry.WorkDate)
	}
	if entry.Description != "Timed work session" {
		t.Fatalf("default description missing: %q", entry.Description)
	}
	if !entry.IsBillable {
		t.Fatal("timer entries should default to billable")
	}
	if len(fs.created) != 1 {
		t.Fatalf("expected one persisted entry, got %d", len(fs.created))
	}

	// The session is gone; a second stop cannot double-bill.
	if _, err := svc.Stop(context.Background(), "nurse-1", StopRequest{SessionID: sess.SessionID}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second Stop: expected not found, got %v", err)
	}
}

func TestTimerStopRateOverride(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewTimerService(sessions.New(), &entryStore{}, mustDecimal(t, "150.00"), clock)

	sess, err := svc.Start(context.Background(), "nurse-1", "case-1", model.ActivityCourt)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.t = clock.t.Add(time.Hour)
	rate := mustDecimal(t, "225.00")
	entry, err := svc.Stop(context.Background(), "nurse-1", StopRequest{
		SessionID:   sess.SessionID,
		Description: "expert testimony",
		Rate:        &rate,
	})
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !entry.ComputedAmount.Equal(mustDecimal(t, "225.00")) {
		t.Fatalf("amount = %s, want 225.00", entry.ComputedAmount)
	}
	if entry.Description != "expert testimony" {
		t.Fatalf("description = %q", entry.Description)
	}
}

func TestTimerStopCapsForgottenTimer(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	fs := &entryStore{}
	svc := NewTimerService(sessions.New(), fs, mustDecimal(t, "150.00"), clock)

	sess, err := svc.Start(context.Background(), "nurse-1", "case-1", model.ActivityResearch)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// A timer left running overnight still stops, billed as one full day.
	clock.t = clock.t.Add(25 * time.Hour)
	entry, err := svc.Stop(context.Background(), "nurse-1", StopRequest{SessionID: sess.SessionID})
	if err != nil {
		t.Fatalf("Stop after 25h: %v", err)
	}
	if entry.Hours != 24 || entry.Minutes != 0 {
		t.Fatalf("capped duration = (%v, %d), want (24, 0)", entry.Hours, entry.Minutes)
	}
	if !entry.ComputedAmount.Equal(mustDecimal(t, "3600.00")) {
		t.Fatalf("amount = %s, want 3600.00", entry.ComputedAmount)
	}
	if len(fs.created) != 1 {
		t.Fatalf("expected one persisted entry, got %d", len(fs.created))
	}
	if _, running := svc.Active("nurse-1"); running {
		t.Fatal("session should be cleared after a successful stop")
	}
}

func TestTimerStopNegativeRateKeepsSession(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	fs := &entryStore{}
	svc := NewTimerService(sessions.New(), fs, mustDecimal(t, "150.00"), clock)

	sess, err := svc.Start(context.Background(), "nurse-1", "case-1", model.ActivityResearch)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.t = clock.t.Add(time.Hour)

	rate := mustDecimal(t, "-1.00")
	if _, err := svc.Stop(context.Background(), "nurse-1", StopRequest{SessionID: sess.SessionID, Rate: &rate}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("negative rate: expected validation error, got %v", err)
	}
	if len(fs.created) != 0 {
		t.Fatalf("no entry should be persisted, got %d", len(fs.created))
	}

	// The rejected stop must not lose the timed work.
	active, running := svc.Active("nurse-1")
	if !running || active.SessionID != sess.SessionID {
		t.Fatal("session should survive a rejected stop")
	}
	entry, err := svc.Stop(context.Background(), "nurse-1", StopRequest{SessionID: sess.SessionID})
	if err != nil {
		t.Fatalf("retry Stop: %v", err)
	}
	if !entry.ComputedAmount.Equal(mustDecimal(t, "150.00")) {
		t.Fatalf("amount = %s, want 150.00", entry.ComputedAmount)
	}
}

func TestTimerStopRestoresSessionOnStoreFailure(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	fs := &failingEntryStore{err: errors.New("database is locked")}
	svc := NewTimerService(sessions.New(), fs, mustDecimal(t, "150.00"), clock)

	sess, err := svc.Start(context.Background(), "nurse-1", "case-1", model.ActivityResearch)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.t = clock.t.Add(30 * time.Minute)

	if _, err := svc.Stop(context.Background(), "nurse-1", StopRequest{SessionID: sess.SessionID}); err == nil {
		t.Fatal("expected store error to propagate")
	}
	active, running := svc.Active("nurse-1")
	if !running || active.SessionID != sess.SessionID || !active.StartedAt.Equal(sess.StartedAt) {
		t.Fatal("session should be restored when the entry cannot be persisted")
	}
}

func TestTimerStartValidation(t *testing.T) {
	svc := NewTimerService(sessions.New(), &entryStore{}, mustDecimal(t, "150.00"), SystemClock{})

	if _, err := svc.Start(context.Background(), "", "case-1", model.ActivityResearch); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("empty user: expected validation error, got %v", err)
	}
	if _, err := svc.Start(context.Background(), "nurse-1", "", model.ActivityResearch); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("empty case: expected validation error, got %v", err)
	}
	if _, err := svc.Start(context.Background(), "nurse-1", "case-1", "paperwork"); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("unknown activity: expected validation error, got %v", err)
	}
}

func TestTimerSecondStartConflicts(t *testing.T) {
	svc := NewTimerService(sessions.New(), &entryStore{}, mustDecimal(t, "150.00"), SystemClock{})

	if _, err := svc.Start(context.Background(), "nurse-1", "case-1", model.ActivityResearch); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Start(context.Background(), "nurse-1", "case-2", model.ActivityReview); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("second Start: expected conflict, got %v", err)
	}
	if _, running := svc.Active("nurse-1"); !running {
		t.Fatal("Active should report the running session")
	}
}
