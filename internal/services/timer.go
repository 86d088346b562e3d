package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lncworks/casebilling/internal/billing"
	"github.com/lncworks/casebilling/internal/model"
	"github.com/lncworks/casebilling/internal/sessions"
	"github.com/lncworks/casebilling/internal/store"
)

// TimerService owns the server-authoritative start/stop pair. Elapsed
// time is always now-startedAt on the server clock, never an accumulation
// of client ticks.
type TimerService struct {
	sessions    *sessions.Store
	store       store.Store
	clock       Clock
	defaultRate decimal.Decimal
}

func NewTimerService(sess *sessions.Store, s store.Store, defaultRate decimal.Decimal, clock Clock) *TimerService {
	return &TimerService{sessions: sess, store: s, clock: clock, defaultRate: defaultRate}
}

// Start opens a running session for the user. A second start while one is
// running fails with ErrConflict.
func (s *TimerService) Start(ctx context.Context, userID, caseID string, activity model.ActivityType) (*model.TimerSession, error) {
	if userID == "" || caseID == "" {
		return nil, fmt.Errorf("%w: userId and caseId are required", model.ErrValidation)
	}
	if !model.ValidActivityType(string(activity)) {
		return nil, fmt.Errorf("%w: unknown activityType %q", model.ErrValidation, activity)
	}
	return s.sessions.Start(userID, caseID, activity, s.clock.Now())
}

// StopRequest carries the optional overrides accepted when stopping a
// timer. Rate defaults to the firm's configured hourly rate.
type StopRequest struct {
	SessionID   string
	Description string
	Rate        *decimal.Decimal
}

// maxTimerElapsed caps how much wall time a single stop can bill. A timer
// left running longer still stops cleanly and yields a full 24h entry.
const maxTimerElapsed = 24 * time.Hour

// Stop materializes the session into a billable TimeEntry. Inputs are
// validated before the session is removed, so a rejected stop leaves the
// timer running and the work recoverable.
func (s *TimerService) Stop(ctx context.Context, userID string, req StopRequest) (*model.TimeEntry, error) {
	rate := s.defaultRate
	if req.Rate != nil {
		rate = *req.Rate
	}
	if rate.IsNegative() {
		return nil, fmt.Errorf("%w: billableRate must not be negative, got %s", model.ErrValidation, rate)
	}

	sess, err := s.sessions.Stop(userID, req.SessionID)
	if err != nil {
		return nil, err
	}

	elapsed := s.clock.Now().Sub(sess.StartedAt)
	if elapsed > maxTimerElapsed {
		elapsed = maxTimerElapsed
	}
	hours, minutes := billing.BucketDuration(elapsed)

	amount, err := billing.Amount(hours, minutes, rate)
	if err != nil {
		s.sessions.Restore(sess)
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "Timed work session"
	}

	y, m, d := sess.StartedAt.UTC().Date()
	entry := &model.TimeEntry{
		CaseID:         sess.CaseID,
		UserID:         sess.UserID,
		Description:    description,
		ActivityType:   sess.ActivityType,
		WorkDate:       time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Hours:          hours,
		Minutes:        minutes,
		BillableRate:   rate,
		IsBillable:     true,
		ComputedAmount: amount,
	}
	created, err := s.store.Entries().Create(ctx, entry)
	if err != nil {
		s.sessions.Restore(sess)
		return nil, err
	}
	return created, nil
}

// Active returns the caller's running session, if any.
func (s *TimerService) Active(userID string) (*model.TimerSession, bool) {
	return s.sessions.Active(userID)
}
