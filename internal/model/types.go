package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivityType categorizes the work recorded by a time entry.
type ActivityType string

const (
	ActivityResearch       ActivityType = "research"
	ActivityReview         ActivityType = "review"
	ActivityAnalysis       ActivityType = "analysis"
	ActivityCommunication  ActivityType = "communication"
	ActivityDocumentation  ActivityType = "documentation"
	ActivityMeeting        ActivityType = "meeting"
	ActivityCourt          ActivityType = "court"
	ActivityTravel         ActivityType = "travel"
	ActivityAdministrative ActivityType = "administrative"
	ActivityOther          ActivityType = "other"
)

// ValidActivityType reports whether s is one of the canonical activity types.
func ValidActivityType(s string) bool {
	switch ActivityType(s) {
	case ActivityResearch, ActivityReview, ActivityAnalysis, ActivityCommunication,
		ActivityDocumentation, ActivityMeeting, ActivityCourt, ActivityTravel,
		ActivityAdministrative, ActivityOther:
		return true
	}
	return false
}

// BillingStatus tracks whether a time entry has been picked up by an invoice.
type BillingStatus string

const (
	BillingUnbilled BillingStatus = "unbilled"
	BillingInvoiced BillingStatus = "invoiced"
	BillingVoided   BillingStatus = "voided"
)

// TimeEntry is a discrete, dated record of work with a duration and a
// billing disposition. Case and user references are opaque; validating
// their existence belongs to the case/user services.
type TimeEntry struct {
	EntryID        string          `json:"entryId"`
	CaseID         string          `json:"caseId"`
	UserID         string          `json:"userId"`
	Description    string          `json:"description"`
	ActivityType   ActivityType    `json:"activityType"`
	WorkDate       time.Time       `json:"workDate"`
	Hours          float64         `json:"hours"`
	Minutes        int             `json:"minutes"`
	BillableRate   decimal.Decimal `json:"billableRate"`
	IsBillable     bool            `json:"isBillable"`
	ComputedAmount decimal.Decimal `json:"computedAmount"`
	BillingStatus  BillingStatus   `json:"billingStatus"`
	InvoiceID      *string         `json:"invoiceId,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	CreationTime   time.Time       `json:"creationTime"`
	UpdateTime     time.Time       `json:"updateTime"`
}

// Mutable reports whether the entry may still be edited or deleted.
// Entries leave the unbilled state exactly once, via invoice generation,
// and only a void cascade may touch them afterwards.
func (e *TimeEntry) Mutable() bool { return e.BillingStatus == BillingUnbilled }

// TimerSession is an in-progress measurement of elapsed work time for one
// user. Sessions are ephemeral: they live in fast in-memory storage keyed
// by user id and losing one on restart loses only an in-progress timer.
type TimerSession struct {
	SessionID    string       `json:"sessionId"`
	UserID       string       `json:"userId"`
	CaseID       string       `json:"caseId"`
	ActivityType ActivityType `json:"activityType"`
	StartedAt    time.Time    `json:"startedAt"`
}

// InvoiceStatus is the payment-lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
	InvoiceVoid    InvoiceStatus = "void"
)

// Invoice aggregates unbilled time entries for a case. TotalAmount is
// frozen at generation time; voiding retains it for audit and only flips
// the status while reverting line items to unbilled.
type Invoice struct {
	InvoiceID     string          `json:"invoiceId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	CaseID        string          `json:"caseId"`
	ClientID      string          `json:"clientId"`
	LineItemIDs   []string        `json:"lineItemIds"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        InvoiceStatus   `json:"status"`
	IssuedAt      time.Time       `json:"issuedAt"`
	DueDate       *time.Time      `json:"dueDate,omitempty"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	UpdateTime    time.Time       `json:"updateTime"`
}

// Terminal reports whether no further status transition may leave s.
func (s InvoiceStatus) Terminal() bool { return s == InvoicePaid || s == InvoiceVoid }

// Voidable reports whether an invoice in status s may be voided.
func (s InvoiceStatus) Voidable() bool {
	return s == InvoiceDraft || s == InvoicePending || s == InvoiceOverdue
}

// Payable reports whether an invoice in status s may accept a payment.
func (s InvoiceStatus) Payable() bool { return s == InvoicePending || s == InvoiceOverdue }

// PastDue reports whether a pending invoice should be considered overdue
// at the given instant. It is a pure function of (status, dueDate, now).
func (i *Invoice) PastDue(now time.Time) bool {
	return i.Status == InvoicePending && i.DueDate != nil && i.DueDate.Before(now)
}

// ListEntriesRequest captures the filters used when listing time entries.
type ListEntriesRequest struct {
	CaseID        string
	UserID        string
	From          *time.Time
	To            *time.Time
	BillingStatus *BillingStatus
	Billable      *bool
	Limit         int
}

// StatsRequest scopes a billing rollup. Zero values mean "all entries".
type StatsRequest struct {
	CaseID string
	From   *time.Time
	To     *time.Time
}

// BillingStats is a read-only rollup over the time-entry store.
type BillingStats struct {
	UnbilledAmount decimal.Decimal `json:"unbilledAmount"`
	BillableHours  decimal.Decimal `json:"billableHours"`
	AverageRate    decimal.Decimal `json:"averageRate"`
}

// GenerateInvoiceRequest selects unbilled billable entries for one case
// within an inclusive date range.
type GenerateInvoiceRequest struct {
	CaseID   string
	ClientID string
	From     time.Time
	To       time.Time
}
