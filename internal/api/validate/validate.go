package validate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lncworks/casebilling/internal/billing"
	"github.com/lncworks/casebilling/internal/model"
)

const dateLayout = "2006-01-02"

// Date parses a calendar date in YYYY-MM-DD form.
func Date(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a YYYY-MM-DD date", field)
	}
	return t, nil
}

// OptionalDate parses a date filter, returning nil when absent.
func OptionalDate(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := Date(field, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func NonEmpty(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// TimeEntry validates the writable fields of a manual time entry.
// Field-level messages surface to the caller; the error class is always
// model.ErrValidation.
func TimeEntry(caseID, description, activityType string, hours float64, minutes int, rate decimal.Decimal) error {
	if err := NonEmpty("caseId", caseID); err != nil {
		return err
	}
	if err := NonEmpty("description", description); err != nil {
		return err
	}
	if !model.ValidActivityType(activityType) {
		return fmt.Errorf("unknown activityType %q", activityType)
	}
	if hours < 0 || hours > 24 {
		return fmt.Errorf("hours must be within [0,24]")
	}
	if !billing.ValidMinutes(minutes) {
		return fmt.Errorf("minutes must be one of 0,15,30,45")
	}
	if rate.IsNegative() {
		return fmt.Errorf("billableRate must not be negative")
	}
	return nil
}
