package billing

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/lncworks/casebilling/internal/model"
)

// CSVHeader is the fixed column order of a time-entry export.
var CSVHeader = []string{
	"Date", "Case Number", "Description", "Activity Type",
	"Hours", "Minutes", "Billable Rate", "Amount", "Billable (Y/N)",
}

// CSVRow renders one entry in CSVHeader order.
func CSVRow(e *model.TimeEntry) []string {
	billable := "N"
	if e.IsBillable {
		billable = "Y"
	}
	return []string{
		e.WorkDate.Format("2006-01-02"),
		e.CaseID,
		e.Description,
		string(e.ActivityType),
		strconv.FormatFloat(e.Hours, 'f', -1, 64),
		strconv.Itoa(e.Minutes),
		e.BillableRate.StringFixed(2),
		e.ComputedAmount.StringFixed(2),
		billable,
	}
}

// WriteCSV streams the given entries to w with a header row, CRLF line
// endings and standard CSV quoting (fields containing the delimiter, a
// quote or a newline are wrapped in double quotes with inner quotes
// doubled). It never mutates the entries and may be re-run freely.
func WriteCSV(w io.Writer, entries []*model.TimeEntry) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(CSVRow(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
