package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	respond "github.com/lncworks/casebilling/internal/api/respond"
	"github.com/lncworks/casebilling/internal/api/validate"
	"github.com/lncworks/casebilling/internal/auth"
	"github.com/lncworks/casebilling/internal/billing"
	"github.com/lncworks/casebilling/internal/model"
	"github.com/lncworks/casebilling/internal/services"
)

// TimeEntryHandler is a thin HTTP transport over TimeEntryService.
type TimeEntryHandler struct {
	svc *services.TimeEntryService
}

func NewTimeEntryHandler(svc *services.TimeEntryService) *TimeEntryHandler {
	return &TimeEntryHandler{svc: svc}
}

// requireCap resolves the caller and enforces the role capability check.
func requireCap(w http.ResponseWriter, r *http.Request, op auth.Operation) (auth.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "caller identity missing")
		return actor, false
	}
	if !actor.Role.Can(op) {
		respond.WriteForbidden(w, "role "+string(actor.Role)+" may not perform "+string(op))
		return actor, false
	}
	return actor, true
}

type timeEntryRequest struct {
	CaseID       string          `json:"caseId"`
	Description  string          `json:"description"`
	ActivityType string          `json:"activityType"`
	Date         string          `json:"date"`
	Hours        float64         `json:"hours"`
	Minutes      int             `json:"minutes"`
	BillableRate decimal.Decimal `json:"billableRate"`
	IsBillable   *bool           `json:"isBillable"`
	Notes        *string         `json:"notes"`
}

// CreateTimeEntry POST /api/time-entries
func (h *TimeEntryHandler) CreateTimeEntry(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCap(w, r, auth.OpWriteEntries)
	if !ok {
		return
	}
	var req timeEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.TimeEntry(req.CaseID, req.Description, req.ActivityType, req.Hours, req.Minutes, req.BillableRate); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	workDate, err := validate.Date("date", req.Date)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	billable := true
	if req.IsBillable != nil {
		billable = *req.IsBillable
	}
	entry := &model.TimeEntry{
		CaseID:       req.CaseID,
		UserID:       actor.UserID,
		Description:  req.Description,
		ActivityType: model.ActivityType(req.ActivityType),
		WorkDate:     workDate,
		Hours:        req.Hours,
		Minutes:      req.Minutes,
		BillableRate: req.BillableRate,
		IsBillable:   billable,
		Notes:        req.Notes,
	}
	out, err := h.svc.Create(r.Context(), entry)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// listRequest builds the shared entry filter from query parameters.
func listRequest(r *http.Request) (model.ListEntriesRequest, error) {
	q := r.URL.Query()
	req := model.ListEntriesRequest{
		CaseID: q.Get("caseId"),
		UserID: q.Get("userId"),
	}
	var err error
	if req.From, err = validate.OptionalDate("from", q.Get("from")); err != nil {
		return req, err
	}
	if req.To, err = validate.OptionalDate("to", q.Get("to")); err != nil {
		return req, err
	}
	if v := q.Get("billingStatus"); v != "" {
		status := model.BillingStatus(v)
		req.BillingStatus = &status
	}
	if v := q.Get("billable"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, err
		}
		req.Billable = &b
	}
	if v := q.Get("limit"); v != "" {
		if req.Limit, err = strconv.Atoi(v); err != nil {
			return req, err
		}
	}
	return req, nil
}

// ListTimeEntries GET /api/time-entries
func (h *TimeEntryHandler) ListTimeEntries(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCap(w, r, auth.OpReadBilling); !ok {
		return
	}
	req, err := listRequest(r)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	entries, err := h.svc.List(r.Context(), req)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
}

// GetTimeEntry GET /api/time-entries/{entryId}
func (h *TimeEntryHandler) GetTimeEntry(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCap(w, r, auth.OpReadBilling); !ok {
		return
	}
	entry, err := h.svc.Get(r.Context(), mux.Vars(r)["entryId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, entry)
}

// UpdateTimeEntry PUT /api/time-entries/{entryId}
func (h *TimeEntryHandler) UpdateTimeEntry(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCap(w, r, auth.OpWriteEntries); !ok {
		return
	}
	entryID := mux.Vars(r)["entryId"]
	var req timeEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.TimeEntry(req.CaseID, req.Description, req.ActivityType, req.Hours, req.Minutes, req.BillableRate); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	workDate, err := validate.Date("date", req.Date)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	billable := true
	if req.IsBillable != nil {
		billable = *req.IsBillable
	}
	entry := &model.TimeEntry{
		EntryID:      entryID,
		CaseID:       req.CaseID,
		Description:  req.Description,
		ActivityType: model.ActivityType(req.ActivityType),
		WorkDate:     workDate,
		Hours:        req.Hours,
		Minutes:      req.Minutes,
		BillableRate: req.BillableRate,
		IsBillable:   billable,
		Notes:        req.Notes,
	}
	out, err := h.svc.Update(r.Context(), entry)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// DeleteTimeEntry DELETE /api/time-entries/{entryId}
func (h *TimeEntryHandler) DeleteTimeEntry(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCap(w, r, auth.OpWriteEntries); !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["entryId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportTimeEntries GET /api/time-entries/export
func (h *TimeEntryHandler) ExportTimeEntries(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCap(w, r, auth.OpReadBilling); !ok {
		return
	}
	req, err := listRequest(r)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	// Read the snapshot before committing to a CSV response, so store
	// failures still produce a JSON error instead of a half-written file.
	entries, err := h.svc.List(r.Context(), req)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="time-entries.csv"`)
	if err := billing.WriteCSV(w, entries); err != nil {
		// headers are on the wire; log and truncate rather than mix formats
		log.Error().Err(err).Msg("time entry export aborted")
	}
}
