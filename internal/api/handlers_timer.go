package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	respond "github.com/lncworks/casebilling/internal/api/respond"
	"github.com/lncworks/casebilling/internal/auth"
	"github.com/lncworks/casebilling/internal/model"
	"github.com/lncworks/casebilling/internal/services"
)

// TimerHandler exposes the server-authoritative timer start/stop pair.
type TimerHandler struct {
	svc *services.TimerService
}

func NewTimerHandler(svc *services.TimerService) *TimerHandler { return &TimerHandler{svc: svc} }

// StartTimer POST /api/time-entries/timer/start
func (h *TimerHandler) StartTimer(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCap(w, r, auth.OpWriteEntries)
	if !ok {
		return
	}
	var req struct {
		CaseID       string `json:"caseId"`
		ActivityType string `json:"activityType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	sess, err := h.svc.Start(r.Context(), actor.UserID, req.CaseID, model.ActivityType(req.ActivityType))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, sess)
}

// StopTimer POST /api/time-entries/timer/stop
func (h *TimerHandler) StopTimer(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCap(w, r, auth.OpWriteEntries)
	if !ok {
		return
	}
	var req struct {
		SessionID    string           `json:"sessionId"`
		Description  string           `json:"description"`
		BillableRate *decimal.Decimal `json:"billableRate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	entry, err := h.svc.Stop(r.Context(), actor.UserID, services.StopRequest{
		SessionID:   req.SessionID,
		Description: req.Description,
		Rate:        req.BillableRate,
	})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, entry)
}

// ActiveTimer GET /api/time-entries/timer
func (h *TimerHandler) ActiveTimer(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireCap(w, r, auth.OpReadBilling)
	if !ok {
		return
	}
	sess, running := h.svc.Active(actor.UserID)
	if !running {
		respond.WriteNotFound(w, "no running timer")
		return
	}
	respond.WriteJSON(w, http.StatusOK, sess)
}
