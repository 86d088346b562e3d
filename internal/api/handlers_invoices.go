package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	respond "github.com/lncworks/casebilling/internal/api/respond"
	"github.com/lncworks/casebilling/internal/api/validate"
	"github.com/lncworks/casebilling/internal/auth"
	"github.com/lncworks/casebilling/internal/model"
	"github.com/lncworks/casebilling/internal/services"
)

// InvoiceHandler is a thin HTTP transport over InvoiceService plus the
// billing stats rollup.
type InvoiceHandler struct {
	svc   *services.InvoiceService
	stats *services.TimeEntryService
}

func NewInvoiceHandler(svc *services.InvoiceService, stats *services.TimeEntryService) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, stats: stats}
}

// GenerateInvoice POST /api/invoices/generate
func (h *InvoiceHandler) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCap(w, r, auth.OpManageInvoices); !ok {
		return
	}
	var req struct {
		CaseID   string `json:"caseId"`
		ClientID string `json:"clientId"`
		From     string `json:"from"`
		To       string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	from, err := validate.Date("from", req.From)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	to, err := validate.Date("to", req.To)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	inv, err := h.svc.Generate(r.Context(), model.GenerateInvoiceRequest{
		CaseID:   req.CaseID,
		ClientID: req.ClientID,
		From:     from,
		To:       to,
	})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, inv)
}

// ListInvoices GET /api/invoices
func (h *InvoiceHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCap(w, r, auth.OpReadBilling); !ok {
		return
	}
	invs, err := h.svc.List(r.Context(), r.URL.Query().Get("caseId"))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"invoices": invs, "count": len(invs)})
}

// GetInvoice GET /api/invoices/{invoiceId}
func (h *InvoiceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCap(w, r, auth.OpReadBilling); !ok {
		return
	}
	inv, err := h.svc.Get(r.Context(), mux.Vars(r)["invoiceId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, inv)
}

// SendInvoice POST /api/invoices/{invoiceId}/send
func (h *InvoiceHandler) SendInvoice(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCap(w, r, auth.OpManageInvoices); !ok {
		return
	}
	inv, err := h.svc.Send(r.Context(), mux.Vars(r)["invoiceId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, inv)
}

// RecordPayment POST /api/invoices/{invoiceId}/payment
func (h *InvoiceHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCap(w, r, auth.OpManageInvoices); !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	inv, err := h.svc.RecordPayment(r.Context(), mux.Vars(r)["invoiceId"], req.Amount)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, inv)
}

// VoidInvoice POST /api/invoices/{invoiceId}/void
func (h *InvoiceHandler) VoidInvoice(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCap(w, r, auth.OpVoidInvoice); !ok {
		return
	}
	inv, err := h.svc.Void(r.Context(), mux.Vars(r)["invoiceId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, inv)
}

// BillingStats GET /api/invoices/stats
func (h *InvoiceHandler) BillingStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCap(w, r, auth.OpReadBilling); !ok {
		return
	}
	q := r.URL.Query()
	req := model.StatsRequest{CaseID: q.Get("caseId")}
	var err error
	if req.From, err = validate.OptionalDate("from", q.Get("from")); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if req.To, err = validate.OptionalDate("to", q.Get("to")); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	stats, err := h.stats.Stats(r.Context(), req)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, stats)
}
