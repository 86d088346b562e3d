package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lncworks/casebilling/internal/api/recovery"
	"github.com/lncworks/casebilling/internal/auth"
	"github.com/lncworks/casebilling/internal/services"
)

// NewRouter wires HTTP routes to handlers. Everything under /api runs
// behind panic recovery, request metrics and the identity middleware.
func NewRouter(log zerolog.Logger, entries *services.TimeEntryService, timers *services.TimerService, invoices *services.InvoiceService, isHealthy func() bool) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware(log))
	root.Use(MetricsMiddleware)

	root.Handle("/metrics", promhttp.Handler()).Methods("GET")

	healthHandler := NewHealthHandler(isHealthy)
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	api := root.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware)

	// Time entries
	entryHandler := NewTimeEntryHandler(entries)
	api.HandleFunc("/time-entries", entryHandler.CreateTimeEntry).Methods("POST")
	api.HandleFunc("/time-entries", entryHandler.ListTimeEntries).Methods("GET")
	api.HandleFunc("/time-entries/export", entryHandler.ExportTimeEntries).Methods("GET")

	// Timer
	timerHandler := NewTimerHandler(timers)
	api.HandleFunc("/time-entries/timer", timerHandler.ActiveTimer).Methods("GET")
	api.HandleFunc("/time-entries/timer/start", timerHandler.StartTimer).Methods("POST")
	api.HandleFunc("/time-entries/timer/stop", timerHandler.StopTimer).Methods("POST")

	api.HandleFunc("/time-entries/{entryId}", entryHandler.GetTimeEntry).Methods("GET")
	api.HandleFunc("/time-entries/{entryId}", entryHandler.UpdateTimeEntry).Methods("PUT")
	api.HandleFunc("/time-entries/{entryId}", entryHandler.DeleteTimeEntry).Methods("DELETE")

	// Invoices
	invoiceHandler := NewInvoiceHandler(invoices, entries)
	api.HandleFunc("/invoices/generate", invoiceHandler.GenerateInvoice).Methods("POST")
	api.HandleFunc("/invoices/stats", invoiceHandler.BillingStats).Methods("GET")
	api.HandleFunc("/invoices", invoiceHandler.ListInvoices).Methods("GET")
	api.HandleFunc("/invoices/{invoiceId}", invoiceHandler.GetInvoice).Methods("GET")
	api.HandleFunc("/invoices/{invoiceId}/send", invoiceHandler.SendInvoice).Methods("POST")
	api.HandleFunc("/invoices/{invoiceId}/payment", invoiceHandler.RecordPayment).Methods("POST")
	api.HandleFunc("/invoices/{invoiceId}/void", invoiceHandler.VoidInvoice).Methods("POST")

	return root
}
