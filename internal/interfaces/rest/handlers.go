package rest

import (
	"log/slog"
	"net/http"

	"github.com/escrowbot/payments/internal/application/services"
)

type Handlers struct {
	webhooks *services.WebhookService
	deposits *services.DepositService
	query    *services.QueryService
	logger   *slog.Logger
}

func NewHandlers(
	webhooks *services.WebhookService,
	deposits *services.DepositService,
	query *services.QueryService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		webhooks: webhooks,
		deposits: deposits,
		query:    query,
		logger:   logger,
	}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /deposits", h.handleCreateDeposit)
	mux.HandleFunc("POST /webhook/nowpayments", h.handleWebhook)
	mux.HandleFunc("GET /webhook/success", h.handleSuccessRedirect)
	mux.HandleFunc("GET /webhook/cancel", h.handleCancelRedirect)
	mux.HandleFunc("GET /admin/payments/{id}", h.handleGetPayment)
	mux.HandleFunc("POST /admin/payments/{id}/check", h.handleForceCheck)
	mux.HandleFunc("GET /health", h.handleHealth)
}

func (h *Handlers) handleSuccessRedirect(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Payment completed successfully",
	})
}

func (h *Handlers) handleCancelRedirect(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "cancelled",
		"message": "Payment was cancelled",
	})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
