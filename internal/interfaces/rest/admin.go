package rest

import (
	"net/http"
	"time"

	"github.com/escrowbot/payments/internal/application"
	"github.com/escrowbot/payments/internal/domain"
)

type paymentResponse struct {
	PaymentID   string     `json:"payment_id"`
	UserID      int64      `json:"user_id"`
	OrderID     string     `json:"order_id"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	PayCurrency string     `json:"pay_currency"`
	Status      string     `json:"status"`
	InvoiceURL  string     `json:"invoice_url"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func toPaymentResponse(p *domain.Payment) paymentResponse {
	return paymentResponse{
		PaymentID:   p.PaymentID,
		UserID:      p.UserID,
		OrderID:     p.OrderID,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		PayCurrency: p.PayCurrency,
		Status:      string(p.Status),
		InvoiceURL:  p.InvoiceURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		ExpiresAt:   p.ExpiresAt,
	}
}

func (h *Handlers) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("id")
	if paymentID == "" {
		WriteError(w, application.NewValidationError("missing payment id"), h.logger)
		return
	}

	payment, err := h.query.GetPayment(r.Context(), paymentID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handlers) handleForceCheck(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("id")
	if paymentID == "" {
		WriteError(w, application.NewValidationError("missing payment id"), h.logger)
		return
	}

	outcome, err := h.query.ForceCheck(r.Context(), paymentID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"payment": toPaymentResponse(outcome.Payment),
		"applied": outcome.Applied,
	})
}
