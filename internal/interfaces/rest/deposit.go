package rest

import (
	"encoding/json"
	"net/http"

	"github.com/escrowbot/payments/internal/application"
)

type depositRequest struct {
	UserID      int64  `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	PayCurrency string `json:"pay_currency"`
}

// handleCreateDeposit is the surface the bot front-end calls when a user
// starts a top-up. It returns the invoice URL to present to the user.
func (h *Handlers) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, application.NewValidationError("malformed deposit request"), h.logger)
		return
	}

	if req.UserID == 0 || req.AmountCents <= 0 {
		WriteError(w, application.NewValidationError("user_id and amount_cents are required"), h.logger)
		return
	}

	if req.PayCurrency == "" {
		req.PayCurrency = "usdttrc20"
	}

	payment, err := h.deposits.CreateDeposit(r.Context(), req.UserID, req.AmountCents, req.PayCurrency)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, toPaymentResponse(payment))
}
