package rest

import (
	"io"
	"net/http"

	"github.com/escrowbot/payments/internal/application"
)

// signatureHeader carries the provider's HMAC digest of the raw body.
const signatureHeader = "x-nowpayments-sig"

const maxWebhookBody = 1 << 20

type webhookResponse struct {
	Status    string `json:"status"`
	PaymentID string `json:"payment_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
}

func (h *Handlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		WriteError(w, application.NewValidationError("unreadable webhook body"), h.logger)
		return
	}

	if len(body) == 0 {
		WriteError(w, application.NewValidationError("empty webhook payload"), h.logger)
		return
	}

	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		WriteError(w, application.NewValidationError("missing signature header"), h.logger)
		return
	}

	result, err := h.webhooks.ProcessWebhook(r.Context(), body, signature)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	// Duplicate deliveries and post-commit notification failures both still
	// acknowledge with 200 so the provider stops retrying.
	WriteJSON(w, http.StatusOK, webhookResponse{
		Status:    "success",
		PaymentID: result.PaymentID,
		Duplicate: !result.Applied,
		Degraded:  result.NotifyErr != nil,
	})
}
