package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/escrowbot/payments/internal/application"
	"github.com/escrowbot/payments/internal/config"
	"github.com/escrowbot/payments/internal/domain"
	"github.com/escrowbot/payments/internal/infrastructure/nowpayments"
)

// WebhookService authenticates and applies asynchronous status pushes from
// the provider. Processing is idempotent: redelivering the same payload
// changes nothing and still succeeds.
type WebhookService struct {
	repo     application.PaymentRepository
	notifier application.Notifier
	secret   string
	logger   *slog.Logger
}

func NewWebhookService(
	repo application.PaymentRepository,
	notifier application.Notifier,
	cfg config.WebhookConfig,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		repo:     repo,
		notifier: notifier,
		secret:   cfg.Secret,
		logger:   logger,
	}
}

// WebhookResult is returned on success. NotifyErr carries a notification
// failure that happened after the ledger commit; the commit stands.
type WebhookResult struct {
	PaymentID string
	Status    domain.PaymentStatus
	Applied   bool
	Credited  bool
	NotifyErr error
}

func (s *WebhookService) ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*WebhookResult, error) {
	if err := s.verifySignature(rawBody, signature); err != nil {
		s.logger.Error("webhook signature verification failed", "error", err)
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(rawBody, &data); err != nil {
		return nil, application.NewValidationError("malformed webhook payload")
	}

	paymentID, rawStatus, err := nowpayments.ValidateWebhookPayload(data)
	if err != nil {
		return nil, err
	}

	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return nil, &application.PaymentError{
			Kind:      application.KindValidation,
			PaymentID: paymentID,
			Message:   "unknown payment status: " + rawStatus,
		}
	}

	s.logger.Info("processing webhook", "payment_id", paymentID, "status", status)

	outcome, err := ApplyPaymentStatus(ctx, s.repo, paymentID, status)
	if err != nil {
		return nil, err
	}

	result := &WebhookResult{
		PaymentID: paymentID,
		Status:    outcome.Payment.Status,
		Applied:   outcome.Applied,
		Credited:  outcome.Credited,
	}

	if !outcome.Applied {
		s.logger.Info("duplicate webhook delivery ignored",
			"payment_id", paymentID,
			"current_status", outcome.Payment.Status,
			"pushed_status", status,
		)
		return result, nil
	}

	if outcome.Credited {
		s.logger.Info("balance credited",
			"payment_id", paymentID,
			"user_id", outcome.Payment.UserID,
			"amount_cents", outcome.Payment.AmountCents,
		)
	}

	// Notification happens outside the transaction; a delivery failure must
	// never roll back the ledger mutation.
	if err := s.notifier.Notify(ctx, outcome.Payment.UserID, NotificationFor(outcome.Payment)); err != nil {
		s.logger.Warn("failed to notify user of status change",
			"payment_id", paymentID,
			"user_id", outcome.Payment.UserID,
			"error", err,
		)
		result.NotifyErr = err
	}

	return result, nil
}

// verifySignature checks the HMAC-SHA512 hex digest of the raw body against
// the shared IPN secret using a constant-time compare. An unset secret
// rejects everything rather than accepting everything.
func (s *WebhookService) verifySignature(rawBody []byte, signature string) error {
	if s.secret == "" {
		return application.NewAuthenticationError("webhook secret not configured")
	}
	if signature == "" {
		return application.NewAuthenticationError("missing webhook signature")
	}

	mac := hmac.New(sha512.New, []byte(s.secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return application.NewAuthenticationError("invalid webhook signature")
	}

	return nil
}
