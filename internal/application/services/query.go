package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/escrowbot/payments/internal/application"
	"github.com/escrowbot/payments/internal/domain"
)

// QueryService backs the admin support surface: ledger lookups and forced
// verification of a single payment against the provider.
type QueryService struct {
	repo     application.PaymentRepository
	gateway  application.GatewayClient
	notifier application.Notifier
	logger   *slog.Logger
}

func NewQueryService(repo application.PaymentRepository, gateway application.GatewayClient, notifier application.Notifier, logger *slog.Logger) *QueryService {
	return &QueryService{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *QueryService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, application.ErrPaymentNotFound) {
			return nil, application.NewNotFoundError(paymentID)
		}
		return nil, application.NewStorageError(err)
	}
	return payment, nil
}

func (s *QueryService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return 0, application.NewStorageError(err)
	}
	return balance, nil
}

// ForceCheck verifies one payment against the provider immediately and
// applies the resulting transition, bypassing the monitor's schedule.
func (s *QueryService) ForceCheck(ctx context.Context, paymentID string) (*TransitionOutcome, error) {
	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.IsTerminal() {
		return &TransitionOutcome{Payment: payment}, nil
	}

	state, err := s.gateway.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	status, err := domain.ParseStatus(state.Status)
	if err != nil {
		return nil, &application.PaymentError{
			Kind:      application.KindValidation,
			PaymentID: paymentID,
			Message:   "provider returned unknown status: " + state.Status,
		}
	}

	outcome, err := ApplyPaymentStatus(ctx, s.repo, paymentID, status)
	if err != nil {
		return nil, err
	}

	if outcome.Applied {
		s.logger.Info("forced status check applied transition",
			"payment_id", paymentID,
			"new_status", status,
		)

		// A forced check is still a real transition; the user hears about it
		// the same way they would from a webhook or the monitor.
		if err := s.notifier.Notify(ctx, outcome.Payment.UserID, NotificationFor(outcome.Payment)); err != nil {
			s.logger.Warn("failed to notify user of status change",
				"payment_id", paymentID,
				"user_id", outcome.Payment.UserID,
				"error", err,
			)
		}
	}

	return outcome, nil
}
