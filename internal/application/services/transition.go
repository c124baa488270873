package services

import (
	"context"
	"errors"

	"github.com/escrowbot/payments/internal/application"
	"github.com/escrowbot/payments/internal/domain"
)

// TransitionOutcome reports what one idempotent status transition did.
type TransitionOutcome struct {
	Payment  *domain.Payment
	Applied  bool
	Credited bool
}

// ApplyPaymentStatus moves a payment to newStatus inside one ledger
// transaction. Duplicate or regressing updates are no-ops reported as
// success; a transition to confirmed credits the user balance in the same
// transaction, which is what makes the credit happen at most once per
// payment no matter how many times the same update arrives.
func ApplyPaymentStatus(ctx context.Context, repo application.PaymentRepository, paymentID string, newStatus domain.PaymentStatus) (*TransitionOutcome, error) {
	outcome := &TransitionOutcome{}

	err := repo.WithTx(ctx, func(txRepo application.PaymentRepository) error {
		payment, err := txRepo.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			if errors.Is(err, application.ErrPaymentNotFound) {
				return application.NewNotFoundError(paymentID)
			}
			return application.NewStorageError(err)
		}
		outcome.Payment = payment

		if err := payment.CanTransitionTo(newStatus); err != nil {
			if errors.Is(err, domain.ErrUnknownStatus) {
				return application.NewValidationError("unknown payment status")
			}
			// Duplicate delivery or out-of-order update.
			return nil
		}

		if err := payment.Transition(newStatus); err != nil {
			return application.NewStorageError(err)
		}

		if err := txRepo.UpdateStatus(ctx, payment); err != nil {
			return application.NewStorageError(err)
		}
		outcome.Applied = true

		if newStatus == domain.StatusConfirmed {
			if err := txRepo.CreditBalance(ctx, payment.UserID, payment.AmountCents); err != nil {
				return application.NewStorageError(err)
			}
			outcome.Credited = true
		}

		return nil
	})
	if err != nil {
		if _, ok := application.IsPaymentError(err); ok {
			return nil, err
		}
		return nil, application.NewStorageError(err)
	}

	return outcome, nil
}
