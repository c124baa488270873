package services

import (
	"fmt"
	"strings"

	"github.com/escrowbot/payments/internal/domain"
)

// FormatAmount renders integer cents as a human amount, e.g. "10.00 USD".
func FormatAmount(amountCents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", amountCents/100, amountCents%100, strings.ToUpper(currency))
}

// ConfirmationMessage is sent once a payment reaches confirmed and the
// balance has been credited.
func ConfirmationMessage(p *domain.Payment) string {
	return fmt.Sprintf(
		"Payment confirmed!\n\nAmount: %s\nPayment ID: %s\n\nYour balance has been updated.",
		FormatAmount(p.AmountCents, p.Currency),
		p.PaymentID,
	)
}

// ExpiryMessage is sent when the monitor expires a stale payment.
func ExpiryMessage(p *domain.Payment) string {
	return fmt.Sprintf(
		"Your payment %s for %s has expired. Please create a new deposit if you still want to top up.",
		p.PaymentID,
		FormatAmount(p.AmountCents, p.Currency),
	)
}

// StatusChangeMessage covers the remaining transitions.
func StatusChangeMessage(p *domain.Payment) string {
	return fmt.Sprintf(
		"Payment %s is now %s (%s).",
		p.PaymentID,
		p.Status,
		FormatAmount(p.AmountCents, p.Currency),
	)
}

// NotificationFor picks the message matching a payment's current status.
func NotificationFor(p *domain.Payment) string {
	switch p.Status {
	case domain.StatusConfirmed:
		return ConfirmationMessage(p)
	case domain.StatusExpired:
		return ExpiryMessage(p)
	default:
		return StatusChangeMessage(p)
	}
}
