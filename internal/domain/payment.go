// Package domain encodes the payment record and its status lifecycle.
package domain

import (
	"errors"
	"time"
)

// PaymentStatus represents the provider-reported state of a payment.
type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusWaiting    PaymentStatus = "waiting"
	StatusConfirming PaymentStatus = "confirming"
	StatusConfirmed  PaymentStatus = "confirmed"
	StatusFailed     PaymentStatus = "failed"
	StatusExpired    PaymentStatus = "expired"
)

// statusRank orders statuses along the lifecycle. A transition is only
// applied when the target rank is strictly greater than the current one,
// which makes duplicate and out-of-order updates collapse into no-ops.
var statusRank = map[PaymentStatus]int{
	StatusPending:    0,
	StatusWaiting:    1,
	StatusConfirming: 2,
	StatusConfirmed:  3,
	StatusFailed:     3,
	StatusExpired:    3,
}

// ParseStatus validates a provider status string against the known set.
func ParseStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(s)
	if _, ok := statusRank[status]; !ok {
		return "", ErrUnknownStatus
	}
	return status, nil
}

// Payment is the ledger record for one gateway payment. Exactly one record
// exists per gateway payment id; records are never deleted.
type Payment struct {
	PaymentID   string
	UserID      int64
	OrderID     string
	AmountCents int64
	Currency    string
	PayCurrency string
	Status      PaymentStatus
	InvoiceURL  string

	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt *time.Time
}

func NewPayment(paymentID string, userID int64, orderID string, amountCents int64, currency, payCurrency, invoiceURL string, status PaymentStatus) (*Payment, error) {
	if paymentID == "" {
		return nil, errors.New("payment ID is required")
	}
	if userID == 0 {
		return nil, errors.New("user ID is required")
	}
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now()
	return &Payment{
		PaymentID:   paymentID,
		UserID:      userID,
		OrderID:     orderID,
		AmountCents: amountCents,
		Currency:    currency,
		PayCurrency: payCurrency,
		Status:      status,
		InvoiceURL:  invoiceURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsTerminal reports whether no further transition is permitted.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case StatusConfirmed, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether target is a forward move from the current
// status. Terminal statuses accept nothing.
func (p *Payment) CanTransitionTo(target PaymentStatus) error {
	if _, ok := statusRank[target]; !ok {
		return ErrUnknownStatus
	}
	if p.IsTerminal() {
		return ErrTerminalStatus
	}
	if statusRank[target] <= statusRank[p.Status] {
		return ErrInvalidTransition
	}
	return nil
}

// Transition moves the payment to target and stamps UpdatedAt.
func (p *Payment) Transition(target PaymentStatus) error {
	if err := p.CanTransitionTo(target); err != nil {
		return err
	}
	p.Status = target
	p.UpdatedAt = time.Now()
	return nil
}

// Reconstitute - special constructor for loading from the database.
func Reconstitute(
	paymentID string, userID int64, orderID string,
	amountCents int64, currency, payCurrency string,
	status PaymentStatus, invoiceURL string,
	createdAt, updatedAt time.Time, expiresAt *time.Time,
) *Payment {
	return &Payment{
		PaymentID:   paymentID,
		UserID:      userID,
		OrderID:     orderID,
		AmountCents: amountCents,
		Currency:    currency,
		PayCurrency: payCurrency,
		Status:      status,
		InvoiceURL:  invoiceURL,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		ExpiresAt:   expiresAt,
	}
}
