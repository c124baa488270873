package application

import (
	"context"
	"time"

	"github.com/escrowbot/payments/internal/domain"
)

// InvoiceRequest carries the parameters for creating a provider invoice.
type InvoiceRequest struct {
	UserID      int64
	AmountCents int64
	// PayCurrency is the crypto currency the user pays with, e.g. usdttrc20.
	PayCurrency string
}

// Invoice is the adapter-normalized result of invoice creation.
type Invoice struct {
	PaymentID  string
	InvoiceURL string
	// Status is empty when the creation response carried none; callers
	// fall back to pending.
	Status  string
	OrderID string
}

// PaymentState is the adapter-normalized result of a status query.
type PaymentState struct {
	PaymentID string
	Status    string
}

// GatewayClient is the port for the payment provider. Implementations absorb
// transient failures internally and surface only classified errors.
type GatewayClient interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentState, error)
}

// PaymentRepository is the port for the ledger store. Mutating calls made
// inside WithTx share one database transaction; the store's transaction
// isolation is the sole concurrency-correctness mechanism.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	FindByID(ctx context.Context, paymentID string) (*domain.Payment, error)
	// FindByIDForUpdate takes a row-level lock; only meaningful inside WithTx.
	FindByIDForUpdate(ctx context.Context, paymentID string) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, payment *domain.Payment) error
	// FindReconcilable returns non-terminal payments created at or after
	// horizon, oldest first.
	FindReconcilable(ctx context.Context, horizon time.Time, limit int) ([]*domain.Payment, error)
	// ExpireOlderThan transitions every non-terminal payment created before
	// cutoff to expired in one statement and returns the affected records.
	ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Payment, error)
	CreditBalance(ctx context.Context, userID int64, amountCents int64) error
	GetBalance(ctx context.Context, userID int64) (int64, error)
	WithTx(ctx context.Context, fn func(repo PaymentRepository) error) error
}

// Notifier is the fire-and-forget user notification sink. Failures are
// logged by callers, never propagated past a ledger commit.
type Notifier interface {
	Notify(ctx context.Context, userID int64, message string) error
}
