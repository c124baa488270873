package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/escrowbot/payments/internal/application"
	"github.com/escrowbot/payments/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `payment_id, user_id, order_id, amount_cents, currency, pay_currency,
		       status, invoice_url, created_at, updated_at, expires_at`

// PaymentRepository persists payment records and user balances. All methods
// run against q, which is either the pool or an open transaction, so the
// same repository type serves both paths.
type PaymentRepository struct {
	pool *pgxpool.Pool
	q    Executor
}

func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{pool: db.Pool, q: db.Pool}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	m := toDBModel(payment)
	_, err := r.q.Exec(ctx, query,
		m.PaymentID,
		m.UserID,
		m.OrderID,
		m.AmountCents,
		m.Currency,
		m.PayCurrency,
		m.Status,
		m.InvoiceURL,
		m.CreatedAt,
		m.UpdatedAt,
		m.ExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`

	row := r.q.QueryRow(ctx, query, paymentID)
	return scanPayment(row)
}

// FindByIDForUpdate retrieves a payment with a row-level lock. Only
// meaningful inside WithTx.
func (r *PaymentRepository) FindByIDForUpdate(ctx context.Context, paymentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1 FOR UPDATE`

	row := r.q.QueryRow(ctx, query, paymentID)
	return scanPayment(row)
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $1, updated_at = $2, expires_at = $3
		WHERE payment_id = $4
	`

	m := toDBModel(payment)
	result, err := r.q.Exec(ctx, query, m.Status, m.UpdatedAt, m.ExpiresAt, m.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return application.ErrPaymentNotFound
	}

	return nil
}

// FindReconcilable returns non-terminal payments created at or after the
// horizon, oldest first.
func (r *PaymentRepository) FindReconcilable(ctx context.Context, horizon time.Time, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status NOT IN ('confirmed', 'failed', 'expired')
		  AND created_at >= $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, horizon, limit)
	if err != nil {
		return nil, fmt.Errorf("query reconcilable payments: %w", err)
	}

	return collectPayments(rows)
}

// ExpireOlderThan transitions every non-terminal payment created before the
// cutoff to expired in a single statement and returns the affected records.
func (r *PaymentRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Payment, error) {
	query := `
		UPDATE payments
		SET status = 'expired', updated_at = now()
		WHERE status NOT IN ('confirmed', 'failed', 'expired')
		  AND created_at < $1
		RETURNING ` + paymentColumns + `
	`

	rows, err := r.q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("expire stale payments: %w", err)
	}

	return collectPayments(rows)
}

// CreditBalance adds to a user's balance, creating the row on first credit.
func (r *PaymentRepository) CreditBalance(ctx context.Context, userID int64, amountCents int64) error {
	query := `
		INSERT INTO balances (user_id, balance_cents, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET balance_cents = balances.balance_cents + EXCLUDED.balance_cents,
		    updated_at = now()
	`

	if _, err := r.q.Exec(ctx, query, userID, amountCents); err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}

	return nil
}

func (r *PaymentRepository) GetBalance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := r.q.QueryRow(ctx, `SELECT balance_cents FROM balances WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// WithTx executes fn with a repository scoped to one database transaction.
func (r *PaymentRepository) WithTx(ctx context.Context, fn func(repo application.PaymentRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txRepo := &PaymentRepository{
		pool: r.pool,
		q:    tx,
	}

	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// PaymentModel mirrors the payments table row.
type PaymentModel struct {
	PaymentID   string
	UserID      int64
	OrderID     string
	AmountCents int64
	Currency    string
	PayCurrency string
	Status      string
	InvoiceURL  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   *time.Time
}

func toDBModel(p *domain.Payment) PaymentModel {
	return PaymentModel{
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

func toDomainModel(m PaymentModel) *domain.Payment {
	return domain.Reconstitute(
		m.PaymentID, m.UserID, m.OrderID,
		m.AmountCents, m.Currency, m.PayCurrency,
		domain.PaymentStatus(m.Status), m.InvoiceURL,
		m.CreatedAt, m.UpdatedAt, m.ExpiresAt,
	)
}

func scanRow(row pgx.Row) (PaymentModel, error) {
	var m PaymentModel
	err := row.Scan(
		&m.PaymentID, &m.UserID, &m.OrderID, &m.AmountCents, &m.Currency, &m.PayCurrency,
		&m.Status, &m.InvoiceURL, &m.CreatedAt, &m.UpdatedAt, &m.ExpiresAt,
	)
	return m, err
}

// scanPayment converts a database row into a domain Payment.
// Returns application.ErrPaymentNotFound if the row doesn't exist.
func scanPayment(row pgx.Row) (*domain.Payment, error) {
	m, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, application.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return toDomainModel(m), nil
}

func collectPayments(rows pgx.Rows) ([]*domain.Payment, error) {
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payment, error) {
		m, err := scanRow(row)
		return toDomainModel(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("error occurred while scanning rows: %w", err)
	}
	return results, nil
}
