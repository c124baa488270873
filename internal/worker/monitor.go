package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/escrowbot/payments/internal/application"
	"github.com/escrowbot/payments/internal/application/services"
	"github.com/escrowbot/payments/internal/config"
	"github.com/escrowbot/payments/internal/domain"
)

// PaymentMonitor reconciles ledger state against the provider on a fixed
// interval. Webhooks are the fast path; the monitor catches everything the
// fast path missed and expires payments that never completed.
type PaymentMonitor struct {
	repo          application.PaymentRepository
	gateway       application.GatewayClient
	notifier      application.Notifier
	interval      time.Duration
	batchSize     int
	expiryHorizon time.Duration
	clock         Clock
	logger        *slog.Logger
}

func NewPaymentMonitor(
	repo application.PaymentRepository,
	gateway application.GatewayClient,
	notifier application.Notifier,
	cfg config.MonitorConfig,
	clock Clock,
	logger *slog.Logger,
) *PaymentMonitor {
	if clock == nil {
		clock = SystemClock()
	}
	return &PaymentMonitor{
		repo:          repo,
		gateway:       gateway,
		notifier:      notifier,
		interval:      cfg.Interval,
		batchSize:     cfg.BatchSize,
		expiryHorizon: cfg.ExpiryHorizon,
		clock:         clock,
		logger:        logger,
	}
}

// Start blocks until ctx is cancelled, running one reconciliation cycle per
// interval tick.
func (m *PaymentMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("starting payment monitor",
		"interval", m.interval,
		"batch_size", m.batchSize,
		"expiry_horizon", m.expiryHorizon,
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("stopping payment monitor")
			return
		case <-ticker.C:
			m.run(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle.
func (m *PaymentMonitor) RunOnce(ctx context.Context) {
	m.run(ctx)
}

func (m *PaymentMonitor) run(ctx context.Context) {
	cutoff := m.clock.Now().Add(-m.expiryHorizon)
	m.expireStalePayments(ctx, cutoff)
	m.reconcilePendingPayments(ctx, cutoff)
}

// expireStalePayments transitions every non-terminal payment older than the
// horizon to expired in one batched update, then notifies affected users.
func (m *PaymentMonitor) expireStalePayments(ctx context.Context, cutoff time.Time) {
	expired, err := m.repo.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		m.logger.Error("failed to expire stale payments", "error", err)
		return
	}

	if len(expired) == 0 {
		return
	}

	m.logger.Info("expired stale payments", "count", len(expired))

	for _, p := range expired {
		if err := m.notifier.Notify(ctx, p.UserID, services.ExpiryMessage(p)); err != nil {
			m.logger.Warn("failed to notify user of expiry",
				"payment_id", p.PaymentID,
				"user_id", p.UserID,
				"error", err,
			)
		}
	}
}

// reconcilePendingPayments polls the provider for every non-terminal payment
// still inside the horizon. A failure on one record never aborts the rest;
// failed records are retried on the next cycle.
func (m *PaymentMonitor) reconcilePendingPayments(ctx context.Context, cutoff time.Time) {
	pending, err := m.repo.FindReconcilable(ctx, cutoff, m.batchSize)
	if err != nil {
		m.logger.Error("failed to fetch reconcilable payments", "error", err)
		return
	}

	if len(pending) == 0 {
		return
	}

	m.logger.Info("reconciling pending payments", "count", len(pending))

	for _, p := range pending {
		if err := m.checkPayment(ctx, p); err != nil {
			m.logger.Error("reconciliation failed for payment",
				"payment_id", p.PaymentID,
				"status", p.Status,
				"error", err,
			)
		}
	}
}

func (m *PaymentMonitor) checkPayment(ctx context.Context, p *domain.Payment) error {
	state, err := m.gateway.GetPaymentStatus(ctx, p.PaymentID)
	if err != nil {
		return err
	}

	status, err := domain.ParseStatus(state.Status)
	if err != nil {
		m.logger.Warn("provider returned unknown status",
			"payment_id", p.PaymentID,
			"status", state.Status,
		)
		return nil
	}

	if status == p.Status {
		return nil
	}

	outcome, err := services.ApplyPaymentStatus(ctx, m.repo, p.PaymentID, status)
	if err != nil {
		return err
	}

	if !outcome.Applied {
		return nil
	}

	m.logger.Info("payment status changed",
		"payment_id", p.PaymentID,
		"old_status", p.Status,
		"new_status", outcome.Payment.Status,
		"credited", outcome.Credited,
	)

	if err := m.notifier.Notify(ctx, outcome.Payment.UserID, services.NotificationFor(outcome.Payment)); err != nil {
		m.logger.Warn("failed to notify user of status change",
			"payment_id", p.PaymentID,
			"user_id", outcome.Payment.UserID,
			"error", err,
		)
	}

	return nil
}
