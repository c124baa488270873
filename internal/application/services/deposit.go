package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/escrowbot/payments/internal/application"
	"github.com/escrowbot/payments/internal/config"
	"github.com/escrowbot/payments/internal/domain"
)

// supportedCurrencies is the set of crypto currencies deposits can be paid in.
var supportedCurrencies = map[string]bool{
	"usdttrc20": true,
	"btc":       true,
	"eth":       true,
	"ltc":       true,
	"bch":       true,
	"xrp":       true,
	"ada":       true,
	"dot":       true,
	"link":      true,
	"uni":       true,
}

// DepositService creates provider invoices and records the resulting
// pending payment in the ledger. The gateway client does the retrying; this
// service only persists what came back.
type DepositService struct {
	gateway       application.GatewayClient
	repo          application.PaymentRepository
	minAmount     int64
	maxAmount     int64
	expiryHorizon time.Duration
	logger        *slog.Logger
}

func NewDepositService(
	gateway application.GatewayClient,
	repo application.PaymentRepository,
	depositCfg config.DepositConfig,
	monitorCfg config.MonitorConfig,
	logger *slog.Logger,
) *DepositService {
	return &DepositService{
		gateway:       gateway,
		repo:          repo,
		minAmount:     depositCfg.MinAmountCents,
		maxAmount:     depositCfg.MaxAmountCents,
		expiryHorizon: monitorCfg.ExpiryHorizon,
		logger:        logger,
	}
}

func (s *DepositService) CreateDeposit(ctx context.Context, userID int64, amountCents int64, payCurrency string) (*domain.Payment, error) {
	if amountCents < s.minAmount {
		return nil, application.NewValidationError("deposit amount below minimum")
	}
	if amountCents > s.maxAmount {
		return nil, application.NewValidationError("deposit amount above maximum")
	}

	payCurrency = strings.ToLower(payCurrency)
	if !supportedCurrencies[payCurrency] {
		return nil, application.NewValidationError("unsupported pay currency: " + payCurrency)
	}

	invoice, err := s.gateway.CreateInvoice(ctx, application.InvoiceRequest{
		UserID:      userID,
		AmountCents: amountCents,
		PayCurrency: payCurrency,
	})
	if err != nil {
		s.logger.Error("invoice creation failed",
			"user_id", userID,
			"amount_cents", amountCents,
			"error", err,
		)
		return nil, err
	}

	// Creation responses usually carry "waiting"; older shapes carry
	// nothing, in which case the record starts out pending.
	status := domain.StatusPending
	if invoice.Status != "" {
		if parsed, err := domain.ParseStatus(invoice.Status); err == nil {
			status = parsed
		}
	}

	payment, err := domain.NewPayment(
		invoice.PaymentID, userID, invoice.OrderID,
		amountCents, "usd", payCurrency,
		invoice.InvoiceURL, status,
	)
	if err != nil {
		return nil, application.NewValidationError(err.Error())
	}

	expiresAt := payment.CreatedAt.Add(s.expiryHorizon)
	payment.ExpiresAt = &expiresAt

	if err := s.repo.Create(ctx, payment); err != nil {
		s.logger.Error("failed to persist payment record",
			"payment_id", payment.PaymentID,
			"user_id", userID,
			"error", err,
		)
		return nil, application.NewStorageError(err)
	}

	s.logger.Info("deposit created",
		"payment_id", payment.PaymentID,
		"user_id", userID,
		"amount_cents", amountCents,
		"status", payment.Status,
	)

	return payment, nil
}
