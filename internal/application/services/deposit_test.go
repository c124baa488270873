package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/escrowbot/payments/internal/application"
	"github.com/escrowbot/payments/internal/application/services"
	"github.com/escrowbot/payments/internal/config"
	"github.com/escrowbot/payments/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDepositService(gateway application.GatewayClient, repo application.PaymentRepository) *services.DepositService {
	return services.NewDepositService(
		gateway, repo,
		config.DepositConfig{MinAmountCents: 1000, MaxAmountCents: 1000000},
		config.MonitorConfig{ExpiryHorizon: 24 * time.Hour},
		testLogger(),
	)
}

func TestCreateDeposit_Success(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	gateway := &application.MockGatewayClient{
		CreateInvoiceFn: func(ctx context.Context, req application.InvoiceRequest) (*application.Invoice, error) {
			return &application.Invoice{
				PaymentID:  "5077125931",
				InvoiceURL: "https://nowpayments.io/payment/?iid=5077125931",
				Status:     "waiting",
				OrderID:    "user_12345_abc",
			}, nil
		},
	}
	svc := newDepositService(gateway, repo)

	payment, err := svc.CreateDeposit(context.Background(), 12345, 5000, "usdttrc20")
	require.NoError(t, err)

	assert.Equal(t, "5077125931", payment.PaymentID)
	assert.Equal(t, domain.StatusWaiting, payment.Status)
	assert.Equal(t, int64(5000), payment.AmountCents)
	require.NotNil(t, payment.ExpiresAt)
	assert.Equal(t, payment.CreatedAt.Add(24*time.Hour), *payment.ExpiresAt)

	stored, err := repo.FindByID(context.Background(), "5077125931")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, stored.Status)
}

func TestCreateDeposit_DefaultsToPending(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	gateway := &application.MockGatewayClient{
		CreateInvoiceFn: func(ctx context.Context, req application.InvoiceRequest) (*application.Invoice, error) {
			return &application.Invoice{
				PaymentID:  "5077125931",
				InvoiceURL: "https://nowpayments.io/payment/?iid=5077125931",
				OrderID:    "user_12345_abc",
			}, nil
		},
	}
	svc := newDepositService(gateway, repo)

	payment, err := svc.CreateDeposit(context.Background(), 12345, 5000, "usdttrc20")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, payment.Status)
}

func TestCreateDeposit_AmountBounds(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	gateway := &application.MockGatewayClient{}
	svc := newDepositService(gateway, repo)

	_, err := svc.CreateDeposit(context.Background(), 12345, 999, "usdttrc20")
	require.Error(t, err)
	assert.Equal(t, application.KindValidation, application.KindOf(err))

	_, err = svc.CreateDeposit(context.Background(), 12345, 1000001, "usdttrc20")
	require.Error(t, err)
	assert.Equal(t, application.KindValidation, application.KindOf(err))

	assert.Equal(t, 0, gateway.CreateCalls, "invalid amounts never reach the gateway")
}

func TestCreateDeposit_UnsupportedCurrency(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	gateway := &application.MockGatewayClient{}
	svc := newDepositService(gateway, repo)

	_, err := svc.CreateDeposit(context.Background(), 12345, 5000, "doge")
	require.Error(t, err)
	assert.Equal(t, application.KindValidation, application.KindOf(err))
	assert.Equal(t, 0, gateway.CreateCalls)
}

func TestCreateDeposit_CurrencyCaseInsensitive(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	gateway := &application.MockGatewayClient{
		CreateInvoiceFn: func(ctx context.Context, req application.InvoiceRequest) (*application.Invoice, error) {
			assert.Equal(t, "btc", req.PayCurrency)
			return &application.Invoice{
				PaymentID:  "5077125931",
				InvoiceURL: "https://nowpayments.io/payment/?iid=5077125931",
				Status:     "waiting",
				OrderID:    "user_12345_abc",
			}, nil
		},
	}
	svc := newDepositService(gateway, repo)

	_, err := svc.CreateDeposit(context.Background(), 12345, 5000, "BTC")
	require.NoError(t, err)
}

func TestCreateDeposit_GatewayErrorPropagates(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	gateway := &application.MockGatewayClient{
		CreateInvoiceFn: func(ctx context.Context, req application.InvoiceRequest) (*application.Invoice, error) {
			return nil, application.NewTransportError(context.DeadlineExceeded)
		},
	}
	svc := newDepositService(gateway, repo)

	_, err := svc.CreateDeposit(context.Background(), 12345, 5000, "usdttrc20")
	require.Error(t, err)
	assert.Equal(t, application.KindTransport, application.KindOf(err))

	_, err = repo.FindByID(context.Background(), "5077125931")
	assert.ErrorIs(t, err, application.ErrPaymentNotFound)
}
