package services_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/escrowbot/payments/internal/application"
	"github.com/escrowbot/payments/internal/application/services"
	"github.com/escrowbot/payments/internal/config"
	"github.com/escrowbot/payments/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ipnSecret = "test-ipn-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sign(body string) string {
	mac := hmac.New(sha512.New, []byte(ipnSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func seedPayment(t *testing.T, repo *application.MemoryPaymentRepository, status domain.PaymentStatus) *domain.Payment {
	t.Helper()
	payment := domain.Reconstitute(
		"4957197073", 12345, "user_12345_abc",
		5000, "usd", "usdttrc20",
		status, "https://nowpayments.io/payment/?iid=4957197073",
		time.Now(), time.Now(), nil,
	)
	require.NoError(t, repo.Create(context.Background(), payment))
	return payment
}

func newWebhookService(repo *application.MemoryPaymentRepository, notifier *application.MockNotifier) *services.WebhookService {
	return services.NewWebhookService(repo, notifier, config.WebhookConfig{Secret: ipnSecret}, testLogger())
}

func TestProcessWebhook_ConfirmedCreditsOnce(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	notifier := &application.MockNotifier{}
	seedPayment(t, repo, domain.StatusWaiting)
	svc := newWebhookService(repo, notifier)

	body := `{"payment_id": "4957197073", "payment_status": "confirmed"}`

	result, err := svc.ProcessWebhook(context.Background(), []byte(body), sign(body))
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.True(t, result.Credited)
	assert.Equal(t, domain.StatusConfirmed, result.Status)
	assert.NoError(t, result.NotifyErr)

	balance, err := repo.GetBalance(context.Background(), 12345)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)
	assert.Equal(t, 1, repo.Credits)
	assert.Equal(t, 1, notifier.Count())
	assert.Contains(t, notifier.Messages[0], "Payment confirmed")
}

func TestProcessWebhook_DuplicateDeliveryIsNoOp(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	notifier := &application.MockNotifier{}
	seedPayment(t, repo, domain.StatusWaiting)
	svc := newWebhookService(repo, notifier)

	body := `{"payment_id": "4957197073", "payment_status": "confirmed"}`

	first, err := svc.ProcessWebhook(context.Background(), []byte(body), sign(body))
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := svc.ProcessWebhook(context.Background(), []byte(body), sign(body))
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.False(t, second.Credited)

	assert.Equal(t, 1, repo.Credits, "redelivery must not credit again")
	assert.Equal(t, 1, notifier.Count(), "redelivery must not notify again")
}

func TestProcessWebhook_RegressionIgnored(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	notifier := &application.MockNotifier{}
	seedPayment(t, repo, domain.StatusConfirming)
	svc := newWebhookService(repo, notifier)

	body := `{"payment_id": "4957197073", "payment_status": "waiting"}`

	result, err := svc.ProcessWebhook(context.Background(), []byte(body), sign(body))
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, domain.StatusConfirming, result.Status)

	stored, err := repo.FindByID(context.Background(), "4957197073")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirming, stored.Status)
}

func TestProcessWebhook_InvalidSignature(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	notifier := &application.MockNotifier{}
	seedPayment(t, repo, domain.StatusWaiting)
	svc := newWebhookService(repo, notifier)

	body := `{"payment_id": "4957197073", "payment_status": "confirmed"}`

	_, err := svc.ProcessWebhook(context.Background(), []byte(body), "deadbeef")
	require.Error(t, err)
	assert.Equal(t, application.KindAuthentication, application.KindOf(err))

	stored, err := repo.FindByID(context.Background(), "4957197073")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, stored.Status)
	assert.Equal(t, 0, repo.Credits)
	assert.Equal(t, 0, notifier.Count())
}

func TestProcessWebhook_UnconfiguredSecretRejects(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	svc := services.NewWebhookService(repo, &application.MockNotifier{}, config.WebhookConfig{}, testLogger())

	body := `{"payment_id": "4957197073", "payment_status": "confirmed"}`

	_, err := svc.ProcessWebhook(context.Background(), []byte(body), sign(body))
	require.Error(t, err)
	assert.Equal(t, application.KindAuthentication, application.KindOf(err))
}

func TestProcessWebhook_MissingFields(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	svc := newWebhookService(repo, &application.MockNotifier{})

	for _, body := range []string{
		`{"payment_status": "confirmed"}`,
		`{"payment_id": "4957197073"}`,
		`not json`,
	} {
		_, err := svc.ProcessWebhook(context.Background(), []byte(body), sign(body))
		require.Error(t, err, "body %q", body)
		assert.Equal(t, application.KindValidation, application.KindOf(err))
	}
}

func TestProcessWebhook_UnknownStatus(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	seedPayment(t, repo, domain.StatusWaiting)
	svc := newWebhookService(repo, &application.MockNotifier{})

	body := `{"payment_id": "4957197073", "payment_status": "partially_paid"}`

	_, err := svc.ProcessWebhook(context.Background(), []byte(body), sign(body))
	require.Error(t, err)

	perr, ok := application.IsPaymentError(err)
	require.True(t, ok)
	assert.Equal(t, application.KindValidation, perr.Kind)
	assert.Equal(t, "4957197073", perr.PaymentID)
}

func TestProcessWebhook_UnknownPayment(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	svc := newWebhookService(repo, &application.MockNotifier{})

	body := `{"payment_id": "9999999999", "payment_status": "confirmed"}`

	_, err := svc.ProcessWebhook(context.Background(), []byte(body), sign(body))
	require.Error(t, err)
	assert.Equal(t, application.KindNotFound, application.KindOf(err))
}

func TestProcessWebhook_NotifyFailureIsDegradedSuccess(t *testing.T) {
	repo := application.NewMemoryPaymentRepository()
	notifier := &application.MockNotifier{
		NotifyFn: func(ctx context.Context, userID int64, message string) error {
			return errors.New("telegram unreachable")
		},
	}
	seedPayment(t, repo, domain.StatusWaiting)
	svc := newWebhookService(repo, notifier)

	body := `{"payment_id": "4957197073", "payment_status": "confirmed"}`

	result, err := svc.ProcessWebhook(context.Background(), []byte(body), sign(body))
	require.NoError(t, err, "notification failure must not fail the webhook")
	assert.True(t, result.Applied)
	assert.True(t, result.Credited)
	assert.Error(t, result.NotifyErr)

	assert.Equal(t, 1, repo.Credits, "ledger commit stands despite notify failure")
}
