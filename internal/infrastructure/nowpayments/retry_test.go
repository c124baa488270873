package nowpayments

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/escrowbot/payments/internal/application"
	"github.com/escrowbot/payments/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRetryClient(inner application.GatewayClient) (*RetryGatewayClient, *[]time.Duration) {
	client := NewRetryGatewayClient(inner, config.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
	})

	var slept []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return client, &slept
}

func TestRetry_SuccessFirstAttempt(t *testing.T) {
	inner := &application.MockGatewayClient{
		GetPaymentStatusFn: func(ctx context.Context, paymentID string) (*application.PaymentState, error) {
			return &application.PaymentState{PaymentID: paymentID, Status: "waiting"}, nil
		},
	}
	client, slept := newTestRetryClient(inner)

	state, err := client.GetPaymentStatus(context.Background(), "4957197073")
	require.NoError(t, err)
	assert.Equal(t, "waiting", state.Status)
	assert.Equal(t, 1, inner.StatusCalls)
	assert.Empty(t, *slept)
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	calls := 0
	inner := &application.MockGatewayClient{
		GetPaymentStatusFn: func(ctx context.Context, paymentID string) (*application.PaymentState, error) {
			calls++
			if calls < 3 {
				return nil, &APIError{StatusCode: http.StatusInternalServerError, Message: "upstream down"}
			}
			return &application.PaymentState{PaymentID: paymentID, Status: "confirmed"}, nil
		},
	}
	client, slept := newTestRetryClient(inner)

	state, err := client.GetPaymentStatus(context.Background(), "4957197073")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", state.Status)
	assert.Equal(t, 3, calls)
	assert.Len(t, *slept, 2)
}

func TestRetry_NonRetryableFailsImmediately(t *testing.T) {
	inner := &application.MockGatewayClient{
		CreateInvoiceFn: func(ctx context.Context, req application.InvoiceRequest) (*application.Invoice, error) {
			return nil, &APIError{StatusCode: http.StatusUnauthorized, Message: "invalid api key"}
		},
	}
	client, slept := newTestRetryClient(inner)

	_, err := client.CreateInvoice(context.Background(), application.InvoiceRequest{UserID: 12345, AmountCents: 5000})
	require.Error(t, err)
	assert.Equal(t, application.KindAuthentication, application.KindOf(err))
	assert.Equal(t, 1, inner.CreateCalls)
	assert.Empty(t, *slept)
}

func TestRetry_ExhaustionClassifiesTransport(t *testing.T) {
	inner := &application.MockGatewayClient{
		GetPaymentStatusFn: func(ctx context.Context, paymentID string) (*application.PaymentState, error) {
			return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "bad gateway"}
		},
	}
	client, slept := newTestRetryClient(inner)

	_, err := client.GetPaymentStatus(context.Background(), "4957197073")
	require.Error(t, err)
	assert.Equal(t, application.KindTransport, application.KindOf(err))
	assert.Contains(t, err.Error(), "maximum retries exceeded")
	assert.Equal(t, 3, inner.StatusCalls)
	assert.Len(t, *slept, 2)
}

func TestRetry_ExhaustionClassifiesRateLimit(t *testing.T) {
	inner := &application.MockGatewayClient{
		GetPaymentStatusFn: func(ctx context.Context, paymentID string) (*application.PaymentState, error) {
			return nil, &APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}
		},
	}
	client, _ := newTestRetryClient(inner)

	_, err := client.GetPaymentStatus(context.Background(), "4957197073")
	require.Error(t, err)
	assert.Equal(t, application.KindRateLimit, application.KindOf(err))
}

func TestRetry_BackoffNeverShrinks(t *testing.T) {
	inner := &application.MockGatewayClient{
		GetPaymentStatusFn: func(ctx context.Context, paymentID string) (*application.PaymentState, error) {
			return nil, &APIError{StatusCode: http.StatusServiceUnavailable, Message: "maintenance"}
		},
	}
	// Enough attempts to push the exponential base past the 60s cap.
	client := NewRetryGatewayClient(inner, config.RetryConfig{
		MaxRetries: 8,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
	})

	var slept []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err := client.GetPaymentStatus(context.Background(), "4957197073")
	require.Error(t, err)
	require.Len(t, slept, 7)
	for i := 1; i < len(slept); i++ {
		assert.GreaterOrEqual(t, slept[i], slept[i-1], "delay %d shrank", i)
	}
	assert.Equal(t, 60*time.Second, slept[len(slept)-1], "capped delays settle at the max")
}

func TestRetry_BackoffMonotoneAtCap(t *testing.T) {
	client, _ := newTestRetryClient(nil)
	transient := &APIError{StatusCode: http.StatusInternalServerError}

	// The jitter is random, so sample the curve repeatedly, well past the
	// attempt where the base exceeds the cap.
	for i := 0; i < 200; i++ {
		var prev time.Duration
		for attempt := 0; attempt < 10; attempt++ {
			d := client.backoff(attempt, transient)
			assert.GreaterOrEqual(t, d, prev, "iteration %d attempt %d", i, attempt)
			assert.LessOrEqual(t, d, client.maxDelay)
			prev = d
		}
	}
}

func TestRetry_RateLimitDoublesBackoff(t *testing.T) {
	client, _ := newTestRetryClient(nil)

	transient := &APIError{StatusCode: http.StatusInternalServerError}
	limited := &APIError{StatusCode: http.StatusTooManyRequests}

	// Jitter is at most a quarter of the base, so doubling always dominates.
	plain := client.backoff(0, transient)
	doubled := client.backoff(0, limited)
	assert.Greater(t, doubled, plain+plain/4)
}

func TestRetry_ContextCancelled(t *testing.T) {
	inner := &application.MockGatewayClient{
		GetPaymentStatusFn: func(ctx context.Context, paymentID string) (*application.PaymentState, error) {
			return nil, &APIError{StatusCode: http.StatusInternalServerError}
		},
	}
	client, _ := newTestRetryClient(inner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetPaymentStatus(ctx, "4957197073")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, inner.StatusCalls)
}
