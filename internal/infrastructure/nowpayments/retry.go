package nowpayments

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/escrowbot/payments/internal/application"
	"github.com/escrowbot/payments/internal/config"
)

// RetryGatewayClient decorates a gateway client with retry, exponential
// backoff and jitter for transient failures. It surfaces only classified
// errors, so callers never see raw transport or wire errors.
type RetryGatewayClient struct {
	inner      application.GatewayClient
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryGatewayClient(inner application.GatewayClient, cfg config.RetryConfig) *RetryGatewayClient {
	return &RetryGatewayClient{
		inner:      inner,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		sleep:      sleepCtx,
	}
}

// CreateInvoice with retry logic
func (r *RetryGatewayClient) CreateInvoice(ctx context.Context, req application.InvoiceRequest) (*application.Invoice, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*application.Invoice, error) {
			return r.inner.CreateInvoice(ctx, req)
		},
	)
}

// GetPaymentStatus with retry logic
func (r *RetryGatewayClient) GetPaymentStatus(ctx context.Context, paymentID string) (*application.PaymentState, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*application.PaymentState, error) {
			return r.inner.GetPaymentStatus(ctx, paymentID)
		},
	)
}

// Generic retry helper
func retry[T any](r *RetryGatewayClient, ctx context.Context, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, classify(err)
		}

		if attempt < r.maxRetries-1 {
			if err := r.sleep(ctx, r.backoff(attempt, err)); err != nil {
				return nil, err
			}
		}
	}

	wrapped := fmt.Errorf("maximum retries exceeded: %w", lastErr)
	if apiErr, ok := IsAPIError(lastErr); ok && apiErr.IsRateLimit() {
		return nil, application.NewRateLimitError(wrapped)
	}
	return nil, application.NewTransportError(wrapped)
}

// Helper: to check retryable errors
func isRetryable(err error) bool {
	if apiErr, ok := IsAPIError(err); ok {
		return apiErr.IsRetryable()
	}

	if perr, ok := application.IsPaymentError(err); ok {
		return perr.Kind == application.KindTransport || perr.Kind == application.KindRateLimit
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Unknown failures are treated as transient; the budget bounds them.
	return true
}

// Backoff calculation with exponential delay and jitter. Rate-limit replies
// back off twice as long. The jitter stays proportional to the unclamped
// base and the cap is applied to the jittered total, so delays never shrink
// between attempts, even once the cap is reached.
func (r *RetryGatewayClient) backoff(attempt int, err error) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	if apiErr, ok := IsAPIError(err); ok && apiErr.IsRateLimit() {
		base *= 2
	}

	delay := base + time.Duration(rand.Int63n(int64(base)/4+1))

	if delay > r.maxDelay {
		delay = r.maxDelay
	}

	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
