package nowpayments

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/escrowbot/payments/internal/application"
)

// APIError is a non-200 reply from the provider.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

type apiErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nowpayments error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

// IsRetryable reports whether the reply signals a transient condition.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func (e *APIError) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// classify converts a terminal gateway failure into the application taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := application.IsPaymentError(err); ok {
		return err
	}

	if apiErr, ok := IsAPIError(err); ok {
		switch {
		case apiErr.IsRateLimit():
			return application.NewRateLimitError(err)
		case apiErr.StatusCode == http.StatusUnauthorized,
			apiErr.StatusCode == http.StatusForbidden:
			return application.NewAuthenticationError(apiErr.Message)
		case apiErr.StatusCode == http.StatusNotFound:
			return &application.PaymentError{
				Kind:    application.KindNotFound,
				Message: "payment not found at provider",
				Err:     err,
			}
		case apiErr.StatusCode >= 500:
			return application.NewTransportError(err)
		default:
			return &application.PaymentError{
				Kind:    application.KindValidation,
				Message: apiErr.Message,
				Err:     err,
			}
		}
	}

	return application.NewTransportError(err)
}
