package application

import (
	"context"
	"errors"
	"net/http"

	"github.com/escrowbot/payments/internal/domain"
)

// Categorize collapses any failure into the error taxonomy. Unrecognized
// errors default to transport, the safe retryable fallback.
func Categorize(err error) ErrorKind {
	if err == nil {
		return ""
	}

	if perr, ok := IsPaymentError(err); ok {
		return perr.Kind
	}

	if errors.Is(err, ErrPaymentNotFound) {
		return KindNotFound
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransport
	}

	if errors.Is(err, domain.ErrUnknownStatus) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrTerminalStatus) ||
		errors.Is(err, domain.ErrInvalidAmount) {
		return KindValidation
	}

	return KindTransport
}

// IsRetryable reports whether the error kind is safe to retry. Rate limits
// are retryable with longer backoff; authentication and validation failures
// never are.
func IsRetryable(err error) bool {
	switch Categorize(err) {
	case KindTransport, KindRateLimit:
		return true
	default:
		return false
	}
}

// ToHTTPStatus maps an error to the HTTP status of the exposed surfaces.
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch Categorize(err) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit, KindTransport:
		return http.StatusServiceUnavailable
	case KindStorage:
		return http.StatusInternalServerError
	}

	return http.StatusInternalServerError
}

// ToErrorCode returns a stable machine-readable code for API responses.
func ToErrorCode(err error) string {
	if kind := Categorize(err); kind != "" {
		return string(kind)
	}
	return "INTERNAL_ERROR"
}

// userMessages are the short human-readable texts shown to end users.
// Full diagnostic context goes only to the log sink.
var userMessages = map[ErrorKind]string{
	KindTransport:      "Payment service is temporarily unavailable. Please try again later.",
	KindRateLimit:      "Payment service is busy. Please try again in a few minutes.",
	KindAuthentication: "Payment service authentication failed. Please contact support.",
	KindValidation:     "Invalid payment request. Please try again with valid information.",
	KindNotFound:       "Payment not found or has expired.",
	KindStorage:        "A storage error occurred. Please try again or contact support.",
}

// UserMessage maps an error to its user-facing text.
func UserMessage(err error) string {
	if msg, ok := userMessages[Categorize(err)]; ok {
		return msg
	}
	return "An unexpected error occurred. Please try again or contact support."
}
