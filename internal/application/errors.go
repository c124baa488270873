package application

import (
	"errors"
	"fmt"
)

// ErrPaymentNotFound is returned by PaymentRepository implementations when
// no record exists for a payment id.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrorKind classifies a payment failure for retry decisions, HTTP mapping
// and user-facing messages.
type ErrorKind string

const (
	KindTransport      ErrorKind = "TRANSPORT"
	KindRateLimit      ErrorKind = "RATE_LIMIT"
	KindAuthentication ErrorKind = "AUTHENTICATION"
	KindValidation     ErrorKind = "VALIDATION"
	KindNotFound       ErrorKind = "NOT_FOUND"
	KindStorage        ErrorKind = "STORAGE"
)

// PaymentError is the classified result value every boundary surfaces
// instead of raw transport or storage failures. PaymentID is empty when the
// failure happened before an id was known.
type PaymentError struct {
	Kind      ErrorKind
	PaymentID string
	Message   string
	Err       error
}

func (e *PaymentError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.PaymentID != "" {
		msg = fmt.Sprintf("%s (payment %s)", msg, e.PaymentID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

func NewTransportError(err error) *PaymentError {
	return &PaymentError{Kind: KindTransport, Message: "payment service unreachable", Err: err}
}

func NewRateLimitError(err error) *PaymentError {
	return &PaymentError{Kind: KindRateLimit, Message: "payment service rate limit", Err: err}
}

func NewAuthenticationError(message string) *PaymentError {
	return &PaymentError{Kind: KindAuthentication, Message: message}
}

func NewValidationError(message string) *PaymentError {
	return &PaymentError{Kind: KindValidation, Message: message}
}

func NewNotFoundError(paymentID string) *PaymentError {
	return &PaymentError{Kind: KindNotFound, PaymentID: paymentID, Message: "payment not found"}
}

func NewStorageError(err error) *PaymentError {
	return &PaymentError{Kind: KindStorage, Message: "ledger operation failed", Err: err}
}

func IsPaymentError(err error) (*PaymentError, bool) {
	var perr *PaymentError
	ok := errors.As(err, &perr)
	return perr, ok
}

func KindOf(err error) ErrorKind {
	if perr, ok := IsPaymentError(err); ok {
		return perr.Kind
	}
	return KindTransport
}
