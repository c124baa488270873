package domain

import "errors"

var (
	ErrUnknownStatus     = errors.New("unknown payment status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTerminalStatus    = errors.New("payment is in a terminal status")
	ErrInvalidAmount     = errors.New("invalid payment amount")
)
