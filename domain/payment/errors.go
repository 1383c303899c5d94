package payment

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMethod      = errors.New("unknown payment method")
	ErrMethodDisabled     = errors.New("payment method disabled")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrRefundNotSupported = errors.New("refund not supported for payment method")
	ErrNoSession          = errors.New("payment method does not use a gateway session")
	ErrGateway            = errors.New("payment gateway error")
)

// GatewayError wraps a provider HTTP or validation failure.
type GatewayError struct {
	Provider   Method
	Op         string
	StatusCode int
	Err        error
}

func NewGatewayError(provider Method, op string, statusCode int, err error) error {
	return &GatewayError{Provider: provider, Op: op, StatusCode: statusCode, Err: err}
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed with status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() []error {
	return []error{ErrGateway, e.Err}
}
