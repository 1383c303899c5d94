/*
Package payment defines the provider abstraction used by checkout, webhook
reconciliation and refunds. The set of methods is closed; an order stores
its method once at creation and never changes it.
*/
package payment

import (
	"context"
	"time"
)

// Method is the immutable provider tag stored on an order
type Method string

const (
	MethodRazorpay Method = "razorpay"
	MethodPhonePe  Method = "phonepe"
	MethodCOD      Method = "cod"
)

// ParseMethod accepts only the closed set.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodRazorpay, MethodPhonePe, MethodCOD:
		return m, nil
	}
	return "", ErrUnknownMethod
}

// IsOnline reports whether the method needs a prepaid gateway session.
func (m Method) IsOnline() bool {
	return m == MethodRazorpay || m == MethodPhonePe
}

// Status of the payment attached to an order
type Status string

const (
	StatusPending           Status = "pending"
	StatusPaid              Status = "paid"
	StatusFailed            Status = "failed"
	StatusPartiallyRefunded Status = "partially_refunded"
	StatusRefunded          Status = "refunded"
)

// Captured reports whether money is held that only a refund can return.
func (s Status) Captured() bool {
	return s == StatusPaid || s == StatusPartiallyRefunded
}

// Customer is the payer contact forwarded to the provider
type Customer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// SessionRequest asks a provider to open a payment session. Amount is minor units.
type SessionRequest struct {
	OrderID     string
	OrderNumber string
	Amount      int64
	Currency    string
	Customer    Customer
}

// Session is the provider side of a checkout
type Session struct {
	Provider         Method `json:"provider"`
	GatewayReference string `json:"gateway_reference"`
	RedirectURL      string `json:"redirect_url,omitempty"`
	PublicKey        string `json:"public_key,omitempty"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// RefundRequest asks a provider to refund a captured payment
type RefundRequest struct {
	OrderID          string
	RefundID         string
	GatewayPaymentID string
	GatewayReference string
	Amount           int64
	Reason           string
}

// RefundReceipt is what the provider reported for a refund
type RefundReceipt struct {
	GatewayRefundID string
	Status          string
	ProcessedAt     time.Time
}

// Outcome of a webhook or status query
type Outcome string

const (
	OutcomeCaptured Outcome = "captured"
	OutcomeFailed   Outcome = "failed"
	OutcomePending  Outcome = "pending"
	OutcomeIgnored  Outcome = "ignored"
)

// WebhookEvent is a verified, parsed provider notification
type WebhookEvent struct {
	Provider         Method
	EventType        string
	GatewayReference string
	GatewayPaymentID string
	Outcome          Outcome
	Amount           int64
}

// StatusReport is the result of querying the provider for a payment
type StatusReport struct {
	GatewayReference string
	GatewayPaymentID string
	Outcome          Outcome
	Amount           int64
}

// Provider is implemented once per Method.
type Provider interface {
	Method() Method

	// RequiresSession is false for methods settled outside the gateway.
	RequiresSession() bool

	CreatePaymentSession(ctx context.Context, req SessionRequest) (*Session, error)

	// VerifyWebhookSignature must be called on the raw body before ParseWebhook.
	VerifyWebhookSignature(rawPayload []byte, signature string) bool

	ParseWebhook(rawPayload []byte) (*WebhookEvent, error)

	FetchStatus(ctx context.Context, gatewayReference string) (*StatusReport, error)

	Refund(ctx context.Context, req RefundRequest) (*RefundReceipt, error)
}

// Resolver looks up the provider for a method
type Resolver interface {
	Resolve(method Method) (Provider, error)
}
