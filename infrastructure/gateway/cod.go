package gateway

import (
	"context"

	"ordercore/domain/payment"
)

// COD 货到付款：没有网关会话，不接受 webhook，也不支持线上退款
type COD struct{}

func (COD) Method() payment.Method { return payment.MethodCOD }
func (COD) RequiresSession() bool  { return false }

func (COD) CreatePaymentSession(context.Context, payment.SessionRequest) (*payment.Session, error) {
	return nil, payment.ErrNoSession
}

func (COD) VerifyWebhookSignature([]byte, string) bool { return false }

func (COD) ParseWebhook([]byte) (*payment.WebhookEvent, error) {
	return nil, payment.ErrNoSession
}

func (COD) FetchStatus(context.Context, string) (*payment.StatusReport, error) {
	return nil, payment.ErrNoSession
}

func (COD) Refund(context.Context, payment.RefundRequest) (*payment.RefundReceipt, error) {
	return nil, payment.ErrRefundNotSupported
}

var _ payment.Provider = COD{}
