package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ordercore/config"
	"ordercore/domain/payment"
)

// Razorpay 卡/UPI 聚合网关。Webhook 签名是对原始请求体的 HMAC-SHA256 十六进制摘要。
type Razorpay struct {
	api           apiClient
	keyID         string
	keySecret     string
	webhookSecret string
}

func NewRazorpay(cfg config.RazorpayConfig, hc *http.Client) *Razorpay {
	return &Razorpay{
		api:           newAPIClient(payment.MethodRazorpay, cfg.BaseURL, hc),
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
	}
}

func (r *Razorpay) Method() payment.Method { return payment.MethodRazorpay }
func (r *Razorpay) RequiresSession() bool  { return true }

func (r *Razorpay) auth() map[string]string {
	token := base64.StdEncoding.EncodeToString([]byte(r.keyID + ":" + r.keySecret))
	return map[string]string{"Authorization": "Basic " + token}
}

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

func (r *Razorpay) CreatePaymentSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	body := map[string]any{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.OrderNumber,
		"notes":    map[string]string{"order_id": req.OrderID, "customer_id": req.Customer.ID},
	}
	var out razorpayOrder
	if err := r.api.call(ctx, "create_order", http.MethodPost, "/v1/orders", r.auth(), body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, payment.NewGatewayError(payment.MethodRazorpay, "create_order", 0, fmt.Errorf("missing order id"))
	}
	return &payment.Session{
		Provider:         payment.MethodRazorpay,
		GatewayReference: out.ID,
		PublicKey:        r.keyID,
		Amount:           req.Amount,
		Currency:         req.Currency,
	}, nil
}

func (r *Razorpay) sign(raw []byte) string {
	mac := hmac.New(sha256.New, []byte(r.webhookSecret))
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}

func (r *Razorpay) VerifyWebhookSignature(rawPayload []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	want, _ := hex.DecodeString(r.sign(rawPayload))
	return hmac.Equal(got, want)
}

type razorpayPayment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
	Currency string `json:"currency,omitempty"`
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity razorpayPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (r *Razorpay) ParseWebhook(rawPayload []byte) (*payment.WebhookEvent, error) {
	var hook razorpayWebhook
	if err := json.Unmarshal(rawPayload, &hook); err != nil {
		return nil, fmt.Errorf("parse razorpay webhook: %w", err)
	}
	entity := hook.Payload.Payment.Entity
	ev := &payment.WebhookEvent{
		Provider:         payment.MethodRazorpay,
		EventType:        hook.Event,
		GatewayReference: entity.OrderID,
		GatewayPaymentID: entity.ID,
		Amount:           entity.Amount,
		Outcome:          payment.OutcomeIgnored,
	}
	switch hook.Event {
	case "payment.captured", "order.paid":
		ev.Outcome = payment.OutcomeCaptured
	case "payment.failed":
		ev.Outcome = payment.OutcomeFailed
	case "payment.authorized":
		ev.Outcome = payment.OutcomePending
	}
	return ev, nil
}

func (r *Razorpay) FetchStatus(ctx context.Context, gatewayReference string) (*payment.StatusReport, error) {
	var out struct {
		Items []razorpayPayment `json:"items"`
	}
	path := "/v1/orders/" + url.PathEscape(gatewayReference) + "/payments"
	if err := r.api.call(ctx, "fetch_status", http.MethodGet, path, r.auth(), nil, &out); err != nil {
		return nil, err
	}
	report := &payment.StatusReport{GatewayReference: gatewayReference, Outcome: payment.OutcomePending}
	failed := len(out.Items) > 0
	for _, p := range out.Items {
		switch p.Status {
		case "captured":
			report.Outcome = payment.OutcomeCaptured
			report.GatewayPaymentID = p.ID
			report.Amount = p.Amount
			return report, nil
		case "failed":
		default:
			failed = false
		}
	}
	if failed {
		last := out.Items[len(out.Items)-1]
		report.Outcome = payment.OutcomeFailed
		report.GatewayPaymentID = last.ID
		report.Amount = last.Amount
	}
	return report, nil
}

func (r *Razorpay) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundReceipt, error) {
	if req.GatewayPaymentID == "" {
		return nil, payment.NewGatewayError(payment.MethodRazorpay, "refund", 0, fmt.Errorf("order has no captured payment id"))
	}
	body := map[string]any{
		"amount":  req.Amount,
		"receipt": req.RefundID,
		"notes":   map[string]string{"order_id": req.OrderID, "reason": req.Reason},
	}
	var out struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		CreatedAt int64  `json:"created_at"`
	}
	path := "/v1/payments/" + url.PathEscape(req.GatewayPaymentID) + "/refund"
	if err := r.api.call(ctx, "refund", http.MethodPost, path, r.auth(), body, &out); err != nil {
		return nil, err
	}
	processed := time.Now().UTC()
	if out.CreatedAt > 0 {
		processed = time.Unix(out.CreatedAt, 0).UTC()
	}
	return &payment.RefundReceipt{GatewayRefundID: out.ID, Status: out.Status, ProcessedAt: processed}, nil
}

// signWebhook 生成与线上格式一致的已签名通知，供模拟网关回放
func (r *Razorpay) signWebhook(ev payment.WebhookEvent) ([]byte, string, error) {
	var hook razorpayWebhook
	hook.Event = "payment.captured"
	status := "captured"
	if ev.Outcome == payment.OutcomeFailed {
		hook.Event, status = "payment.failed", "failed"
	}
	hook.Payload.Payment.Entity = razorpayPayment{
		ID:      ev.GatewayPaymentID,
		OrderID: ev.GatewayReference,
		Amount:  ev.Amount,
		Status:  status,
	}
	raw, err := json.Marshal(hook)
	if err != nil {
		return nil, "", err
	}
	return raw, r.sign(raw), nil
}

var _ payment.Provider = (*Razorpay)(nil)
