package gateway

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ordercore/config"
	"ordercore/domain/payment"
)

const (
	phonePePayPath    = "/pg/v1/pay"
	phonePeRefundPath = "/pg/v1/refund"
	checksumSeparator = "###"
)

// PhonePe 收银台网关。请求体是 base64 编码的 JSON，X-VERIFY 头为
// SHA256(base64Payload + endpointPath + saltKey) + "###" + saltIndex。
type PhonePe struct {
	api         apiClient
	merchantID  string
	saltKey     string
	saltIndex   string
	redirectURL string
	callbackURL string
}

func NewPhonePe(cfg config.PhonePeConfig, hc *http.Client) *PhonePe {
	return &PhonePe{
		api:         newAPIClient(payment.MethodPhonePe, cfg.BaseURL, hc),
		merchantID:  cfg.MerchantID,
		saltKey:     cfg.SaltKey,
		saltIndex:   cfg.SaltIndex,
		redirectURL: cfg.RedirectURL,
		callbackURL: cfg.CallbackURL,
	}
}

func (p *PhonePe) Method() payment.Method { return payment.MethodPhonePe }
func (p *PhonePe) RequiresSession() bool  { return true }

// checksum 计算 X-VERIFY；webhook 校验时 suffix 为空
func (p *PhonePe) checksum(payload, suffix string) string {
	sum := sha256.Sum256([]byte(payload + suffix + p.saltKey))
	return hex.EncodeToString(sum[:]) + checksumSeparator + p.saltIndex
}

type phonePeEnvelope struct {
	Request string `json:"request,omitempty"`
}

type phonePeResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantID            string `json:"merchantId"`
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
		Amount                int64  `json:"amount"`
		State                 string `json:"state"`
		InstrumentResponse    struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

func (p *PhonePe) signedPost(ctx context.Context, op, path string, payload any, out *phonePeResponse) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return payment.NewGatewayError(payment.MethodPhonePe, op, 0, err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	headers := map[string]string{"X-VERIFY": p.checksum(encoded, path)}
	if err := p.api.call(ctx, op, http.MethodPost, path, headers, phonePeEnvelope{Request: encoded}, out); err != nil {
		return err
	}
	if !out.Success {
		return payment.NewGatewayError(payment.MethodPhonePe, op, 0, fmt.Errorf("%s: %s", out.Code, out.Message))
	}
	return nil
}

func (p *PhonePe) CreatePaymentSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	payload := map[string]any{
		"merchantId":            p.merchantID,
		"merchantTransactionId": req.OrderNumber,
		"merchantUserId":        req.Customer.ID,
		"amount":                req.Amount,
		"redirectUrl":           p.redirectURL + "?order_id=" + url.QueryEscape(req.OrderID),
		"redirectMode":          "REDIRECT",
		"callbackUrl":           p.callbackURL,
		"mobileNumber":          req.Customer.Phone,
		"paymentInstrument":     map[string]string{"type": "PAY_PAGE"},
	}
	var out phonePeResponse
	if err := p.signedPost(ctx, "create_session", phonePePayPath, payload, &out); err != nil {
		return nil, err
	}
	redirect := out.Data.InstrumentResponse.RedirectInfo.URL
	if redirect == "" {
		return nil, payment.NewGatewayError(payment.MethodPhonePe, "create_session", 0, fmt.Errorf("missing redirect url"))
	}
	return &payment.Session{
		Provider:         payment.MethodPhonePe,
		GatewayReference: req.OrderNumber,
		RedirectURL:      redirect,
		Amount:           req.Amount,
		Currency:         req.Currency,
	}, nil
}

// VerifyWebhookSignature 重新计算 SHA256(response + saltKey)，摘要和 salt index 都必须一致
func (p *PhonePe) VerifyWebhookSignature(rawPayload []byte, signature string) bool {
	var body struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(rawPayload, &body); err != nil || body.Response == "" {
		return false
	}
	digest, index, ok := strings.Cut(signature, checksumSeparator)
	if !ok || index != p.saltIndex {
		return false
	}
	want, _, _ := strings.Cut(p.checksum(body.Response, ""), checksumSeparator)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(digest)), []byte(want)) == 1
}

func outcomeFor(code, state string) payment.Outcome {
	switch {
	case code == "PAYMENT_SUCCESS" || state == "COMPLETED":
		return payment.OutcomeCaptured
	case code == "PAYMENT_ERROR" || code == "PAYMENT_DECLINED" || code == "TIMED_OUT" || state == "FAILED":
		return payment.OutcomeFailed
	case code == "PAYMENT_PENDING" || state == "PENDING":
		return payment.OutcomePending
	}
	return payment.OutcomeIgnored
}

func (p *PhonePe) ParseWebhook(rawPayload []byte) (*payment.WebhookEvent, error) {
	var body struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(rawPayload, &body); err != nil {
		return nil, fmt.Errorf("parse phonepe webhook: %w", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(body.Response)
	if err != nil {
		return nil, fmt.Errorf("decode phonepe webhook: %w", err)
	}
	var resp phonePeResponse
	if err := json.Unmarshal(decoded, &resp); err != nil {
		return nil, fmt.Errorf("parse phonepe webhook response: %w", err)
	}
	return &payment.WebhookEvent{
		Provider:         payment.MethodPhonePe,
		EventType:        resp.Code,
		GatewayReference: resp.Data.MerchantTransactionID,
		GatewayPaymentID: resp.Data.TransactionID,
		Outcome:          outcomeFor(resp.Code, resp.Data.State),
		Amount:           resp.Data.Amount,
	}, nil
}

func (p *PhonePe) FetchStatus(ctx context.Context, gatewayReference string) (*payment.StatusReport, error) {
	path := "/pg/v1/status/" + url.PathEscape(p.merchantID) + "/" + url.PathEscape(gatewayReference)
	headers := map[string]string{
		"X-VERIFY":      p.checksum(path, ""),
		"X-MERCHANT-ID": p.merchantID,
	}
	var out phonePeResponse
	if err := p.api.call(ctx, "fetch_status", http.MethodGet, path, headers, nil, &out); err != nil {
		return nil, err
	}
	return &payment.StatusReport{
		GatewayReference: gatewayReference,
		GatewayPaymentID: out.Data.TransactionID,
		Outcome:          outcomeFor(out.Code, out.Data.State),
		Amount:           out.Data.Amount,
	}, nil
}

func (p *PhonePe) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundReceipt, error) {
	payload := map[string]any{
		"merchantId":            p.merchantID,
		"merchantUserId":        req.OrderID,
		"originalTransactionId": req.GatewayReference,
		"merchantTransactionId": req.RefundID,
		"amount":                req.Amount,
		"callbackUrl":           p.callbackURL,
	}
	var out phonePeResponse
	if err := p.signedPost(ctx, "refund", phonePeRefundPath, payload, &out); err != nil {
		return nil, err
	}
	return &payment.RefundReceipt{
		GatewayRefundID: out.Data.TransactionID,
		Status:          out.Data.State,
		ProcessedAt:     time.Now().UTC(),
	}, nil
}

func (p *PhonePe) signWebhook(ev payment.WebhookEvent) ([]byte, string, error) {
	var resp phonePeResponse
	resp.Success = ev.Outcome == payment.OutcomeCaptured
	resp.Code, resp.Data.State = "PAYMENT_SUCCESS", "COMPLETED"
	if !resp.Success {
		resp.Code, resp.Data.State = "PAYMENT_ERROR", "FAILED"
	}
	resp.Data.MerchantID = p.merchantID
	resp.Data.MerchantTransactionID = ev.GatewayReference
	resp.Data.TransactionID = ev.GatewayPaymentID
	resp.Data.Amount = ev.Amount

	inner, err := json.Marshal(resp)
	if err != nil {
		return nil, "", err
	}
	encoded := base64.StdEncoding.EncodeToString(inner)
	raw, err := json.Marshal(map[string]string{"response": encoded})
	if err != nil {
		return nil, "", err
	}
	return raw, p.checksum(encoded, ""), nil
}

var _ payment.Provider = (*PhonePe)(nil)
