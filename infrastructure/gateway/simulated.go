package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"ordercore/domain/payment"

	"github.com/google/uuid"
)

type webhookSigner interface {
	payment.Provider
	signWebhook(ev payment.WebhookEvent) ([]byte, string, error)
}

// SimulatedSessionTTL 模拟会话的保留时间，超时的会话在下次建会话时清理
const SimulatedSessionTTL = 24 * time.Hour

type simSession struct {
	amount    int64
	paymentID string
	outcome   payment.Outcome
	createdAt time.Time
}

// Simulated 开发环境模拟网关：会话保存在进程内，webhook 用真实网关的签名格式生成，
// 因此回放时仍走完整的验签与解析流程。
type Simulated struct {
	inner         webhookSigner
	publicBaseURL string

	mu       sync.Mutex
	sessions map[string]*simSession
	now      func() time.Time
}

func NewSimulated(inner webhookSigner, publicBaseURL string) *Simulated {
	return &Simulated{
		inner:         inner,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		sessions:      make(map[string]*simSession),
		now:           time.Now,
	}
}

func (s *Simulated) Method() payment.Method { return s.inner.Method() }
func (s *Simulated) RequiresSession() bool  { return true }

func (s *Simulated) CreatePaymentSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	ref := fmt.Sprintf("sim_%s_%s", s.Method(), strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
	now := s.now()
	s.mu.Lock()
	for key, sess := range s.sessions {
		if now.Sub(sess.createdAt) > SimulatedSessionTTL {
			delete(s.sessions, key)
		}
	}
	s.sessions[ref] = &simSession{amount: req.Amount, outcome: payment.OutcomePending, createdAt: now}
	s.mu.Unlock()

	return &payment.Session{
		Provider:         s.Method(),
		GatewayReference: ref,
		RedirectURL:      fmt.Sprintf("%s/api/v1/dev/payments/%s/complete?reference=%s", s.publicBaseURL, s.Method(), url.QueryEscape(ref)),
		PublicKey:        "simulated",
		Amount:           req.Amount,
		Currency:         req.Currency,
	}, nil
}

func (s *Simulated) VerifyWebhookSignature(rawPayload []byte, signature string) bool {
	return s.inner.VerifyWebhookSignature(rawPayload, signature)
}

func (s *Simulated) ParseWebhook(rawPayload []byte) (*payment.WebhookEvent, error) {
	return s.inner.ParseWebhook(rawPayload)
}

func (s *Simulated) FetchStatus(ctx context.Context, gatewayReference string) (*payment.StatusReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[gatewayReference]
	if !ok {
		return nil, payment.NewGatewayError(s.Method(), "fetch_status", 404, fmt.Errorf("unknown reference %s", gatewayReference))
	}
	return &payment.StatusReport{
		GatewayReference: gatewayReference,
		GatewayPaymentID: sess.paymentID,
		Outcome:          sess.outcome,
		Amount:           sess.amount,
	}, nil
}

func (s *Simulated) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundReceipt, error) {
	return &payment.RefundReceipt{
		GatewayRefundID: "sim_rfnd_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		Status:          "processed",
		ProcessedAt:     time.Now().UTC(),
	}, nil
}

// Complete 记录支付结果并返回一条已签名的 webhook（原始报文和签名头）
func (s *Simulated) Complete(reference string, outcome payment.Outcome) ([]byte, string, error) {
	if outcome != payment.OutcomeCaptured && outcome != payment.OutcomeFailed {
		return nil, "", fmt.Errorf("simulated outcome must be captured or failed, got %q", outcome)
	}
	s.mu.Lock()
	sess, ok := s.sessions[reference]
	if ok {
		sess.outcome = outcome
		sess.paymentID = "sim_pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	}
	s.mu.Unlock()
	if !ok {
		return nil, "", fmt.Errorf("unknown simulated reference %s", reference)
	}
	return s.inner.signWebhook(payment.WebhookEvent{
		Provider:         s.Method(),
		GatewayReference: reference,
		GatewayPaymentID: sess.paymentID,
		Outcome:          outcome,
		Amount:           sess.amount,
	})
}

var _ payment.Provider = (*Simulated)(nil)
