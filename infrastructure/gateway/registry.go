package gateway

import (
	"fmt"
	"net/http"
	"sort"

	"ordercore/config"
	"ordercore/domain/payment"
	"ordercore/pkg/logger"

	"go.uber.org/zap"
)

// Registry 按支付方式解析 Provider，实现 payment.Resolver
type Registry struct {
	providers map[payment.Method]payment.Provider
	simulated map[payment.Method]*Simulated
}

// NewRegistry 构建已启用的网关。占位凭证只在非生产环境切换到模拟网关，
// 生产环境遇到占位凭证直接返回错误。
func NewRegistry(cfg config.PaymentConfig, production bool, hc *http.Client) (*Registry, error) {
	r := &Registry{
		providers: make(map[payment.Method]payment.Provider),
		simulated: make(map[payment.Method]*Simulated),
	}
	for _, name := range cfg.EnabledMethods {
		method, err := payment.ParseMethod(name)
		if err != nil {
			return nil, fmt.Errorf("payment.enabled_methods: %q: %w", name, err)
		}
		var (
			real        webhookSigner
			placeholder bool
		)
		switch method {
		case payment.MethodRazorpay:
			real = NewRazorpay(cfg.Razorpay, hc)
			placeholder = IsPlaceholder(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.WebhookSecret)
		case payment.MethodPhonePe:
			real = NewPhonePe(cfg.PhonePe, hc)
			placeholder = IsPlaceholder(cfg.PhonePe.MerchantID, cfg.PhonePe.SaltKey, cfg.PhonePe.SaltIndex)
		case payment.MethodCOD:
			r.providers[method] = COD{}
			continue
		}
		if !placeholder {
			r.providers[method] = real
			continue
		}
		if production {
			return nil, fmt.Errorf("payment.%s: placeholder credentials are not allowed in production", method)
		}
		sim := NewSimulated(real, cfg.PublicBaseURL)
		r.providers[method] = sim
		r.simulated[method] = sim
		logger.Warn("payment provider running in simulated mode", zap.String("provider", string(method)))
	}
	return r, nil
}

func (r *Registry) Resolve(method payment.Method) (payment.Provider, error) {
	if _, err := payment.ParseMethod(string(method)); err != nil {
		return nil, err
	}
	p, ok := r.providers[method]
	if !ok {
		return nil, payment.ErrMethodDisabled
	}
	return p, nil
}

// Simulator 返回模拟网关；真实凭证下始终为 false
func (r *Registry) Simulator(method payment.Method) (*Simulated, bool) {
	s, ok := r.simulated[method]
	return s, ok
}

func (r *Registry) HasSimulators() bool { return len(r.simulated) > 0 }

func (r *Registry) Methods() []payment.Method {
	methods := make([]payment.Method, 0, len(r.providers))
	for m := range r.providers {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}

var _ payment.Resolver = (*Registry)(nil)

// SignatureHeader 各网关 webhook 签名所在的请求头
func SignatureHeader(method payment.Method) string {
	switch method {
	case payment.MethodRazorpay:
		return "X-Razorpay-Signature"
	case payment.MethodPhonePe:
		return "X-VERIFY"
	}
	return ""
}
