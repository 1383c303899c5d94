/*
Package gateway 支付网关适配器：Razorpay、PhonePe、货到付款，以及仅在开发环境
使用占位凭证时启用的模拟网关。所有外部调用都在事务之外执行。
*/
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ordercore/domain/payment"
	"ordercore/pkg/logger"

	"go.uber.org/zap"
)

const defaultHTTPTimeout = 15 * time.Second

// apiClient 共享的 JSON over HTTP 调用
type apiClient struct {
	provider payment.Method
	baseURL  string
	http     *http.Client
}

func newAPIClient(provider payment.Method, baseURL string, hc *http.Client) apiClient {
	if hc == nil {
		hc = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return apiClient{provider: provider, baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// call 发送请求，非 2xx 统一包装为 GatewayError
func (c apiClient) call(ctx context.Context, op, method, path string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return payment.NewGatewayError(c.provider, op, 0, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return payment.NewGatewayError(c.provider, op, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return payment.NewGatewayError(c.provider, op, 0, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return payment.NewGatewayError(c.provider, op, resp.StatusCode, err)
	}
	logger.FromContext(ctx).Debug("gateway call",
		zap.String("provider", string(c.provider)),
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return payment.NewGatewayError(c.provider, op, resp.StatusCode, errors.New(strings.TrimSpace(string(raw))))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return payment.NewGatewayError(c.provider, op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// IsPlaceholder 凭证为空或仍是示例值
func IsPlaceholder(values ...string) bool {
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || strings.Contains(v, "placeholder") {
			return true
		}
	}
	return false
}
