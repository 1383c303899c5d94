package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ordercore/api/response"
	"ordercore/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "burst of one is spent")
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 2, rl.Len())

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("10.0.0.3"))
	assert.Equal(t, 1, rl.Len(), "idle clients dropped on the next scan")
}

func limitedRouter(cfg *config.RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), RateLimitMiddleware(cfg))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/api/v1/orders", ok)
	r.POST("/api/v1/webhooks/:provider", ok)
	return r
}

func TestRateLimitMiddleware(t *testing.T) {
	r := limitedRouter(&config.RateLimitConfig{
		Enabled:        true,
		Rate:           0.001,
		Burst:          1,
		ExemptPrefixes: []string{"/api/v1/webhooks/"},
	})

	do := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "203.0.113.7:5000"
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/v1/orders").Code)
	w := do(http.MethodGet, "/api/v1/orders")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "TOO_MANY_REQUESTS", body.Error)
	assert.NotEmpty(t, body.RequestID)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/v1/webhooks/razorpay").Code, "gateway callbacks are never limited")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), RecoveryMiddleware())
	r.GET("/boom", func(c *gin.Context) { panic("nil order") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error)
	assert.Equal(t, "req-7", body.RequestID)
	assert.Equal(t, "req-7", w.Header().Get(RequestIDHeader))
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(&config.CORSConfig{
		AllowOrigins: []string{"https://shop.example.com"},
		AllowMethods: []string{"GET", "POST"},
		MaxAge:       600,
	}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	preflight := func(origin string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		req.Header.Set("Origin", origin)
		r.ServeHTTP(w, req)
		return w
	}

	w := preflight("https://shop.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))

	w = preflight("https://evil.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
