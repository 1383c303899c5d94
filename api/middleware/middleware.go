package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"ordercore/api/ctxutil"
	"ordercore/api/response"
	"ordercore/config"
	"ordercore/infrastructure/persistence"
	apperrors "ordercore/pkg/errors"
	"ordercore/pkg/logger"
	"ordercore/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware 沿用调用方的 X-Request-ID，没有则生成。
// id 同时写入 gin.Context 和 request context，服务层日志可取到同一个 id。
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Set(response.RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(persistence.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// LoggingMiddleware 访问日志。route 为路由模板，便于按接口聚合；
// 认证通过的请求带上 user_id 和 role。
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if userID, role, ok := ctxutil.Identity(c); ok {
			fields = append(fields, zap.String("user_id", userID), zap.String("role", string(role)))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log := logger.FromContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("HTTP Request", fields...)
		default:
			log.Info("HTTP Request", fields...)
		}
	}
}

// RecoveryMiddleware panic 转为 500 信封，只写一次响应
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			logger.FromContext(c.Request.Context()).Error("Panic recovered",
				zap.Any("panic", recovered),
				zap.String("route", c.FullPath()),
				zap.Stack("stack"))
			if c.Writer.Written() {
				c.Abort()
				return
			}
			abortWith(c, http.StatusInternalServerError, apperrors.CodeInternal, "internal server error")
		}()
		c.Next()
	}
}

func abortWith(c *gin.Context, status int, code apperrors.ErrorCode, message string) {
	c.AbortWithStatusJSON(status, response.Response{
		Success:   false,
		Error:     string(code),
		Message:   message,
		Code:      status,
		RequestID: response.GetRequestID(c),
	})
}

// CORSMiddleware 只回显白名单内的 Origin
func CORSMiddleware(cfg *config.CORSConfig) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			if cfg.AllowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			c.Header("Access-Control-Expose-Headers", RequestIDHeader)
		}
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		c.Header("Access-Control-Max-Age", maxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RateLimiter 按客户端 IP 的令牌桶。闲置超过 idle 的桶在下一次清扫时回收。
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	rate     rate.Limit
	burst    int
	idle     time.Duration
	lastScan time.Time
	now      func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(r float64, burst int, idle time.Duration) *RateLimiter {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &RateLimiter{
		clients: make(map[string]*client),
		rate:    rate.Limit(r),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

// Allow 消耗 key 的一个令牌
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastScan) > rl.idle {
		for k, cl := range rl.clients {
			if now.Sub(cl.lastSeen) > rl.idle {
				delete(rl.clients, k)
			}
		}
		rl.lastScan = now
	}

	cl, ok := rl.clients[key]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// Len 当前跟踪的客户端数
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// RateLimitMiddleware 支付网关回调和探活接口不受限，网关重试不能被 429 挡掉。
func RateLimitMiddleware(cfg *config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := NewRateLimiter(cfg.Rate, cfg.Burst, cfg.IdleTTL)

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range cfg.ExemptPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		ip := c.ClientIP()
		if !limiter.Allow(ip) {
			logger.FromContext(c.Request.Context()).Warn("Rate limit exceeded",
				zap.String("client_ip", ip),
				zap.String("path", path))
			c.Header("Retry-After", "1")
			abortWith(c, http.StatusTooManyRequests, apperrors.CodeTooManyRequests, "too many requests, please try again later")
			return
		}
		c.Next()
	}
}

// MetricsMiddleware 按路由模板记录请求数和耗时，未匹配的路由归为 "unmatched"
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Microseconds()) / 1000)
	}
}
