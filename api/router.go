package api

import (
	"ordercore/api/admin"
	"ordercore/api/health"
	"ordercore/api/middleware"
	"ordercore/api/order"
	"ordercore/api/webhook"
	"ordercore/config"
	"ordercore/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Controllers groups the HTTP controllers mounted under /api/v1
type Controllers struct {
	Health  *health.Controller
	Order   *order.Controller
	Admin   *admin.Controller
	Webhook *webhook.Controller
}

// Router Route configuration
type Router struct {
	engine      *gin.Engine
	config      *config.Config
	metrics     *metrics.Metrics
	auth        *middleware.Authenticator
	controllers Controllers
}

// NewRouter Create route configuration
func NewRouter(cfg *config.Config, m *metrics.Metrics, auth *middleware.Authenticator, controllers Controllers) *Router {
	// Set Gin mode based on environment
	switch {
	case cfg.IsDevelopment():
		gin.SetMode(gin.DebugMode)
	case cfg.App.Env == "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Add middleware (order is important)
	engine.Use(middleware.RequestIDMiddleware())                      // 1. Generate request ID first
	engine.Use(middleware.RecoveryMiddleware())                       // 2. Recovery middleware
	engine.Use(middleware.LoggingMiddleware())                        // 3. Logging middleware
	engine.Use(middleware.MetricsMiddleware(m))                       // 4. Request metrics
	engine.Use(middleware.CORSMiddleware(&cfg.CORS))                  // 5. CORS
	engine.Use(middleware.RateLimitMiddleware(&cfg.Server.RateLimit)) // 6. Rate limiting

	return &Router{
		engine:      engine,
		config:      cfg,
		metrics:     m,
		auth:        auth,
		controllers: controllers,
	}
}

// SetupRoutes Set up all routes
func (r *Router) SetupRoutes() {
	apiGroup := r.engine.Group("/api/v1")
	{
		r.controllers.Health.RegisterRoutes(apiGroup)
		r.controllers.Order.RegisterRoutes(apiGroup, r.auth.RequireUser())
		r.controllers.Admin.RegisterRoutes(apiGroup, r.auth.RequireAdmin())
		// webhooks authenticate by provider signature, not bearer token
		r.controllers.Webhook.RegisterRoutes(apiGroup)
	}

	if r.metrics != nil && r.config.Metrics.Enabled {
		r.engine.GET(r.config.Metrics.Path, gin.WrapH(r.metrics.Handler()))
	}

	r.engine.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"name":    r.config.App.Name,
			"version": r.config.App.Version,
			"env":     r.config.App.Env,
			"health":  "/api/v1/health",
		})
	})
}

// GetEngine Get Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
