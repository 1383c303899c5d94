package cmd

import (
	"context"
	"fmt"
	"net/http"

	"ordercore/api"
	"ordercore/api/admin"
	"ordercore/api/health"
	"ordercore/api/middleware"
	apiorder "ordercore/api/order"
	"ordercore/api/webhook"
	"ordercore/config"
	"ordercore/pkg/logger"

	"go.uber.org/zap"
)

// AppBuilder builds an App with customizable components
type AppBuilder struct {
	cfg        *config.Config
	backend    *Backend
	initLogger bool
}

// NewBuilder creates a new AppBuilder
func NewBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg, initLogger: true}
}

// WithBackend uses an already opened storage backend instead of connecting
// from config (tests pass a memory backend)
func (b *AppBuilder) WithBackend(backend *Backend) *AppBuilder {
	b.backend = backend
	return b
}

// WithoutLoggerInit keeps the current global logger
func (b *AppBuilder) WithoutLoggerInit() *AppBuilder {
	b.initLogger = false
	return b
}

// Build creates the App instance
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.initLogger {
		if err := logger.Init(&b.cfg.Log, b.cfg.App.Env); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	logger.Info("Starting application",
		zap.String("app", b.cfg.App.Name),
		zap.String("version", b.cfg.App.Version),
		zap.String("env", b.cfg.App.Env),
		zap.String("database", b.cfg.Database.Type))

	backend := b.backend
	if backend == nil {
		var err error
		if backend, err = OpenBackend(ctx, b.cfg); err != nil {
			return nil, err
		}
	}
	seedDemoCatalog(ctx, b.cfg, backend)

	components, err := Assemble(b.cfg, backend)
	if err != nil {
		_ = backend.Close(ctx)
		return nil, err
	}
	for _, m := range components.Registry.Methods() {
		logger.Info("Payment method enabled", zap.String("method", string(m)))
	}

	auth := middleware.NewAuthenticator(b.cfg.Auth, !b.cfg.IsProduction())
	router := api.NewRouter(b.cfg, components.Metrics, auth, api.Controllers{
		Health:  health.NewController(b.cfg, components.HealthChecks()...),
		Order:   apiorder.NewController(components.Orders),
		Admin:   admin.NewController(components.Orders),
		Webhook: webhook.NewController(components.Orders, components.Registry),
	})
	router.SetupRoutes()

	server := &http.Server{
		Addr:         ":" + b.cfg.Server.Port,
		Handler:      router.GetEngine(),
		ReadTimeout:  b.cfg.Server.ReadTimeout,
		WriteTimeout: b.cfg.Server.WriteTimeout,
	}

	return &App{
		config:     b.cfg,
		components: components,
		router:     router,
		server:     server,
	}, nil
}
