package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ordercore/api/health"
	"ordercore/application/expiry"
	orderapp "ordercore/application/order"
	"ordercore/config"
	"ordercore/domain/idempotency"
	"ordercore/domain/order"
	"ordercore/infrastructure/cache"
	"ordercore/infrastructure/gateway"
	"ordercore/infrastructure/messaging"
	"ordercore/infrastructure/outbox"
	"ordercore/pkg/logger"
	"ordercore/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Components HTTP 进程和 worker 进程共用的服务组装结果
type Components struct {
	Config   *config.Config
	Backend  *Backend
	Metrics  *metrics.Metrics
	Registry *gateway.Registry
	Orders   *orderapp.ApplicationService
	Sweeper  *expiry.Sweeper
	Relay    *outbox.Worker

	redis    *redis.Client
	keyCache *cache.IdempotencyCache
	kafka    *messaging.KafkaPublisher
}

// Assemble 在已打开的存储之上构建网关、缓存、应用服务和后台任务
func Assemble(cfg *config.Config, backend *Backend) (*Components, error) {
	fees, err := cfg.Checkout.Fees()
	if err != nil {
		return nil, err
	}
	c := &Components{Config: cfg, Backend: backend, Metrics: metrics.New()}

	c.Registry, err = gateway.NewRegistry(cfg.Payment, cfg.IsProduction(), &http.Client{Timeout: cfg.Checkout.GatewayTimeout})
	if err != nil {
		return nil, err
	}

	var keyCache idempotency.Cache
	if cfg.Redis.Enabled {
		c.redis = cache.NewRedisClient(cfg.Redis)
		c.keyCache = cache.NewIdempotencyCache(c.redis, cfg.Redis.Prefix)
		keyCache = c.keyCache
		logger.Info("Redis idempotency cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	c.Orders = orderapp.NewApplicationService(orderapp.Dependencies{
		UnitOfWork:  backend.UnitOfWork,
		Orders:      backend.Orders,
		Catalog:     backend.Catalog,
		Sequence:    backend.Sequence,
		Users:       backend.Users,
		Idempotency: backend.Idempotency,
		Cache:       keyCache,
		Payments:    c.Registry,
		Metrics:     c.Metrics,
	}, orderapp.Options{
		Numbering: order.Numbering{Prefix: cfg.Checkout.OrderPrefix, Location: cfg.Checkout.Location()},
		Pricing: order.PricingPolicy{
			Currency:              cfg.Checkout.Currency,
			DeliveryFee:           fees.Delivery,
			FreeDeliveryThreshold: fees.FreeDeliveryThreshold,
			CODFee:                fees.COD,
		},
		Retention:      cfg.Checkout.IdempotencyRetention,
		GatewayTimeout: cfg.Checkout.GatewayTimeout,
	})

	c.Sweeper, err = expiry.NewSweeper(backend.UnitOfWork, backend.Orders, backend.Catalog, backend.Idempotency, c.Metrics, expiry.Config{
		Interval:  cfg.Sweeper.Interval,
		TTL:       cfg.Sweeper.TTL,
		BatchSize: cfg.Sweeper.BatchSize,
		Retention: cfg.Checkout.IdempotencyRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create expiry sweeper: %w", err)
	}

	var publisher outbox.Publisher = &outbox.LoggingPublisher{}
	if c.kafka = messaging.NewKafkaPublisher(cfg.Kafka); c.kafka != nil {
		publisher = c.kafka
		logger.Info("Outbox events relay to kafka", zap.String("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	c.Relay, err = outbox.NewWorker(backend.Outbox, publisher, c.Metrics, cfg.Worker.PollInterval, cfg.Worker.BatchSize, cfg.Worker.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox worker: %w", err)
	}
	return c, nil
}

// HealthChecks 数据库是关键依赖；幂等键缓存不可用时回落到数据库
func (c *Components) HealthChecks() []health.Dependency {
	deps := []health.Dependency{health.Critical("database", c.Backend.Pinger)}
	if c.keyCache != nil {
		deps = append(deps, health.Optional("redis", c.keyCache))
	}
	return deps
}

// Close 关闭外部连接，按创建的逆序
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	if c.kafka != nil {
		errs = append(errs, c.kafka.Close())
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	errs = append(errs, c.Backend.Close(ctx))
	return errors.Join(errs...)
}
