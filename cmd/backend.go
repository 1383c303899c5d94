package cmd

import (
	"context"
	"fmt"

	"ordercore/api/health"
	"ordercore/config"
	"ordercore/domain/idempotency"
	"ordercore/domain/inventory"
	"ordercore/domain/order"
	"ordercore/domain/shared"
	"ordercore/domain/user"
	"ordercore/infrastructure/outbox"
	"ordercore/infrastructure/persistence/memory"
	"ordercore/infrastructure/persistence/mongodb"
	"ordercore/infrastructure/persistence/mysql"
	"ordercore/infrastructure/persistence/retry"
	"ordercore/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Seeder 开发环境写入演示商品
type Seeder interface {
	Seed(ctx context.Context, variants ...inventory.Variant) error
}

// Backend 按 database.type 选择的一组仓储实现
type Backend struct {
	Kind        string
	UnitOfWork  shared.UnitOfWorkFactory
	Orders      order.Repository
	Catalog     inventory.Catalog
	Sequence    order.Sequence
	Users       user.Repository
	Idempotency idempotency.Store
	Outbox      outbox.Store
	Seeder      Seeder
	Pinger      health.Pinger

	close func(ctx context.Context) error
}

// Close 释放数据库连接
func (b *Backend) Close(ctx context.Context) error {
	if b.close == nil {
		return nil
	}
	return b.close(ctx)
}

// OpenBackend 连接存储并构建仓储；mysql/sqlite 在 auto_migrate 打开时建表
func OpenBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	retryCfg := retry.FromAppConfig(cfg)

	switch cfg.Database.Type {
	case "memory":
		logger.Info("Using in-memory persistence layer")
		store := memory.NewStore()
		catalog := memory.NewCatalogRepository(store)
		return &Backend{
			Kind:        "memory",
			UnitOfWork:  memory.NewUnitOfWorkFactory(store),
			Orders:      memory.NewOrderRepository(store),
			Catalog:     catalog,
			Sequence:    memory.NewSequenceRepository(store),
			Users:       memory.NewUserRepository(store),
			Idempotency: memory.NewIdempotencyRepository(store),
			Outbox:      memory.NewOutboxRepository(store),
			Seeder:      catalog,
			Pinger:      store,
		}, nil

	case "mysql", "sqlite":
		dbCfg := mysql.FromAppConfig(cfg.Database)
		var (
			db  *gorm.DB
			err error
		)
		if cfg.Database.Type == "sqlite" {
			db, err = dbCfg.ConnectSQLite(cfg.Database.Database + ".db")
		} else {
			db, err = dbCfg.Connect()
		}
		if err != nil {
			return nil, err
		}
		if err := mysql.Ping(ctx, db); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := mysql.AutoMigrate(db); err != nil {
				return nil, fmt.Errorf("failed to auto migrate: %w", err)
			}
		}
		catalog := mysql.NewCatalogRepository(db)
		return &Backend{
			Kind:        cfg.Database.Type,
			UnitOfWork:  mysql.NewUnitOfWorkFactory(db, retryCfg),
			Orders:      mysql.NewOrderRepository(db),
			Catalog:     catalog,
			Sequence:    mysql.NewSequenceRepository(db),
			Users:       mysql.NewUserRepository(db),
			Idempotency: mysql.NewIdempotencyRepository(db),
			Outbox:      mysql.NewOutboxRepository(db),
			Seeder:      catalog,
			Pinger:      health.PingFunc(func(ctx context.Context) error { return mysql.Ping(ctx, db) }),
			close: func(context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		}, nil

	case "mongo":
		client, err := mongodb.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		if err := mongodb.EnsureIndexes(ctx, db, cfg.Checkout.IdempotencyRetention); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to ensure mongo indexes: %w", err)
		}
		catalog := mongodb.NewCatalogRepository(db)
		return &Backend{
			Kind:        "mongo",
			UnitOfWork:  mongodb.NewUnitOfWorkFactory(db, retryCfg),
			Orders:      mongodb.NewOrderRepository(db),
			Catalog:     catalog,
			Sequence:    mongodb.NewSequenceRepository(db),
			Users:       mongodb.NewUserRepository(db),
			Idempotency: mongodb.NewIdempotencyRepository(db),
			Outbox:      mongodb.NewOutboxRepository(db),
			Seeder:      catalog,
			Pinger:      health.PingFunc(func(ctx context.Context) error { return mongodb.Ping(ctx, client) }),
			close:       client.Disconnect,
		}, nil
	}
	return nil, fmt.Errorf("unsupported database.type %q", cfg.Database.Type)
}

// demoCatalog 开发环境的演示库存，便于本地直接下单
var demoCatalog = []inventory.Variant{
	{ProductID: "prod-linen-shirt", ProductName: "Linen Shirt", Category: "shirts", VariantID: "var-linen-shirt-m", Sku: "LINEN-SHIRT-M", Size: "M", Stock: 25, Price: 149900, MRP: 199900},
	{ProductID: "prod-linen-shirt", ProductName: "Linen Shirt", Category: "shirts", VariantID: "var-linen-shirt-l", Sku: "LINEN-SHIRT-L", Size: "L", Stock: 10, Price: 149900, MRP: 199900},
	{ProductID: "prod-cotton-tee", ProductName: "Cotton Tee", Category: "tees", VariantID: "var-cotton-tee-m", Sku: "COTTON-TEE-M", Size: "M", Stock: 3, Price: 59900, MRP: 79900},
}

// seedDemoCatalog 覆盖写入演示库存，生产环境忽略该开关
func seedDemoCatalog(ctx context.Context, cfg *config.Config, b *Backend) {
	if !cfg.Database.SeedDemo || cfg.IsProduction() || b.Seeder == nil {
		return
	}
	if err := b.Seeder.Seed(ctx, demoCatalog...); err != nil {
		logger.Warn("Failed to seed demo catalog", zap.Error(err))
		return
	}
	logger.Info("Demo catalog seeded", zap.Int("variants", len(demoCatalog)), zap.String("backend", b.Kind))

	// 演示用户：下单时用 X-User-ID 传入该 id，联系方式取自用户表
	u, err := user.NewUser("Demo Customer", "demo@ordercore.local", "9000000000")
	if err != nil {
		return
	}
	if err := b.Users.Save(ctx, u); err != nil {
		logger.Warn("Failed to seed demo user", zap.Error(err))
		return
	}
	logger.Info("Demo user seeded", zap.String("user_id", u.ID()))
}
