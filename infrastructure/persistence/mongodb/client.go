/*
Package mongodb MongoDB 存储后端。

订单、商品（内嵌变体）、计数器、幂等键和 outbox 各占一个集合。
多文档事务通过 session.WithTransaction 实现，要求副本集部署；
事务内的 SessionContext 就是仓储使用的 ctx，所以仓储不需要区分是否在事务中。
*/
package mongodb

import (
	"context"
	"fmt"
	"time"

	"ordercore/config"
	"ordercore/domain/idempotency"
	"ordercore/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	colOrders      = "orders"
	colProducts    = "products"
	colCounters    = "counters"
	colIdempotency = "idempotency_keys"
	colOutbox      = "outbox_events"
	colUsers       = "users"
)

// Connect opens a client and verifies the primary is reachable.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logger.Info("MongoDB connection established", zap.String("database", cfg.Database))
	return client, nil
}

// Ping checks the primary (readiness probe).
func Ping(ctx context.Context, client *mongo.Client) error {
	return client.Ping(ctx, readpref.Primary())
}

type index struct {
	collection string
	model      mongo.IndexModel
}

// EnsureIndexes creates the indexes the repositories rely on. The unique
// indexes carry the uniqueness guarantees; the TTL index expires
// idempotency keys after retention.
func EnsureIndexes(ctx context.Context, db *mongo.Database, retention time.Duration) error {
	if retention <= 0 {
		retention = idempotency.DefaultRetention
	}
	indexes := []index{
		{colOrders, mongo.IndexModel{Keys: bson.D{{Key: "order_number", Value: 1}}, Options: options.Index().SetUnique(true).SetName("order_number_unique")}},
		{colOrders, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("user_created")}},
		{colOrders, mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}, Options: options.Index().SetName("status_created")}},
		{colOrders, mongo.IndexModel{Keys: bson.D{{Key: "payment.method", Value: 1}, {Key: "payment.gateway_order_id", Value: 1}}, Options: options.Index().SetName("gateway_reference")}},
		{colProducts, mongo.IndexModel{Keys: bson.D{{Key: "variants.sku", Value: 1}}, Options: options.Index().SetUnique(true).SetName("variant_sku_unique")}},
		{colProducts, mongo.IndexModel{Keys: bson.D{{Key: "variants.id", Value: 1}}, Options: options.Index().SetName("variant_id")}},
		{colIdempotency, mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(retention / time.Second)).SetName("created_at_ttl")}},
		{colOutbox, mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}, Options: options.Index().SetName("status_created")}},
		{colOutbox, mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}, Options: options.Index().SetName("status_updated")}},
	}
	for _, idx := range indexes {
		if _, err := db.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index %s.%s: %w", idx.collection, *idx.model.Options.Name, err)
		}
	}
	return nil
}
