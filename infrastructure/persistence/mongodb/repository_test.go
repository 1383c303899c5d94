package mongodb

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"ordercore/config"
	"ordercore/domain/inventory"
	"ordercore/domain/order"
	"ordercore/domain/payment"
	"ordercore/infrastructure/persistence/retry"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestOrderDocumentMapping(t *testing.T) {
	v := &inventory.Variant{ProductID: "p1", ProductName: "Linen Shirt", VariantID: "v1", Sku: "SHIRT-M", Stock: 3, Price: 15000, MRP: 19900}
	item, err := order.NewItem(v, 2)
	require.NoError(t, err)
	o, err := order.NewOrder(order.PlaceOrderParams{
		OrderNumber:     "ORD-202610-000001",
		UserID:          "u1",
		Contact:         order.Contact{Name: "Asha", Email: "asha@example.com"},
		ShippingAddress: order.Address{Line1: "12 MG Road", City: "Pune", PostalCode: "411001"},
		Items:           []order.Item{item},
		Method:          payment.MethodPhonePe,
		Pricing:         order.PricingPolicy{Currency: "INR", DeliveryFee: 7000, FreeDeliveryThreshold: 99900},
		PlacedAt:        time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	raw, err := bson.Marshal(orderFromDomain(o))
	require.NoError(t, err)
	var doc orderDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	back := doc.toDomain()

	assert.Equal(t, o.OrderNumber(), back.OrderNumber())
	assert.Equal(t, o.Totals(), back.Totals())
	assert.Equal(t, o.Status(), back.Status())
	assert.Equal(t, payment.MethodPhonePe, back.PaymentMethod())
	assert.Equal(t, "Pune", back.ShippingAddress().City)
	require.Len(t, back.Items(), 1)
	assert.Equal(t, int64(30000), back.Items()[0].LineTotal())
	assert.True(t, o.CreatedAt().Equal(back.CreatedAt()))

	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	pay := fields["payment"].(bson.M)
	assert.Equal(t, "", pay["gateway_order_id"], "empty reference is stored so the attach guard can match it")
}

func TestReserveFilter(t *testing.T) {
	f := reserveFilter("v1", 2)
	elem := f["variants"].(bson.M)["$elemMatch"].(bson.M)
	assert.Equal(t, "v1", elem["id"])
	assert.Equal(t, bson.M{"$gte": 2}, elem["stock"])
}

// Integration tests need a replica set: ORDERCORE_TEST_MONGO_URI=mongodb://localhost:27017/?replicaSet=rs0
func testDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("ORDERCORE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("ORDERCORE_TEST_MONGO_URI not set")
	}
	client, err := Connect(context.Background(), config.MongoConfig{URI: uri, Database: "ordercore_test"})
	require.NoError(t, err)
	db := client.Database("ordercore_test_" + uuid.NewString()[:8])
	require.NoError(t, EnsureIndexes(context.Background(), db, 0))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestMongoCheckoutRollsBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	catalog := NewCatalogRepository(db)
	require.NoError(t, catalog.Seed(ctx, inventory.Variant{
		ProductID: "p1", ProductName: "Linen Shirt", VariantID: "v1", Sku: "SHIRT-M", Stock: 2, Price: 15000,
	}))

	builder := order.NewBuilder(catalog, NewSequenceRepository(db), order.Numbering{Prefix: "ORD"},
		order.PricingPolicy{Currency: "INR", DeliveryFee: 7000, FreeDeliveryThreshold: 99900, CODFee: 4000})
	req := order.PlaceRequest{
		UserID:          "u1",
		ShippingAddress: order.Address{Line1: "12 MG Road", City: "Pune", PostalCode: "411001"},
		Lines:           []order.LineRequest{{Ref: inventory.BySku("SHIRT-M"), Quantity: 2}},
		Method:          payment.MethodCOD,
	}
	orders := NewOrderRepository(db)
	uow := NewUnitOfWorkFactory(db, retry.Config{}).New()

	err := uow.Execute(ctx, func(ctx context.Context) error {
		o, err := builder.Build(ctx, req)
		if err != nil {
			return err
		}
		uow.RegisterNew(o)
		return orders.Save(ctx, o)
	})
	require.NoError(t, err)

	v, err := catalog.Resolve(ctx, inventory.BySku("SHIRT-M"))
	require.NoError(t, err)
	assert.Equal(t, 0, v.Stock)
	assert.Equal(t, inventory.StockOutOfStock, v.StockStatus)

	req.Lines[0].Quantity = 1
	err = uow.Execute(ctx, func(ctx context.Context) error {
		_, err := builder.Build(ctx, req)
		return err
	})
	assert.True(t, errors.Is(err, inventory.ErrInsufficientStock))

	pending, err := NewOutboxRepository(db).GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
