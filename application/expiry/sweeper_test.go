package expiry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ordercore/domain/idempotency"
	"ordercore/domain/inventory"
	"ordercore/domain/order"
	"ordercore/domain/payment"
	"ordercore/infrastructure/persistence/memory"
	"ordercore/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var placedAt = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	catalog *memory.CatalogRepository
	orders  *memory.OrderRepository
	keys    *memory.IdempotencyRepository
}

func newFixture(t *testing.T, variants ...inventory.Variant) *fixture {
	t.Helper()
	store := memory.NewStore()
	catalog := memory.NewCatalogRepository(store)
	require.NoError(t, catalog.Seed(context.Background(), variants...))
	return &fixture{
		store:   store,
		catalog: catalog,
		orders:  memory.NewOrderRepository(store),
		keys:    memory.NewIdempotencyRepository(store),
	}
}

func variant(id, sku string, stock int) inventory.Variant {
	return inventory.Variant{ProductID: "p1", ProductName: "Linen Shirt", VariantID: id, Sku: sku, Stock: stock, Price: 15000, MRP: 19900}
}

func (f *fixture) place(t *testing.T, sku string, qty int) *order.Order {
	t.Helper()
	builder := order.NewBuilder(f.catalog, memory.NewSequenceRepository(f.store), order.Numbering{Prefix: "ORD"},
		order.PricingPolicy{Currency: "INR", DeliveryFee: 7000, FreeDeliveryThreshold: 99900, CODFee: 4000}).
		WithClock(func() time.Time { return placedAt })

	var placed *order.Order
	uow := memory.NewUnitOfWorkFactory(f.store).New()
	err := uow.Execute(context.Background(), func(ctx context.Context) error {
		o, err := builder.Build(ctx, order.PlaceRequest{
			UserID:          "u1",
			ShippingAddress: order.Address{Line1: "12 MG Road", City: "Pune", PostalCode: "411001"},
			Lines:           []order.LineRequest{{Ref: inventory.BySku(sku), Quantity: qty}},
			Method:          payment.MethodRazorpay,
		})
		if err != nil {
			return err
		}
		uow.RegisterNew(o)
		placed = o
		return f.orders.Save(ctx, o)
	})
	require.NoError(t, err)
	return placed
}

func (f *fixture) stock(t *testing.T, sku string) int {
	t.Helper()
	v, err := f.catalog.Resolve(context.Background(), inventory.BySku(sku))
	require.NoError(t, err)
	return v.Stock
}

func (f *fixture) sweeper(t *testing.T, catalog inventory.Catalog, cfg Config) *Sweeper {
	t.Helper()
	s, err := NewSweeper(memory.NewUnitOfWorkFactory(f.store), f.orders, catalog, f.keys, nil, cfg)
	require.NoError(t, err)
	return s.WithClock(func() time.Time { return placedAt.Add(20 * time.Minute) })
}

func TestNewSweeperDefaults(t *testing.T) {
	f := newFixture(t)
	s := f.sweeper(t, f.catalog, Config{})
	assert.Equal(t, DefaultInterval, s.cfg.Interval)
	assert.Equal(t, DefaultTTL, s.cfg.TTL)
	assert.Equal(t, DefaultBatchSize, s.cfg.BatchSize)

	_, err := NewSweeper(nil, f.orders, f.catalog, nil, nil, Config{})
	assert.Error(t, err)
}

func TestSweepRespectsTTL(t *testing.T) {
	f := newFixture(t, variant("v1", "SHIRT-M", 5))
	f.place(t, "SHIRT-M", 2)

	s := f.sweeper(t, f.catalog, Config{TTL: time.Hour})
	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Scanned)
	assert.Equal(t, 3, f.stock(t, "SHIRT-M"))
}

func TestConcurrentSweepsReleaseOnce(t *testing.T) {
	f := newFixture(t, variant("v1", "SHIRT-M", 5))
	o := f.place(t, "SHIRT-M", 2)
	require.Equal(t, 3, f.stock(t, "SHIRT-M"))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		expired int
		skipped int
	)
	sweepers := make([]*Sweeper, 4)
	for i := range sweepers {
		sweepers[i] = f.sweeper(t, f.catalog, Config{})
	}
	for _, s := range sweepers {
		wg.Add(1)
		go func(s *Sweeper) {
			defer wg.Done()
			res, err := s.RunOnce(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			expired += res.Expired
			skipped += res.Skipped
			mu.Unlock()
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 1, expired)
	assert.LessOrEqual(t, skipped, 3)
	assert.Equal(t, 5, f.stock(t, "SHIRT-M"), "each reserved unit returns exactly once")

	loaded, err := f.orders.FindByID(context.Background(), o.ID())
	require.NoError(t, err)
	assert.Equal(t, order.StatusExpired, loaded.Status())
	history := loaded.History()
	assert.Len(t, history, 2)
	assert.Equal(t, order.StatusExpired, history[1].Status)
	assert.Empty(t, history[1].By)
}

func TestPaymentWinsRaceAgainstSweep(t *testing.T) {
	f := newFixture(t, variant("v1", "SHIRT-M", 5))
	f.place(t, "SHIRT-M", 2)
	s := f.sweeper(t, f.catalog, Config{})
	ctx := context.Background()

	candidates, err := f.orders.FindExpiredPending(ctx, placedAt.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	// the webhook commits between the sweeper's read and its guarded write
	paid, err := f.orders.FindByID(ctx, candidates[0].ID())
	require.NoError(t, err)
	tr, err := paid.MarkPaid("pay_1", "webhook payment.captured", placedAt.Add(19*time.Minute))
	require.NoError(t, err)
	applied, err := f.orders.TransitionStatus(ctx, tr)
	require.NoError(t, err)
	require.True(t, applied)

	err = s.expire(ctx, candidates[0], placedAt.Add(20*time.Minute))
	assert.True(t, errors.Is(err, errAlreadyMoved))
	assert.Equal(t, 3, f.stock(t, "SHIRT-M"), "sold stock is not released")

	loaded, err := f.orders.FindByID(ctx, paid.ID())
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, loaded.Status())
	assert.Equal(t, payment.StatusPaid, loaded.Payment().Status)
}

type failingCatalog struct {
	inventory.Catalog
	failVariant string
}

func (c failingCatalog) Release(ctx context.Context, variantID string, qty int) error {
	if variantID == c.failVariant {
		return errors.New("release unavailable")
	}
	return c.Catalog.Release(ctx, variantID, qty)
}

func TestSweepIsolatesFailures(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	defer logger.Replace(zap.New(core))()

	f := newFixture(t, variant("v1", "SHIRT-M", 5), variant("v2", "SHIRT-L", 5))
	bad := f.place(t, "SHIRT-L", 1)
	good := f.place(t, "SHIRT-M", 1)

	s := f.sweeper(t, failingCatalog{Catalog: f.catalog, failVariant: "v2"}, Config{})
	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 2, Expired: 1, Failed: 1}, res)

	loaded, err := f.orders.FindByID(context.Background(), bad.ID())
	require.NoError(t, err)
	assert.Equal(t, order.StatusPendingPayment, loaded.Status(), "failed order rolled back")
	assert.Equal(t, 4, f.stock(t, "SHIRT-L"))

	loaded, err = f.orders.FindByID(context.Background(), good.ID())
	require.NoError(t, err)
	assert.Equal(t, order.StatusExpired, loaded.Status())
	assert.Equal(t, 5, f.stock(t, "SHIRT-M"))

	failures := logs.FilterMessage("Failed to expire order").All()
	require.Len(t, failures, 1)
	assert.Equal(t, bad.ID(), failures[0].ContextMap()["order_id"])
}

func TestSweepPurgesIdempotencyKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := placedAt.Add(-8 * 24 * time.Hour)
	require.NoError(t, f.keys.Save(ctx, idempotency.Record{Key: "old", OrderID: "o1", CreatedAt: old}, old.Add(-time.Hour)))
	require.NoError(t, f.keys.Save(ctx, idempotency.Record{Key: "fresh", OrderID: "o2", CreatedAt: placedAt}, placedAt.Add(-time.Hour)))

	s := f.sweeper(t, f.catalog, Config{Retention: idempotency.DefaultRetention})
	res, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Purged)

	rec, err := f.keys.Find(ctx, "fresh", placedAt.Add(-time.Hour))
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	s := f.sweeper(t, f.catalog, Config{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Run(ctx), context.DeadlineExceeded)
}
