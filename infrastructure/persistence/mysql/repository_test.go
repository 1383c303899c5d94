package mysql

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ordercore/domain/idempotency"
	"ordercore/domain/inventory"
	"ordercore/domain/order"
	"ordercore/domain/payment"
	"ordercore/infrastructure/outbox"
	"ordercore/infrastructure/persistence/mysql/po"
	"ordercore/infrastructure/persistence/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &Config{LogLevel: "silent"}
	db, err := cfg.ConnectSQLite(filepath.Join(t.TempDir(), "ordercore.db"))
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedCatalog(t *testing.T, db *gorm.DB, stock map[string]int) *CatalogRepository {
	t.Helper()
	repo := NewCatalogRepository(db)
	var variants []inventory.Variant
	for sku, n := range stock {
		variants = append(variants, inventory.Variant{
			ProductID: "p1", ProductName: "Linen Shirt", Category: "shirts",
			VariantID: "v-" + sku, Sku: sku, Size: "M", Stock: n, Price: 15000, MRP: 19900,
		})
	}
	require.NoError(t, repo.Seed(context.Background(), variants...))
	return repo
}

func TestCatalogReserveRelease(t *testing.T) {
	db := newTestDB(t)
	catalog := seedCatalog(t, db, map[string]int{"SHIRT-M": 2})
	ctx := context.Background()

	v, err := catalog.Resolve(ctx, inventory.BySku("SHIRT-M"))
	require.NoError(t, err)
	assert.Equal(t, "Linen Shirt", v.ProductName)
	assert.Equal(t, int64(15000), v.Price)
	assert.Equal(t, inventory.StockInStock, v.StockStatus)

	require.NoError(t, catalog.Reserve(ctx, v.VariantID, v.Sku, 2))
	v, err = catalog.Resolve(ctx, inventory.ByID("v-SHIRT-M"))
	require.NoError(t, err)
	assert.Equal(t, 0, v.Stock)
	assert.Equal(t, inventory.StockOutOfStock, v.StockStatus)

	err = catalog.Reserve(ctx, v.VariantID, v.Sku, 1)
	assert.True(t, errors.Is(err, inventory.ErrInsufficientStock))

	require.NoError(t, catalog.Release(ctx, v.VariantID, 2))
	v, err = catalog.Resolve(ctx, inventory.BySku("SHIRT-M"))
	require.NoError(t, err)
	assert.Equal(t, 2, v.Stock)
	assert.Equal(t, inventory.StockInStock, v.StockStatus)

	_, err = catalog.Resolve(ctx, inventory.BySku("NOPE"))
	assert.True(t, errors.Is(err, inventory.ErrVariantNotFound))

	require.NoError(t, catalog.Seed(ctx, inventory.Variant{
		ProductID: "p2", ProductName: "Denim", VariantID: "v-jean", Sku: "jean-32", Stock: 1, Price: 250000, MRP: 250000,
	}))
	v, err = catalog.Resolve(ctx, inventory.BySku(" Jean-32 "))
	require.NoError(t, err, "sku lookup is case-insensitive")
	assert.Equal(t, "JEAN-32", v.Sku)
}

func TestConcurrentReserveLastUnit(t *testing.T) {
	cfg := &Config{LogLevel: "silent", MaxOpenConns: 8}
	db, err := cfg.ConnectSQLite(filepath.Join(t.TempDir(), "race.db"))
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	catalog := seedCatalog(t, db, map[string]int{"SHIRT-M": 1})
	factory := NewUnitOfWorkFactory(db, retry.DefaultConfig)

	const buyers = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, buyers)
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = factory.New().Execute(context.Background(), func(ctx context.Context) error {
				v, err := catalog.Resolve(ctx, inventory.BySku("SHIRT-M"))
				if err != nil {
					return err
				}
				return catalog.Reserve(ctx, v.VariantID, v.Sku, 1)
			})
		}(i)
	}
	close(start)
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	}
	assert.Equal(t, 1, won)

	v, err := catalog.Resolve(context.Background(), inventory.BySku("SHIRT-M"))
	require.NoError(t, err)
	assert.Equal(t, 0, v.Stock)
	assert.Equal(t, inventory.StockOutOfStock, v.StockStatus)
}

func TestSequenceNext(t *testing.T) {
	db := newTestDB(t)
	seq := NewSequenceRepository(db)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(ctx, "order_202601")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := seq.Next(ctx, "order_202602")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "each period starts at 1")
}

func TestIdempotencyStore(t *testing.T) {
	db := newTestDB(t)
	store := NewIdempotencyRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()
	notBefore := now.Add(-idempotency.DefaultRetention)

	require.NoError(t, store.Save(ctx, idempotency.Record{Key: "k1", OrderID: "o1", CreatedAt: now}, notBefore))
	err := store.Save(ctx, idempotency.Record{Key: "k1", OrderID: "o2", CreatedAt: now}, notBefore)
	assert.True(t, errors.Is(err, idempotency.ErrKeyConflict))

	rec, err := store.Find(ctx, "k1", notBefore)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "o1", rec.OrderID)

	old := idempotency.Record{Key: "k2", OrderID: "o3", CreatedAt: now.Add(-8 * 24 * time.Hour)}
	require.NoError(t, store.Save(ctx, old, old.CreatedAt.Add(-time.Hour)))
	rec, err = store.Find(ctx, "k2", notBefore)
	require.NoError(t, err)
	assert.Nil(t, rec, "expired record is treated as absent")

	require.NoError(t, store.Save(ctx, idempotency.Record{Key: "k2", OrderID: "o4", CreatedAt: now}, notBefore),
		"expired key can be reused")

	n, err := store.Purge(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func buildOrder(t *testing.T, ctx context.Context, catalog *CatalogRepository, db *gorm.DB, sku string, method payment.Method) *order.Order {
	t.Helper()
	b := order.NewBuilder(catalog, NewSequenceRepository(db), order.Numbering{Prefix: "ORD"}, order.PricingPolicy{
		Currency: "INR", DeliveryFee: 7000, FreeDeliveryThreshold: 99900, CODFee: 4000,
	})
	o, err := b.Build(ctx, order.PlaceRequest{
		UserID:          "u1",
		Contact:         order.Contact{Name: "Asha", Email: "asha@example.com"},
		ShippingAddress: order.Address{Line1: "12 MG Road", City: "Pune", PostalCode: "411001", Country: "IN"},
		Lines:           []order.LineRequest{{Ref: inventory.BySku(sku), Quantity: 2}},
		Method:          method,
	})
	require.NoError(t, err)
	return o
}

func TestUnitOfWorkCommitsOrderAndOutbox(t *testing.T) {
	db := newTestDB(t)
	catalog := seedCatalog(t, db, map[string]int{"SHIRT-M": 5})
	orders := NewOrderRepository(db)
	uow := NewUnitOfWorkFactory(db, retry.DefaultConfig).New()
	ctx := context.Background()

	var placed *order.Order
	err := uow.Execute(ctx, func(ctx context.Context) error {
		placed = buildOrder(t, ctx, catalog, db, "SHIRT-M", payment.MethodCOD)
		if err := orders.Save(ctx, placed); err != nil {
			return err
		}
		uow.RegisterNew(placed)
		return nil
	})
	require.NoError(t, err)

	loaded, err := orders.FindByID(ctx, placed.ID())
	require.NoError(t, err)
	assert.Equal(t, placed.OrderNumber(), loaded.OrderNumber())
	assert.Equal(t, order.Totals{Subtotal: 30000, ShippingTotal: 7000, CODCharge: 4000, GrandTotal: 41000}, loaded.Totals())
	assert.Equal(t, order.StatusProcessing, loaded.Status())
	assert.Equal(t, "Pune", loaded.ShippingAddress().City)
	require.Len(t, loaded.Items(), 1)
	assert.Equal(t, "Linen Shirt", loaded.Items()[0].ProductName())
	require.Len(t, loaded.History(), 1)

	events, err := NewOutboxRepository(db).GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "order.placed", events[0].EventType)
	assert.Contains(t, events[0].Payload, placed.OrderNumber())
}

func TestUnitOfWorkRollsBackReservation(t *testing.T) {
	db := newTestDB(t)
	catalog := seedCatalog(t, db, map[string]int{"SHIRT-M": 5})
	ctx := context.Background()
	boom := errors.New("boom")

	err := NewUnitOfWork(db).Execute(ctx, func(ctx context.Context) error {
		buildOrder(t, ctx, catalog, db, "SHIRT-M", payment.MethodRazorpay)
		return boom
	})
	require.ErrorIs(t, err, boom)

	v, err := catalog.Resolve(ctx, inventory.BySku("SHIRT-M"))
	require.NoError(t, err)
	assert.Equal(t, 5, v.Stock, "stock restored on rollback")

	var count int64
	require.NoError(t, db.Model(&po.OrderCounterPO{}).Count(&count).Error)
	assert.Zero(t, count, "counter rolled back with the transaction")
}

func TestConditionalUpdates(t *testing.T) {
	db := newTestDB(t)
	catalog := seedCatalog(t, db, map[string]int{"SHIRT-M": 5})
	orders := NewOrderRepository(db)
	ctx := context.Background()

	o := buildOrder(t, ctx, catalog, db, "SHIRT-M", payment.MethodRazorpay)
	require.NoError(t, orders.Save(ctx, o))

	applied, err := orders.AttachGatewaySession(ctx, o.ID(), &payment.Session{GatewayReference: "order_rzp_1"})
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = orders.AttachGatewaySession(ctx, o.ID(), &payment.Session{GatewayReference: "order_rzp_2"})
	require.NoError(t, err)
	assert.False(t, applied, "session is attached once")

	found, err := orders.FindByGatewayReference(ctx, payment.MethodRazorpay, "order_rzp_1")
	require.NoError(t, err)
	assert.Equal(t, o.ID(), found.ID())

	paid, err := found.MarkPaid("pay_1", "captured", time.Now())
	require.NoError(t, err)
	applied, err = orders.TransitionStatus(ctx, paid)
	require.NoError(t, err)
	assert.True(t, applied)

	expired := order.Transition{OrderID: o.ID(), From: order.StatusPendingPayment, To: order.StatusExpired,
		Entry: order.HistoryEntry{Status: order.StatusExpired, At: time.Now()}}
	applied, err = orders.TransitionStatus(ctx, expired)
	require.NoError(t, err)
	assert.False(t, applied, "stale guard must not apply")

	loaded, err := orders.FindByID(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, loaded.Status())
	assert.Equal(t, payment.StatusPaid, loaded.Payment().Status)
	assert.Len(t, loaded.History(), 2)

	grand := loaded.Totals().GrandTotal
	applied, err = orders.ReserveRefund(ctx, o.ID(), grand+1)
	require.NoError(t, err)
	assert.False(t, applied)
	applied, err = orders.ReserveRefund(ctx, o.ID(), grand)
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = orders.ReserveRefund(ctx, o.ID(), 1)
	require.NoError(t, err)
	assert.False(t, applied, "cannot refund past the grand total")
	require.NoError(t, orders.ReleaseRefund(ctx, o.ID(), grand))
}

func TestFindBySpecificationAndExpired(t *testing.T) {
	db := newTestDB(t)
	catalog := seedCatalog(t, db, map[string]int{"SHIRT-M": 10})
	orders := NewOrderRepository(db)
	ctx := context.Background()

	cod := buildOrder(t, ctx, catalog, db, "SHIRT-M", payment.MethodCOD)
	online := buildOrder(t, ctx, catalog, db, "SHIRT-M", payment.MethodPhonePe)
	require.NoError(t, orders.Save(ctx, cod))
	require.NoError(t, orders.Save(ctx, online))

	list, total, err := orders.FindBySpecification(ctx, order.Filter{UserID: "u1"}.Specification(), order.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	list, total, err = orders.FindBySpecification(ctx, order.Filter{Method: payment.MethodCOD}.Specification(), order.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, cod.ID(), list[0].ID())

	pending, err := orders.FindExpiredPending(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, online.ID(), pending[0].ID())

	pending, err = orders.FindExpiredPending(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxWorkerRelaysFromSQL(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()
	catalog := seedCatalog(t, db, map[string]int{"SHIRT-M": 5})

	o := buildOrder(t, ctx, catalog, db, "SHIRT-M", payment.MethodCOD)
	for _, e := range o.PullEvents() {
		require.NoError(t, repo.SaveEvent(ctx, e))
	}

	w, err := outbox.NewWorker(repo, &outbox.LoggingPublisher{}, nil, time.Second, 10, 3)
	require.NoError(t, err)
	n, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := repo.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxFailureAndLease(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()
	catalog := seedCatalog(t, db, map[string]int{"SHIRT-M": 5})

	o := buildOrder(t, ctx, catalog, db, "SHIRT-M", payment.MethodCOD)
	for _, e := range o.PullEvents() {
		require.NoError(t, repo.SaveEvent(ctx, e))
	}
	pending, err := repo.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	id := pending[0].ID

	require.NoError(t, repo.MarkEventProcessing(ctx, id))
	assert.ErrorIs(t, repo.MarkEventProcessing(ctx, id), outbox.ErrAlreadyClaimed)

	// 第一次失败回到 PENDING，第二次达到上限
	require.NoError(t, repo.MarkEventFailed(ctx, id, 2))
	var row po.OutboxEventPO
	require.NoError(t, db.First(&row, "id = ?", id).Error)
	assert.Equal(t, string(outbox.StatusPending), row.Status)
	assert.Equal(t, 1, row.RetryCount)

	require.NoError(t, repo.MarkEventProcessing(ctx, id))
	require.NoError(t, repo.MarkEventFailed(ctx, id, 2))
	require.NoError(t, db.First(&row, "id = ?", id).Error)
	assert.Equal(t, string(outbox.StatusFailed), row.Status)
	assert.Equal(t, 2, row.RetryCount)

	// 租约过期的 PROCESSING 事件被放回
	require.NoError(t, db.Model(&po.OutboxEventPO{}).Where("id = ?", id).
		Updates(map[string]any{"status": string(outbox.StatusProcessing), "updated_at": time.Now().UTC().Add(-time.Hour)}).Error)
	n, err := repo.ReclaimStale(ctx, time.Now().UTC().Add(-outbox.ProcessingLease))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = repo.ReclaimStale(ctx, time.Now().UTC().Add(-outbox.ProcessingLease))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
