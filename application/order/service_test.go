package order

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ordercore/application/expiry"
	"ordercore/config"
	"ordercore/domain/idempotency"
	"ordercore/domain/inventory"
	"ordercore/domain/order"
	"ordercore/domain/payment"
	"ordercore/domain/shared"
	"ordercore/domain/user"
	"ordercore/infrastructure/gateway"
	"ordercore/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolver map[payment.Method]payment.Provider

func (r resolver) Resolve(m payment.Method) (payment.Provider, error) {
	p, ok := r[m]
	if !ok {
		return nil, payment.ErrMethodDisabled
	}
	return p, nil
}

// flakyProvider 在开关打开时模拟网关不可用
type flakyProvider struct {
	payment.Provider
	failSessions atomic.Bool
	failRefunds  atomic.Bool
	sessions     atomic.Int32
}

func (p *flakyProvider) CreatePaymentSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	p.sessions.Add(1)
	if p.failSessions.Load() {
		return nil, payment.NewGatewayError(p.Method(), "create_session", 503, errors.New("unavailable"))
	}
	return p.Provider.CreatePaymentSession(ctx, req)
}

func (p *flakyProvider) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundReceipt, error) {
	if p.failRefunds.Load() {
		return nil, payment.NewGatewayError(p.Method(), "refund", 502, errors.New("bad gateway"))
	}
	return p.Provider.Refund(ctx, req)
}

type harness struct {
	svc     *ApplicationService
	store   *memory.Store
	catalog *memory.CatalogRepository
	orders  *memory.OrderRepository
	rz      *flakyProvider
	sim     *gateway.Simulated
	now     time.Time
}

func newHarness(t *testing.T, stock int) *harness {
	t.Helper()
	store := memory.NewStore()
	catalog := memory.NewCatalogRepository(store)
	require.NoError(t, catalog.Seed(context.Background(), inventory.Variant{
		ProductID: "p1", ProductName: "Linen Shirt", VariantID: "v1", Sku: "SHIRT-M",
		Size: "M", Stock: stock, Price: 15000, MRP: 19900,
	}))

	registry, err := gateway.NewRegistry(config.PaymentConfig{
		EnabledMethods: []string{"razorpay", "cod"},
		PublicBaseURL:  "http://localhost:8080",
		Razorpay:       config.RazorpayConfig{KeyID: "rzp_placeholder", KeySecret: "placeholder", WebhookSecret: "placeholder"},
	}, false, nil)
	require.NoError(t, err)
	rz, err := registry.Resolve(payment.MethodRazorpay)
	require.NoError(t, err)
	sim, ok := registry.Simulator(payment.MethodRazorpay)
	require.True(t, ok)

	h := &harness{
		store:   store,
		catalog: catalog,
		orders:  memory.NewOrderRepository(store),
		rz:      &flakyProvider{Provider: rz},
		sim:     sim,
		now:     time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC),
	}
	h.svc = NewApplicationService(Dependencies{
		UnitOfWork:  memory.NewUnitOfWorkFactory(store),
		Orders:      h.orders,
		Catalog:     catalog,
		Sequence:    memory.NewSequenceRepository(store),
		Users:       memory.NewUserRepository(store),
		Idempotency: memory.NewIdempotencyRepository(store),
		Payments:    resolver{payment.MethodRazorpay: h.rz, payment.MethodCOD: gateway.COD{}},
	}, Options{
		Numbering: order.Numbering{Prefix: "ORD"},
		Pricing:   order.PricingPolicy{Currency: "INR", DeliveryFee: 7000, FreeDeliveryThreshold: 99900, CODFee: 4000},
	}).WithClock(func() time.Time { return h.now })
	return h
}

func createCmd(method string, qty int, key string) CreateOrderCommand {
	return CreateOrderCommand{
		CreateOrderRequest: CreateOrderRequest{
			Items:           []LineInput{{Sku: "SHIRT-M", Quantity: qty}},
			ShippingAddress: AddressInput{Line1: "12 MG Road", City: "Pune", PostalCode: "411001"},
			PaymentMethod:   method,
			Contact:         &ContactInput{Name: "Asha", Email: "asha@example.com"},
		},
		UserID:         "u1",
		IdempotencyKey: key,
	}
}

func (h *harness) stock(t *testing.T) int {
	t.Helper()
	v, err := h.catalog.Resolve(context.Background(), inventory.ByID("v1"))
	require.NoError(t, err)
	return v.Stock
}

func (h *harness) capture(t *testing.T, ref string) *WebhookResult {
	t.Helper()
	raw, sig, err := h.sim.Complete(ref, payment.OutcomeCaptured)
	require.NoError(t, err)
	res, err := h.svc.HandleWebhook(context.Background(), payment.MethodRazorpay, raw, sig)
	require.NoError(t, err)
	return res
}

func TestCreateOrderCODThenStockOut(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	res, err := h.svc.CreateOrder(ctx, createCmd("cod", 2, ""))
	require.NoError(t, err)
	assert.Equal(t, "processing", res.Order.Status)
	assert.Equal(t, int64(30000), res.Order.Totals.Subtotal.Minor)
	assert.Equal(t, int64(41000), res.Order.Totals.GrandTotal.Minor)
	assert.Equal(t, "410.00", res.Order.Totals.GrandTotal.Display)
	assert.Nil(t, res.Session)
	assert.Regexp(t, `^ORD-202610-000001$`, res.Order.OrderNumber)
	assert.Equal(t, 0, h.stock(t))

	_, err = h.svc.CreateOrder(ctx, createCmd("cod", 1, ""))
	var stockErr *inventory.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "SHIRT-M", stockErr.Sku)
}

func TestCreateOrderStockIsMutuallyExclusive(t *testing.T) {
	h := newHarness(t, 1)

	var wins, stockOuts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.CreateOrder(context.Background(), createCmd("cod", 1, ""))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, inventory.ErrInsufficientStock):
				stockOuts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(15), stockOuts.Load())
	assert.Equal(t, 0, h.stock(t))
}

func TestCreateOrderIsAtomic(t *testing.T) {
	h := newHarness(t, 5)
	cmd := createCmd("cod", 1, "")
	cmd.Items = append(cmd.Items, LineInput{Sku: "MISSING", Quantity: 1})

	_, err := h.svc.CreateOrder(context.Background(), cmd)
	require.ErrorIs(t, err, inventory.ErrVariantNotFound)
	assert.Equal(t, 5, h.stock(t), "first line's reservation rolled back")

	page, err := h.svc.GetUserOrders(context.Background(), "u1", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()

	first, err := h.svc.CreateOrder(ctx, createCmd("razorpay", 2, "checkout-123"))
	require.NoError(t, err)
	require.NotNil(t, first.Session)
	assert.False(t, first.Reused)

	second, err := h.svc.CreateOrder(ctx, createCmd("razorpay", 2, " checkout-123 "))
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, first.Session.GatewayReference, second.Session.GatewayReference)
	assert.Equal(t, 3, h.stock(t), "stock decremented once")
	assert.Equal(t, int32(1), h.rz.sessions.Load())

	other := createCmd("razorpay", 1, "checkout-123")
	other.UserID = "u2"
	_, err = h.svc.CreateOrder(ctx, other)
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestIdempotencyKeyExpires(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()

	first, err := h.svc.CreateOrder(ctx, createCmd("cod", 1, "k1"))
	require.NoError(t, err)

	h.now = h.now.Add(idempotency.DefaultRetention + time.Minute)
	second, err := h.svc.CreateOrder(ctx, createCmd("cod", 1, "k1"))
	require.NoError(t, err)
	assert.False(t, second.Reused)
	assert.NotEqual(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 3, h.stock(t))
}

func TestSessionFailureKeepsCommittedOrder(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	h.rz.failSessions.Store(true)

	res, err := h.svc.CreateOrder(ctx, createCmd("razorpay", 2, "k-retry"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionError)
	assert.Nil(t, res.Session)
	assert.Equal(t, "pending_payment", res.Order.Status)
	assert.Equal(t, 3, h.stock(t))

	_, err = h.svc.AttachPaymentSession(ctx, "u1", res.Order.ID)
	assert.ErrorIs(t, err, payment.ErrGateway)

	h.rz.failSessions.Store(false)
	session, err := h.svc.AttachPaymentSession(ctx, "u1", res.Order.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, session.GatewayReference)
	assert.Equal(t, int64(37000), session.Amount.Minor)

	again, err := h.svc.AttachPaymentSession(ctx, "u1", res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, session.GatewayReference, again.GatewayReference, "stored session is returned")
	assert.Equal(t, 3, h.stock(t), "retry never re-reserves stock")

	_, err = h.svc.AttachPaymentSession(ctx, "u2", res.Order.ID)
	assert.ErrorIs(t, err, order.ErrNotOwner)
}

func TestWebhookCapturesOnce(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()

	res, err := h.svc.CreateOrder(ctx, createCmd("razorpay", 2, ""))
	require.NoError(t, err)
	raw, sig, err := h.sim.Complete(res.Session.GatewayReference, payment.OutcomeCaptured)
	require.NoError(t, err)

	first, err := h.svc.HandleWebhook(ctx, payment.MethodRazorpay, raw, sig)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, "processing", first.Status)

	dup, err := h.svc.HandleWebhook(ctx, payment.MethodRazorpay, raw, sig)
	require.NoError(t, err)
	assert.False(t, dup.Applied)

	o, err := h.svc.GetOrderByID(ctx, "u1", res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", o.Payment.Status)
	assert.NotEmpty(t, o.Payment.GatewayPaymentID)
	assert.Len(t, o.History, 2)
}

func TestWebhookRejectsBadSignatureAndAmount(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	res, err := h.svc.CreateOrder(ctx, createCmd("razorpay", 2, ""))
	require.NoError(t, err)

	raw, sig, err := h.sim.Complete(res.Session.GatewayReference, payment.OutcomeCaptured)
	require.NoError(t, err)
	_, err = h.svc.HandleWebhook(ctx, payment.MethodRazorpay, raw, sign("other-secret", raw))
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	assert.NotEqual(t, sig, sign("other-secret", raw))

	forged := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_x","order_id":"` +
		res.Session.GatewayReference + `","amount":100,"status":"captured"}}}}`)
	_, err = h.svc.HandleWebhook(ctx, payment.MethodRazorpay, forged, sign("placeholder", forged))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	o, err := h.orders.FindByID(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPendingPayment, o.Status())
}

func TestWebhookFailureKeepsOrderPending(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	res, err := h.svc.CreateOrder(ctx, createCmd("razorpay", 1, ""))
	require.NoError(t, err)

	raw, sig, err := h.sim.Complete(res.Session.GatewayReference, payment.OutcomeFailed)
	require.NoError(t, err)
	out, err := h.svc.HandleWebhook(ctx, payment.MethodRazorpay, raw, sig)
	require.NoError(t, err)
	assert.True(t, out.Applied)

	o, err := h.orders.FindByID(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPendingPayment, o.Status())
	assert.Equal(t, payment.StatusFailed, o.Payment().Status)
}

func TestLateWebhookAfterExpiry(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	res, err := h.svc.CreateOrder(ctx, createCmd("razorpay", 2, ""))
	require.NoError(t, err)

	sweeper, err := expiry.NewSweeper(memory.NewUnitOfWorkFactory(h.store), h.orders, h.catalog, nil, nil, expiry.Config{})
	require.NoError(t, err)
	sweeper.WithClock(func() time.Time { return h.now.Add(16 * time.Minute) })
	sweep, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sweep.Expired)
	assert.Equal(t, 5, h.stock(t))

	out := h.capture(t, res.Session.GatewayReference)
	assert.False(t, out.Applied)
	assert.Equal(t, "expired", out.Status)
	assert.Equal(t, 5, h.stock(t), "late payment does not touch stock")

	_, err = h.svc.AttachPaymentSession(ctx, "u1", res.Order.ID)
	assert.NoError(t, err, "stored session is still returned")
}

func TestUpdateOrderStatus(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	res, err := h.svc.CreateOrder(ctx, createCmd("cod", 2, ""))
	require.NoError(t, err)

	_, err = h.svc.UpdateOrderStatus(ctx, UpdateStatusCommand{UpdateStatusRequest: UpdateStatusRequest{Status: "expired"}, AdminID: "a1", OrderID: res.Order.ID})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = h.svc.UpdateOrderStatus(ctx, UpdateStatusCommand{UpdateStatusRequest: UpdateStatusRequest{Status: "delivered"}, AdminID: "a1", OrderID: res.Order.ID})
	assert.ErrorIs(t, err, order.ErrInvalidTransition)

	out, err := h.svc.UpdateOrderStatus(ctx, UpdateStatusCommand{
		UpdateStatusRequest: UpdateStatusRequest{Status: "cancelled", Note: "customer called"},
		AdminID:             "a1",
		OrderID:             res.Order.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", out.Status)
	assert.Equal(t, "a1", out.History[len(out.History)-1].By)
	assert.Equal(t, 5, h.stock(t), "cancellation releases stock")

	_, err = h.svc.UpdateOrderStatus(ctx, UpdateStatusCommand{UpdateStatusRequest: UpdateStatusRequest{Status: "processing"}, AdminID: "a1", OrderID: res.Order.ID})
	assert.ErrorIs(t, err, order.ErrInvalidTransition, "terminal status")
}

func TestAdminCannotSettleOnlinePayment(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	res, err := h.svc.CreateOrder(ctx, createCmd("razorpay", 2, ""))
	require.NoError(t, err)

	_, err = h.svc.UpdateOrderStatus(ctx, UpdateStatusCommand{UpdateStatusRequest: UpdateStatusRequest{Status: "processing"}, AdminID: "a1", OrderID: res.Order.ID})
	assert.ErrorIs(t, err, order.ErrInvalidTransition)

	out := h.capture(t, res.Session.GatewayReference)
	assert.True(t, out.Applied, "webhook still owns pending_payment")
	assert.Equal(t, "processing", out.Status)

	refund, err := h.svc.RefundOrder(ctx, RefundCommand{RefundRequest: RefundRequest{Reason: "returned"}, AdminID: "a1", OrderID: res.Order.ID})
	require.NoError(t, err)
	assert.Equal(t, "refunded", refund.Status)
}

func TestAdminCancelOfPaidOrderRequiresRefund(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	res, err := h.svc.CreateOrder(ctx, createCmd("razorpay", 2, ""))
	require.NoError(t, err)
	h.capture(t, res.Session.GatewayReference)

	_, err = h.svc.UpdateOrderStatus(ctx, UpdateStatusCommand{UpdateStatusRequest: UpdateStatusRequest{Status: "cancelled"}, AdminID: "a1", OrderID: res.Order.ID})
	assert.ErrorIs(t, err, order.ErrRefundRequired)
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, 3, h.stock(t), "stock stays reserved")

	o, err := h.orders.FindByID(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, o.Status())
	assert.Equal(t, payment.StatusPaid, o.Payment().Status)

	refund, err := h.svc.RefundOrder(ctx, RefundCommand{RefundRequest: RefundRequest{Reason: "customer cancelled"}, AdminID: "a1", OrderID: res.Order.ID})
	require.NoError(t, err)
	assert.Equal(t, "refunded", refund.Status)
}

func TestRefundPartialThenFull(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	res, err := h.svc.CreateOrder(ctx, createCmd("razorpay", 2, ""))
	require.NoError(t, err)
	h.capture(t, res.Session.GatewayReference)

	partial, err := h.svc.RefundOrder(ctx, RefundCommand{RefundRequest: RefundRequest{Amount: "70.00", Reason: "late delivery"}, AdminID: "a1", OrderID: res.Order.ID})
	require.NoError(t, err)
	assert.Equal(t, "processing", partial.Status)
	assert.Equal(t, "partially_refunded", partial.Payment.Status)
	assert.Equal(t, int64(7000), partial.Payment.RefundedTotal.Minor)

	_, err = h.svc.RefundOrder(ctx, RefundCommand{RefundRequest: RefundRequest{Amount: "400.00", Reason: "too much"}, AdminID: "a1", OrderID: res.Order.ID})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	full, err := h.svc.RefundOrder(ctx, RefundCommand{RefundRequest: RefundRequest{Reason: "returned"}, AdminID: "a1", OrderID: res.Order.ID})
	require.NoError(t, err)
	assert.Equal(t, "refunded", full.Status)
	assert.Equal(t, "refunded", full.Payment.Status)
	assert.Len(t, full.Payment.Refunds, 2)
	assert.Equal(t, int64(37000), full.Payment.RefundedTotal.Minor)
}

func TestRefundGatewayFailureReleasesReservation(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	res, err := h.svc.CreateOrder(ctx, createCmd("razorpay", 2, ""))
	require.NoError(t, err)
	h.capture(t, res.Session.GatewayReference)
	h.rz.failRefunds.Store(true)

	_, err = h.svc.RefundOrder(ctx, RefundCommand{RefundRequest: RefundRequest{Reason: "returned"}, AdminID: "a1", OrderID: res.Order.ID})
	assert.ErrorIs(t, err, payment.ErrGateway)

	o, err := h.orders.FindByID(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Zero(t, o.Payment().RefundedTotal)
	assert.Equal(t, payment.StatusPaid, o.Payment().Status)
}

func TestCODRefundNotApplicable(t *testing.T) {
	h := newHarness(t, 5)
	res, err := h.svc.CreateOrder(context.Background(), createCmd("cod", 1, ""))
	require.NoError(t, err)
	_, err = h.svc.RefundOrder(context.Background(), RefundCommand{RefundRequest: RefundRequest{Reason: "x"}, OrderID: res.Order.ID})
	assert.ErrorIs(t, err, order.ErrRefundNotApplicable)
}

func TestReconcileAppliesLostWebhook(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	res, err := h.svc.CreateOrder(ctx, createCmd("razorpay", 1, ""))
	require.NoError(t, err)

	// payment completes at the gateway but the webhook never arrives
	_, _, err = h.sim.Complete(res.Session.GatewayReference, payment.OutcomeCaptured)
	require.NoError(t, err)

	out, err := h.svc.ReconcilePayment(ctx, "a1", res.Order.ID)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, "processing", out.Status)
}

func TestQueriesAndOwnership(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := h.svc.CreateOrder(ctx, createCmd("cod", 1, ""))
		require.NoError(t, err)
	}
	page, err := h.svc.GetUserOrders(ctx, "u1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Orders, 2)

	_, err = h.svc.GetOrderByID(ctx, "u2", page.Orders[0].ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	list, err := h.svc.ListOrders(ctx, ListOrdersQuery{Status: "processing", Method: "cod"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Total)
	_, err = h.svc.ListOrders(ctx, ListOrdersQuery{Status: "bogus"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestCreateOrderValidation(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()

	_, err := h.svc.CreateOrder(ctx, createCmd("paypal", 1, ""))
	assert.ErrorIs(t, err, payment.ErrUnknownMethod)
	_, err = h.svc.CreateOrder(ctx, createCmd("phonepe", 1, ""))
	assert.ErrorIs(t, err, payment.ErrMethodDisabled)

	cmd := createCmd("cod", 1, "")
	cmd.Items[0].Sku = ""
	_, err = h.svc.CreateOrder(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.Equal(t, 5, h.stock(t))
}

func TestContactSnapshotFromUser(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	users := memory.NewUserRepository(h.store)
	u, err := user.NewUser("Ravi", "ravi@example.com", "9876543210")
	require.NoError(t, err)
	require.NoError(t, users.Save(ctx, u))

	cmd := createCmd("cod", 1, "")
	cmd.UserID = u.ID()
	res, err := h.svc.CreateOrder(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, "ravi@example.com", res.Order.Contact.Email, "stored contact wins over the request")

	u.Deactivate()
	require.NoError(t, users.Save(ctx, u))
	_, err = h.svc.CreateOrder(ctx, cmd)
	assert.ErrorIs(t, err, user.ErrUserNotActive)
	assert.Equal(t, 4, h.stock(t))

	cmd = createCmd("cod", 1, "")
	cmd.UserID = "ghost"
	cmd.Contact = nil
	_, err = h.svc.CreateOrder(ctx, cmd)
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

// sign 与 Razorpay webhook 相同的 HMAC-SHA256 十六进制签名
func sign(secret string, raw []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}
