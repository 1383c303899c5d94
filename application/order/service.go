/*
Package order 应用层：下单、支付会话、webhook 对账与后台订单操作的编排。

事务内只做本地数据库写入（库存预留、订单、幂等记录、outbox 事件），
支付网关调用一律在提交之后进行，失败不回滚已提交的订单。
*/
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ordercore/domain/idempotency"
	"ordercore/domain/inventory"
	"ordercore/domain/order"
	"ordercore/domain/payment"
	"ordercore/domain/shared"
	"ordercore/domain/user"
	"ordercore/pkg/logger"
	"ordercore/pkg/metrics"
	"ordercore/pkg/money"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// errNotApplied 条件更新未命中，回滚事务后由调用方重新读取状态
var errNotApplied = errors.New("conditional update not applied")

// Dependencies 仓储和外部端口
type Dependencies struct {
	UnitOfWork  shared.UnitOfWorkFactory
	Orders      order.Repository
	Catalog     inventory.Catalog
	Sequence    order.Sequence
	Users       user.Repository
	Idempotency idempotency.Store
	Cache       idempotency.Cache // 可选
	Payments    payment.Resolver
	Metrics     *metrics.Metrics
}

// Options 下单策略
type Options struct {
	Numbering      order.Numbering
	Pricing        order.PricingPolicy
	Retention      time.Duration
	GatewayTimeout time.Duration
}

// ApplicationService 订单应用服务
type ApplicationService struct {
	uowFactory shared.UnitOfWorkFactory
	orders     order.Repository
	catalog    inventory.Catalog
	keys       idempotency.Store
	cache      idempotency.Cache
	payments   payment.Resolver
	contacts   *contactResolver
	builder    *order.Builder
	metrics    *metrics.Metrics

	retention      time.Duration
	gatewayTimeout time.Duration
	now            func() time.Time
}

func NewApplicationService(deps Dependencies, opts Options) *ApplicationService {
	if opts.Retention <= 0 {
		opts.Retention = idempotency.DefaultRetention
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 15 * time.Second
	}
	return &ApplicationService{
		uowFactory:     deps.UnitOfWork,
		orders:         deps.Orders,
		catalog:        deps.Catalog,
		keys:           deps.Idempotency,
		cache:          deps.Cache,
		payments:       deps.Payments,
		contacts:       &contactResolver{userRepo: deps.Users},
		builder:        order.NewBuilder(deps.Catalog, deps.Sequence, opts.Numbering, opts.Pricing),
		metrics:        deps.Metrics,
		retention:      opts.Retention,
		gatewayTimeout: opts.GatewayTimeout,
		now:            time.Now,
	}
}

// WithClock 替换时间源（测试用），同时作用于订单构建
func (s *ApplicationService) WithClock(now func() time.Time) *ApplicationService {
	s.now = now
	s.builder.WithClock(now)
	return s
}

// ============================================================================
// 下单
// ============================================================================

// CreateOrder 幂等快速路径 -> 单事务构建订单 -> 提交后创建网关会话
func (s *ApplicationService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*CreateOrderResult, error) {
	key, err := idempotency.NormalizeKey(cmd.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	method, err := payment.ParseMethod(strings.ToLower(cmd.PaymentMethod))
	if err != nil {
		return nil, err
	}
	provider, err := s.payments.Resolve(method)
	if err != nil {
		return nil, err
	}
	for i, item := range cmd.Items {
		if item.VariantID == "" && item.Sku == "" {
			return nil, shared.NewValidationError("order", fmt.Sprintf("items[%d]", i), "variant_id or sku is required")
		}
	}

	if key != "" {
		existing, err := s.lookupIdempotent(ctx, cmd.UserID, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.replay(ctx, existing, provider), nil
		}
	}

	contact, err := s.contacts.Snapshot(ctx, cmd.UserID, cmd.Contact)
	if err != nil {
		return nil, err
	}
	req := order.PlaceRequest{
		UserID:          cmd.UserID,
		Contact:         contact,
		ShippingAddress: toAddress(cmd.ShippingAddress),
		Lines:           toLineRequests(cmd.Items),
		Method:          method,
		IdempotencyKey:  key,
	}

	var placed *order.Order
	uow := s.uowFactory.New()
	err = uow.Execute(ctx, func(ctx context.Context) error {
		o, err := s.builder.Build(ctx, req)
		if err != nil {
			return err
		}
		if err := s.orders.Save(ctx, o); err != nil {
			return err
		}
		if key != "" {
			now := s.now().UTC()
			record := idempotency.Record{Key: key, OrderID: o.ID(), CreatedAt: now}
			if err := s.keys.Save(ctx, record, now.Add(-s.retention)); err != nil {
				return err
			}
		}
		uow.RegisterNew(o)
		placed = o
		return nil
	})
	if err != nil {
		if errors.Is(err, idempotency.ErrKeyConflict) {
			// 并发的同 key 请求先提交，本事务已回滚，返回对方创建的订单
			existing, lookupErr := s.lookupIdempotent(ctx, cmd.UserID, key)
			if lookupErr == nil && existing != nil {
				return s.replay(ctx, existing, provider), nil
			}
			return nil, shared.NewConflictError("order", "idempotency key is being used by another request")
		}
		if errors.Is(err, inventory.ErrInsufficientStock) {
			s.metrics.StockRejected()
		}
		return nil, err
	}

	s.metrics.OrderPlaced(string(method))
	log := logger.FromContext(ctx).With(
		zap.String("order_id", placed.ID()),
		zap.String("order_number", placed.OrderNumber()),
		zap.String("provider", string(method)))
	log.Info("order placed", zap.Int64("grand_total", placed.Totals().GrandTotal))

	if key != "" && s.cache != nil {
		if err := s.cache.Set(ctx, key, placed.ID(), s.retention); err != nil {
			log.Warn("failed to cache idempotency key", zap.Error(err))
		}
	}

	result := &CreateOrderResult{Order: toOrderResponse(placed)}
	if !provider.RequiresSession() {
		return result, nil
	}
	session, err := s.openSession(ctx, placed, provider)
	if err != nil {
		log.Warn("payment session not created, order kept pending", zap.Error(err))
		result.SessionError = sessionErrorMessage(err)
		return result, nil
	}
	result.Session = toSessionResponse(placed.ID(), session)
	result.Order = toOrderResponse(placed)
	return result, nil
}

// lookupIdempotent 先查缓存再查库；key 属于其他用户时视为冲突
func (s *ApplicationService) lookupIdempotent(ctx context.Context, userID, key string) (*order.Order, error) {
	orderID := ""
	if s.cache != nil {
		id, found, err := s.cache.Get(ctx, key)
		if err != nil {
			logger.FromContext(ctx).Warn("idempotency cache lookup failed", zap.Error(err))
		} else if found {
			orderID = id
		}
	}
	if orderID == "" {
		rec, err := s.keys.Find(ctx, key, s.now().UTC().Add(-s.retention))
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil
		}
		orderID = rec.OrderID
	}

	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !o.BelongsTo(userID) {
		return nil, shared.NewConflictError("order", "idempotency key already used")
	}
	return o, nil
}

// replay 返回已有订单；缺少网关会话时补建，不会再次预留库存
func (s *ApplicationService) replay(ctx context.Context, o *order.Order, provider payment.Provider) *CreateOrderResult {
	s.metrics.Replayed()
	result := &CreateOrderResult{Order: toOrderResponse(o), Reused: true}
	if !provider.RequiresSession() || o.PaymentMethod() != provider.Method() {
		return result
	}
	if session := o.Session(); session != nil {
		result.Session = toSessionResponse(o.ID(), session)
		return result
	}
	if o.Status() != order.StatusPendingPayment {
		return result
	}
	session, err := s.openSession(ctx, o, provider)
	if err != nil {
		result.SessionError = sessionErrorMessage(err)
		return result
	}
	result.Session = toSessionResponse(o.ID(), session)
	result.Order = toOrderResponse(o)
	return result
}

// openSession 在事务外调用网关，再以条件更新挂接会话。
// 条件未命中时重新读取：已有会话则返回它，已过期则返回过期错误。
func (s *ApplicationService) openSession(ctx context.Context, o *order.Order, provider payment.Provider) (*payment.Session, error) {
	contact := o.Contact()
	req := payment.SessionRequest{
		OrderID:     o.ID(),
		OrderNumber: o.OrderNumber(),
		Amount:      o.Totals().GrandTotal,
		Currency:    o.Currency(),
		Customer:    payment.Customer{ID: o.UserID(), Name: contact.Name, Email: contact.Email, Phone: contact.Phone},
	}

	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	session, err := provider.CreatePaymentSession(callCtx, req)
	cancel()
	s.metrics.GatewayCall(string(provider.Method()), "create_session", err)
	if err != nil {
		return nil, err
	}

	applied, err := s.orders.AttachGatewaySession(ctx, o.ID(), session)
	if err != nil {
		return nil, err
	}
	if applied {
		_ = o.AttachSession(session)
		return session, nil
	}

	current, err := s.orders.FindByID(ctx, o.ID())
	if err != nil {
		return nil, err
	}
	if stored := current.Session(); stored != nil {
		return stored, nil
	}
	if current.Status() == order.StatusExpired {
		return nil, order.NewOrderExpiredError(o.ID())
	}
	return nil, order.NewConcurrentModificationError(o.ID())
}

func sessionErrorMessage(err error) string {
	var ge *payment.GatewayError
	if errors.As(err, &ge) {
		return "payment gateway unavailable, retry the payment session"
	}
	return err.Error()
}

// AttachPaymentSession 客户端重试创建支付会话
func (s *ApplicationService) AttachPaymentSession(ctx context.Context, userID, orderID string) (*SessionResponse, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.BelongsTo(userID) {
		return nil, order.NewNotOwnerError(orderID)
	}
	provider, err := s.payments.Resolve(o.PaymentMethod())
	if err != nil {
		return nil, err
	}
	if !provider.RequiresSession() {
		return nil, payment.ErrNoSession
	}
	if session := o.Session(); session != nil {
		return toSessionResponse(o.ID(), session), nil
	}
	switch o.Status() {
	case order.StatusPendingPayment:
	case order.StatusExpired:
		return nil, order.NewOrderExpiredError(orderID)
	default:
		return nil, order.NewInvalidTransitionError(orderID, o.Status(), order.StatusPendingPayment)
	}
	session, err := s.openSession(ctx, o, provider)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(o.ID(), session), nil
}

// ============================================================================
// 查询
// ============================================================================

func (s *ApplicationService) GetUserOrders(ctx context.Context, userID string, page, limit int) (*OrderPage, error) {
	p := order.NewPage(page, limit)
	spec := order.Filter{UserID: userID}.Specification()
	orders, total, err := s.orders.FindBySpecification(ctx, spec, p)
	if err != nil {
		return nil, err
	}
	return toOrderPage(orders, p, total), nil
}

func (s *ApplicationService) GetOrderByID(ctx context.Context, userID, orderID string) (*OrderResponse, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.BelongsTo(userID) {
		return nil, order.NewNotOwnerError(orderID)
	}
	return toOrderResponse(o), nil
}

func toOrderPage(orders []*order.Order, p order.Page, total int64) *OrderPage {
	resp := make([]*OrderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return &OrderPage{Orders: resp, Page: p.Offset/p.Limit + 1, Limit: p.Limit, Total: total}
}

// ============================================================================
// 支付回调与对账
// ============================================================================

// HandleWebhook 先验签再解析，状态变更使用与过期清理相同的条件更新
func (s *ApplicationService) HandleWebhook(ctx context.Context, method payment.Method, raw []byte, signature string) (*WebhookResult, error) {
	provider, err := s.payments.Resolve(method)
	if err != nil {
		return nil, err
	}
	if !provider.VerifyWebhookSignature(raw, signature) {
		s.metrics.Webhook(string(method), "invalid_signature")
		logger.FromContext(ctx).Warn("webhook signature rejected", zap.String("provider", string(method)))
		return nil, payment.ErrInvalidSignature
	}
	ev, err := provider.ParseWebhook(raw)
	if err != nil {
		s.metrics.Webhook(string(method), "malformed")
		return nil, shared.NewValidationError("webhook", "payload", err.Error())
	}
	result, err := s.applyOutcome(ctx, method, ev.GatewayReference, ev.GatewayPaymentID, ev.Outcome, ev.Amount, "webhook "+ev.EventType)
	if err != nil {
		s.metrics.Webhook(string(method), "error")
		return nil, err
	}
	s.metrics.Webhook(string(method), webhookResultLabel(result))
	return result, nil
}

func webhookResultLabel(r *WebhookResult) string {
	if r.Applied {
		return r.Outcome
	}
	return "noop"
}

func (s *ApplicationService) applyOutcome(ctx context.Context, method payment.Method, ref, paymentID string, outcome payment.Outcome, amount int64, note string) (*WebhookResult, error) {
	result := &WebhookResult{Outcome: string(outcome)}
	if outcome != payment.OutcomeCaptured && outcome != payment.OutcomeFailed {
		return result, nil
	}
	if ref == "" {
		return nil, shared.NewValidationError("webhook", "reference", "missing gateway reference")
	}

	o, err := s.orders.FindByGatewayReference(ctx, method, ref)
	if err != nil {
		return nil, err
	}
	result.OrderID = o.ID()
	result.Status = string(o.Status())
	log := logger.FromContext(ctx).With(
		zap.String("order_id", o.ID()),
		zap.String("order_number", o.OrderNumber()),
		zap.String("provider", string(method)),
		zap.String("outcome", string(outcome)))

	if outcome == payment.OutcomeFailed {
		if o.Status() != order.StatusPendingPayment {
			return result, nil
		}
		applied, err := s.orders.MarkPaymentFailed(ctx, o.ID(), paymentID)
		if err != nil {
			return nil, err
		}
		result.Applied = applied
		log.Info("payment failed, order stays pending", zap.Bool("applied", applied))
		return result, nil
	}

	if amount != o.Totals().GrandTotal {
		log.Error("captured amount does not match order total, refusing",
			zap.Int64("amount", amount), zap.Int64("grand_total", o.Totals().GrandTotal))
		return nil, shared.NewValidationError("webhook", "amount",
			fmt.Sprintf("captured amount %d does not match order total %d", amount, o.Totals().GrandTotal))
	}
	switch o.Status() {
	case order.StatusPendingPayment:
	case order.StatusExpired:
		log.Error("payment captured after reservation expired, manual refund required", zap.String("gateway_payment_id", paymentID))
		return result, nil
	default:
		return result, nil
	}

	t, err := o.MarkPaid(paymentID, note, s.now())
	if err != nil {
		return nil, err
	}
	uow := s.uowFactory.New()
	err = uow.Execute(ctx, func(ctx context.Context) error {
		applied, err := s.orders.TransitionStatus(ctx, t)
		if err != nil {
			return err
		}
		if !applied {
			return errNotApplied
		}
		uow.RegisterDirty(o)
		return nil
	})
	switch {
	case err == nil:
		s.metrics.Transitioned(string(order.StatusPendingPayment), string(order.StatusProcessing))
		result.Applied = true
		result.Status = string(order.StatusProcessing)
		log.Info("payment captured")
		return result, nil
	case errors.Is(err, errNotApplied):
		// 同一时刻过期清理或重复通知先完成了状态变更
		current, findErr := s.orders.FindByID(ctx, o.ID())
		if findErr != nil {
			return nil, findErr
		}
		result.Status = string(current.Status())
		log.Warn("payment capture lost the race", zap.String("status", result.Status))
		return result, nil
	default:
		return nil, err
	}
}

// ReconcilePayment 主动查询网关，补处理丢失的 webhook
func (s *ApplicationService) ReconcilePayment(ctx context.Context, adminID, orderID string) (*WebhookResult, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	provider, err := s.payments.Resolve(o.PaymentMethod())
	if err != nil {
		return nil, err
	}
	if !provider.RequiresSession() {
		return nil, payment.ErrNoSession
	}
	ref := o.Payment().GatewayOrderID
	if ref == "" {
		return nil, shared.NewValidationError("order", "payment", "order has no gateway session to reconcile")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	report, err := provider.FetchStatus(callCtx, ref)
	cancel()
	s.metrics.GatewayCall(string(provider.Method()), "fetch_status", err)
	if err != nil {
		return nil, err
	}
	return s.applyOutcome(ctx, o.PaymentMethod(), ref, report.GatewayPaymentID, report.Outcome, report.Amount, "reconciled by "+adminID)
}

// ============================================================================
// 后台操作
// ============================================================================

func (s *ApplicationService) ListOrders(ctx context.Context, q ListOrdersQuery) (*OrderPage, error) {
	filter := order.Filter{UserID: q.UserID, From: q.From, To: q.To}
	if q.Status != "" {
		st, ok := order.ParseStatus(q.Status)
		if !ok {
			return nil, shared.NewValidationError("order", "status", "unknown status "+q.Status)
		}
		filter.Status = st
	}
	if q.Method != "" {
		m, err := payment.ParseMethod(q.Method)
		if err != nil {
			return nil, err
		}
		filter.Method = m
	}
	if !q.To.IsZero() {
		filter.To = q.To.Add(24*time.Hour - time.Nanosecond)
	}
	p := order.NewPage(q.Page, q.Limit)
	orders, total, err := s.orders.FindBySpecification(ctx, filter.Specification(), p)
	if err != nil {
		return nil, err
	}
	return toOrderPage(orders, p, total), nil
}

// UpdateOrderStatus 管理员状态变更；取消会在同一事务内释放库存
func (s *ApplicationService) UpdateOrderStatus(ctx context.Context, cmd UpdateStatusCommand) (*OrderResponse, error) {
	to, ok := order.ParseStatus(cmd.Status)
	if !ok || !to.AdminSettable() {
		return nil, shared.NewValidationError("order", "status", "status "+cmd.Status+" cannot be set by an administrator")
	}

	var updated *order.Order
	var from order.Status
	uow := s.uowFactory.New()
	err := uow.Execute(ctx, func(ctx context.Context) error {
		o, err := s.orders.FindByID(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		from = o.Status()
		t, err := o.AdminTransition(to, cmd.AdminID, cmd.Note, s.now())
		if err != nil {
			return err
		}
		applied, err := s.orders.TransitionStatus(ctx, t)
		if err != nil {
			return err
		}
		if !applied {
			return order.NewConcurrentModificationError(cmd.OrderID)
		}
		if to.ReleasesStock() {
			if err := order.ReleaseAll(ctx, s.catalog, o); err != nil {
				return err
			}
		}
		uow.RegisterDirty(o)
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transitioned(string(from), string(to))
	logger.FromContext(ctx).Info("order status updated",
		zap.String("order_id", cmd.OrderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("admin_id", cmd.AdminID))
	return toOrderResponse(updated), nil
}

// RefundOrder 先条件预留退款额度，再调用网关，网关失败时归还额度
func (s *ApplicationService) RefundOrder(ctx context.Context, cmd RefundCommand) (*OrderResponse, error) {
	o, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	refundAmount := o.RefundableAmount()
	if strings.TrimSpace(cmd.Amount) != "" {
		if refundAmount, err = money.ParseMinor(cmd.Amount); err != nil {
			return nil, shared.NewValidationError("order", "amount", err.Error())
		}
	}
	if err := o.CheckRefundable(refundAmount); err != nil {
		return nil, err
	}
	provider, err := s.payments.Resolve(o.PaymentMethod())
	if err != nil {
		return nil, err
	}

	applied, err := s.orders.ReserveRefund(ctx, o.ID(), refundAmount)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, shared.NewConflictError("order", "refund exceeds the refundable amount or the order changed")
	}

	log := logger.FromContext(ctx).With(
		zap.String("order_id", o.ID()),
		zap.String("provider", string(o.PaymentMethod())),
		zap.Int64("amount", refundAmount))

	refundID, err := uuid.NewV7()
	if err != nil {
		s.releaseRefund(ctx, log, o.ID(), refundAmount)
		return nil, fmt.Errorf("failed to generate refund ID: %w", err)
	}
	pay := o.Payment()
	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	receipt, err := provider.Refund(callCtx, payment.RefundRequest{
		OrderID:          o.ID(),
		RefundID:         refundID.String(),
		GatewayPaymentID: pay.GatewayPaymentID,
		GatewayReference: pay.GatewayOrderID,
		Amount:           refundAmount,
		Reason:           cmd.Reason,
	})
	cancel()
	s.metrics.GatewayCall(string(provider.Method()), "refund", err)
	if err != nil {
		s.releaseRefund(ctx, log, o.ID(), refundAmount)
		return nil, err
	}

	var updated *order.Order
	uow := s.uowFactory.New()
	err = uow.Execute(ctx, func(ctx context.Context) error {
		current, err := s.orders.FindByID(ctx, o.ID())
		if err != nil {
			return err
		}
		from := current.Status()
		rec := order.Refund{
			ID:              refundID.String(),
			Amount:          refundAmount,
			Reason:          cmd.Reason,
			GatewayRefundID: receipt.GatewayRefundID,
			Status:          receipt.Status,
		}
		t, recErr := current.RecordRefund(rec, cmd.AdminID, s.now())
		if recErr != nil {
			// 退款已在网关完成，状态已不允许转为 refunded 时仍然记账
			log.Warn("refund recorded without status change", zap.Error(recErr))
		}
		pay := current.Payment()
		if err := s.orders.AppendRefund(ctx, current.ID(), pay.Refunds[len(pay.Refunds)-1], pay.Status); err != nil {
			return err
		}
		if t != nil {
			applied, err := s.orders.TransitionStatus(ctx, *t)
			if err != nil {
				return err
			}
			if !applied {
				return order.NewConcurrentModificationError(current.ID())
			}
			s.metrics.Transitioned(string(from), string(t.To))
		}
		uow.RegisterDirty(current)
		updated = current
		return nil
	})
	if err != nil {
		log.Error("refund succeeded at gateway but was not recorded",
			zap.String("refund_id", refundID.String()),
			zap.String("gateway_refund_id", receipt.GatewayRefundID),
			zap.Error(err))
		return nil, err
	}
	log.Info("order refunded", zap.String("refund_id", refundID.String()))
	return toOrderResponse(updated), nil
}

func (s *ApplicationService) releaseRefund(ctx context.Context, log *zap.Logger, orderID string, amount int64) {
	if err := s.orders.ReleaseRefund(ctx, orderID, amount); err != nil {
		log.Error("failed to release refund reservation", zap.Error(err))
	}
}
