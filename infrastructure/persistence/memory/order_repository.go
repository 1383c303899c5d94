package memory

import (
	"context"
	"sort"
	"time"

	"ordercore/domain/order"
	"ordercore/domain/payment"
	"ordercore/domain/shared"
)

// OrderRepository 内存订单仓储
// 保存的是重建 DTO 的副本，读出的聚合与存储互不共享切片
type OrderRepository struct {
	store *Store
}

func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

func snapshot(o *order.Order) order.ReconstructionDTO {
	return order.ReconstructionDTO{
		ID:              o.ID(),
		OrderNumber:     o.OrderNumber(),
		UserID:          o.UserID(),
		Contact:         o.Contact(),
		ShippingAddress: o.ShippingAddress(),
		Items:           o.Items(),
		Totals:          o.Totals(),
		Currency:        o.Currency(),
		Payment:         o.Payment(),
		Status:          o.Status(),
		IdempotencyKey:  o.IdempotencyKey(),
		History:         o.History(),
		Version:         o.Version(),
		CreatedAt:       o.CreatedAt(),
		UpdatedAt:       o.UpdatedAt(),
	}
}

func rebuild(dto order.ReconstructionDTO) *order.Order {
	dto.Items = append([]order.Item(nil), dto.Items...)
	dto.History = append([]order.HistoryEntry(nil), dto.History...)
	dto.Payment.Refunds = append([]order.Refund(nil), dto.Payment.Refunds...)
	return order.RebuildFromDTO(dto)
}

func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID()]; exists {
		return shared.NewConflictError("order", "order already exists: "+o.OrderNumber())
	}
	for _, existing := range s.orders {
		if existing.OrderNumber == o.OrderNumber() {
			return shared.NewConflictError("order", "order already exists: "+o.OrderNumber())
		}
	}

	s.orders[o.ID()] = snapshot(o)
	id := o.ID()
	s.record(ctx, func() { delete(s.orders, id) })
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	dto, ok := r.store.orders[id]
	if !ok {
		return nil, order.NewOrderNotFoundError(id)
	}
	return rebuild(dto), nil
}

func (r *OrderRepository) FindByGatewayReference(ctx context.Context, method payment.Method, ref string) (*order.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, dto := range r.store.orders {
		if dto.Payment.Method == method && ref != "" && dto.Payment.GatewayOrderID == ref {
			return rebuild(dto), nil
		}
	}
	return nil, order.NewOrderNotFoundError(string(method) + ":" + ref)
}

func (r *OrderRepository) FindBySpecification(ctx context.Context, spec shared.Specification[*order.Order], page order.Page) ([]*order.Order, int64, error) {
	r.store.mu.Lock()
	var matched []*order.Order
	for _, dto := range r.store.orders {
		o := rebuild(dto)
		if spec == nil || spec.IsSatisfiedBy(ctx, o) {
			matched = append(matched, o)
		}
	}
	r.store.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt().After(matched[j].CreatedAt())
	})

	total := int64(len(matched))
	if page.Offset >= len(matched) {
		return []*order.Order{}, total, nil
	}
	end := page.Offset + page.Limit
	if page.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[page.Offset:end], total, nil
}

func (r *OrderRepository) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*order.Order, error) {
	r.store.mu.Lock()
	var pending []*order.Order
	for _, dto := range r.store.orders {
		if dto.Status == order.StatusPendingPayment && !dto.CreatedAt.After(cutoff) {
			pending = append(pending, rebuild(dto))
		}
	}
	r.store.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt().Before(pending[j].CreatedAt())
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// update 在锁内对订单执行 fn，fn 返回 false 表示守卫未命中
func (r *OrderRepository) update(ctx context.Context, orderID string, fn func(dto *order.ReconstructionDTO) bool) bool {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	before, ok := s.orders[orderID]
	if !ok {
		return false
	}
	after := before
	after.History = append([]order.HistoryEntry(nil), before.History...)
	after.Payment.Refunds = append([]order.Refund(nil), before.Payment.Refunds...)
	if !fn(&after) {
		return false
	}
	s.orders[orderID] = after
	s.record(ctx, func() { s.orders[orderID] = before })
	return true
}

func (r *OrderRepository) TransitionStatus(ctx context.Context, t order.Transition) (bool, error) {
	applied := r.update(ctx, t.OrderID, func(dto *order.ReconstructionDTO) bool {
		if dto.Status != t.From {
			return false
		}
		dto.Status = t.To
		dto.Version++
		dto.UpdatedAt = t.Entry.At
		if t.PaymentStatus != "" {
			dto.Payment.Status = t.PaymentStatus
		}
		if t.GatewayPaymentID != "" {
			dto.Payment.GatewayPaymentID = t.GatewayPaymentID
		}
		dto.History = append(dto.History, t.Entry)
		return true
	})
	return applied, nil
}

func (r *OrderRepository) AttachGatewaySession(ctx context.Context, orderID string, session *payment.Session) (bool, error) {
	applied := r.update(ctx, orderID, func(dto *order.ReconstructionDTO) bool {
		if dto.Status != order.StatusPendingPayment || dto.Payment.GatewayOrderID != "" {
			return false
		}
		dto.Payment.GatewayOrderID = session.GatewayReference
		dto.Payment.RedirectURL = session.RedirectURL
		dto.UpdatedAt = time.Now().UTC()
		return true
	})
	return applied, nil
}

func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, orderID, gatewayPaymentID string) (bool, error) {
	applied := r.update(ctx, orderID, func(dto *order.ReconstructionDTO) bool {
		if dto.Status != order.StatusPendingPayment {
			return false
		}
		dto.Payment.Status = payment.StatusFailed
		if gatewayPaymentID != "" {
			dto.Payment.GatewayPaymentID = gatewayPaymentID
		}
		dto.UpdatedAt = time.Now().UTC()
		return true
	})
	return applied, nil
}

func (r *OrderRepository) ReserveRefund(ctx context.Context, orderID string, amount int64) (bool, error) {
	applied := r.update(ctx, orderID, func(dto *order.ReconstructionDTO) bool {
		paid := dto.Payment.Status == payment.StatusPaid || dto.Payment.Status == payment.StatusPartiallyRefunded
		if !paid || !dto.Status.Refundable() || dto.Payment.RefundedTotal+amount > dto.Totals.GrandTotal {
			return false
		}
		dto.Payment.RefundedTotal += amount
		dto.UpdatedAt = time.Now().UTC()
		return true
	})
	return applied, nil
}

func (r *OrderRepository) ReleaseRefund(ctx context.Context, orderID string, amount int64) error {
	r.update(ctx, orderID, func(dto *order.ReconstructionDTO) bool {
		if dto.Payment.RefundedTotal < amount {
			return false
		}
		dto.Payment.RefundedTotal -= amount
		dto.UpdatedAt = time.Now().UTC()
		return true
	})
	return nil
}

func (r *OrderRepository) AppendRefund(ctx context.Context, orderID string, refund order.Refund, status payment.Status) error {
	if !r.update(ctx, orderID, func(dto *order.ReconstructionDTO) bool {
		dto.Payment.Refunds = append(dto.Payment.Refunds, refund)
		dto.Payment.Status = status
		dto.UpdatedAt = refund.At
		return true
	}) {
		return order.NewOrderNotFoundError(orderID)
	}
	return nil
}

var _ order.Repository = (*OrderRepository)(nil)
