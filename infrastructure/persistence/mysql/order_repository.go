package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordercore/domain/order"
	"ordercore/domain/payment"
	"ordercore/domain/shared"
	"ordercore/infrastructure/persistence"
	"ordercore/infrastructure/persistence/mysql/po"
	"ordercore/infrastructure/persistence/specification"

	"gorm.io/gorm"
)

// OrderRepository MySQL/GORM implementation of order repository
// DDD principle: Repository is only responsible for persistence of aggregate roots, not event publishing
// GORM usage specification: Association features are prohibited to maintain DDD aggregate boundaries
type OrderRepository struct {
	db         *gorm.DB
	translator *specification.GormTranslator
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db, translator: specification.NewGormTranslator()}
}

// getDB returns the transaction from context if available, otherwise the default db
func (r *OrderRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

// inTx runs fn in the ambient transaction or a new one.
func (r *OrderRepository) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return fn(tx)
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// Save inserts a new order with its items, history and refunds.
// Note: child rows are written manually, not through GORM associations.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	rows := po.FromOrderDomain(o)
	return r.inTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&rows.Order).Error; err != nil {
			if isDuplicateKeyError(err) {
				return shared.NewConflictError("order", "order already exists: "+o.OrderNumber())
			}
			return err
		}
		if len(rows.Items) > 0 {
			if err := tx.Create(&rows.Items).Error; err != nil {
				return err
			}
		}
		if len(rows.History) > 0 {
			if err := tx.Create(&rows.History).Error; err != nil {
				return err
			}
		}
		if len(rows.Refunds) > 0 {
			if err := tx.Create(&rows.Refunds).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	var orderPO po.OrderPO
	if err := r.getDB(ctx).Take(&orderPO, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.NewOrderNotFoundError(id)
		}
		return nil, err
	}
	return r.load(ctx, orderPO)
}

func (r *OrderRepository) FindByGatewayReference(ctx context.Context, method payment.Method, ref string) (*order.Order, error) {
	var orderPO po.OrderPO
	err := r.getDB(ctx).
		Where("payment_method = ? AND gateway_order_id = ?", string(method), ref).
		Take(&orderPO).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.NewOrderNotFoundError(string(method) + ":" + ref)
		}
		return nil, err
	}
	return r.load(ctx, orderPO)
}

// load Manually query child rows (no Preload, to keep aggregate boundaries clear)
func (r *OrderRepository) load(ctx context.Context, orderPO po.OrderPO) (*order.Order, error) {
	db := r.getDB(ctx)
	rows := po.OrderRows{Order: orderPO}
	if err := db.Where("order_id = ?", orderPO.ID).Order("position ASC").Find(&rows.Items).Error; err != nil {
		return nil, err
	}
	if err := db.Where("order_id = ?", orderPO.ID).Order("id ASC").Find(&rows.History).Error; err != nil {
		return nil, err
	}
	if err := db.Where("order_id = ?", orderPO.ID).Order("refunded_at ASC").Find(&rows.Refunds).Error; err != nil {
		return nil, err
	}
	return rows.ToDomain(), nil
}

func (r *OrderRepository) loadAll(ctx context.Context, orderPOs []po.OrderPO) ([]*order.Order, error) {
	orders := make([]*order.Order, 0, len(orderPOs))
	for _, orderPO := range orderPOs {
		o, err := r.load(ctx, orderPO)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *OrderRepository) FindBySpecification(ctx context.Context, spec shared.Specification[*order.Order], page order.Page) ([]*order.Order, int64, error) {
	query := r.getDB(ctx).Model(&po.OrderPO{})
	if len(shared.Flatten(spec)) > 0 {
		scope := r.translator.Translate(spec)
		if scope == nil {
			return nil, 0, fmt.Errorf("unsupported order specification %T", spec)
		}
		query = query.Scopes(scope)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orderPOs []po.OrderPO
	if err := query.Order("created_at DESC").Offset(page.Offset).Limit(page.Limit).Find(&orderPOs).Error; err != nil {
		return nil, 0, err
	}
	orders, err := r.loadAll(ctx, orderPOs)
	return orders, total, err
}

func (r *OrderRepository) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*order.Order, error) {
	var orderPOs []po.OrderPO
	err := r.getDB(ctx).
		Where("status = ? AND created_at <= ?", string(order.StatusPendingPayment), cutoff.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&orderPOs).Error
	if err != nil {
		return nil, err
	}
	return r.loadAll(ctx, orderPOs)
}

// TransitionStatus is a compare-and-set on status plus a history insert.
func (r *OrderRepository) TransitionStatus(ctx context.Context, t order.Transition) (bool, error) {
	applied := false
	err := r.inTx(ctx, func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     string(t.To),
			"version":    gorm.Expr("version + 1"),
			"updated_at": t.Entry.At.UTC(),
		}
		if t.PaymentStatus != "" {
			updates["payment_status"] = string(t.PaymentStatus)
		}
		if t.GatewayPaymentID != "" {
			updates["gateway_payment_id"] = t.GatewayPaymentID
		}

		result := tx.Model(&po.OrderPO{}).
			Where("id = ? AND status = ?", t.OrderID, string(t.From)).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		applied = true
		entry := po.HistoryFromDomain(t.OrderID, t.Entry)
		return tx.Create(&entry).Error
	})
	return applied, err
}

func (r *OrderRepository) AttachGatewaySession(ctx context.Context, orderID string, session *payment.Session) (bool, error) {
	result := r.getDB(ctx).Model(&po.OrderPO{}).
		Where("id = ? AND status = ? AND gateway_order_id = ?", orderID, string(order.StatusPendingPayment), "").
		Updates(map[string]interface{}{
			"gateway_order_id": session.GatewayReference,
			"redirect_url":     session.RedirectURL,
			"updated_at":       time.Now().UTC(),
		})
	return result.RowsAffected > 0, result.Error
}

func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, orderID, gatewayPaymentID string) (bool, error) {
	updates := map[string]interface{}{
		"payment_status": string(payment.StatusFailed),
		"updated_at":     time.Now().UTC(),
	}
	if gatewayPaymentID != "" {
		updates["gateway_payment_id"] = gatewayPaymentID
	}
	result := r.getDB(ctx).Model(&po.OrderPO{}).
		Where("id = ? AND status = ?", orderID, string(order.StatusPendingPayment)).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

func refundableStatuses() []string {
	var out []string
	for _, s := range order.RefundableStatuses() {
		out = append(out, string(s))
	}
	return out
}

func (r *OrderRepository) ReserveRefund(ctx context.Context, orderID string, amount int64) (bool, error) {
	result := r.getDB(ctx).Model(&po.OrderPO{}).
		Where("id = ? AND refunded_total + ? <= grand_total AND status IN ?", orderID, amount, refundableStatuses()).
		Where("payment_status IN ?", []string{string(payment.StatusPaid), string(payment.StatusPartiallyRefunded)}).
		Updates(map[string]interface{}{
			"refunded_total": gorm.Expr("refunded_total + ?", amount),
			"updated_at":     time.Now().UTC(),
		})
	return result.RowsAffected > 0, result.Error
}

func (r *OrderRepository) ReleaseRefund(ctx context.Context, orderID string, amount int64) error {
	return r.getDB(ctx).Model(&po.OrderPO{}).
		Where("id = ? AND refunded_total >= ?", orderID, amount).
		Updates(map[string]interface{}{
			"refunded_total": gorm.Expr("refunded_total - ?", amount),
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *OrderRepository) AppendRefund(ctx context.Context, orderID string, refund order.Refund, status payment.Status) error {
	return r.inTx(ctx, func(tx *gorm.DB) error {
		row := po.RefundFromDomain(orderID, refund)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Model(&po.OrderPO{}).Where("id = ?", orderID).
			Updates(map[string]interface{}{
				"payment_status": string(status),
				"updated_at":     refund.At.UTC(),
			}).Error
	})
}

// Compile-time interface implementation check
var _ order.Repository = (*OrderRepository)(nil)
