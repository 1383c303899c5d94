package po

import (
	"time"

	"ordercore/domain/order"
	"ordercore/domain/payment"

	"gorm.io/datatypes"
)

// OrderPO Order persistence object
// Note: Only used for database mapping, does not contain any business logic
// Defining GORM associations is prohibited here
type OrderPO struct {
	ID               string                            `gorm:"primaryKey;size:64"`
	OrderNumber      string                            `gorm:"size:32;uniqueIndex;not null"`
	UserID           string                            `gorm:"size:64;index;not null"`
	Contact          datatypes.JSONType[order.Contact] `gorm:"not null"`
	ShippingAddress  datatypes.JSONType[order.Address] `gorm:"not null"`
	Subtotal         int64                             `gorm:"not null"`
	TaxTotal         int64                             `gorm:"not null"`
	ShippingTotal    int64                             `gorm:"not null"`
	DiscountTotal    int64                             `gorm:"not null"`
	CODCharge        int64                             `gorm:"column:cod_charge;not null"`
	GrandTotal       int64                             `gorm:"not null"`
	Currency         string                            `gorm:"size:3;not null"`
	PaymentMethod    string                            `gorm:"size:20;index;not null"`
	PaymentStatus    string                            `gorm:"size:20;not null"`
	GatewayOrderID   string                            `gorm:"size:128;index"`
	GatewayPaymentID string                            `gorm:"size:128"`
	RedirectURL      string                            `gorm:"size:1024"`
	RefundedTotal    int64                             `gorm:"not null;default:0"`
	Status           string                            `gorm:"size:20;index:idx_orders_status_created;not null"`
	IdempotencyKey   string                            `gorm:"size:128"`
	Version          int                               `gorm:"default:0"`
	CreatedAt        time.Time                         `gorm:"index:idx_orders_status_created"`
	UpdatedAt        time.Time
}

func (OrderPO) TableName() string {
	return "orders"
}

// OrderItemPO line snapshot, immutable after insert
type OrderItemPO struct {
	ID             string `gorm:"primaryKey;size:64"`
	OrderID        string `gorm:"size:64;index;not null"` // Only store ID, no GORM association
	Position       int    `gorm:"not null"`
	ProductID      string `gorm:"size:64;not null"`
	ProductName    string `gorm:"size:255;not null"`
	ProductImage   string `gorm:"size:1024"`
	Category       string `gorm:"size:100"`
	VariantID      string `gorm:"size:64;index;not null"`
	Sku            string `gorm:"size:64;not null"`
	Size           string `gorm:"size:32"`
	Quantity       int    `gorm:"not null"`
	UnitPrice      int64  `gorm:"not null"`
	MRP            int64  `gorm:"column:mrp;not null"`
	TaxAmount      int64  `gorm:"not null"`
	DiscountAmount int64  `gorm:"not null"`
	LineTotal      int64  `gorm:"not null"`
}

func (OrderItemPO) TableName() string {
	return "order_items"
}

// OrderStatusHistoryPO append-only audit row
type OrderStatusHistoryPO struct {
	ID      uint      `gorm:"primaryKey;autoIncrement"`
	OrderID string    `gorm:"size:64;index;not null"`
	Status  string    `gorm:"size:20;not null"`
	By      string    `gorm:"column:changed_by;size:64"`
	Note    string    `gorm:"size:512"`
	At      time.Time `gorm:"column:changed_at;not null"`
}

func (OrderStatusHistoryPO) TableName() string {
	return "order_status_history"
}

// OrderRefundPO immutable refund log row
type OrderRefundPO struct {
	ID              string    `gorm:"primaryKey;size:64"`
	OrderID         string    `gorm:"size:64;index;not null"`
	Amount          int64     `gorm:"not null"`
	Reason          string    `gorm:"size:512"`
	GatewayRefundID string    `gorm:"size:128"`
	Status          string    `gorm:"size:32"`
	By              string    `gorm:"column:refunded_by;size:64"`
	At              time.Time `gorm:"column:refunded_at;not null"`
}

func (OrderRefundPO) TableName() string {
	return "order_refunds"
}

// OrderRows is an order and its child rows
type OrderRows struct {
	Order   OrderPO
	Items   []OrderItemPO
	History []OrderStatusHistoryPO
	Refunds []OrderRefundPO
}

func FromOrderDomain(o *order.Order) OrderRows {
	totals := o.Totals()
	pay := o.Payment()
	rows := OrderRows{
		Order: OrderPO{
			ID:               o.ID(),
			OrderNumber:      o.OrderNumber(),
			UserID:           o.UserID(),
			Contact:          datatypes.NewJSONType(o.Contact()),
			ShippingAddress:  datatypes.NewJSONType(o.ShippingAddress()),
			Subtotal:         totals.Subtotal,
			TaxTotal:         totals.TaxTotal,
			ShippingTotal:    totals.ShippingTotal,
			DiscountTotal:    totals.DiscountTotal,
			CODCharge:        totals.CODCharge,
			GrandTotal:       totals.GrandTotal,
			Currency:         o.Currency(),
			PaymentMethod:    string(pay.Method),
			PaymentStatus:    string(pay.Status),
			GatewayOrderID:   pay.GatewayOrderID,
			GatewayPaymentID: pay.GatewayPaymentID,
			RedirectURL:      pay.RedirectURL,
			RefundedTotal:    pay.RefundedTotal,
			Status:           string(o.Status()),
			IdempotencyKey:   o.IdempotencyKey(),
			Version:          o.Version(),
			CreatedAt:        o.CreatedAt(),
			UpdatedAt:        o.UpdatedAt(),
		},
	}

	for i, item := range o.Items() {
		rows.Items = append(rows.Items, OrderItemPO{
			ID:             item.ID(),
			OrderID:        o.ID(),
			Position:       i,
			ProductID:      item.ProductID(),
			ProductName:    item.ProductName(),
			ProductImage:   item.ProductImage(),
			Category:       item.Category(),
			VariantID:      item.VariantID(),
			Sku:            item.Sku(),
			Size:           item.Size(),
			Quantity:       item.Quantity(),
			UnitPrice:      item.UnitPrice(),
			MRP:            item.MRP(),
			TaxAmount:      item.TaxAmount(),
			DiscountAmount: item.DiscountAmount(),
			LineTotal:      item.LineTotal(),
		})
	}
	for _, h := range o.History() {
		rows.History = append(rows.History, HistoryFromDomain(o.ID(), h))
	}
	for _, r := range pay.Refunds {
		rows.Refunds = append(rows.Refunds, RefundFromDomain(o.ID(), r))
	}
	return rows
}

func HistoryFromDomain(orderID string, h order.HistoryEntry) OrderStatusHistoryPO {
	return OrderStatusHistoryPO{OrderID: orderID, Status: string(h.Status), By: h.By, Note: h.Note, At: h.At}
}

func RefundFromDomain(orderID string, r order.Refund) OrderRefundPO {
	return OrderRefundPO{
		ID:              r.ID,
		OrderID:         orderID,
		Amount:          r.Amount,
		Reason:          r.Reason,
		GatewayRefundID: r.GatewayRefundID,
		Status:          r.Status,
		By:              r.By,
		At:              r.At,
	}
}

// ToDomain Convert persistence rows to domain model. Child rows must be
// ordered (items by position, history by id).
func (rows OrderRows) ToDomain() *order.Order {
	p := rows.Order
	items := make([]order.Item, len(rows.Items))
	for i, it := range rows.Items {
		items[i] = order.RebuildItemFromDTO(order.ItemReconstructionDTO{
			ID:             it.ID,
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			ProductImage:   it.ProductImage,
			Category:       it.Category,
			VariantID:      it.VariantID,
			Sku:            it.Sku,
			Size:           it.Size,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			MRP:            it.MRP,
			TaxAmount:      it.TaxAmount,
			DiscountAmount: it.DiscountAmount,
			LineTotal:      it.LineTotal,
		})
	}
	history := make([]order.HistoryEntry, len(rows.History))
	for i, h := range rows.History {
		history[i] = order.HistoryEntry{Status: order.Status(h.Status), By: h.By, Note: h.Note, At: h.At.UTC()}
	}
	refunds := make([]order.Refund, len(rows.Refunds))
	for i, r := range rows.Refunds {
		refunds[i] = order.Refund{
			ID:              r.ID,
			Amount:          r.Amount,
			Reason:          r.Reason,
			GatewayRefundID: r.GatewayRefundID,
			Status:          r.Status,
			By:              r.By,
			At:              r.At.UTC(),
		}
	}

	return order.RebuildFromDTO(order.ReconstructionDTO{
		ID:              p.ID,
		OrderNumber:     p.OrderNumber,
		UserID:          p.UserID,
		Contact:         p.Contact.Data(),
		ShippingAddress: p.ShippingAddress.Data(),
		Items:           items,
		Totals: order.Totals{
			Subtotal:      p.Subtotal,
			TaxTotal:      p.TaxTotal,
			ShippingTotal: p.ShippingTotal,
			DiscountTotal: p.DiscountTotal,
			CODCharge:     p.CODCharge,
			GrandTotal:    p.GrandTotal,
		},
		Currency: p.Currency,
		Payment: order.Payment{
			Method:           payment.Method(p.PaymentMethod),
			Status:           payment.Status(p.PaymentStatus),
			GatewayOrderID:   p.GatewayOrderID,
			GatewayPaymentID: p.GatewayPaymentID,
			RedirectURL:      p.RedirectURL,
			RefundedTotal:    p.RefundedTotal,
			Refunds:          refunds,
		},
		Status:         order.Status(p.Status),
		IdempotencyKey: p.IdempotencyKey,
		History:        history,
		Version:        p.Version,
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	})
}
