package mongodb

import (
	"time"

	"ordercore/domain/inventory"
	"ordercore/domain/order"
	"ordercore/domain/payment"
	"ordercore/domain/user"
)

// orderDoc 订单文档，明细、历史和退款内嵌在订单内
type orderDoc struct {
	ID              string         `bson:"_id"`
	OrderNumber     string         `bson:"order_number"`
	UserID          string         `bson:"user_id"`
	Contact         order.Contact  `bson:"contact"`
	ShippingAddress order.Address  `bson:"shipping_address"`
	Items           []itemDoc      `bson:"items"`
	Totals          totalsDoc      `bson:"totals"`
	Currency        string         `bson:"currency"`
	Payment         paymentDoc     `bson:"payment"`
	Status          string         `bson:"status"`
	IdempotencyKey  string         `bson:"idempotency_key,omitempty"`
	History         []historyDoc   `bson:"history"`
	Version         int            `bson:"version"`
	CreatedAt       time.Time      `bson:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at"`
}

type itemDoc struct {
	ID             string `bson:"id"`
	ProductID      string `bson:"product_id"`
	ProductName    string `bson:"product_name"`
	ProductImage   string `bson:"product_image,omitempty"`
	Category       string `bson:"category,omitempty"`
	VariantID      string `bson:"variant_id"`
	Sku            string `bson:"sku"`
	Size           string `bson:"size,omitempty"`
	Quantity       int    `bson:"quantity"`
	UnitPrice      int64  `bson:"unit_price"`
	MRP            int64  `bson:"mrp"`
	TaxAmount      int64  `bson:"tax_amount"`
	DiscountAmount int64  `bson:"discount_amount"`
	LineTotal      int64  `bson:"line_total"`
}

type totalsDoc struct {
	Subtotal      int64 `bson:"subtotal"`
	TaxTotal      int64 `bson:"tax_total"`
	ShippingTotal int64 `bson:"shipping_total"`
	DiscountTotal int64 `bson:"discount_total"`
	CODCharge     int64 `bson:"cod_charge"`
	GrandTotal    int64 `bson:"grand_total"`
}

type paymentDoc struct {
	Method           string      `bson:"method"`
	Status           string      `bson:"status"`
	GatewayOrderID   string      `bson:"gateway_order_id"`
	GatewayPaymentID string      `bson:"gateway_payment_id,omitempty"`
	RedirectURL      string      `bson:"redirect_url,omitempty"`
	RefundedTotal    int64       `bson:"refunded_total"`
	Refunds          []refundDoc `bson:"refunds"`
}

type historyDoc struct {
	Status string    `bson:"status"`
	By     string    `bson:"by,omitempty"`
	Note   string    `bson:"note,omitempty"`
	At     time.Time `bson:"at"`
}

type refundDoc struct {
	ID              string    `bson:"id"`
	Amount          int64     `bson:"amount"`
	Reason          string    `bson:"reason,omitempty"`
	GatewayRefundID string    `bson:"gateway_refund_id,omitempty"`
	Status          string    `bson:"status,omitempty"`
	By              string    `bson:"by,omitempty"`
	At              time.Time `bson:"at"`
}

func historyFromDomain(h order.HistoryEntry) historyDoc {
	return historyDoc{Status: string(h.Status), By: h.By, Note: h.Note, At: h.At.UTC()}
}

func refundFromDomain(r order.Refund) refundDoc {
	return refundDoc{
		ID:              r.ID,
		Amount:          r.Amount,
		Reason:          r.Reason,
		GatewayRefundID: r.GatewayRefundID,
		Status:          r.Status,
		By:              r.By,
		At:              r.At.UTC(),
	}
}

func orderFromDomain(o *order.Order) orderDoc {
	t := o.Totals()
	p := o.Payment()
	doc := orderDoc{
		ID:              o.ID(),
		OrderNumber:     o.OrderNumber(),
		UserID:          o.UserID(),
		Contact:         o.Contact(),
		ShippingAddress: o.ShippingAddress(),
		Totals: totalsDoc{
			Subtotal:      t.Subtotal,
			TaxTotal:      t.TaxTotal,
			ShippingTotal: t.ShippingTotal,
			DiscountTotal: t.DiscountTotal,
			CODCharge:     t.CODCharge,
			GrandTotal:    t.GrandTotal,
		},
		Currency: o.Currency(),
		Payment: paymentDoc{
			Method:           string(p.Method),
			Status:           string(p.Status),
			GatewayOrderID:   p.GatewayOrderID,
			GatewayPaymentID: p.GatewayPaymentID,
			RedirectURL:      p.RedirectURL,
			RefundedTotal:    p.RefundedTotal,
			Refunds:          []refundDoc{},
		},
		Status:         string(o.Status()),
		IdempotencyKey: o.IdempotencyKey(),
		Version:        o.Version(),
		CreatedAt:      o.CreatedAt().UTC(),
		UpdatedAt:      o.UpdatedAt().UTC(),
	}
	for _, it := range o.Items() {
		doc.Items = append(doc.Items, itemDoc{
			ID:             it.ID(),
			ProductID:      it.ProductID(),
			ProductName:    it.ProductName(),
			ProductImage:   it.ProductImage(),
			Category:       it.Category(),
			VariantID:      it.VariantID(),
			Sku:            it.Sku(),
			Size:           it.Size(),
			Quantity:       it.Quantity(),
			UnitPrice:      it.UnitPrice(),
			MRP:            it.MRP(),
			TaxAmount:      it.TaxAmount(),
			DiscountAmount: it.DiscountAmount(),
			LineTotal:      it.LineTotal(),
		})
	}
	for _, h := range o.History() {
		doc.History = append(doc.History, historyFromDomain(h))
	}
	for _, r := range p.Refunds {
		doc.Payment.Refunds = append(doc.Payment.Refunds, refundFromDomain(r))
	}
	return doc
}

func (d orderDoc) toDomain() *order.Order {
	items := make([]order.Item, len(d.Items))
	for i, it := range d.Items {
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
	history := make([]order.HistoryEntry, len(d.History))
	for i, h := range d.History {
		history[i] = order.HistoryEntry{Status: order.Status(h.Status), By: h.By, Note: h.Note, At: h.At.UTC()}
	}
	refunds := make([]order.Refund, len(d.Payment.Refunds))
	for i, r := range d.Payment.Refunds {
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
		ID:              d.ID,
		OrderNumber:     d.OrderNumber,
		UserID:          d.UserID,
		Contact:         d.Contact,
		ShippingAddress: d.ShippingAddress,
		Items:           items,
		Totals: order.Totals{
			Subtotal:      d.Totals.Subtotal,
			TaxTotal:      d.Totals.TaxTotal,
			ShippingTotal: d.Totals.ShippingTotal,
			DiscountTotal: d.Totals.DiscountTotal,
			CODCharge:     d.Totals.CODCharge,
			GrandTotal:    d.Totals.GrandTotal,
		},
		Currency: d.Currency,
		Payment: order.Payment{
			Method:           payment.Method(d.Payment.Method),
			Status:           payment.Status(d.Payment.Status),
			GatewayOrderID:   d.Payment.GatewayOrderID,
			GatewayPaymentID: d.Payment.GatewayPaymentID,
			RedirectURL:      d.Payment.RedirectURL,
			RefundedTotal:    d.Payment.RefundedTotal,
			Refunds:          refunds,
		},
		Status:         order.Status(d.Status),
		IdempotencyKey: d.IdempotencyKey,
		History:        history,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	})
}

// productDoc 商品文档，变体内嵌
type productDoc struct {
	ID       string       `bson:"_id"`
	Name     string       `bson:"name"`
	Image    string       `bson:"image,omitempty"`
	Category string       `bson:"category,omitempty"`
	Variants []variantDoc `bson:"variants"`
}

type variantDoc struct {
	ID          string    `bson:"id"`
	Sku         string    `bson:"sku"`
	Size        string    `bson:"size,omitempty"`
	Stock       int       `bson:"stock"`
	StockStatus string    `bson:"stock_status"`
	Price       int64     `bson:"price"`
	MRP         int64     `bson:"mrp"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (p productDoc) variant(v variantDoc) *inventory.Variant {
	return &inventory.Variant{
		ProductID:    p.ID,
		ProductName:  p.Name,
		ProductImage: p.Image,
		Category:     p.Category,
		VariantID:    v.ID,
		Sku:          v.Sku,
		Size:         v.Size,
		Stock:        v.Stock,
		StockStatus:  inventory.StockStatus(v.StockStatus),
		Price:        v.Price,
		MRP:          v.MRP,
	}
}

type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

type idempotencyDoc struct {
	Key       string    `bson:"_id"`
	OrderID   string    `bson:"order_id"`
	CreatedAt time.Time `bson:"created_at"`
}

type outboxDoc struct {
	ID          string    `bson:"_id"`
	AggregateID string    `bson:"aggregate_id"`
	EventType   string    `bson:"event_type"`
	Payload     string    `bson:"payload"`
	Status      string    `bson:"status"`
	RetryCount  int       `bson:"retry_count"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type userDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	Phone     string    `bson:"phone,omitempty"`
	IsActive  bool      `bson:"is_active"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d userDoc) toDomain() *user.User {
	return user.RebuildFromDTO(user.ReconstructionDTO{
		ID:        d.ID,
		Name:      d.Name,
		Email:     d.Email,
		Phone:     d.Phone,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	})
}
