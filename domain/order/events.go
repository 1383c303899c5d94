package order

import (
	"time"
)

type OrderPlacedEvent struct {
	orderID     string
	orderNumber string
	userID      string
	method      string
	status      Status
	grandTotal  int64
	currency    string
	occurredOn  time.Time
}

func NewOrderPlacedEvent(o *Order) *OrderPlacedEvent {
	return &OrderPlacedEvent{
		orderID:     o.id,
		orderNumber: o.orderNumber,
		userID:      o.userID,
		method:      string(o.payment.Method),
		status:      o.status,
		grandTotal:  o.totals.GrandTotal,
		currency:    o.currency,
		occurredOn:  o.createdAt,
	}
}

func (e *OrderPlacedEvent) EventName() string      { return "order.placed" }
func (e *OrderPlacedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *OrderPlacedEvent) GetAggregateID() string { return e.orderID }
func (e *OrderPlacedEvent) OrderNumber() string    { return e.orderNumber }
func (e *OrderPlacedEvent) GrandTotal() int64      { return e.grandTotal }

func (e *OrderPlacedEvent) Payload() map[string]any {
	return map[string]any{
		"order_number":   e.orderNumber,
		"user_id":        e.userID,
		"payment_method": e.method,
		"status":         string(e.status),
		"grand_total":    e.grandTotal,
		"currency":       e.currency,
	}
}

type StatusChangedEvent struct {
	orderID    string
	from       Status
	to         Status
	by         string
	occurredOn time.Time
}

func NewStatusChangedEvent(orderID string, from, to Status, by string, at time.Time) *StatusChangedEvent {
	return &StatusChangedEvent{orderID: orderID, from: from, to: to, by: by, occurredOn: at}
}

func (e *StatusChangedEvent) EventName() string      { return "order.status_changed" }
func (e *StatusChangedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *StatusChangedEvent) GetAggregateID() string { return e.orderID }
func (e *StatusChangedEvent) From() Status           { return e.from }
func (e *StatusChangedEvent) To() Status             { return e.to }

func (e *StatusChangedEvent) Payload() map[string]any {
	return map[string]any{
		"from": string(e.from),
		"to":   string(e.to),
		"by":   e.by,
	}
}

type OrderRefundedEvent struct {
	orderID    string
	refund     Refund
	occurredOn time.Time
}

func NewOrderRefundedEvent(orderID string, r Refund) *OrderRefundedEvent {
	return &OrderRefundedEvent{orderID: orderID, refund: r, occurredOn: r.At}
}

func (e *OrderRefundedEvent) EventName() string      { return "order.refunded" }
func (e *OrderRefundedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *OrderRefundedEvent) GetAggregateID() string { return e.orderID }

func (e *OrderRefundedEvent) Payload() map[string]any {
	return map[string]any{
		"refund_id":         e.refund.ID,
		"amount":            e.refund.Amount,
		"reason":            e.refund.Reason,
		"gateway_refund_id": e.refund.GatewayRefundID,
	}
}
