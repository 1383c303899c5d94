/*
Package order is the order aggregate: line item snapshots, totals, payment
state, the status machine and its append-only history.

All fields are private. Repositories rebuild the aggregate through
ReconstructionDTO; state changes go through methods that return the
conditional update the repository must apply.
*/
package order

import (
	"fmt"
	"strings"
	"time"

	"ordercore/domain/inventory"
	"ordercore/domain/payment"
	"ordercore/domain/shared"

	"github.com/google/uuid"
)

// Order aggregate root
type Order struct {
	id              string
	orderNumber     string
	userID          string
	contact         Contact
	shippingAddress Address
	items           []Item
	totals          Totals
	currency        string
	payment         Payment
	status          Status
	idempotencyKey  string
	history         []HistoryEntry
	version         int
	createdAt       time.Time
	updatedAt       time.Time

	events []shared.DomainEvent
}

// Contact is the customer contact snapshot taken at order time
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Address shipping address snapshot
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a Address) validate() error {
	switch {
	case strings.TrimSpace(a.Line1) == "":
		return shared.NewValidationError("order", "shipping_address.line1", "shipping address line1 is required")
	case strings.TrimSpace(a.City) == "":
		return shared.NewValidationError("order", "shipping_address.city", "shipping address city is required")
	case strings.TrimSpace(a.PostalCode) == "":
		return shared.NewValidationError("order", "shipping_address.postal_code", "shipping address postal code is required")
	}
	return nil
}

// HistoryEntry is one audit record. By is empty for system actors.
type HistoryEntry struct {
	Status Status    `json:"status"`
	By     string    `json:"by,omitempty"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

// Payment state of an order. Method is fixed at creation.
type Payment struct {
	Method           payment.Method
	Status           payment.Status
	GatewayOrderID   string
	GatewayPaymentID string
	RedirectURL      string
	RefundedTotal    int64
	Refunds          []Refund
}

// Refund is an immutable refund log entry. Amount is minor units.
type Refund struct {
	ID              string    `json:"id"`
	Amount          int64     `json:"amount"`
	Reason          string    `json:"reason"`
	GatewayRefundID string    `json:"gateway_refund_id,omitempty"`
	Status          string    `json:"status"`
	By              string    `json:"by,omitempty"`
	At              time.Time `json:"at"`
}

// Item is a line with product and variant snapshots
type Item struct {
	id             string
	productID      string
	productName    string
	productImage   string
	category       string
	variantID      string
	sku            string
	size           string
	quantity       int
	unitPrice      int64
	mrp            int64
	taxAmount      int64
	discountAmount int64
	lineTotal      int64
}

// NewItem snapshots the variant and computes lineTotal = unitPrice * quantity.
func NewItem(v *inventory.Variant, quantity int) (Item, error) {
	if quantity < 1 {
		return Item{}, newInputError(ErrInvalidQuantity)
	}
	line, err := shared.NewMoney(v.Price, "").Multiply(quantity)
	if err != nil {
		return Item{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Item{}, fmt.Errorf("failed to generate order item ID: %w", err)
	}
	return Item{
		id:           id.String(),
		productID:    v.ProductID,
		productName:  v.ProductName,
		productImage: v.ProductImage,
		category:     v.Category,
		variantID:    v.VariantID,
		sku:          v.Sku,
		size:         v.Size,
		quantity:     quantity,
		unitPrice:    v.Price,
		mrp:          v.MRP,
		lineTotal:    line.Amount(),
	}, nil
}

func (i Item) ID() string            { return i.id }
func (i Item) ProductID() string     { return i.productID }
func (i Item) ProductName() string   { return i.productName }
func (i Item) ProductImage() string  { return i.productImage }
func (i Item) Category() string      { return i.category }
func (i Item) VariantID() string     { return i.variantID }
func (i Item) Sku() string           { return i.sku }
func (i Item) Size() string          { return i.size }
func (i Item) Quantity() int         { return i.quantity }
func (i Item) UnitPrice() int64      { return i.unitPrice }
func (i Item) MRP() int64            { return i.mrp }
func (i Item) TaxAmount() int64      { return i.taxAmount }
func (i Item) DiscountAmount() int64 { return i.discountAmount }
func (i Item) LineTotal() int64      { return i.lineTotal }

// PlaceOrderParams carries everything NewOrder needs
type PlaceOrderParams struct {
	OrderNumber     string
	UserID          string
	Contact         Contact
	ShippingAddress Address
	Items           []Item
	Method          payment.Method
	Pricing         PricingPolicy
	IdempotencyKey  string
	PlacedAt        time.Time
}

// NewOrder builds the aggregate in its initial status. COD orders start in
// processing; online orders wait in pending_payment.
func NewOrder(p PlaceOrderParams) (*Order, error) {
	if p.UserID == "" {
		return nil, shared.NewValidationError("order", "user_id", "user id is required")
	}
	if len(p.Items) == 0 {
		return nil, newInputError(ErrEmptyOrderItems)
	}
	if p.OrderNumber == "" {
		return nil, shared.NewValidationError("order", "order_number", "order number is required")
	}
	if err := p.ShippingAddress.validate(); err != nil {
		return nil, err
	}

	items := make([]Item, len(p.Items))
	copy(items, p.Items)
	totals, err := p.Pricing.Price(items, p.Method)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate order ID: %w", err)
	}

	at := p.PlacedAt
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	status := StatusPendingPayment
	note := "order placed, awaiting payment"
	if !p.Method.IsOnline() {
		status = StatusProcessing
		note = "order placed, cash on delivery"
	}

	o := &Order{
		id:              id.String(),
		orderNumber:     p.OrderNumber,
		userID:          p.UserID,
		contact:         p.Contact,
		shippingAddress: p.ShippingAddress,
		items:           items,
		totals:          totals,
		currency:        p.Pricing.Currency,
		payment: Payment{
			Method: p.Method,
			Status: payment.StatusPending,
		},
		status:         status,
		idempotencyKey: p.IdempotencyKey,
		history:        []HistoryEntry{{Status: status, Note: note, At: at}},
		createdAt:      at,
		updatedAt:      at,
	}
	o.events = append(o.events, NewOrderPlacedEvent(o))
	return o, nil
}

// TransitionTo moves the aggregate to `to` and returns the conditional
// update keyed on the previous status.
func (o *Order) TransitionTo(to Status, by, note string, at time.Time) (Transition, error) {
	if !CanTransition(o.status, to) {
		return Transition{}, NewInvalidTransitionError(o.id, o.status, to)
	}
	at = at.UTC()
	entry := HistoryEntry{Status: to, By: by, Note: note, At: at}
	t := Transition{OrderID: o.id, From: o.status, To: to, Entry: entry}

	o.status = to
	o.history = append(o.history, entry)
	o.updatedAt = at
	o.events = append(o.events, NewStatusChangedEvent(o.id, t.From, to, by, at))
	return t, nil
}

// AdminTransition applies an administrator request. An unpaid order may only
// be cancelled, and a captured payment leaves only through the refund flow.
func (o *Order) AdminTransition(to Status, by, note string, at time.Time) (Transition, error) {
	if o.status == StatusPendingPayment && to != StatusCancelled {
		return Transition{}, NewInvalidTransitionError(o.id, o.status, to)
	}
	if to == StatusCancelled && o.payment.Status.Captured() {
		return Transition{}, NewRefundRequiredError(o.id)
	}
	return o.TransitionTo(to, by, note, at)
}

// MarkPaid applies a captured payment: pending_payment -> processing.
func (o *Order) MarkPaid(gatewayPaymentID, note string, at time.Time) (Transition, error) {
	if o.status == StatusExpired {
		return Transition{}, NewOrderExpiredError(o.id)
	}
	t, err := o.TransitionTo(StatusProcessing, "", note, at)
	if err != nil {
		return Transition{}, err
	}
	t.PaymentStatus = payment.StatusPaid
	t.GatewayPaymentID = gatewayPaymentID
	o.payment.Status = payment.StatusPaid
	o.payment.GatewayPaymentID = gatewayPaymentID
	return t, nil
}

// AttachSession records the gateway reference created after commit.
func (o *Order) AttachSession(s *payment.Session) error {
	if o.status != StatusPendingPayment {
		if o.status == StatusExpired {
			return NewOrderExpiredError(o.id)
		}
		return NewInvalidTransitionError(o.id, o.status, StatusPendingPayment)
	}
	if o.payment.GatewayOrderID != "" && o.payment.GatewayOrderID != s.GatewayReference {
		return shared.NewConflictError("order", "order already has a gateway session")
	}
	o.payment.GatewayOrderID = s.GatewayReference
	o.payment.RedirectURL = s.RedirectURL
	return nil
}

// CheckRefundable validates a refund request against the current snapshot.
func (o *Order) CheckRefundable(amount int64) error {
	if !o.payment.Method.IsOnline() {
		return newStateError(ErrRefundNotApplicable)
	}
	if !o.payment.Status.Captured() {
		return newStateError(ErrRefundNotApplicable)
	}
	if !o.status.Refundable() {
		return NewInvalidTransitionError(o.id, o.status, StatusRefunded)
	}
	if amount <= 0 {
		return shared.NewValidationError("order", "amount", "refund amount must be positive")
	}
	if amount > o.RefundableAmount() {
		return shared.NewValidationError("order", "amount",
			fmt.Sprintf("refund amount %d exceeds refundable %d", amount, o.RefundableAmount()))
	}
	return nil
}

// RefundableAmount is what remains after reserved and completed refunds.
func (o *Order) RefundableAmount() int64 {
	return o.totals.GrandTotal - o.payment.RefundedTotal
}

// RecordRefund appends a completed refund. RefundedTotal already includes
// the amount (it was reserved before the provider call). Reaching the grand
// total moves the order to refunded and the returned transition is non-nil.
func (o *Order) RecordRefund(r Refund, by string, at time.Time) (*Transition, error) {
	at = at.UTC()
	r.At = at
	r.By = by
	o.payment.Refunds = append(o.payment.Refunds, r)
	o.updatedAt = at
	o.events = append(o.events, NewOrderRefundedEvent(o.id, r))

	if o.payment.RefundedTotal < o.totals.GrandTotal {
		o.payment.Status = payment.StatusPartiallyRefunded
		return nil, nil
	}

	o.payment.Status = payment.StatusRefunded
	t, err := o.TransitionTo(StatusRefunded, by, "refunded in full: "+r.Reason, at)
	if err != nil {
		return nil, err
	}
	t.PaymentStatus = payment.StatusRefunded
	return &t, nil
}

// ExpiryCandidate reports whether the reservation outlived ttl at now.
func (o *Order) ExpiryCandidate(now time.Time, ttl time.Duration) bool {
	return o.status == StatusPendingPayment && !o.createdAt.After(now.Add(-ttl))
}

// BelongsTo reports ownership.
func (o *Order) BelongsTo(userID string) bool {
	return userID != "" && o.userID == userID
}

func (o *Order) ID() string                    { return o.id }
func (o *Order) OrderNumber() string           { return o.orderNumber }
func (o *Order) UserID() string                { return o.userID }
func (o *Order) Contact() Contact              { return o.contact }
func (o *Order) ShippingAddress() Address      { return o.shippingAddress }
func (o *Order) Totals() Totals                { return o.totals }
func (o *Order) Currency() string              { return o.currency }
func (o *Order) Status() Status                { return o.status }
func (o *Order) IdempotencyKey() string        { return o.idempotencyKey }
func (o *Order) Version() int                  { return o.version }
func (o *Order) CreatedAt() time.Time          { return o.createdAt }
func (o *Order) UpdatedAt() time.Time          { return o.updatedAt }
func (o *Order) PaymentMethod() payment.Method { return o.payment.Method }

func (o *Order) Items() []Item {
	items := make([]Item, len(o.items))
	copy(items, o.items)
	return items
}

func (o *Order) History() []HistoryEntry {
	h := make([]HistoryEntry, len(o.history))
	copy(h, o.history)
	return h
}

func (o *Order) Payment() Payment {
	p := o.payment
	p.Refunds = make([]Refund, len(o.payment.Refunds))
	copy(p.Refunds, o.payment.Refunds)
	return p
}

// Session rebuilds the stored gateway session, nil when none is attached.
func (o *Order) Session() *payment.Session {
	if o.payment.GatewayOrderID == "" {
		return nil
	}
	return &payment.Session{
		Provider:         o.payment.Method,
		GatewayReference: o.payment.GatewayOrderID,
		RedirectURL:      o.payment.RedirectURL,
		Amount:           o.totals.GrandTotal,
		Currency:         o.currency,
	}
}

func (o *Order) PullEvents() []shared.DomainEvent {
	events := o.events
	o.events = nil
	return events
}

// ReconstructionDTO is for repository implementations only.
type ReconstructionDTO struct {
	ID              string
	OrderNumber     string
	UserID          string
	Contact         Contact
	ShippingAddress Address
	Items           []Item
	Totals          Totals
	Currency        string
	Payment         Payment
	Status          Status
	IdempotencyKey  string
	History         []HistoryEntry
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func RebuildFromDTO(dto ReconstructionDTO) *Order {
	return &Order{
		id:              dto.ID,
		orderNumber:     dto.OrderNumber,
		userID:          dto.UserID,
		contact:         dto.Contact,
		shippingAddress: dto.ShippingAddress,
		items:           dto.Items,
		totals:          dto.Totals,
		currency:        dto.Currency,
		payment:         dto.Payment,
		status:          dto.Status,
		idempotencyKey:  dto.IdempotencyKey,
		history:         dto.History,
		version:         dto.Version,
		createdAt:       dto.CreatedAt,
		updatedAt:       dto.UpdatedAt,
	}
}

// ItemReconstructionDTO rebuilds a line item
type ItemReconstructionDTO struct {
	ID             string
	ProductID      string
	ProductName    string
	ProductImage   string
	Category       string
	VariantID      string
	Sku            string
	Size           string
	Quantity       int
	UnitPrice      int64
	MRP            int64
	TaxAmount      int64
	DiscountAmount int64
	LineTotal      int64
}

func RebuildItemFromDTO(dto ItemReconstructionDTO) Item {
	return Item{
		id:             dto.ID,
		productID:      dto.ProductID,
		productName:    dto.ProductName,
		productImage:   dto.ProductImage,
		category:       dto.Category,
		variantID:      dto.VariantID,
		sku:            dto.Sku,
		size:           dto.Size,
		quantity:       dto.Quantity,
		unitPrice:      dto.UnitPrice,
		mrp:            dto.MRP,
		taxAmount:      dto.TaxAmount,
		discountAmount: dto.DiscountAmount,
		lineTotal:      dto.LineTotal,
	}
}

var _ shared.AggregateRoot = (*Order)(nil)
