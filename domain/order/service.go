package order

import (
	"context"
	"fmt"
	"time"

	"ordercore/domain/inventory"
	"ordercore/domain/payment"
)

// LineRequest is one requested line: a variant reference and a quantity
type LineRequest struct {
	Ref      inventory.VariantRef
	Quantity int
}

// PlaceRequest is the validated checkout input
type PlaceRequest struct {
	UserID          string
	Contact         Contact
	ShippingAddress Address
	Lines           []LineRequest
	Method          payment.Method
	IdempotencyKey  string
}

// Builder assembles a new order inside the caller's transaction:
// resolve, reserve, snapshot, price, number.
//
// It mutates stock and draws from the counter, so ctx must carry the
// transaction that will also save the order. A returned error means the
// caller must roll back.
type Builder struct {
	catalog   inventory.Catalog
	sequence  Sequence
	numbering Numbering
	pricing   PricingPolicy
	now       func() time.Time
}

func NewBuilder(catalog inventory.Catalog, sequence Sequence, numbering Numbering, pricing PricingPolicy) *Builder {
	return &Builder{
		catalog:   catalog,
		sequence:  sequence,
		numbering: numbering,
		pricing:   pricing,
		now:       time.Now,
	}
}

// WithClock replaces the time source (tests).
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) Pricing() PricingPolicy { return b.pricing }

// Build reserves every line in request order and returns the unsaved order.
// The first line that cannot be reserved aborts the build with an
// InsufficientStockError naming its sku.
func (b *Builder) Build(ctx context.Context, req PlaceRequest) (*Order, error) {
	if len(req.Lines) == 0 {
		return nil, newInputError(ErrEmptyOrderItems)
	}

	items := make([]Item, 0, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity < 1 {
			return nil, newInputError(ErrInvalidQuantity)
		}
		v, err := b.catalog.Resolve(ctx, line.Ref)
		if err != nil {
			return nil, err
		}
		if err := b.catalog.Reserve(ctx, v.VariantID, v.Sku, line.Quantity); err != nil {
			return nil, err
		}
		item, err := NewItem(v, line.Quantity)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	now := b.now()
	number, err := b.numbering.Next(ctx, b.sequence, now)
	if err != nil {
		return nil, err
	}

	o, err := NewOrder(PlaceOrderParams{
		OrderNumber:     number,
		UserID:          req.UserID,
		Contact:         req.Contact,
		ShippingAddress: req.ShippingAddress,
		Items:           items,
		Method:          req.Method,
		Pricing:         b.pricing,
		IdempotencyKey:  req.IdempotencyKey,
		PlacedAt:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("build order: %w", err)
	}
	return o, nil
}

// ReleaseAll returns every line's quantity to stock. Used when an order
// enters a stock-releasing status.
func ReleaseAll(ctx context.Context, catalog inventory.Catalog, o *Order) error {
	for _, item := range o.items {
		if err := catalog.Release(ctx, item.variantID, item.quantity); err != nil {
			return fmt.Errorf("release %s: %w", item.sku, err)
		}
	}
	return nil
}
