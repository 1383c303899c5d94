/*
Package inventory models the product variants consumed by checkout. The
catalog owns the variant records; this package only reads snapshots and
moves stock through conditional decrement and increment.
*/
package inventory

import (
	"context"
	"strings"
)

// StockStatus is derived from stock after every mutation
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockOutOfStock StockStatus = "out_of_stock"
)

// StatusFor returns the stock status for a unit count.
func StatusFor(stock int) StockStatus {
	if stock <= 0 {
		return StockOutOfStock
	}
	return StockInStock
}

type refKind uint8

const (
	refByID refKind = iota + 1
	refBySku
)

// VariantRef identifies a variant either by id or by sku.
type VariantRef struct {
	kind  refKind
	value string
}

func ByID(id string) VariantRef {
	return VariantRef{kind: refByID, value: strings.TrimSpace(id)}
}

func BySku(sku string) VariantRef {
	return VariantRef{kind: refBySku, value: NormalizeSku(sku)}
}

// NormalizeSku is the stored and looked-up form of a sku.
func NormalizeSku(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

func (r VariantRef) IsSku() bool   { return r.kind == refBySku }
func (r VariantRef) Value() string { return r.value }
func (r VariantRef) Valid() bool   { return r.kind != 0 && r.value != "" }

func (r VariantRef) String() string {
	if r.IsSku() {
		return "sku:" + r.value
	}
	return "id:" + r.value
}

// Variant is a read snapshot of a product variant and its parent product.
// Price and MRP are minor units.
type Variant struct {
	ProductID    string
	ProductName  string
	ProductImage string
	Category     string
	VariantID    string
	Sku          string
	Size         string
	Stock        int
	StockStatus  StockStatus
	Price        int64
	MRP          int64
}

// Catalog resolves variants and mutates their stock. Reserve and Release
// join the transaction carried by ctx when one is present.
type Catalog interface {
	// Resolve returns the variant or a not-found error.
	Resolve(ctx context.Context, ref VariantRef) (*Variant, error)

	// Reserve decrements stock by qty only if stock >= qty. When the guard
	// does not match it returns an InsufficientStockError for sku.
	Reserve(ctx context.Context, variantID, sku string, qty int) error

	// Release increments stock by qty.
	Release(ctx context.Context, variantID string, qty int) error
}
