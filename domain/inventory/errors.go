package inventory

import (
	"errors"

	"ordercore/domain/shared"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrVariantNotFound   = errors.New("variant not found")
)

// InsufficientStockError names the line item that could not be reserved.
type InsufficientStockError struct {
	Sku   string
	stack []uintptr
}

func NewInsufficientStockError(sku string) error {
	return &InsufficientStockError{Sku: sku, stack: shared.CaptureStack(3)}
}

func (e *InsufficientStockError) Error() string {
	return "insufficient stock for " + e.Sku
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

func (e *InsufficientStockError) Stack() []string {
	return shared.FormatStack(e.stack)
}

// NewVariantNotFoundError wraps both the inventory and the shared sentinel.
func NewVariantNotFoundError(ref VariantRef) error {
	return &shared.DomainError{
		Err:     errors.Join(ErrVariantNotFound, shared.ErrNotFound),
		Entity:  "variant",
		Message: "variant not found: " + ref.String(),
	}
}
