package order

import (
	"context"
	"time"

	"ordercore/domain/payment"
	"ordercore/domain/shared"
)

// ByUserIDSpecification filters orders by owner
type ByUserIDSpecification struct {
	UserID string
}

func (spec ByUserIDSpecification) IsSatisfiedBy(_ context.Context, entity *Order) bool {
	return entity.UserID() == spec.UserID
}

// ByStatusSpecification filters orders by status
type ByStatusSpecification struct {
	Status Status
}

func (spec ByStatusSpecification) IsSatisfiedBy(_ context.Context, entity *Order) bool {
	return entity.Status() == spec.Status
}

// ByPaymentMethodSpecification filters orders by payment method
type ByPaymentMethodSpecification struct {
	Method payment.Method
}

func (spec ByPaymentMethodSpecification) IsSatisfiedBy(_ context.Context, entity *Order) bool {
	return entity.PaymentMethod() == spec.Method
}

// ByDateRangeSpecification filters orders by creation time.
// Zero bounds are ignored; Start is inclusive and End exclusive.
type ByDateRangeSpecification struct {
	Start time.Time
	End   time.Time
}

func (spec ByDateRangeSpecification) IsSatisfiedBy(_ context.Context, entity *Order) bool {
	createdAt := entity.CreatedAt()
	if !spec.Start.IsZero() && createdAt.Before(spec.Start) {
		return false
	}
	if !spec.End.IsZero() && !createdAt.Before(spec.End) {
		return false
	}
	return true
}

// Filter is the admin listing query. Empty fields are not applied.
type Filter struct {
	UserID string
	Status Status
	Method payment.Method
	From   time.Time
	To     time.Time
}

// Specification composes the non-empty fields.
func (f Filter) Specification() shared.Specification[*Order] {
	var specs []shared.Specification[*Order]
	if f.UserID != "" {
		specs = append(specs, ByUserIDSpecification{UserID: f.UserID})
	}
	if f.Status != "" {
		specs = append(specs, ByStatusSpecification{Status: f.Status})
	}
	if f.Method != "" {
		specs = append(specs, ByPaymentMethodSpecification{Method: f.Method})
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		specs = append(specs, ByDateRangeSpecification{Start: f.From, End: f.To})
	}
	return shared.And(specs...)
}
