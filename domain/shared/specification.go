package shared

import (
	"context"
)

// Specification encapsulates a query rule. In-memory stores evaluate
// IsSatisfiedBy; SQL and document stores translate the concrete type.
type Specification[T any] interface {
	IsSatisfiedBy(ctx context.Context, entity T) bool
}

// AndSpecification is the logical AND of two specifications
type AndSpecification[T any] struct {
	Left  Specification[T]
	Right Specification[T]
}

func (spec AndSpecification[T]) IsSatisfiedBy(ctx context.Context, entity T) bool {
	return spec.Left.IsSatisfiedBy(ctx, entity) && spec.Right.IsSatisfiedBy(ctx, entity)
}

// And folds any number of specifications; nil entries are skipped.
func And[T any](specs ...Specification[T]) Specification[T] {
	var result Specification[T]
	for _, s := range specs {
		if s == nil {
			continue
		}
		if result == nil {
			result = s
			continue
		}
		result = AndSpecification[T]{Left: result, Right: s}
	}
	if result == nil {
		return TrueSpecification[T]{}
	}
	return result
}

// TrueSpecification matches everything
type TrueSpecification[T any] struct{}

func (TrueSpecification[T]) IsSatisfiedBy(context.Context, T) bool { return true }

// Flatten returns the leaves of nested AND specifications in order.
func Flatten[T any](spec Specification[T]) []Specification[T] {
	switch s := spec.(type) {
	case nil, TrueSpecification[T]:
		return nil
	case AndSpecification[T]:
		return append(Flatten(s.Left), Flatten(s.Right)...)
	default:
		return []Specification[T]{spec}
	}
}
