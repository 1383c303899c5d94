package specification

import (
	"ordercore/domain/order"
	"ordercore/domain/shared"

	"go.mongodb.org/mongo-driver/bson"
	"gorm.io/gorm"
)

// GormTranslator converts order specifications to GORM scopes
// DDD principle: Infrastructure layer handles framework-specific concerns
type GormTranslator struct{}

func NewGormTranslator() *GormTranslator {
	return &GormTranslator{}
}

// Translate returns nil for nil or unsupported specifications. AND trees are
// flattened; each leaf becomes one WHERE clause.
func (t *GormTranslator) Translate(spec shared.Specification[*order.Order]) func(*gorm.DB) *gorm.DB {
	leaves := shared.Flatten(spec)
	if len(leaves) == 0 {
		return nil
	}
	scopes := make([]func(*gorm.DB) *gorm.DB, 0, len(leaves))
	for _, leaf := range leaves {
		scope := t.translateConcrete(leaf)
		if scope == nil {
			return nil
		}
		scopes = append(scopes, scope)
	}
	return func(db *gorm.DB) *gorm.DB {
		for _, scope := range scopes {
			db = scope(db)
		}
		return db
	}
}

func (t *GormTranslator) translateConcrete(spec shared.Specification[*order.Order]) func(*gorm.DB) *gorm.DB {
	switch s := spec.(type) {
	case order.ByUserIDSpecification:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("user_id = ?", s.UserID)
		}
	case order.ByStatusSpecification:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", string(s.Status))
		}
	case order.ByPaymentMethodSpecification:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("payment_method = ?", string(s.Method))
		}
	case order.ByDateRangeSpecification:
		return func(db *gorm.DB) *gorm.DB {
			if !s.Start.IsZero() {
				db = db.Where("created_at >= ?", s.Start.UTC())
			}
			if !s.End.IsZero() {
				db = db.Where("created_at < ?", s.End.UTC())
			}
			return db
		}
	}
	return nil
}

// BSONTranslator converts order specifications to a MongoDB filter
type BSONTranslator struct{}

func NewBSONTranslator() *BSONTranslator {
	return &BSONTranslator{}
}

// Translate returns ok=false for unsupported specifications.
func (t *BSONTranslator) Translate(spec shared.Specification[*order.Order]) (bson.M, bool) {
	filter := bson.M{}
	for _, leaf := range shared.Flatten(spec) {
		switch s := leaf.(type) {
		case order.ByUserIDSpecification:
			filter["user_id"] = s.UserID
		case order.ByStatusSpecification:
			filter["status"] = string(s.Status)
		case order.ByPaymentMethodSpecification:
			filter["payment.method"] = string(s.Method)
		case order.ByDateRangeSpecification:
			rng := bson.M{}
			if !s.Start.IsZero() {
				rng["$gte"] = s.Start.UTC()
			}
			if !s.End.IsZero() {
				rng["$lt"] = s.End.UTC()
			}
			if len(rng) > 0 {
				filter["created_at"] = rng
			}
		default:
			return nil, false
		}
	}
	return filter, true
}
