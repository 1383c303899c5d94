package specification

import (
	"testing"
	"time"

	"ordercore/domain/order"
	"ordercore/domain/payment"
	"ordercore/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type unknownSpec struct{ shared.TrueSpecification[*order.Order] }

func TestBSONTranslator(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	spec := order.Filter{UserID: "u1", Status: order.StatusShipped, Method: payment.MethodCOD, From: from}.Specification()

	filter, ok := NewBSONTranslator().Translate(spec)
	require.True(t, ok)
	assert.Equal(t, "u1", filter["user_id"])
	assert.Equal(t, "shipped", filter["status"])
	assert.Equal(t, "cod", filter["payment.method"])
	assert.Equal(t, bson.M{"$gte": from}, filter["created_at"])

	_, ok = NewBSONTranslator().Translate(unknownSpec{})
	assert.False(t, ok)
}

func TestGormTranslatorUnsupported(t *testing.T) {
	tr := NewGormTranslator()
	assert.Nil(t, tr.Translate(nil))
	assert.Nil(t, tr.Translate(unknownSpec{}))
	assert.NotNil(t, tr.Translate(order.ByUserIDSpecification{UserID: "u1"}))
}
