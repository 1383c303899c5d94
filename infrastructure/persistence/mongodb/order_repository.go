package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordercore/domain/order"
	"ordercore/domain/payment"
	"ordercore/domain/shared"
	"ordercore/infrastructure/persistence/specification"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OrderRepository stores each order as one document. Conditional updates
// are single-document filters, which MongoDB applies atomically.
type OrderRepository struct {
	col        *mongo.Collection
	translator *specification.BSONTranslator
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{col: db.Collection(colOrders), translator: specification.NewBSONTranslator()}
}

func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	if _, err := r.col.InsertOne(ctx, orderFromDomain(o)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return shared.NewConflictError("order", "order already exists: "+o.OrderNumber())
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) findOne(ctx context.Context, filter bson.M, ref string) (*order.Order, error) {
	var doc orderDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, order.NewOrderNotFoundError(ref)
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id)
}

func (r *OrderRepository) FindByGatewayReference(ctx context.Context, method payment.Method, ref string) (*order.Order, error) {
	if ref == "" {
		return nil, order.NewOrderNotFoundError(string(method) + ":")
	}
	return r.findOne(ctx, bson.M{"payment.method": string(method), "payment.gateway_order_id": ref}, string(method)+":"+ref)
}

func (r *OrderRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*order.Order, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []orderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	orders := make([]*order.Order, len(docs))
	for i := range docs {
		orders[i] = docs[i].toDomain()
	}
	return orders, nil
}

func (r *OrderRepository) FindBySpecification(ctx context.Context, spec shared.Specification[*order.Order], page order.Page) ([]*order.Order, int64, error) {
	filter, ok := r.translator.Translate(spec)
	if !ok {
		return nil, 0, fmt.Errorf("unsupported order specification %T", spec)
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
	orders, err := r.find(ctx, filter, opts)
	return orders, total, err
}

func (r *OrderRepository) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*order.Order, error) {
	filter := bson.M{
		"status":     string(order.StatusPendingPayment),
		"created_at": bson.M{"$lte": cutoff.UTC()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *OrderRepository) updateOne(ctx context.Context, filter, update bson.M) (bool, error) {
	result, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}

// TransitionStatus is a compare-and-set on status; the history entry is
// pushed by the same update.
func (r *OrderRepository) TransitionStatus(ctx context.Context, t order.Transition) (bool, error) {
	set := bson.M{
		"status":     string(t.To),
		"updated_at": t.Entry.At.UTC(),
	}
	if t.PaymentStatus != "" {
		set["payment.status"] = string(t.PaymentStatus)
	}
	if t.GatewayPaymentID != "" {
		set["payment.gateway_payment_id"] = t.GatewayPaymentID
	}
	return r.updateOne(ctx,
		bson.M{"_id": t.OrderID, "status": string(t.From)},
		bson.M{
			"$set":  set,
			"$inc":  bson.M{"version": 1},
			"$push": bson.M{"history": historyFromDomain(t.Entry)},
		})
}

func (r *OrderRepository) AttachGatewaySession(ctx context.Context, orderID string, session *payment.Session) (bool, error) {
	return r.updateOne(ctx,
		bson.M{"_id": orderID, "status": string(order.StatusPendingPayment), "payment.gateway_order_id": ""},
		bson.M{"$set": bson.M{
			"payment.gateway_order_id": session.GatewayReference,
			"payment.redirect_url":     session.RedirectURL,
			"updated_at":               time.Now().UTC(),
		}})
}

func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, orderID, gatewayPaymentID string) (bool, error) {
	set := bson.M{
		"payment.status": string(payment.StatusFailed),
		"updated_at":     time.Now().UTC(),
	}
	if gatewayPaymentID != "" {
		set["payment.gateway_payment_id"] = gatewayPaymentID
	}
	return r.updateOne(ctx,
		bson.M{"_id": orderID, "status": string(order.StatusPendingPayment)},
		bson.M{"$set": set})
}

func (r *OrderRepository) ReserveRefund(ctx context.Context, orderID string, amount int64) (bool, error) {
	statuses := bson.A{}
	for _, s := range order.RefundableStatuses() {
		statuses = append(statuses, string(s))
	}
	filter := bson.M{
		"_id":            orderID,
		"status":         bson.M{"$in": statuses},
		"payment.status": bson.M{"$in": bson.A{string(payment.StatusPaid), string(payment.StatusPartiallyRefunded)}},
		"$expr": bson.M{"$lte": bson.A{
			bson.M{"$add": bson.A{"$payment.refunded_total", amount}},
			"$totals.grand_total",
		}},
	}
	return r.updateOne(ctx, filter, bson.M{
		"$inc": bson.M{"payment.refunded_total": amount},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
}

func (r *OrderRepository) ReleaseRefund(ctx context.Context, orderID string, amount int64) error {
	_, err := r.updateOne(ctx,
		bson.M{"_id": orderID, "payment.refunded_total": bson.M{"$gte": amount}},
		bson.M{
			"$inc": bson.M{"payment.refunded_total": -amount},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		})
	return err
}

func (r *OrderRepository) AppendRefund(ctx context.Context, orderID string, refund order.Refund, status payment.Status) error {
	ok, err := r.updateOne(ctx,
		bson.M{"_id": orderID},
		bson.M{
			"$push": bson.M{"payment.refunds": refundFromDomain(refund)},
			"$set":  bson.M{"payment.status": string(status), "updated_at": refund.At.UTC()},
		})
	if err != nil {
		return err
	}
	if !ok {
		return order.NewOrderNotFoundError(orderID)
	}
	return nil
}

var _ order.Repository = (*OrderRepository)(nil)
