package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordercore/domain/idempotency"
	"ordercore/domain/order"
	"ordercore/domain/user"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SequenceRepository counter documents {_id: "order_<period>", seq}.
type SequenceRepository struct {
	col *mongo.Collection
}

func NewSequenceRepository(db *mongo.Database) *SequenceRepository {
	return &SequenceRepository{col: db.Collection(colCounters)}
}

func (r *SequenceRepository) Next(ctx context.Context, counterID string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc counterDoc
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": counterID},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", counterID, err)
	}
	return doc.Seq, nil
}

// IdempotencyRepository keys are document ids; the TTL index on
// created_at removes expired records in the background, and Find still
// filters by notBefore because the TTL monitor runs only once a minute.
type IdempotencyRepository struct {
	col *mongo.Collection
}

func NewIdempotencyRepository(db *mongo.Database) *IdempotencyRepository {
	return &IdempotencyRepository{col: db.Collection(colIdempotency)}
}

func (r *IdempotencyRepository) Find(ctx context.Context, key string, notBefore time.Time) (*idempotency.Record, error) {
	var doc idempotencyDoc
	err := r.col.FindOne(ctx, bson.M{"_id": key, "created_at": bson.M{"$gt": notBefore.UTC()}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find idempotency key: %w", err)
	}
	return &idempotency.Record{Key: doc.Key, OrderID: doc.OrderID, CreatedAt: doc.CreatedAt.UTC()}, nil
}

func (r *IdempotencyRepository) Save(ctx context.Context, record idempotency.Record, notBefore time.Time) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": record.Key, "created_at": bson.M{"$lte": notBefore.UTC()}}); err != nil {
		return fmt.Errorf("drop expired idempotency key: %w", err)
	}
	_, err := r.col.InsertOne(ctx, idempotencyDoc{
		Key:       record.Key,
		OrderID:   record.OrderID,
		CreatedAt: record.CreatedAt.UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return idempotency.ErrKeyConflict
		}
		return fmt.Errorf("save idempotency key: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.col.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(colUsers)}
}

func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	doc := userDoc{
		ID:        u.ID(),
		Name:      u.Name(),
		Email:     u.Email().Value(),
		Phone:     u.Phone(),
		IsActive:  u.IsActive(),
		CreatedAt: u.CreatedAt().UTC(),
		UpdatedAt: u.UpdatedAt().UTC(),
	}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	var doc userDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, user.NewUserNotFoundError(id)
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

var (
	_ order.Sequence    = (*SequenceRepository)(nil)
	_ idempotency.Store = (*IdempotencyRepository)(nil)
	_ user.Repository   = (*UserRepository)(nil)
)
