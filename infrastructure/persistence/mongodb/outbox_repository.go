package mongodb

import (
	"context"
	"fmt"
	"time"

	"ordercore/domain/shared"
	"ordercore/infrastructure/outbox"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OutboxRepository struct {
	col *mongo.Collection
}

func NewOutboxRepository(db *mongo.Database) *OutboxRepository {
	return &OutboxRepository{col: db.Collection(colOutbox)}
}

// SaveEvent joins the session transaction when ctx carries one.
func (r *OutboxRepository) SaveEvent(ctx context.Context, event shared.DomainEvent) error {
	e, err := outbox.NewEvent(event)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = r.col.InsertOne(ctx, outboxDoc{
		ID:          e.ID,
		AggregateID: e.AggregateID,
		EventType:   e.EventType,
		Payload:     e.Payload,
		Status:      string(outbox.StatusPending),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return fmt.Errorf("failed to save event to outbox: %w", err)
	}
	return nil
}

func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]outbox.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit))
	cursor, err := r.col.Find(ctx, bson.M{"status": string(outbox.StatusPending)}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	var docs []outboxDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	events := make([]outbox.Event, len(docs))
	for i, d := range docs {
		events[i] = outbox.Event{
			ID:          d.ID,
			AggregateID: d.AggregateID,
			EventType:   d.EventType,
			Payload:     d.Payload,
			RetryCount:  d.RetryCount,
		}
	}
	return events, nil
}

func (r *OutboxRepository) MarkEventProcessing(ctx context.Context, eventID string) error {
	result, err := r.col.UpdateOne(ctx,
		bson.M{"_id": eventID, "status": string(outbox.StatusPending)},
		bson.M{"$set": bson.M{"status": string(outbox.StatusProcessing), "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return outbox.ErrAlreadyClaimed
	}
	return nil
}

func (r *OutboxRepository) MarkEventPublished(ctx context.Context, eventID string) error {
	result, err := r.col.UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{"$set": bson.M{"status": string(outbox.StatusPublished), "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("event not found: %s", eventID)
	}
	return nil
}

// MarkEventFailed uses an update pipeline so the retry count and the
// resulting status are computed in one write.
func (r *OutboxRepository) MarkEventFailed(ctx context.Context, eventID string, maxRetries int) error {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"retry_count": bson.M{"$add": bson.A{"$retry_count", 1}}}}},
		{{Key: "$set", Value: bson.M{
			"status": bson.M{"$cond": bson.A{
				bson.M{"$lt": bson.A{"$retry_count", maxRetries}},
				string(outbox.StatusPending),
				string(outbox.StatusFailed),
			}},
			"updated_at": time.Now().UTC(),
		}}},
	}
	result, err := r.col.UpdateOne(ctx, bson.M{"_id": eventID}, pipeline)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("failed to find event: %s", eventID)
	}
	return nil
}

// ReclaimStale 由 (status, updated_at) 索引支撑
func (r *OutboxRepository) ReclaimStale(ctx context.Context, before time.Time) (int, error) {
	result, err := r.col.UpdateMany(ctx,
		bson.M{"status": string(outbox.StatusProcessing), "updated_at": bson.M{"$lt": before}},
		bson.M{"$set": bson.M{"status": string(outbox.StatusPending), "updated_at": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("reclaim outbox events: %w", err)
	}
	return int(result.ModifiedCount), nil
}

var (
	_ shared.OutboxRepository = (*OutboxRepository)(nil)
	_ outbox.Store            = (*OutboxRepository)(nil)
)
