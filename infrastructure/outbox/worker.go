/*
Package outbox relays domain events committed to an outbox table or
collection. Delivery is at-least-once: an event is marked published only
after the publisher returns, so consumers must dedupe on event id.
*/
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ordercore/domain/shared"
	"ordercore/pkg/logger"
	"ordercore/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusPublished  Status = "PUBLISHED"
	StatusFailed     Status = "FAILED"
)

// Event is one stored outbox row
type Event struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     string
	RetryCount  int
}

// NewEvent serializes a domain event into a pending outbox row.
func NewEvent(event shared.DomainEvent) (Event, error) {
	if err := shared.ValidateEvent(event); err != nil {
		return Event{}, fmt.Errorf("invalid domain event: %w", err)
	}
	payload, err := json.Marshal(shared.EventEnvelope(event))
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:          uuid.New().String(),
		AggregateID: event.GetAggregateID(),
		EventType:   event.EventName(),
		Payload:     string(payload),
	}, nil
}

// ErrAlreadyClaimed another worker moved the event out of PENDING first.
var ErrAlreadyClaimed = errors.New("outbox event already claimed")

// ProcessingLease bounds how long an event may stay PROCESSING. A worker
// that dies between claim and publish leaves its events behind; they are
// returned to PENDING once the lease runs out and published again.
const ProcessingLease = 2 * time.Minute

// Store is implemented by each persistence backend.
type Store interface {
	GetPendingEvents(ctx context.Context, limit int) ([]Event, error)
	// MarkEventProcessing claims a pending event or returns ErrAlreadyClaimed.
	MarkEventProcessing(ctx context.Context, eventID string) error
	MarkEventPublished(ctx context.Context, eventID string) error
	// MarkEventFailed returns the event to pending until maxRetries is reached.
	MarkEventFailed(ctx context.Context, eventID string, maxRetries int) error
	// ReclaimStale resets PROCESSING events last touched before the cutoff.
	ReclaimStale(ctx context.Context, before time.Time) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LoggingPublisher is used when no broker is configured.
type LoggingPublisher struct{}

func (p *LoggingPublisher) Publish(ctx context.Context, event Event) error {
	logger.FromContext(ctx).Info("Outbox event published",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("aggregate_id", event.AggregateID),
		zap.String("payload", event.Payload),
	)
	return nil
}

type Worker struct {
	store        Store
	publisher    Publisher
	metrics      *metrics.Metrics
	pollInterval time.Duration
	batchSize    int
	maxRetries   int
}

func NewWorker(
	store Store,
	publisher Publisher,
	m *metrics.Metrics,
	pollInterval time.Duration,
	batchSize int,
	maxRetries int,
) (*Worker, error) {
	if store == nil {
		return nil, fmt.Errorf("outbox store is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher is required")
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if maxRetries <= 0 {
		return nil, fmt.Errorf("max retries must be positive")
	}

	return &Worker{
		store:        store,
		publisher:    publisher,
		metrics:      m,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxRetries:   maxRetries,
	}, nil
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil {
				logger.Error("Outbox batch processing failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch relays one batch and returns how many events were published.
// A failing event does not stop the batch.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	if n, err := w.store.ReclaimStale(ctx, time.Now().UTC().Add(-ProcessingLease)); err != nil {
		logger.Warn("Outbox reclaim failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("Outbox events reclaimed after lease expiry", zap.Int("count", n))
	}

	events, err := w.store.GetPendingEvents(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, event := range events {
		if err := w.store.MarkEventProcessing(ctx, event.ID); err != nil {
			if !errors.Is(err, ErrAlreadyClaimed) {
				logger.Warn("Outbox claim failed", zap.String("event_id", event.ID), zap.Error(err))
			}
			continue
		}

		if err := w.publisher.Publish(ctx, event); err != nil {
			w.metrics.OutboxRelayed(false)
			logger.Warn("Outbox publish failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Int("retry_count", event.RetryCount),
				zap.Error(err),
			)
			if failErr := w.store.MarkEventFailed(ctx, event.ID, w.maxRetries); failErr != nil {
				logger.Error("Failed to mark outbox event as failed",
					zap.String("event_id", event.ID),
					zap.Error(failErr),
				)
			}
			continue
		}

		w.metrics.OutboxRelayed(true)
		if err := w.store.MarkEventPublished(ctx, event.ID); err != nil {
			logger.Error("Failed to mark outbox event as published",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		published++
	}

	return published, nil
}
