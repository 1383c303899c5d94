package memory

import (
	"context"
	"fmt"
	"time"

	"ordercore/domain/shared"
	"ordercore/infrastructure/outbox"
)

type outboxRow struct {
	event     outbox.Event
	status    outbox.Status
	updatedAt time.Time
}

// OutboxRepository 内存 outbox，按写入顺序返回待发布事件
type OutboxRepository struct {
	store *Store
}

func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

func (r *OutboxRepository) SaveEvent(ctx context.Context, event shared.DomainEvent) error {
	e, err := outbox.NewEvent(event)
	if err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outbox = append(s.outbox, &outboxRow{event: e, status: outbox.StatusPending, updatedAt: time.Now().UTC()})
	s.record(ctx, func() {
		for i, row := range s.outbox {
			if row.event.ID == e.ID {
				s.outbox = append(s.outbox[:i], s.outbox[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]outbox.Event, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []outbox.Event
	for _, row := range s.outbox {
		if row.status == outbox.StatusPending && len(events) < limit {
			events = append(events, row.event)
		}
	}
	return events, nil
}

func (r *OutboxRepository) find(eventID string) *outboxRow {
	for _, row := range r.store.outbox {
		if row.event.ID == eventID {
			return row
		}
	}
	return nil
}

func (r *OutboxRepository) MarkEventProcessing(ctx context.Context, eventID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	row := r.find(eventID)
	if row == nil {
		return fmt.Errorf("event not found: %s", eventID)
	}
	if row.status != outbox.StatusPending {
		return outbox.ErrAlreadyClaimed
	}
	row.status = outbox.StatusProcessing
	row.updatedAt = time.Now().UTC()
	return nil
}

func (r *OutboxRepository) MarkEventPublished(ctx context.Context, eventID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	row := r.find(eventID)
	if row == nil {
		return fmt.Errorf("event not found: %s", eventID)
	}
	row.status = outbox.StatusPublished
	row.updatedAt = time.Now().UTC()
	return nil
}

func (r *OutboxRepository) MarkEventFailed(ctx context.Context, eventID string, maxRetries int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	row := r.find(eventID)
	if row == nil {
		return fmt.Errorf("event not found: %s", eventID)
	}
	row.event.RetryCount++
	row.status = outbox.StatusFailed
	if row.event.RetryCount < maxRetries {
		row.status = outbox.StatusPending
	}
	row.updatedAt = time.Now().UTC()
	return nil
}

func (r *OutboxRepository) ReclaimStale(ctx context.Context, before time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	n := 0
	for _, row := range r.store.outbox {
		if row.status == outbox.StatusProcessing && row.updatedAt.Before(before) {
			row.status = outbox.StatusPending
			n++
		}
	}
	return n, nil
}

// Events returns every stored event regardless of status (tests).
func (r *OutboxRepository) Events() []outbox.Event {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	events := make([]outbox.Event, len(r.store.outbox))
	for i, row := range r.store.outbox {
		events[i] = row.event
	}
	return events
}

var (
	_ shared.OutboxRepository = (*OutboxRepository)(nil)
	_ outbox.Store            = (*OutboxRepository)(nil)
)
