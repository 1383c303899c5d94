package po

import (
	"time"

	"ordercore/domain/shared"
	"ordercore/infrastructure/outbox"
)

// OutboxEventPO Outbox event persistence object
// Implements transactional outbox pattern for reliable event publishing
type OutboxEventPO struct {
	ID          string    `gorm:"primaryKey;size:64"`
	AggregateID string    `gorm:"size:64;index;not null"`
	EventType   string    `gorm:"size:100;index;not null"` // e.g. "order.placed", "order.status_changed"
	Payload     string    `gorm:"type:json;not null"`
	Status      string    `gorm:"size:20;index;default:PENDING;not null"` // PENDING, PROCESSING, PUBLISHED, FAILED
	RetryCount  int       `gorm:"default:0;not null"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}

func (OutboxEventPO) TableName() string {
	return "outbox_events"
}

// FromDomainEvent Convert domain event to outbox persistence object
func FromDomainEvent(event shared.DomainEvent) (*OutboxEventPO, error) {
	e, err := outbox.NewEvent(event)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &OutboxEventPO{
		ID:          e.ID,
		AggregateID: e.AggregateID,
		EventType:   e.EventType,
		Payload:     e.Payload,
		Status:      string(outbox.StatusPending),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (po *OutboxEventPO) ToEvent() outbox.Event {
	return outbox.Event{
		ID:          po.ID,
		AggregateID: po.AggregateID,
		EventType:   po.EventType,
		Payload:     po.Payload,
		RetryCount:  po.RetryCount,
	}
}
