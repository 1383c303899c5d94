package shared

import (
	"fmt"
	"time"
)

// DomainEvent is recorded by an aggregate and relayed through the outbox.
type DomainEvent interface {
	EventName() string
	OccurredOn() time.Time
	GetAggregateID() string
}

// EventPayload is implemented by events that carry data beyond the envelope.
// The outbox serializes Payload() next to the envelope fields.
type EventPayload interface {
	Payload() map[string]any
}

// EventEnvelope returns the serializable form of an event.
func EventEnvelope(event DomainEvent) map[string]any {
	data := map[string]any{
		"event_name":   event.EventName(),
		"aggregate_id": event.GetAggregateID(),
		"occurred_on":  event.OccurredOn().UTC(),
	}
	if p, ok := event.(EventPayload); ok {
		for k, v := range p.Payload() {
			data[k] = v
		}
	}
	return data
}

func ValidateEvent(event DomainEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	if event.EventName() == "" {
		return fmt.Errorf("event name cannot be empty")
	}

	if event.GetAggregateID() == "" {
		return fmt.Errorf("aggregate ID cannot be empty")
	}

	if event.OccurredOn().IsZero() {
		return fmt.Errorf("occurred on time cannot be zero")
	}

	return nil
}
