/*
Package messaging relays outbox events to Kafka. Messages are keyed by
aggregate id so every event of one order lands on the same partition in
commit order.
*/
package messaging

import (
	"context"
	"strings"
	"time"

	"ordercore/config"
	"ordercore/infrastructure/outbox"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewKafkaPublisher returns nil when no brokers are configured.
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	brokers := ParseBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event outbox.Event) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: []byte(event.Payload),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "event_type", Value: []byte(event.EventType)},
		},
		Time: time.Now().UTC(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ outbox.Publisher = (*KafkaPublisher)(nil)
