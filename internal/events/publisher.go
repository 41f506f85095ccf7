// Package events publishes shipment and carrier events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// TopicCarrierHealth carries health state transitions.
const TopicCarrierHealth = "carrier.health"

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope wraps every published payload.
type Envelope struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// HealthEvent is published on TopicCarrierHealth.
type HealthEvent struct {
	Carrier string    `json:"carrier"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}

// KafkaPublisher writes JSON envelopes keyed by entity id. The topic is set
// per message so one writer serves every topic.
type KafkaPublisher struct {
	writer Writer
	logger *otelzap.Logger
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher writing to brokers.
func NewKafkaPublisher(brokers []string, logger *otelzap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return NewKafkaPublisherWithWriter(w, logger)
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer, logger *otelzap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger, now: time.Now}
}

// Publish marshals payload into an envelope and writes it to topic.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	b, err := json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Topic:      topic,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}

	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: b}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Kafka write failed", zap.String("topic", topic), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to write %s event: %w", topic, err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, string, string, any) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
