package event

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka writer
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	BatchTimeout time.Duration
}

// KafkaPublisher publishes domain events to a Kafka topic.
// Messages are keyed by aggregate ID so every change to one stock level
// lands on the same partition in order.
type KafkaPublisher struct {
	writer     MessageWriter
	serializer *Serializer
	clientID   string
	logger     *zap.Logger
}

// NewKafkaWriter builds a kafka-go writer for cfg
func NewKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		BatchSize:              100,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaPublisher creates a publisher over writer
func NewKafkaPublisher(writer MessageWriter, serializer *Serializer, clientID string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:     writer,
		serializer: serializer,
		clientID:   clientID,
		logger:     logger.Named("kafka_publisher"),
	}
}

// Publish encodes and writes events as one batch
func (p *KafkaPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := p.serializer.Encode(event)
		if err != nil {
			p.logger.Error("Failed to encode event, skipping",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Error(err),
			)
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.AggregateID().String()),
			Value: value,
			Time:  event.OccurredAt(),
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.EventType())},
				{Key: "event_id", Value: []byte(event.EventID().String())},
				{Key: "producer", Value: []byte(p.clientID)},
			},
		})
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d events to kafka: %w", len(msgs), err)
	}
	p.logger.Debug("Events published", zap.Int("count", len(msgs)))
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ shared.EventPublisher = (*KafkaPublisher)(nil)
