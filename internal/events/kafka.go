package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the kafka publisher.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaPublisher implements Publisher via kafka-go. Messages are keyed by
// order number so a single order's events stay ordered within a partition.
type kafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaPublisher builds an asynchronous kafka publisher.
func NewKafkaPublisher(cfg KafkaConfig, logger zerolog.Logger) (Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	logger = logger.With().Str("component", "kafka-publisher").Logger()

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error().Err(err).Int("messages", len(messages)).Msg("failed to deliver order events")
			}
		},
		Logger:      kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug().Msgf(msg, args...) }),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Warn().Msgf(msg, args...) }),
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("kafka publisher initialised")

	return newKafkaPublisher(writer, cfg.Topic, logger), nil
}

func newKafkaPublisher(writer messageWriter, topic string, logger zerolog.Logger) *kafkaPublisher {
	return &kafkaPublisher{writer: writer, topic: topic, logger: logger}
}

// Publish encodes the event and hands it to the writer.
func (p *kafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderNumber),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().
			Err(err).
			Str("order_number", event.OrderNumber).
			Str("event_type", event.Type).
			Msg("failed to publish order event")
		return fmt.Errorf("failed to publish order event: %w", err)
	}

	return nil
}

// Close flushes pending messages and closes the writer.
func (p *kafkaPublisher) Close() error {
	p.logger.Info().Msg("closing kafka publisher")
	return p.writer.Close()
}
