package dispatch

import (
	"context"
	"fmt"
	"time"

	"signal-systemv1/internal/model"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the signal feed producer.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaProducer publishes actionable signals to a Kafka topic, keyed
// by instrument so per-instrument ordering holds across partitions.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaProducer creates the producer. Broker list must be non-empty.
func NewKafkaProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "signals"
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 100 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer, topic: topic}, nil
}

// Publish writes one signal to the topic.
func (p *KafkaProducer) Publish(ctx context.Context, sig model.Signal) error {
	msg := kafka.Message{
		Key:   []byte(sig.Asset),
		Value: sig.JSON(),
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", p.topic, err)
	}
	return nil
}

// Close closes the producer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
