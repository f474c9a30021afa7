package producer

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// ProduceResult holds the result of an asynchronous production
type ProduceResult struct {
	Error error
}

// Producer defines the interface for publishing placed events to Kafka
type Producer interface {
	// PublishAsync sends a message to Kafka asynchronously.
	// Returns a channel that receives the result when the write completes.
	PublishAsync(ctx context.Context, key, value []byte) <-chan ProduceResult

	// Close gracefully shuts down the producer
	Close() error
}

// KafkaProducer implements the Producer interface using kafka-go
type KafkaProducer struct {
	writer *kafka.Writer
}

// Config holds Kafka producer configuration
type Config struct {
	Brokers []string
	Topic   string
}

// NewKafkaProducer creates a new KafkaProducer instance
func NewKafkaProducer(cfg Config) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Async:    true, // Non-blocking
		Balancer: &kafka.LeastBytes{},
	}

	return &KafkaProducer{writer: writer}
}

// PublishAsync sends a message to Kafka asynchronously. The placement
// pipeline treats the returned channel as fire-and-forget: a slow or
// unreachable broker must never block a placement acceptance.
func (p *KafkaProducer) PublishAsync(ctx context.Context, key, value []byte) <-chan ProduceResult {
	resultChan := make(chan ProduceResult, 1)

	msg := kafka.Message{
		Key:   key,
		Value: value,
	}

	go func() {
		err := p.writer.WriteMessages(ctx, msg)
		resultChan <- ProduceResult{Error: err}
		close(resultChan)
	}()

	return resultChan
}

// Close gracefully shuts down the producer
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
