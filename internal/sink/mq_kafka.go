package sink

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/example/fanout-dispatcher/internal/kafka/producer"
)

// KafkaBackend publishes MQ sink payloads to a Kafka topic via the shared
// producer.Producer, using its synchronous publish path and background
// metadata refresh.
type KafkaBackend struct {
	producer *producer.Producer
	topic    string
}

// NewKafkaBackend constructs a Kafka-backed MQ transport.
func NewKafkaBackend(brokers []string, topic string, logger zerolog.Logger) (*KafkaBackend, error) {
	p, err := producer.New(brokers, logger)
	if err != nil {
		return nil, err
	}
	return &KafkaBackend{producer: p, topic: topic}, nil
}

// Publish implements Backend.
func (b *KafkaBackend) Publish(_ context.Context, payload []byte) error {
	return b.producer.PublishSync(b.topic, nil, nil, payload)
}

// Close implements Backend.
func (b *KafkaBackend) Close() error {
	return b.producer.Close()
}
