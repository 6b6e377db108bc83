package sink

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/example/fanout-dispatcher/internal/models"
	"github.com/example/fanout-dispatcher/internal/ratelimiter"
)

// Backend abstracts the message-broker transport underneath MQSink, so the
// sink can be wired to Kafka or MQTT by configuration, mirroring the
// teacher's provider-factory pattern.
type Backend interface {
	Publish(ctx context.Context, payload []byte) error
	Close() error
}

// MQSink publishes payloads to a configured message broker backend.
type MQSink struct {
	logger  zerolog.Logger
	backend Backend
	limiter *ratelimiter.RateLimiter
}

// NewMQSink constructs an MQ sink around an already-built Backend.
func NewMQSink(backend Backend, limiter *ratelimiter.RateLimiter, logger zerolog.Logger) *MQSink {
	return &MQSink{logger: logger, backend: backend, limiter: limiter}
}

// Role implements Sink.
func (s *MQSink) Role() models.SinkRole { return models.RoleMQ }

// Close releases the underlying backend connection.
func (s *MQSink) Close() error {
	return s.backend.Close()
}

// Send implements Sink.
func (s *MQSink) Send(ctx context.Context, payload string) (bool, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return false, err
	}

	if err := s.backend.Publish(ctx, []byte(payload)); err != nil {
		s.logger.Debug().Err(err).Msg("mq sink publish failed")
		return false, WrapTransient(err)
	}
	return true, nil
}
