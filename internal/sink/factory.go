package sink

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/fanout-dispatcher/internal/config"
	"github.com/example/fanout-dispatcher/internal/models"
	"github.com/example/fanout-dispatcher/internal/ratelimiter"
)

// BuildAll constructs every configured sink along with the rate limiters
// they own. Callers are responsible for calling Start on each returned
// limiter and Close on each returned sink (where the Sink also implements
// io.Closer) during orchestrator shutdown.
func BuildAll(cfg config.SinksConfig, logger zerolog.Logger) (map[models.SinkRole]Sink, []*ratelimiter.RateLimiter, error) {
	sinks := make(map[models.SinkRole]Sink, 4)
	var limiters []*ratelimiter.RateLimiter

	restLimiter := ratelimiter.New(cfg.REST.RateLimit)
	restSink, err := NewRESTSink(cfg.REST.Endpoint, time.Duration(cfg.REST.TimeoutSeconds)*time.Second, restLimiter, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("factory: rest sink: %w", err)
	}
	sinks[models.RoleREST] = restSink
	limiters = append(limiters, restLimiter)

	grpcLimiter := ratelimiter.New(cfg.GRPC.RateLimit)
	grpcSink, err := NewGRPCSink(cfg.GRPC.Target, cfg.GRPC.Method, time.Duration(cfg.GRPC.TimeoutSeconds)*time.Second, grpcLimiter, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("factory: grpc sink: %w", err)
	}
	sinks[models.RoleGRPC] = grpcSink
	limiters = append(limiters, grpcLimiter)

	mqLimiter := ratelimiter.New(cfg.MQ.RateLimit)
	mqBackend, err := buildMQBackend(cfg.MQ, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("factory: mq backend: %w", err)
	}
	sinks[models.RoleMQ] = NewMQSink(mqBackend, mqLimiter, logger)
	limiters = append(limiters, mqLimiter)

	dbLimiter := ratelimiter.New(cfg.DB.RateLimit)
	dbSink, err := NewDBSink(cfg.DB.Path, dbLimiter, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("factory: db sink: %w", err)
	}
	sinks[models.RoleDB] = dbSink
	limiters = append(limiters, dbLimiter)

	logger.Info().
		Str("rest_endpoint", cfg.REST.Endpoint).
		Str("grpc_target", cfg.GRPC.Target).
		Str("mq_backend", cfg.MQ.Backend).
		Str("db_path", cfg.DB.Path).
		Msg("sinks initialised")

	return sinks, limiters, nil
}

func buildMQBackend(cfg config.SinkMQConfig, logger zerolog.Logger) (Backend, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", "kafka":
		return NewKafkaBackend(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	case "mqtt":
		return NewMQTTBackend(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
	default:
		return nil, fmt.Errorf("unsupported mq backend %q", cfg.Backend)
	}
}
