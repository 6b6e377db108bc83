package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the dispatcher. The shape
// of this struct mirrors the specification's configuration table to keep
// configuration deterministic and discoverable.
type Config struct {
	App     AppConfig
	Input   InputConfig
	Queue   QueueConfig
	Sinks   SinksConfig
	DLQ     DLQConfig
	Metrics MetricsConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	LogLevel string
}

// InputConfig selects the record source artifact and its format.
type InputConfig struct {
	FilePath string
	Format   string
}

// QueueConfig controls the bounded record queue.
type QueueConfig struct {
	Capacity int
}

// SinksConfig groups per-role sink settings.
type SinksConfig struct {
	REST SinkRESTConfig
	GRPC SinkGRPCConfig
	MQ   SinkMQConfig
	DB   SinkDBConfig
}

// SinkRESTConfig configures the REST sink.
type SinkRESTConfig struct {
	RateLimit      int
	Endpoint       string
	TimeoutSeconds int
}

// SinkGRPCConfig configures the GRPC sink.
type SinkGRPCConfig struct {
	RateLimit      int
	Target         string
	Method         string
	TimeoutSeconds int
}

// SinkMQConfig configures the MQ sink, which may be backed by Kafka or MQTT.
type SinkMQConfig struct {
	RateLimit    int
	Backend      string
	KafkaBrokers []string
	KafkaTopic   string
	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
}

// SinkDBConfig configures the DB sink.
type SinkDBConfig struct {
	RateLimit int
	Path      string
}

// DLQConfig controls the dead-letter sink.
type DLQConfig struct {
	Enabled     bool
	FilePath    string
	MaxRetries  int
}

// MetricsConfig controls the periodic metrics reporter.
type MetricsConfig struct {
	IntervalSeconds int
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Input.FilePath = ldr.getString("INPUT_FILE_PATH", "sample-data/input.json", false)
	cfg.Input.Format = ldr.getString("INPUT_FORMAT", "jsonl", false)

	cfg.Queue.Capacity = ldr.getInt("QUEUE_CAPACITY", 1000, false)

	cfg.Sinks.REST.RateLimit = ldr.getInt("SINKS_REST_RATE_LIMIT", 50, false)
	cfg.Sinks.REST.Endpoint = ldr.getString("SINKS_REST_ENDPOINT", "http://localhost:8081/ingest", false)
	cfg.Sinks.REST.TimeoutSeconds = ldr.getInt("SINKS_REST_TIMEOUT_SECONDS", 10, false)

	cfg.Sinks.GRPC.RateLimit = ldr.getInt("SINKS_GRPC_RATE_LIMIT", 200, false)
	cfg.Sinks.GRPC.Target = ldr.getString("SINKS_GRPC_TARGET", "localhost:9090", false)
	cfg.Sinks.GRPC.Method = ldr.getString("SINKS_GRPC_METHOD", "/fanout.Sink/Deliver", false)
	cfg.Sinks.GRPC.TimeoutSeconds = ldr.getInt("SINKS_GRPC_TIMEOUT_SECONDS", 10, false)

	cfg.Sinks.MQ.RateLimit = ldr.getInt("SINKS_MQ_RATE_LIMIT", 500, false)
	cfg.Sinks.MQ.Backend = ldr.getString("SINKS_MQ_BACKEND", "kafka", false)
	cfg.Sinks.MQ.KafkaBrokers = ldr.getStringSlice("SINKS_MQ_KAFKA_BROKERS", false)
	cfg.Sinks.MQ.KafkaTopic = ldr.getString("SINKS_MQ_KAFKA_TOPIC", "fanout.records", false)
	cfg.Sinks.MQ.MQTTBroker = ldr.getString("SINKS_MQ_MQTT_BROKER", "tcp://localhost:1883", false)
	cfg.Sinks.MQ.MQTTTopic = ldr.getString("SINKS_MQ_MQTT_TOPIC", "fanout/records", false)
	cfg.Sinks.MQ.MQTTClientID = ldr.getString("SINKS_MQ_MQTT_CLIENT_ID", "fanout-dispatcher", false)

	cfg.Sinks.DB.RateLimit = ldr.getInt("SINKS_DB_RATE_LIMIT", 1000, false)
	cfg.Sinks.DB.Path = ldr.getString("SINKS_DB_PATH", "data/dispatcher.pebble", false)

	cfg.DLQ.Enabled = ldr.getBool("DLQ_ENABLED", true, false)
	cfg.DLQ.FilePath = ldr.getString("DLQ_FILE_PATH", "dlq/failed-records.jsonl", false)
	cfg.DLQ.MaxRetries = ldr.getInt("DLQ_MAX_RETRIES", 3, false)

	cfg.Metrics.IntervalSeconds = ldr.getInt("METRICS_INTERVAL_SECONDS", 5, false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid boolean", key))
			return def
		}
		return parsed
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		if required {
			return nil
		}
		return []string{}
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
