package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/example/fanout-dispatcher/internal/models"
	"github.com/example/fanout-dispatcher/internal/ratelimiter"
)

// rawCodecName is registered once so GRPCSink can invoke a method without
// knowing the destination's .proto definitions: the payload is already
// encoded by the transform stage, and the codec just moves bytes.
const rawCodecName = "fanout-raw"

func init() {
	encoding.RegisterCodec(rawBytesCodec{})
}

// rawBytesCodec implements encoding.Codec by treating every message as a
// raw byte slice, skipping protobuf marshaling entirely.
type rawBytesCodec struct{}

func (rawBytesCodec) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	default:
		return nil, fmt.Errorf("rawBytesCodec: unsupported type %T", v)
	}
}

func (rawBytesCodec) Unmarshal(data []byte, v any) error {
	switch b := v.(type) {
	case *[]byte:
		*b = data
		return nil
	default:
		return fmt.Errorf("rawBytesCodec: unsupported type %T", v)
	}
}

func (rawBytesCodec) Name() string { return rawCodecName }

// GRPCSink delivers payloads to a gRPC target via ClientConn.Invoke, using
// a raw-bytes codec so the already-encoded payload passes through as-is.
type GRPCSink struct {
	logger  zerolog.Logger
	conn    *grpc.ClientConn
	method  string
	timeout time.Duration
	limiter *ratelimiter.RateLimiter
}

// NewGRPCSink dials target and constructs a GRPC sink bound to method.
func NewGRPCSink(target, method string, timeout time.Duration, limiter *ratelimiter.RateLimiter, logger zerolog.Logger) (*GRPCSink, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("grpc sink: target is required")
	}
	if strings.TrimSpace(method) == "" {
		return nil, fmt.Errorf("grpc sink: method is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("grpc sink: rate limiter is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc sink: dial %s: %w", target, err)
	}

	return &GRPCSink{
		logger:  logger,
		conn:    conn,
		method:  method,
		timeout: timeout,
		limiter: limiter,
	}, nil
}

// Role implements Sink.
func (s *GRPCSink) Role() models.SinkRole { return models.RoleGRPC }

// Close releases the underlying gRPC connection.
func (s *GRPCSink) Close() error {
	return s.conn.Close()
}

// Send implements Sink.
func (s *GRPCSink) Send(ctx context.Context, payload string) (bool, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return false, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := []byte(payload)
	var reply []byte
	err := s.conn.Invoke(callCtx, s.method, &req, &reply, grpc.CallContentSubtype(rawCodecName))
	if err != nil {
		s.logger.Debug().Err(err).Str("method", s.method).Msg("grpc sink invoke failed")
		return false, WrapTransient(err)
	}
	return true, nil
}
