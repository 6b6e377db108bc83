package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/fanout-dispatcher/internal/models"
	"github.com/example/fanout-dispatcher/internal/ratelimiter"
)

// HTTPClient abstracts http.Client.Do for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTOption customizes a RESTSink.
type RESTOption func(*RESTSink)

// WithRESTHTTPClient overrides the HTTP client used to reach the endpoint.
func WithRESTHTTPClient(client HTTPClient) RESTOption {
	return func(s *RESTSink) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// RESTSink delivers payloads via an HTTP POST to a configured endpoint.
type RESTSink struct {
	logger     zerolog.Logger
	endpoint   string
	timeout    time.Duration
	httpClient HTTPClient
	limiter    *ratelimiter.RateLimiter
}

// NewRESTSink constructs a REST sink. The sink only acquires permits from
// limiter; starting and stopping its refill goroutine is left to the
// limiter's owner.
func NewRESTSink(endpoint string, timeout time.Duration, limiter *ratelimiter.RateLimiter, logger zerolog.Logger, opts ...RESTOption) (*RESTSink, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("rest sink: endpoint is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rest sink: rate limiter is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &RESTSink{
		logger:     logger,
		endpoint:   endpoint,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s, nil
}

// Role implements Sink.
func (s *RESTSink) Role() models.SinkRole { return models.RoleREST }

// Send implements Sink.
func (s *RESTSink) Send(ctx context.Context, payload string) (bool, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return false, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.endpoint, bytes.NewReader([]byte(payload)))
	if err != nil {
		return false, WrapPermanent(fmt.Errorf("rest sink: new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, WrapTransient(fmt.Errorf("rest sink: http do: %w", err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, nil
	}

	s.logger.Debug().
		Str("endpoint", s.endpoint).
		Int("status", resp.StatusCode).
		Msg("rest sink received non-2xx response")
	return false, nil
}
