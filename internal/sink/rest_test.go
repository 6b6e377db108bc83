package sink

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/fanout-dispatcher/internal/ratelimiter"
)

type fakeHTTPClient struct {
	status int
	err    error
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

func newTestLimiter(capacity int) *ratelimiter.RateLimiter {
	rl := ratelimiter.New(capacity)
	rl.Start()
	return rl
}

func TestRESTSinkSendSuccessOn2xx(t *testing.T) {
	limiter := newTestLimiter(10)
	defer limiter.Stop()

	s, err := NewRESTSink("http://example.invalid/ingest", time.Second, limiter, zerolog.Nop(),
		WithRESTHTTPClient(&fakeHTTPClient{status: 200}))
	if err != nil {
		t.Fatalf("construct: %v", err)
	}

	ok, err := s.Send(context.Background(), `{"a":1}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected success on 2xx response")
	}
}

func TestRESTSinkSoftFailureOnNon2xx(t *testing.T) {
	limiter := newTestLimiter(10)
	defer limiter.Stop()

	s, err := NewRESTSink("http://example.invalid/ingest", time.Second, limiter, zerolog.Nop(),
		WithRESTHTTPClient(&fakeHTTPClient{status: 500}))
	if err != nil {
		t.Fatalf("construct: %v", err)
	}

	ok, err := s.Send(context.Background(), `{"a":1}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected soft failure on 500 response")
	}
}

func TestRESTSinkTransportErrorIsSoftFailure(t *testing.T) {
	limiter := newTestLimiter(10)
	defer limiter.Stop()

	s, err := NewRESTSink("http://example.invalid/ingest", time.Second, limiter, zerolog.Nop(),
		WithRESTHTTPClient(&fakeHTTPClient{err: errors.New("connection refused")}))
	if err != nil {
		t.Fatalf("construct: %v", err)
	}

	ok, err := s.Send(context.Background(), `{"a":1}`)
	if err == nil {
		t.Fatal("expected transport error to surface")
	}
	if ok {
		t.Fatal("expected ok=false on transport error")
	}
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestRESTSinkRequiresEndpoint(t *testing.T) {
	limiter := newTestLimiter(10)
	defer limiter.Stop()
	if _, err := NewRESTSink("", time.Second, limiter, zerolog.Nop()); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
