package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeBackend struct {
	publishErr error
	published  [][]byte
}

func (f *fakeBackend) Publish(_ context.Context, payload []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func TestMQSinkPublishesOnSuccess(t *testing.T) {
	limiter := newTestLimiter(10)
	defer limiter.Stop()
	backend := &fakeBackend{}
	s := NewMQSink(backend, limiter, zerolog.Nop())

	ok, err := s.Send(context.Background(), "<message/>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected success")
	}
	if len(backend.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(backend.published))
	}
}

func TestMQSinkSoftFailureOnBackendError(t *testing.T) {
	limiter := newTestLimiter(10)
	defer limiter.Stop()
	backend := &fakeBackend{publishErr: errors.New("broker unavailable")}
	s := NewMQSink(backend, limiter, zerolog.Nop())

	ok, err := s.Send(context.Background(), "<message/>")
	if ok {
		t.Fatal("expected failure")
	}
	if err == nil {
		t.Fatal("expected error to surface")
	}
}
