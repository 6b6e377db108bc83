package sink

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"

	"github.com/example/fanout-dispatcher/internal/models"
	"github.com/example/fanout-dispatcher/internal/ratelimiter"
)

// DBSink writes payloads into an embedded Pebble key-value store, keyed by
// a timestamp plus a small sequence counter to avoid collisions when
// multiple writes land in the same nanosecond.
type DBSink struct {
	logger  zerolog.Logger
	db      *pebble.DB
	seq     uint64
	limiter *ratelimiter.RateLimiter
}

// NewDBSink opens (or creates) a Pebble database at path.
func NewDBSink(path string, limiter *ratelimiter.RateLimiter, logger zerolog.Logger) (*DBSink, error) {
	if limiter == nil {
		return nil, fmt.Errorf("db sink: rate limiter is required")
	}

	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("db sink: open %s: %w", path, err)
	}

	return &DBSink{logger: logger, db: db, limiter: limiter}, nil
}

// Role implements Sink.
func (s *DBSink) Role() models.SinkRole { return models.RoleDB }

// Close releases the underlying Pebble handle.
func (s *DBSink) Close() error {
	return s.db.Close()
}

// Send implements Sink.
func (s *DBSink) Send(ctx context.Context, payload string) (bool, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return false, err
	}

	ts := time.Now().UTC().UnixNano()
	n := atomic.AddUint64(&s.seq, 1)
	key := fmt.Sprintf("record:%020d-%06d", ts, n)

	if err := s.db.Set([]byte(key), []byte(payload), pebble.Sync); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("db sink write failed")
		return false, WrapTransient(err)
	}
	return true, nil
}
