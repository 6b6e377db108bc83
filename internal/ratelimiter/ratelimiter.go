// Package ratelimiter implements a windowed-quota permit store: a fixed
// number of permits are made available once per second, and unused permits
// from the previous window are discarded rather than accumulated.
package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// RateLimiter grants at most capacity permits per one-second window. It is
// not a leaky bucket: permits left over at the end of a window are dropped,
// not carried forward.
type RateLimiter struct {
	capacity int64

	mu        sync.Mutex
	available int64
	waiters   []chan struct{}

	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// New constructs a RateLimiter with the given capacity, initialized full so
// the first window can absorb a burst up to capacity. The refill goroutine
// is not started here; call Start to begin refilling.
func New(capacity int) *RateLimiter {
	if capacity < 0 {
		capacity = 0
	}
	return &RateLimiter{
		capacity:  int64(capacity),
		available: int64(capacity),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the refill goroutine, which resets available permits to
// capacity exactly once per second. The caller (the orchestrator) owns this
// goroutine's lifetime; the constructor never starts it implicitly.
func (r *RateLimiter) Start() {
	go r.refillLoop()
}

// Stop terminates the refill goroutine. Safe to call once; subsequent calls
// are no-ops.
func (r *RateLimiter) Stop() {
	r.once.Do(func() {
		close(r.stop)
	})
	<-r.done
}

func (r *RateLimiter) refillLoop() {
	defer close(r.done)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.resetWindow()
		}
	}
}

func (r *RateLimiter) resetWindow() {
	r.mu.Lock()
	r.available = r.capacity
	var woken []chan struct{}
	for r.available > 0 && len(r.waiters) > 0 {
		w := r.waiters[0]
		r.waiters = r.waiters[1:]
		r.available--
		woken = append(woken, w)
	}
	r.mu.Unlock()
	for _, w := range woken {
		close(w)
	}
}

// Acquire blocks until a permit is available, then consumes it. If ctx is
// cancelled while waiting, Acquire returns ctx.Err() without consuming a
// permit.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	r.mu.Lock()
	if r.available > 0 {
		r.available--
		r.mu.Unlock()
		return nil
	}
	wake := make(chan struct{})
	r.waiters = append(r.waiters, wake)
	r.mu.Unlock()

	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		r.abandon(wake)
		return ctx.Err()
	}
}

// abandon removes wake from the waiter list if it is still pending (i.e. it
// has not already been closed by resetWindow).
func (r *RateLimiter) abandon(wake chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-wake:
		// Already granted a permit concurrently with cancellation; give it
		// back so it is not lost.
		r.available++
		return
	default:
	}
	for i, w := range r.waiters {
		if w == wake {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			return
		}
	}
}
