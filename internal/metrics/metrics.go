// Package metrics tracks process-wide monotonic counters: total records
// processed and per-sink-role success/failure counts.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/fanout-dispatcher/internal/models"
)

// Metrics is safe for concurrent use. success and fail counters are
// created lazily on first increment for a given role.
type Metrics struct {
	processed atomic.Int64

	success sync.Map // models.SinkRole -> *atomic.Int64
	fail    sync.Map // models.SinkRole -> *atomic.Int64

	start time.Time
}

// New constructs a Metrics instance with its clock started now.
func New() *Metrics {
	return &Metrics{start: time.Now()}
}

// IncProcessed increments the processed counter by one. It is called
// exactly once per record drawn from the queue, before fan-out.
func (m *Metrics) IncProcessed() {
	m.processed.Add(1)
}

// IncSuccess increments the success counter for role.
func (m *Metrics) IncSuccess(role models.SinkRole) {
	counter(&m.success, role).Add(1)
}

// IncFail increments the fail counter for role.
func (m *Metrics) IncFail(role models.SinkRole) {
	counter(&m.fail, role).Add(1)
}

// Processed returns the current processed count.
func (m *Metrics) Processed() int64 {
	return m.processed.Load()
}

// Success returns the current success count for role.
func (m *Metrics) Success(role models.SinkRole) int64 {
	return counter(&m.success, role).Load()
}

// Fail returns the current fail count for role.
func (m *Metrics) Fail(role models.SinkRole) int64 {
	return counter(&m.fail, role).Load()
}

// Throughput returns processed records per second since Metrics was
// created, with the elapsed time floored at one second to avoid a
// division spike immediately after start.
func (m *Metrics) Throughput() float64 {
	elapsed := time.Since(m.start).Seconds()
	if elapsed < 1 {
		elapsed = 1
	}
	return float64(m.processed.Load()) / elapsed
}

// Snapshot captures a point-in-time view of every counter, used by the
// periodic reporter and final-metrics log line.
type Snapshot struct {
	Processed  int64
	Success    map[models.SinkRole]int64
	Fail       map[models.SinkRole]int64
	Throughput float64
}

// Snapshot returns a Snapshot across the given roles.
func (m *Metrics) Snapshot(roles []models.SinkRole) Snapshot {
	snap := Snapshot{
		Processed:  m.Processed(),
		Success:    make(map[models.SinkRole]int64, len(roles)),
		Fail:       make(map[models.SinkRole]int64, len(roles)),
		Throughput: m.Throughput(),
	}
	for _, role := range roles {
		snap.Success[role] = m.Success(role)
		snap.Fail[role] = m.Fail(role)
	}
	return snap
}

func counter(m *sync.Map, role models.SinkRole) *atomic.Int64 {
	v, _ := m.LoadOrStore(role, &atomic.Int64{})
	return v.(*atomic.Int64)
}
