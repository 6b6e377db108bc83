// Package orchestrator wires every component of the fan-out dispatcher
// together: the record source, the bounded queue, the per-(record, sink)
// dispatch fan-out, the rate limiters, the dead-letter sink, and metrics.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/example/fanout-dispatcher/internal/dlq"
	"github.com/example/fanout-dispatcher/internal/metrics"
	"github.com/example/fanout-dispatcher/internal/models"
	"github.com/example/fanout-dispatcher/internal/queue"
	"github.com/example/fanout-dispatcher/internal/ratelimiter"
	"github.com/example/fanout-dispatcher/internal/sink"
	"github.com/example/fanout-dispatcher/internal/source"
	"github.com/example/fanout-dispatcher/internal/transform"
)

// idlePollTimeout is the fixed 5s period used as the end-of-input signal
// in streaming mode, per spec.md §5's cancellation & timeouts rule.
const idlePollTimeout = 5 * time.Second

// shutdownBudget is the hard cap the orchestrator waits for outstanding
// dispatch tasks to complete once the source has drained.
const shutdownBudget = 30 * time.Second

// workerConcurrencyPerSink sizes the single dispatch semaphore shared by
// all sink roles: at most len(sinks) * workerConcurrencyPerSink dispatch
// goroutines are in flight at once in total, with no separate cap per role.
// Grounded in the teacher's per-channel WorkerConcurrency setting.
const workerConcurrencyPerSink = 64

// Orchestrator drives the dispatcher's full lifecycle.
type Orchestrator struct {
	logger zerolog.Logger

	queue    *queue.BoundedRecordQueue
	src      source.Source
	sinks    map[models.SinkRole]sink.Sink
	limiters []*ratelimiter.RateLimiter
	registry *transform.Registry
	dlq      *dlq.DeadLetterSink
	metrics  *metrics.Metrics

	maxRetries int
	sem        *semaphore.Weighted

	metricsInterval time.Duration
}

// Closer is implemented by sinks that own an I/O resource needing an
// explicit shutdown (the GRPC, MQ, and DB sinks).
type Closer interface {
	Close() error
}

// New constructs an Orchestrator from its fully-built collaborators. The
// orchestrator does not construct sinks or the DLQ itself; that wiring
// lives at the process entry point so each component's construction
// failure can be reported distinctly.
func New(
	logger zerolog.Logger,
	q *queue.BoundedRecordQueue,
	src source.Source,
	sinks map[models.SinkRole]sink.Sink,
	limiters []*ratelimiter.RateLimiter,
	registry *transform.Registry,
	dlqSink *dlq.DeadLetterSink,
	m *metrics.Metrics,
	maxRetries int,
	metricsInterval time.Duration,
) *Orchestrator {
	return &Orchestrator{
		logger:          logger,
		queue:           q,
		src:             src,
		sinks:           sinks,
		limiters:        limiters,
		registry:        registry,
		dlq:             dlqSink,
		metrics:         m,
		maxRetries:      maxRetries,
		sem:             semaphore.NewWeighted(int64(len(sinks) * workerConcurrencyPerSink)),
		metricsInterval: metricsInterval,
	}
}

// Run executes the full lifecycle: starts rate limiters and the DLQ
// writer, spawns the record source, optionally spawns a periodic metrics
// reporter, then drains the queue until end-of-input (streaming mode) or
// until maxRecords have been processed (bounded test mode). It returns
// once shutdown has completed.
func (o *Orchestrator) Run(ctx context.Context, maxRecords int) error {
	for _, l := range o.limiters {
		l.Start()
	}
	o.dlq.Start()

	runCtx, cancelSource := context.WithCancel(ctx)
	defer cancelSource()

	srcErrCh := make(chan error, 1)
	go func() {
		srcErrCh <- o.src.Run(runCtx, o.queue)
	}()

	stopReporter := make(chan struct{})
	var reporterWG sync.WaitGroup
	if o.metricsInterval > 0 {
		reporterWG.Add(1)
		go o.reportMetrics(stopReporter, &reporterWG)
	}

	var dispatchWG sync.WaitGroup
	processed := 0
	bounded := maxRecords > 0

drainLoop:
	for {
		if bounded && processed >= maxRecords {
			break
		}

		rec, ok := o.queue.Poll(idlePollTimeout)
		if !ok {
			select {
			case <-o.src.Done():
				if o.queue.Len() == 0 {
					o.logger.Info().Msg("orchestrator: source finished and queue drained, shutting down")
					break drainLoop
				}
				continue drainLoop
			default:
			}
			o.logger.Info().Msg("orchestrator: queue idle beyond poll timeout, shutting down")
			break drainLoop
		}

		o.metrics.IncProcessed()
		processed++

		for role, s := range o.sinks {
			role, s := role, s
			if err := o.sem.Acquire(ctx, 1); err != nil {
				o.logger.Warn().Err(err).Msg("orchestrator: failed to acquire dispatch semaphore, dropping dispatch")
				continue
			}
			dispatchWG.Add(1)
			go func(record string) {
				defer dispatchWG.Done()
				defer o.sem.Release(1)
				o.dispatch(ctx, record, role, s)
			}(rec)
		}
	}

	cancelSource()
	<-srcErrCh

	waitDone := make(chan struct{})
	go func() {
		dispatchWG.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-time.After(shutdownBudget):
		o.logger.Warn().Msg("orchestrator: shutdown budget exceeded, abandoning outstanding dispatches")
	}

	close(stopReporter)
	reporterWG.Wait()

	for _, l := range o.limiters {
		l.Stop()
	}
	o.dlq.Stop()

	o.logFinalMetrics()

	return nil
}

// dispatch implements spec.md §4.7's per-(record, sink) algorithm
// verbatim: transform, then retry sink.Send up to maxRetries, recording
// either a success metric or a durable DLQ failure.
func (o *Orchestrator) dispatch(ctx context.Context, record string, role models.SinkRole, s sink.Sink) {
	payload, err := o.registry.Transform(role, record)
	if err != nil {
		o.dlq.RecordFailure(json.RawMessage(record), role, 0, fmt.Sprintf("Transformation failed: %s", err))
		o.metrics.IncFail(role)
		return
	}

	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		ok, sendErr := s.Send(ctx, payload)
		if sendErr == nil && ok {
			o.metrics.IncSuccess(role)
			return
		}
		if sendErr != nil {
			o.logger.Debug().
				Err(sendErr).
				Str("role", role.String()).
				Int("attempt", attempt).
				Msg("orchestrator: sink send failed, will retry if attempts remain")
		}
	}

	o.dlq.RecordFailure(json.RawMessage(record), role, o.maxRetries,
		fmt.Sprintf("Max retries (%d) exceeded", o.maxRetries))
	o.metrics.IncFail(role)
}

func (o *Orchestrator) reportMetrics(stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(o.metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := o.metrics.Snapshot(models.Roles())
			o.logger.Info().
				Int64("processed", snap.Processed).
				Float64("throughput", snap.Throughput).
				Interface("success", snap.Success).
				Interface("fail", snap.Fail).
				Msg("orchestrator: periodic metrics report")
		}
	}
}

func (o *Orchestrator) logFinalMetrics() {
	snap := o.metrics.Snapshot(models.Roles())
	o.logger.Info().
		Int64("processed", snap.Processed).
		Float64("throughput", snap.Throughput).
		Interface("success", snap.Success).
		Interface("fail", snap.Fail).
		Int("dlq_failed_count", o.dlq.FailedCount()).
		Msg("orchestrator: final metrics")
}

// CloseSinks closes every sink that owns a closable resource. Called by
// the process entry point during shutdown, after Run has returned.
func CloseSinks(sinks map[models.SinkRole]sink.Sink, logger zerolog.Logger) {
	for role, s := range sinks {
		if closer, ok := s.(Closer); ok {
			if err := closer.Close(); err != nil {
				logger.Warn().Err(err).Str("role", role.String()).Msg("orchestrator: error closing sink")
			}
		}
	}
}
