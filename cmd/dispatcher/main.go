// Command dispatcher is the fan-out dispatcher's process entry point: it
// loads configuration, wires every component, runs the orchestrator to
// completion, and exits 0 on clean drain or non-zero on unrecoverable
// setup failure.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/fanout-dispatcher/internal/config"
	"github.com/example/fanout-dispatcher/internal/dlq"
	"github.com/example/fanout-dispatcher/internal/logger"
	"github.com/example/fanout-dispatcher/internal/metrics"
	"github.com/example/fanout-dispatcher/internal/orchestrator"
	"github.com/example/fanout-dispatcher/internal/queue"
	"github.com/example/fanout-dispatcher/internal/sink"
	"github.com/example/fanout-dispatcher/internal/source"
	"github.com/example/fanout-dispatcher/internal/transform"
)

const defaultTestRecords = 5

func main() {
	testMode := flag.Bool("testMode", false, "run in bounded test mode, processing a fixed number of records then exiting")
	testRecords := flag.Int("testRecords", defaultTestRecords, "number of records to process in bounded test mode")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "fanout-dispatcher").Logger()

	sinks, limiters, err := sink.BuildAll(cfg.Sinks, log.With().Str("component", "sinks").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise sinks")
	}
	defer orchestrator.CloseSinks(sinks, log)

	q := queue.New(cfg.Queue.Capacity)
	src := source.NewFileSource(cfg.Input.FilePath, cfg.Input.Format, log.With().Str("component", "source").Logger())
	registry := transform.NewRegistry()
	dlqSink := dlq.New(cfg.DLQ.FilePath, cfg.DLQ.Enabled, cfg.DLQ.MaxRetries, log.With().Str("component", "dlq").Logger())
	m := metrics.New()

	orch := orchestrator.New(
		log,
		q,
		src,
		sinks,
		limiters,
		registry,
		dlqSink,
		m,
		cfg.DLQ.MaxRetries,
		time.Duration(cfg.Metrics.IntervalSeconds)*time.Second,
	)

	maxRecords := 0
	if *testMode {
		maxRecords = *testRecords
		log.Info().Int("max_records", maxRecords).Msg("running in bounded test mode")
	} else {
		log.Info().Msg("running in streaming mode")
	}

	if err := orch.Run(ctx, maxRecords); err != nil {
		log.Error().Err(err).Msg("orchestrator exited with error")
		os.Exit(1)
	}

	log.Info().Msg("fanout dispatcher drained cleanly")
}

func fail(stage string, err error) {
	fallback := zerolog.New(os.Stdout).With().Timestamp().Logger()
	fallback.Fatal().Err(err).Str("stage", stage).Msg("fanout dispatcher init failed")
}
