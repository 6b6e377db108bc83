// Package dlq implements the dead-letter sink: a durable, append-only
// capture of terminal (record, sink) failures, mirrored by an in-memory
// roster.
package dlq

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/fanout-dispatcher/internal/models"
)

const writerBufferSize = 256

// DeadLetterSink appends FailureRecords to a line-oriented JSON file via a
// single long-lived writer goroutine, so concurrent callers never race on
// the file handle and failures are written in the order they are observed.
type DeadLetterSink struct {
	logger zerolog.Logger

	// enabled is the configuration master switch. When false every
	// operation is a no-op, including the in-memory roster, and
	// failed_count stays at zero.
	enabled bool
	// durableWrites tracks whether this instance can append to the
	// backing file. It starts true only when enabled and the file opens
	// successfully, and is forced false on an init failure — the roster
	// still records failures in that case, only the durable append is
	// skipped.
	durableWrites bool
	maxRetries    int

	file *os.File
	ch   chan models.FailureRecord

	mu      sync.Mutex
	roster  []models.FailureRecord
	started sync.Once
	done    chan struct{}
}

// New constructs a DeadLetterSink. When enabled is false, all operations
// become no-ops. Initialization failure (unwritable path) disables durable
// writes but does not return an error and does not disable the in-memory
// roster: the orchestrator keeps running with a best-effort, in-memory-only
// DLQ.
func New(filePath string, enabled bool, maxRetries int, logger zerolog.Logger) *DeadLetterSink {
	d := &DeadLetterSink{
		logger:     logger,
		enabled:    enabled,
		maxRetries: maxRetries,
		ch:         make(chan models.FailureRecord, writerBufferSize),
		done:       make(chan struct{}),
	}

	if !enabled {
		close(d.done)
		return d
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		logger.Error().Err(err).Str("path", filePath).Msg("dlq: failed to create parent directories, disabling durable writes")
		close(d.done)
		return d
	}

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Error().Err(err).Str("path", filePath).Msg("dlq: failed to open file, disabling durable writes")
		close(d.done)
		return d
	}
	d.file = f
	d.durableWrites = true

	return d
}

// Start launches the writer goroutine. Safe to call at most once.
func (d *DeadLetterSink) Start() {
	if !d.durableWrites {
		return
	}
	d.started.Do(func() {
		go d.writeLoop()
	})
}

// Stop closes the internal channel and waits for the writer to drain and
// exit, then closes the underlying file.
func (d *DeadLetterSink) Stop() {
	if !d.durableWrites {
		return
	}
	close(d.ch)
	<-d.done
	if d.file != nil {
		_ = d.file.Close()
	}
}

// writeLoop splices each record's raw bytes directly into the line rather
// than round-tripping the FailureRecord through json.Marshal: a malformed
// record (one that never was valid JSON) must still yield a spliced,
// possibly-malformed line per the on-disk format, not silently vanish
// because the whole struct failed to marshal.
func (d *DeadLetterSink) writeLoop() {
	defer close(d.done)
	for rec := range d.ch {
		line, err := marshalLine(rec)
		if err != nil {
			d.logger.Error().Err(err).Msg("dlq: failed to marshal failure record")
			continue
		}
		line = append(line, '\n')
		if _, err := d.file.Write(line); err != nil {
			d.logger.Error().Err(err).Msg("dlq: failed to append failure record")
			continue
		}
		if err := d.file.Sync(); err != nil {
			d.logger.Error().Err(err).Msg("dlq: failed to sync failure record")
		}
	}
}

// marshalLine builds the on-disk line by marshaling every field except
// Record, then splicing the record's raw bytes in verbatim when it is a
// json.RawMessage. Any other Record type (e.g. a map, in direct dlq-package
// callers and tests) still round-trips through json.Marshal normally.
func marshalLine(rec models.FailureRecord) ([]byte, error) {
	raw, ok := rec.Record.(json.RawMessage)
	if !ok {
		return json.Marshal(rec)
	}

	head, err := json.Marshal(struct {
		Sink      models.SinkRole `json:"sink"`
		Attempts  int             `json:"attempts"`
		Error     string          `json:"error"`
		Timestamp time.Time       `json:"timestamp"`
	}{
		Sink:      rec.Sink,
		Attempts:  rec.Attempts,
		Error:     rec.Error,
		Timestamp: rec.Timestamp,
	})
	if err != nil {
		return nil, err
	}

	var line []byte
	line = append(line, '{')
	line = append(line, `"record":`...)
	if len(raw) == 0 {
		line = append(line, "null"...)
	} else {
		line = append(line, raw...)
	}
	line = append(line, ',')
	line = append(line, head[1:]...)
	return line, nil
}

// RecordFailure appends a FailureRecord for (record, sinkRole). It is
// non-blocking: the durable append happens on the writer goroutine. A no-op
// when the DLQ is configured off.
func (d *DeadLetterSink) RecordFailure(record any, sinkRole models.SinkRole, attempts int, reason string) {
	if !d.enabled {
		return
	}

	rec := models.FailureRecord{
		Record:    record,
		Sink:      sinkRole,
		Attempts:  attempts,
		Error:     reason,
		Timestamp: time.Now().UTC(),
	}

	d.mu.Lock()
	d.roster = append(d.roster, rec)
	d.mu.Unlock()

	if !d.durableWrites {
		return
	}

	select {
	case d.ch <- rec:
	default:
		d.logger.Warn().Msg("dlq: writer buffer full, dropping durable append (roster still updated)")
	}
}

// FailedCount returns the current in-memory roster size.
func (d *DeadLetterSink) FailedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.roster)
}

// Clear empties the in-memory roster. The durable file is never truncated.
func (d *DeadLetterSink) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roster = nil
}

// MaxRetries returns the configured retry ceiling.
func (d *DeadLetterSink) MaxRetries() int {
	return d.maxRetries
}

// Enabled reports the configured master switch. It stays true even after
// an init failure; use DurableWrites to check whether the file append path
// is actually active.
func (d *DeadLetterSink) Enabled() bool {
	return d.enabled
}

// DurableWrites reports whether this instance can append to the backing
// file. False when the DLQ is disabled, or when enabled but the backing
// file failed to open.
func (d *DeadLetterSink) DurableWrites() bool {
	return d.durableWrites
}
