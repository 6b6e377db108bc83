package models

import "time"

// FailureRecord is the durable description of a terminal (record, sink)
// failure. It is appended to the dead-letter file verbatim and mirrored in
// the DLQ's in-memory roster until the roster is cleared.
//
// Record is intentionally typed as `any`: when the original record is a
// JSON object it is spliced into the line as-is rather than re-quoted as a
// string, matching the on-disk format the core promises. Malformed input
// records therefore yield malformed DLQ lines — an accepted trade-off, see
// DESIGN.md.
type FailureRecord struct {
	Record    any       `json:"record"`
	Sink      SinkRole  `json:"sink"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
