// Package source implements the record-source capability: reading an input
// artifact and enqueueing one raw record string per logical record until
// the artifact is exhausted.
package source

import (
	"context"

	"github.com/example/fanout-dispatcher/internal/queue"
)

// Source produces a finite sequence of records, pushing each onto queue
// via Put. Run blocks until the input is exhausted or ctx is cancelled.
type Source interface {
	Run(ctx context.Context, q *queue.BoundedRecordQueue) error
	// Done returns a channel that is closed once the source has finished
	// enqueueing (successfully or not). Consumers may use this as an
	// optional, faster-than-idle-timeout end-of-input signal.
	Done() <-chan struct{}
}
