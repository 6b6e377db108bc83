// Package sink implements the four concrete downstream delivery targets —
// REST, GRPC, MQ, and DB — behind a single capability interface so the
// orchestrator can dispatch to any of them identically.
package sink

import (
	"context"

	"github.com/example/fanout-dispatcher/internal/models"
)

// Sink is the capability every delivery target implements. Send must
// acquire a rate-limiter permit before starting I/O and is safe for
// concurrent invocation. A returned (false, nil) or a non-nil err are both
// treated as soft failures by the orchestrator; only the boolean/error pair
// distinguishes success from the two soft-failure shapes, never a panic.
type Sink interface {
	Send(ctx context.Context, payload string) (bool, error)
	Role() models.SinkRole
}
