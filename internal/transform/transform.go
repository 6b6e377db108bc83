// Package transform implements the per-sink-role record-to-payload
// encodings. Each transformer is a pure function of its input; none may
// depend on process state beyond its own construction arguments.
package transform

import "github.com/example/fanout-dispatcher/internal/models"

// Transformer converts a raw record string into a sink-specific payload.
// Implementations must be referentially transparent: the same input always
// yields the same output, and no error is ever returned — empty input
// produces a well-formed empty encoding and any other input is encoded
// as-is without being parsed. The only failure path is a panic, which
// Registry.Transform recovers and reports as a transform error.
type Transformer interface {
	Transform(record string) string
}

// Registry maps a SinkRole to its Transformer. Roles without a registered
// transformer pass the record through unchanged, per the orchestrator's
// dispatch algorithm.
type Registry struct {
	byRole map[models.SinkRole]Transformer
}

// NewRegistry builds the default registry wiring every sink role named in
// spec.md §2 to its transformer: REST to JSON, GRPC to a length-prefixed
// binary encoding, MQ to CDATA-wrapped XML, DB to an Avro-container-style
// binary encoding.
func NewRegistry() *Registry {
	return &Registry{byRole: map[models.SinkRole]Transformer{
		models.RoleREST: JSONTransformer{},
		models.RoleGRPC: ProtoTransformer{},
		models.RoleMQ:   XMLTransformer{},
		models.RoleDB:   AvroTransformer{},
	}}
}

// Register overrides or adds the transformer for a role.
func (r *Registry) Register(role models.SinkRole, t Transformer) {
	r.byRole[role] = t
}

// Transform looks up the transformer for role and applies it. If no
// transformer is registered, the record passes through unchanged. A panic
// raised by the transformer is recovered and surfaced as an error so the
// orchestrator can classify it as a terminal transform failure with
// attempts = 0, matching spec.md §4.2.
func (r *Registry) Transform(role models.SinkRole, record string) (payload string, err error) {
	t, ok := r.byRole[role]
	if !ok {
		return record, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = &TransformError{Role: role, Reason: rec}
		}
	}()
	return t.Transform(record), nil
}

// TransformError wraps a recovered panic from a transformer invocation.
type TransformError struct {
	Role   models.SinkRole
	Reason any
}

func (e *TransformError) Error() string {
	return "transform panicked for role " + string(e.Role)
}
