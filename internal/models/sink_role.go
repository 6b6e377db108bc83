package models

// SinkRole names one configured downstream sink. Roles are process-lifetime
// constants: the set of roles is fixed in code, not selected by
// configuration or discovered at runtime.
type SinkRole string

// The four sink roles the dispatcher wires out of the box.
const (
	RoleREST  SinkRole = "REST"
	RoleGRPC  SinkRole = "GRPC"
	RoleMQ    SinkRole = "MQ"
	RoleDB    SinkRole = "DB"
)

// Roles returns the default roster of sink roles in a stable order, used
// wherever per-role iteration needs to be deterministic (metrics
// snapshots and reports).
func Roles() []SinkRole {
	return []SinkRole{RoleREST, RoleGRPC, RoleMQ, RoleDB}
}

func (r SinkRole) String() string { return string(r) }
