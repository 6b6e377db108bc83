package metrics

import (
	"sync"
	"testing"

	"github.com/example/fanout-dispatcher/internal/models"
)

func TestCountersIncrementIndependently(t *testing.T) {
	m := New()
	m.IncProcessed()
	m.IncProcessed()
	m.IncSuccess(models.RoleREST)
	m.IncFail(models.RoleGRPC)
	m.IncFail(models.RoleGRPC)

	if got := m.Processed(); got != 2 {
		t.Fatalf("expected processed=2, got %d", got)
	}
	if got := m.Success(models.RoleREST); got != 1 {
		t.Fatalf("expected success[REST]=1, got %d", got)
	}
	if got := m.Fail(models.RoleGRPC); got != 2 {
		t.Fatalf("expected fail[GRPC]=2, got %d", got)
	}
	if got := m.Success(models.RoleDB); got != 0 {
		t.Fatalf("expected lazily-created success[DB]=0, got %d", got)
	}
}

func TestConcurrentIncrementsAreRaceFree(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncProcessed()
			m.IncSuccess(models.RoleMQ)
		}()
	}
	wg.Wait()

	if got := m.Processed(); got != 100 {
		t.Fatalf("expected processed=100, got %d", got)
	}
	if got := m.Success(models.RoleMQ); got != 100 {
		t.Fatalf("expected success[MQ]=100, got %d", got)
	}
}

func TestSnapshotCoversAllRoles(t *testing.T) {
	m := New()
	m.IncSuccess(models.RoleREST)
	m.IncFail(models.RoleDB)

	snap := m.Snapshot(models.Roles())
	if snap.Success[models.RoleREST] != 1 {
		t.Fatalf("expected snapshot success[REST]=1, got %d", snap.Success[models.RoleREST])
	}
	if snap.Fail[models.RoleDB] != 1 {
		t.Fatalf("expected snapshot fail[DB]=1, got %d", snap.Fail[models.RoleDB])
	}
	if snap.Success[models.RoleGRPC] != 0 {
		t.Fatalf("expected snapshot success[GRPC]=0, got %d", snap.Success[models.RoleGRPC])
	}
}
