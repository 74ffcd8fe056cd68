package content

import (
	"context"
	"testing"
	"time"

	"github.com/cityos/runtime/internal/abstraction/wal"
	"github.com/cityos/runtime/internal/capability/rowstore"
	"github.com/cityos/runtime/internal/runtime/dispatcher"
	"github.com/cityos/runtime/internal/runtime/execution"
	"github.com/cityos/runtime/internal/runtime/intent"
	"github.com/cityos/runtime/internal/smartcity/steward"
	"github.com/cityos/runtime/internal/smartcity/tenancy"
	"github.com/cityos/runtime/internal/smartcity/trafficcop"
)

func newTestDispatcher(deps Dependencies, tenants *tenancy.Registry, st *steward.Steward) *dispatcher.Dispatcher {
	services := []execution.DomainService{
		&IngestFileService{Deps: deps},
		&SaveMaterializationService{Deps: deps},
		&PurgeExpiredMaterializationsService{Deps: deps},
	}
	cop := trafficcop.New(trafficcop.Policy{RequestsPerSecond: 1000, Burst: 1000})
	return dispatcher.New(services, wal.New(rowstore.NewMemoryStore()), st, tenants, cop, 2, 16)
}

func TestPurgerLeavesFreshMaterializationsUntouched(t *testing.T) {
	deps := newTestDeps()
	tenants := tenancy.NewRegistry()
	tenants.Register("tenant-a", "Tenant A")
	st := steward.New()
	d := newTestDispatcher(deps, tenants, st)
	purger := NewPurger(d, tenants, nil)

	ingest := &IngestFileService{Deps: deps}
	save := &SaveMaterializationService{Deps: deps}

	in := intent.New("tenant-a", ingest.Kind(), "alice", map[string]any{"name": "a.txt", "content": "x"})
	artifacts, _, err := ingest.HandleIntent(context.Background(), execution.Context{Execution: execution.New(in), Steward: st}, in)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	contractID, _ := artifacts[0].Metadata["boundary_contract_id"].(string)
	fileID, _ := artifacts[0].Metadata["file_id"].(string)

	saveIn := intent.New("tenant-a", save.Kind(), "alice", map[string]any{
		"contract_id":                 contractID,
		"file_id":                     fileID,
		"materialization_type":        "full_artifact",
		"materialization_ttl_seconds": float64(3600),
	})
	if _, _, err := save.HandleIntent(context.Background(), execution.Context{Execution: execution.New(saveIn), Steward: st}, saveIn); err != nil {
		t.Fatalf("save materialization: %v", err)
	}

	if err := purger.Run(context.Background()); err != nil {
		t.Fatalf("purge run: %v", err)
	}

	records, err := deps.State.Find(context.Background(), "tenant-a", "materialization", nil, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected materialization record to survive, got %d", len(records))
	}
	if _, purged := records[0]["purged"]; purged {
		t.Fatal("expected fresh materialization not to be purged")
	}
}

func TestPurgerExpiresMaterializationsPastTTL(t *testing.T) {
	deps := newTestDeps()
	tenants := tenancy.NewRegistry()
	tenants.Register("tenant-a", "Tenant A")
	st := steward.New()
	d := newTestDispatcher(deps, tenants, st)
	purger := NewPurger(d, tenants, nil)

	ingest := &IngestFileService{Deps: deps}
	in := intent.New("tenant-a", ingest.Kind(), "alice", map[string]any{"name": "a.txt", "content": "x"})
	artifacts, _, err := ingest.HandleIntent(context.Background(), execution.Context{Execution: execution.New(in), Steward: st}, in)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	contractID, _ := artifacts[0].Metadata["boundary_contract_id"].(string)
	fileID, _ := artifacts[0].Metadata["file_id"].(string)

	contract, err := st.AuthorizeMaterialization(context.Background(), contractID, "alice", steward.MaterializationFullArtifact, time.Hour, "blob")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if err := deps.State.Put(context.Background(), "tenant-a", "materialization", rowstore.Row{
		"contract_id":                contractID,
		"file_id":                    fileID,
		"representation_type":        string(contract.MaterializationType),
		"backing_store":              contract.MaterializationBackingStore,
		"materialization_expires_at": time.Now().Add(-time.Minute),
		"created_at":                 time.Now(),
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := purger.Run(context.Background()); err != nil {
		t.Fatalf("purge run: %v", err)
	}

	records, err := deps.State.Find(context.Background(), "tenant-a", "materialization", nil, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected materialization record to remain (marked purged), got %d", len(records))
	}
	if _, purged := records[0]["purged"]; !purged {
		t.Fatal("expected expired materialization to be marked purged")
	}

	expired, err := st.Get(contractID)
	if err != nil {
		t.Fatalf("get contract: %v", err)
	}
	if expired.Status != steward.ContractExpired {
		t.Fatalf("expected contract expired, got %s", expired.Status)
	}
}

func TestPurgerSkipsSuspendedTenants(t *testing.T) {
	deps := newTestDeps()
	tenants := tenancy.NewRegistry()
	tenants.Register("tenant-a", "Tenant A")
	tenants.Suspend("tenant-a")
	st := steward.New()
	d := newTestDispatcher(deps, tenants, st)
	purger := NewPurger(d, tenants, nil)

	if err := purger.Run(context.Background()); err != nil {
		t.Fatalf("purge run: %v", err)
	}
}
