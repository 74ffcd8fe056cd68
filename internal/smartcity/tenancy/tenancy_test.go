package tenancy

import (
	"context"
	"testing"

	"github.com/cityos/runtime/internal/runtimeerr"
)

func TestRequireActiveRejectsUnknownAndSuspendedTenants(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	if err := r.RequireActive(ctx, "ghost"); err != runtimeerr.ErrTenantNotFound {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}

	r.Register("tenant-a", "Tenant A")
	if err := r.RequireActive(ctx, "tenant-a"); err != nil {
		t.Fatalf("expected active tenant to pass, got %v", err)
	}

	if err := r.Suspend("tenant-a"); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if err := r.RequireActive(ctx, "tenant-a"); !runtimeerr.IsTenantSuspended(err) {
		t.Fatalf("expected ErrTenantSuspended, got %v", err)
	}

	if err := r.Resume("tenant-a"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := r.RequireActive(ctx, "tenant-a"); err != nil {
		t.Fatalf("expected resumed tenant to pass, got %v", err)
	}
}
