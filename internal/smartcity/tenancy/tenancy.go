// Package tenancy is the Smart City governance primitive for tenant
// lifecycle: it is the single source of truth for which tenants exist and
// whether a tenant is currently allowed to submit work, which the
// dispatcher consults before admitting an intent.
package tenancy

import (
	"context"
	"sync"
	"time"

	"github.com/cityos/runtime/internal/runtimeerr"
)

// Status is a tenant's admission state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Tenant is the governance record tenancy keeps for each registered tenant.
type Tenant struct {
	TenantID    string
	DisplayName string
	Status      Status
	CreatedAt   time.Time
}

// Registry tracks tenant records in memory only; nothing mirrors them to
// the row store (tenancy is the authorization gate, not a system of
// record).
type Registry struct {
	mu      sync.RWMutex
	tenants map[string]Tenant
}

// NewRegistry constructs an empty tenant registry.
func NewRegistry() *Registry {
	return &Registry{tenants: make(map[string]Tenant)}
}

// Register adds or replaces a tenant, defaulting to StatusActive.
func (r *Registry) Register(tenantID, displayName string) Tenant {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := Tenant{TenantID: tenantID, DisplayName: displayName, Status: StatusActive, CreatedAt: time.Now()}
	r.tenants[tenantID] = t
	return t
}

// Suspend marks a tenant suspended; the dispatcher rejects further intents
// from it until Resume is called.
func (r *Registry) Suspend(tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[tenantID]
	if !ok {
		return runtimeerr.ErrTenantNotFound
	}
	t.Status = StatusSuspended
	r.tenants[tenantID] = t
	return nil
}

// Resume reactivates a suspended tenant.
func (r *Registry) Resume(tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[tenantID]
	if !ok {
		return runtimeerr.ErrTenantNotFound
	}
	t.Status = StatusActive
	r.tenants[tenantID] = t
	return nil
}

// Get returns the tenant record for tenantID.
func (r *Registry) Get(tenantID string) (Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[tenantID]
	if !ok {
		return Tenant{}, runtimeerr.ErrTenantNotFound
	}
	return t, nil
}

// List returns every registered tenant in no particular order.
func (r *Registry) List() []Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, t)
	}
	return out
}

// RequireActive returns nil when tenantID exists and is active, and an
// error classified via runtimeerr otherwise.
func (r *Registry) RequireActive(_ context.Context, tenantID string) error {
	t, err := r.Get(tenantID)
	if err != nil {
		return err
	}
	if t.Status != StatusActive {
		return runtimeerr.ErrTenantSuspended
	}
	return nil
}
