// Package statesurface is the abstraction layer domain services use to
// read and write their own tenant-scoped state without depending on the
// Row Store capability directly. It is the generic half of the Domain
// Service Contract: HandleIntent implementations store whatever shape of
// record their realm needs through this surface, and the runtime never
// has to know that shape.
package statesurface

import (
	"context"

	"github.com/cityos/runtime/internal/capability/rowstore"
	"github.com/cityos/runtime/internal/runtimeerr"
)

// Surface exposes tenant-scoped record storage to a single realm,
// namespaced by table so unrelated realms never collide on keys.
type Surface struct {
	rows  rowstore.Store
	realm string
}

// New constructs a Surface scoped to realm (e.g. "content"), backed by rows.
func New(rows rowstore.Store, realm string) *Surface {
	return &Surface{rows: rows, realm: realm}
}

func (s *Surface) tableName(kind string) string {
	return s.realm + "." + kind
}

// Put appends a record of kind for tenantID.
func (s *Surface) Put(ctx context.Context, tenantID, kind string, record rowstore.Row) error {
	if err := s.rows.Insert(ctx, tenantID, s.tableName(kind), record); err != nil {
		return runtimeerr.NewCapabilityError("rowstore", "Insert", err)
	}
	return nil
}

// Find returns records of kind for tenantID matching filter.
func (s *Surface) Find(ctx context.Context, tenantID, kind string, filter rowstore.Filter, limit int) ([]rowstore.Row, error) {
	rows, err := s.rows.Query(ctx, tenantID, s.tableName(kind), filter, limit)
	if err != nil {
		return nil, runtimeerr.NewCapabilityError("rowstore", "Query", err)
	}
	return rows, nil
}

// Patch applies patch to every record of kind for tenantID matching
// filter, returning the number of records updated.
func (s *Surface) Patch(ctx context.Context, tenantID, kind string, filter rowstore.Filter, patch rowstore.Row) (int, error) {
	updated, err := s.rows.Update(ctx, tenantID, s.tableName(kind), filter, patch)
	if err != nil {
		return 0, runtimeerr.NewCapabilityError("rowstore", "Update", err)
	}
	return updated, nil
}
