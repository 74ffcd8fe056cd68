// Package rowstore is the Row Store capability: durable, queryable,
// per-tenant row storage backing the Write-Ahead Log and the runtime's
// relational records (intents, executions, contracts, sessions).
package rowstore

import (
	"context"

	"github.com/cityos/runtime/internal/runtimeerr"
)

// Row is an opaque record keyed by column name. Capability consumers
// (abstraction-layer components) define their own typed views over it.
type Row map[string]any

// Filter narrows a Query to rows matching column equality. Nil or empty
// means no filtering beyond tenant scoping.
type Filter map[string]any

// Store is the capability surface every row-store backend implements.
// All operations are tenant-scoped: callers MUST NOT leak rows across
// tenant boundaries, and backends enforce this scoping in the query itself
// rather than trusting callers to filter results.
type Store interface {
	// Insert appends a row to table, scoped to tenantID.
	Insert(ctx context.Context, tenantID, table string, row Row) error

	// Query returns rows from table matching filter, scoped to tenantID,
	// ordered by insertion order, capped at limit rows.
	Query(ctx context.Context, tenantID, table string, filter Filter, limit int) ([]Row, error)

	// Update applies patch to rows in table matching filter, scoped to
	// tenantID. Returns the number of rows updated.
	Update(ctx context.Context, tenantID, table string, filter Filter, patch Row) (int, error)

	// Close releases backend resources.
	Close() error
}

func wrap(op string, err error) error {
	return runtimeerr.NewCapabilityError("rowstore", op, err)
}
