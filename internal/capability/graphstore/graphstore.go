// Package graphstore is the Graph Store capability: tenant-scoped directed
// relationships between artifacts and entities (provenance edges, contract
// lineage), used when a component needs to traverse relationships rather
// than look up a single record by id.
package graphstore

import (
	"context"

	"github.com/cityos/runtime/internal/runtimeerr"
)

// Edge is a directed relationship between two node ids, labeled by kind,
// carrying arbitrary attributes (e.g. artifact version, contract id).
type Edge struct {
	From  string
	To    string
	Kind  string
	Attrs map[string]any
}

// Store is the capability surface every graph-store backend implements.
type Store interface {
	// AddEdge records a directed relationship, scoped to tenantID.
	AddEdge(ctx context.Context, tenantID string, edge Edge) error

	// Neighbors returns edges of the given kind originating from nodeID,
	// scoped to tenantID. kind == "" matches all kinds.
	Neighbors(ctx context.Context, tenantID, nodeID, kind string) ([]Edge, error)
}

func wrap(op string, err error) error {
	return runtimeerr.NewCapabilityError("graphstore", op, err)
}
