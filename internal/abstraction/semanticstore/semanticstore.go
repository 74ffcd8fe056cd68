// Package semanticstore is the abstraction layer for derived content
// understanding: it pulls opaque fields out of parsed content payloads and
// records lightweight embedding vectors alongside provenance edges back to
// the artifact they were extracted from, so a later intent can traverse
// "what was derived from this artifact" without re-parsing it.
package semanticstore

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/cityos/runtime/internal/capability/graphstore"
	"github.com/cityos/runtime/internal/capability/rowstore"
	"github.com/cityos/runtime/internal/idgen"
	"github.com/cityos/runtime/internal/runtimeerr"
)

const table = "embeddings"

// Embedding is a derived semantic vector tied back to the artifact it was
// extracted from.
type Embedding struct {
	EmbeddingID string
	TenantID    string
	ArtifactID  string
	Field       string
	Vector      []float64
}

// Store extracts opaque fields from a JSON content payload and records
// embeddings derived from them.
type Store struct {
	rows  rowstore.Store
	graph graphstore.Store
}

// New constructs a Store over the given capability backends.
func New(rows rowstore.Store, graph graphstore.Store) *Store {
	return &Store{rows: rows, graph: graph}
}

// ExtractField pulls the value at gjsonPath out of an opaque JSON payload
// without requiring the caller to unmarshal the payload into a known Go
// type; content parsing routinely receives payloads whose shape is not
// known ahead of time.
func ExtractField(payloadJSON, gjsonPath string) (string, bool) {
	result := gjson.Get(payloadJSON, gjsonPath)
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}

// SaveEmbedding records vector as derived from field of artifactID, and
// adds a provenance edge from the artifact to the new embedding.
func (s *Store) SaveEmbedding(ctx context.Context, tenantID, artifactID, field string, vector []float64) (Embedding, error) {
	e := Embedding{
		EmbeddingID: idgen.NewArtifactID(),
		TenantID:    tenantID,
		ArtifactID:  artifactID,
		Field:       field,
		Vector:      vector,
	}

	vectorAny := make([]any, len(vector))
	for i, v := range vector {
		vectorAny[i] = v
	}

	if err := s.rows.Insert(ctx, tenantID, table, rowstore.Row{
		"embedding_id": e.EmbeddingID,
		"artifact_id":  e.ArtifactID,
		"field":        e.Field,
		"vector":       vectorAny,
	}); err != nil {
		return Embedding{}, runtimeerr.NewCapabilityError("rowstore", "Insert", err)
	}

	if err := s.graph.AddEdge(ctx, tenantID, graphstore.Edge{
		From: artifactID, To: e.EmbeddingID, Kind: "derived-embedding",
		Attrs: map[string]any{"field": field},
	}); err != nil {
		return Embedding{}, err
	}
	return e, nil
}

// EmbeddingsFor returns every embedding derived from artifactID.
func (s *Store) EmbeddingsFor(ctx context.Context, tenantID, artifactID string) ([]Embedding, error) {
	edges, err := s.graph.Neighbors(ctx, tenantID, artifactID, "derived-embedding")
	if err != nil {
		return nil, err
	}

	out := make([]Embedding, 0, len(edges))
	for _, edge := range edges {
		rows, err := s.rows.Query(ctx, tenantID, table, rowstore.Filter{"embedding_id": edge.To}, 1)
		if err != nil {
			return nil, runtimeerr.NewCapabilityError("rowstore", "Query", err)
		}
		if len(rows) == 0 {
			continue
		}
		out = append(out, fromRow(tenantID, rows[0]))
	}
	return out, nil
}

func fromRow(tenantID string, row rowstore.Row) Embedding {
	e := Embedding{TenantID: tenantID}
	if v, ok := row["embedding_id"].(string); ok {
		e.EmbeddingID = v
	}
	if v, ok := row["artifact_id"].(string); ok {
		e.ArtifactID = v
	}
	if v, ok := row["field"].(string); ok {
		e.Field = v
	}
	if vec, ok := row["vector"].([]any); ok {
		e.Vector = make([]float64, len(vec))
		for i, v := range vec {
			if f, ok := v.(float64); ok {
				e.Vector[i] = f
			}
		}
	}
	return e
}
