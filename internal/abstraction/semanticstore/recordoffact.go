package semanticstore

import (
	"context"
	"time"

	"github.com/cityos/runtime/internal/capability/rowstore"
	"github.com/cityos/runtime/internal/idgen"
	"github.com/cityos/runtime/internal/runtimeerr"
)

const recordsTable = "records_of_fact"

// RecordType names what kind of derived meaning a Record of Fact holds.
// The content realm records deterministic_embedding facts when
// extract_embeddings produces embeddings, not when the source
// materialization is authorized; the other types are declared here but no
// code in this runtime records them.
type RecordType string

const (
	RecordDeterministicEmbedding RecordType = "deterministic_embedding"
	RecordSemanticEmbedding      RecordType = "semantic_embedding"
	RecordInterpretation         RecordType = "interpretation"
	RecordConclusion             RecordType = "conclusion"
)

// Record is a Record of Fact: a piece of derived meaning that persists
// independently of the file it was derived from. SourceExpiredAt is set
// once the source file's materialization is purged, but the record and
// its content are never deleted as a consequence.
type Record struct {
	RecordID                 string
	TenantID                 string
	RecordType               RecordType
	SourceFileID             string
	SourceBoundaryContractID string
	SourceExpiredAt          time.Time
	BackingRef               string
	RecordContent            map[string]any
	CreatedAt                time.Time
}

// RecordFact persists a new Record of Fact derived from sourceFileID under
// boundaryContractID. backingRef points at the durable representation (an
// embedding id, a parsed-artifact id); content is optional inline detail
// small enough to keep alongside the record itself.
func (s *Store) RecordFact(ctx context.Context, tenantID string, recordType RecordType, sourceFileID, boundaryContractID, backingRef string, content map[string]any) (Record, error) {
	r := Record{
		RecordID:                 idgen.NewRecordID(),
		TenantID:                 tenantID,
		RecordType:               recordType,
		SourceFileID:             sourceFileID,
		SourceBoundaryContractID: boundaryContractID,
		BackingRef:               backingRef,
		RecordContent:            content,
		CreatedAt:                time.Now(),
	}

	if err := s.rows.Insert(ctx, tenantID, recordsTable, recordToRow(r)); err != nil {
		return Record{}, runtimeerr.NewCapabilityError("rowstore", "Insert", err)
	}
	return r, nil
}

// FactsForSourceFile returns every Record of Fact derived from sourceFileID,
// regardless of whether that file's materialization has since expired.
func (s *Store) FactsForSourceFile(ctx context.Context, tenantID, sourceFileID string) ([]Record, error) {
	rows, err := s.rows.Query(ctx, tenantID, recordsTable, rowstore.Filter{"source_file_id": sourceFileID}, 0)
	if err != nil {
		return nil, runtimeerr.NewCapabilityError("rowstore", "Query", err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, recordFromRow(tenantID, row))
	}
	return out, nil
}

// ExpireFactsForSourceFile stamps source_expired_at on every Record of Fact
// derived from sourceFileID, preserving the records and their backing
// representation intact. It is the meaning-independence half of the TTL
// purge: the source file and its materialization are gone, but whatever
// was derived from them is not.
func (s *Store) ExpireFactsForSourceFile(ctx context.Context, tenantID, sourceFileID string, at time.Time) (int, error) {
	updated, err := s.rows.Update(ctx, tenantID, recordsTable,
		rowstore.Filter{"source_file_id": sourceFileID},
		rowstore.Row{"source_expired_at": at})
	if err != nil {
		return 0, runtimeerr.NewCapabilityError("rowstore", "Update", err)
	}
	return updated, nil
}

func recordToRow(r Record) rowstore.Row {
	row := rowstore.Row{
		"record_id":                   r.RecordID,
		"record_type":                 string(r.RecordType),
		"source_file_id":              r.SourceFileID,
		"source_boundary_contract_id": r.SourceBoundaryContractID,
		"backing_ref":                 r.BackingRef,
		"created_at":                  r.CreatedAt,
	}
	if r.RecordContent != nil {
		row["record_content"] = r.RecordContent
	}
	return row
}

func recordFromRow(tenantID string, row rowstore.Row) Record {
	r := Record{TenantID: tenantID}
	if v, ok := row["record_id"].(string); ok {
		r.RecordID = v
	}
	if v, ok := row["record_type"].(string); ok {
		r.RecordType = RecordType(v)
	}
	if v, ok := row["source_file_id"].(string); ok {
		r.SourceFileID = v
	}
	if v, ok := row["source_boundary_contract_id"].(string); ok {
		r.SourceBoundaryContractID = v
	}
	if v, ok := row["backing_ref"].(string); ok {
		r.BackingRef = v
	}
	if v, ok := row["record_content"].(map[string]any); ok {
		r.RecordContent = v
	}
	if v, ok := row["created_at"].(time.Time); ok {
		r.CreatedAt = v
	}
	if v, ok := row["source_expired_at"].(time.Time); ok {
		r.SourceExpiredAt = v
	}
	return r
}
