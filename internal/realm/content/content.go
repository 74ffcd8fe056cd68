// Package content implements the content realm's Domain Service Contract:
// file ingestion under a Data Boundary Contract, content parsing, embedding
// extraction into Records of Fact, and materialization lifecycle
// management over the abstraction layer.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cityos/runtime/internal/abstraction/filestorage"
	"github.com/cityos/runtime/internal/abstraction/semanticstore"
	"github.com/cityos/runtime/internal/abstraction/statesurface"
	"github.com/cityos/runtime/internal/artifact"
	"github.com/cityos/runtime/internal/capability/cache"
	"github.com/cityos/runtime/internal/capability/rowstore"
	"github.com/cityos/runtime/internal/runtime/execution"
	"github.com/cityos/runtime/internal/runtime/intent"
	"github.com/cityos/runtime/internal/runtimeerr"
	"github.com/cityos/runtime/internal/smartcity/steward"
)

// listingCacheTTL bounds how stale a cached file listing may be before a
// repeat list_files intent falls back to the row store.
const listingCacheTTL = 10 * time.Second

// defaultMaterializationTTL governs a save_materialization call that does
// not specify its own TTL.
const defaultMaterializationTTL = 30 * 24 * time.Hour

// Dependencies are the abstraction-layer handles every content-realm
// service shares.
type Dependencies struct {
	Files     *filestorage.Storage
	Semantic  *semanticstore.Store
	State     *statesurface.Surface
	Artifacts *artifact.Registry

	// Cache memoizes list_files reads; nil disables memoization.
	Cache cache.Cache
}

func paramString(in intent.Intent, key string) (string, error) {
	v, ok := in.Parameters[key]
	if !ok {
		return "", fmt.Errorf("%w: missing parameter %q", runtimeerr.ErrValidation, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: parameter %q must be a string", runtimeerr.ErrValidation, key)
	}
	return s, nil
}

// materializationIndex finds the active, materialization-allowed contract
// backing fileID, if any. A file with no such contract has never had its
// materialization saved, or had it purged.
func materializationIndex(ctx context.Context, st *steward.Steward, state *statesurface.Surface, tenantID, fileID string) (steward.Contract, rowstore.Row, bool, error) {
	records, err := state.Find(ctx, tenantID, "materialization", rowstore.Filter{"file_id": fileID}, 0)
	if err != nil {
		return steward.Contract{}, nil, false, err
	}
	for _, rec := range records {
		if _, purged := rec["purged"]; purged {
			continue
		}
		contractID, _ := rec["contract_id"].(string)
		if contractID == "" {
			continue
		}
		c, err := st.Get(contractID)
		if err != nil {
			continue
		}
		if c.Status == steward.ContractActive && c.MaterializationAllowed {
			return c, rec, true, nil
		}
	}
	return steward.Contract{}, nil, false, nil
}

// IngestFileService handles the ingest_file intent. Phase one of the Data
// Boundary Contract protocol runs here: the upload grants read access to
// the bytes without yet permitting anything to be materialized from them.
type IngestFileService struct{ Deps Dependencies }

func (s *IngestFileService) Kind() string { return "ingest_file" }

func (s *IngestFileService) HandleIntent(ctx context.Context, execCtx execution.Context, in intent.Intent) ([]artifact.Artifact, []execution.Event, error) {
	name, err := paramString(in, "name")
	if err != nil {
		return nil, nil, err
	}
	content, err := paramString(in, "content")
	if err != nil {
		return nil, nil, err
	}

	f, err := s.Deps.Files.Ingest(ctx, in.TenantID, name, bytes.NewBufferString(content), int64(len(content)))
	if err != nil {
		return nil, nil, err
	}

	contract, err := execCtx.Steward.RequestDataAccess(ctx, in.TenantID, in.SubmittedBy, in.IntentID, "upload", name)
	if err != nil {
		return nil, nil, err
	}

	a, err := s.Deps.Artifacts.Draft(ctx, artifact.DraftInput{
		TenantID:    in.TenantID,
		ExecutionID: execCtx.Execution.ExecutionID,
		Kind:        "file",
		Realm:       "content",
		Owner:       artifact.OwnerClient,
		Purpose:     artifact.PurposeDelivery,
		ContentRef:  f.ContentRef,
		Metadata: map[string]any{
			"name":                    name,
			"file_id":                 f.FileID,
			"boundary_contract_id":    contract.ContractID,
			"materialization_pending": true,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	if err := s.Deps.Artifacts.Accept(ctx, in.TenantID, a.ArtifactID, a.Version); err != nil {
		return nil, nil, err
	}

	return []artifact.Artifact{a}, []execution.Event{
		{Type: "content.file_ingested", Payload: map[string]any{
			"file_id": f.FileID, "name": name, "boundary_contract_id": contract.ContractID,
		}},
	}, nil
}

// ListFilesService handles the list_files intent: a file is listed only
// when the submitter is within the reference scope of an active,
// materialization-allowed contract over it (P6).
type ListFilesService struct{ Deps Dependencies }

func (s *ListFilesService) Kind() string { return "list_files" }

func (s *ListFilesService) HandleIntent(ctx context.Context, execCtx execution.Context, in intent.Intent) ([]artifact.Artifact, []execution.Event, error) {
	cacheKey := "content.list_files." + in.TenantID + "." + in.SubmittedBy

	if s.Deps.Cache != nil {
		if cached, hit, err := s.Deps.Cache.Get(ctx, cacheKey); err == nil && hit {
			var names []any
			if err := json.Unmarshal(cached, &names); err == nil {
				return nil, []execution.Event{
					{Type: "content.files_listed", Payload: map[string]any{"files": names, "cached": true}},
				}, nil
			}
		}
	}

	records, err := s.Deps.State.Find(ctx, in.TenantID, "materialization", rowstore.Filter{}, 0)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool, len(records))
	names := make([]any, 0, len(records))
	for _, rec := range records {
		if _, purged := rec["purged"]; purged {
			continue
		}
		fileID, _ := rec["file_id"].(string)
		contractID, _ := rec["contract_id"].(string)
		if fileID == "" || contractID == "" || seen[fileID] {
			continue
		}

		contract, err := execCtx.Steward.Get(contractID)
		if err != nil || !contract.PermitsReference(in.SubmittedBy) {
			continue
		}

		f, err := s.Deps.Files.Get(ctx, in.TenantID, fileID)
		if err != nil || f.Status != filestorage.FileActive {
			continue
		}
		seen[fileID] = true
		names = append(names, f.Name)
	}

	if s.Deps.Cache != nil {
		if encoded, err := json.Marshal(names); err == nil {
			_ = s.Deps.Cache.Set(ctx, cacheKey, encoded, listingCacheTTL)
		}
	}

	return nil, []execution.Event{
		{Type: "content.files_listed", Payload: map[string]any{"files": names}},
	}, nil
}

// GetFileService handles the get_file intent: it returns a single file's
// metadata, enforcing the same materialization gate as list_files, but
// rejecting an out-of-scope caller explicitly rather than silently
// omitting the file.
type GetFileService struct{ Deps Dependencies }

func (s *GetFileService) Kind() string { return "get_file" }

func (s *GetFileService) HandleIntent(ctx context.Context, execCtx execution.Context, in intent.Intent) ([]artifact.Artifact, []execution.Event, error) {
	fileID, err := paramString(in, "file_id")
	if err != nil {
		return nil, nil, err
	}

	contract, _, ok, err := materializationIndex(ctx, execCtx.Steward, s.Deps.State, in.TenantID, fileID)
	if err != nil {
		return nil, nil, err
	}
	if !ok || !contract.PermitsReference(in.SubmittedBy) {
		return nil, nil, fmt.Errorf("%w: file %s is not referenceable by %s", runtimeerr.ErrDeniedByPolicy, fileID, in.SubmittedBy)
	}

	f, err := s.Deps.Files.Get(ctx, in.TenantID, fileID)
	if err != nil {
		return nil, nil, err
	}

	return nil, []execution.Event{
		{Type: "content.file_fetched", Payload: map[string]any{
			"file_id": f.FileID, "name": f.Name, "contract_id": contract.ContractID,
		}},
	}, nil
}

// ArchiveFileService handles the archive_file intent.
type ArchiveFileService struct{ Deps Dependencies }

func (s *ArchiveFileService) Kind() string { return "archive_file" }

func (s *ArchiveFileService) HandleIntent(ctx context.Context, _ execution.Context, in intent.Intent) ([]artifact.Artifact, []execution.Event, error) {
	fileID, err := paramString(in, "file_id")
	if err != nil {
		return nil, nil, err
	}
	if err := s.Deps.Files.Archive(ctx, in.TenantID, fileID); err != nil {
		return nil, nil, err
	}
	return nil, []execution.Event{
		{Type: "content.file_archived", Payload: map[string]any{"file_id": fileID}},
	}, nil
}

// ParseContentService handles the parse_content intent: it consumes a
// materialized file artifact and extracts an opaque field out of it
// without requiring a known schema, recording the produced artifact's
// lineage back to the source file.
type ParseContentService struct{ Deps Dependencies }

func (s *ParseContentService) Kind() string { return "parse_content" }

func (s *ParseContentService) HandleIntent(ctx context.Context, execCtx execution.Context, in intent.Intent) ([]artifact.Artifact, []execution.Event, error) {
	fileID, err := paramString(in, "file_id")
	if err != nil {
		return nil, nil, err
	}

	contract, _, ok, err := materializationIndex(ctx, execCtx.Steward, s.Deps.State, in.TenantID, fileID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: file %s has no active materialization to parse", runtimeerr.ErrContractViolation, fileID)
	}

	f, err := s.Deps.Files.Get(ctx, in.TenantID, fileID)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.Deps.Files.Open(ctx, f.ContentRef)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, err
	}

	fieldPath, _ := in.Parameters["field_path"].(string)
	value := string(raw)
	if fieldPath != "" {
		extracted, found := semanticstore.ExtractField(string(raw), fieldPath)
		if !found {
			return nil, nil, fmt.Errorf("%w: field %q not present in payload", runtimeerr.ErrValidation, fieldPath)
		}
		value = extracted
	}

	a, err := s.Deps.Artifacts.Draft(ctx, artifact.DraftInput{
		TenantID:          in.TenantID,
		ExecutionID:       execCtx.Execution.ExecutionID,
		Kind:              "parsed_content",
		Realm:             "content",
		Owner:             artifact.OwnerPlatform,
		Purpose:           artifact.PurposeDecisionSupport,
		ContentRef:        value,
		SourceArtifactIDs: []string{fileID},
		SemanticDescriptor: map[string]any{
			"schema":      fieldPath,
			"parser_type": "field_extract",
		},
		Metadata: map[string]any{"field": fieldPath, "source_file_id": fileID, "boundary_contract_id": contract.ContractID},
	})
	if err != nil {
		return nil, nil, err
	}
	if err := s.Deps.Artifacts.Accept(ctx, in.TenantID, a.ArtifactID, a.Version); err != nil {
		return nil, nil, err
	}

	return []artifact.Artifact{a}, []execution.Event{
		{Type: "content.content_parsed", Payload: map[string]any{"field": fieldPath, "artifact_id": a.ArtifactID, "source_file_id": fileID}},
	}, nil
}

// ExtractEmbeddingsService handles the extract_embeddings intent: it
// records a vector derived from a parsed-content artifact, and promotes
// that derivation to a Record of Fact (§3, P7) so it persists independently
// of whatever happens to the source file's materialization later.
type ExtractEmbeddingsService struct{ Deps Dependencies }

func (s *ExtractEmbeddingsService) Kind() string { return "extract_embeddings" }

func (s *ExtractEmbeddingsService) HandleIntent(ctx context.Context, execCtx execution.Context, in intent.Intent) ([]artifact.Artifact, []execution.Event, error) {
	parsedArtifactID, err := paramString(in, "parsed_artifact_id")
	if err != nil {
		return nil, nil, err
	}

	parsed, err := s.Deps.Artifacts.Current(ctx, in.TenantID, parsedArtifactID)
	if err != nil {
		return nil, nil, err
	}

	vectorRaw, ok := in.Parameters["vector"].([]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing parameter %q", runtimeerr.ErrValidation, "vector")
	}
	vector := make([]float64, len(vectorRaw))
	for i, v := range vectorRaw {
		f, _ := v.(float64)
		vector[i] = f
	}

	embedding, err := s.Deps.Semantic.SaveEmbedding(ctx, in.TenantID, parsed.ArtifactID, "content", vector)
	if err != nil {
		return nil, nil, err
	}

	sourceFileID := parsed.ArtifactID
	if len(parsed.SourceArtifactIDs) > 0 {
		sourceFileID = parsed.SourceArtifactIDs[0]
	}
	boundaryContractID, _ := parsed.Metadata["boundary_contract_id"].(string)

	a, err := s.Deps.Artifacts.Draft(ctx, artifact.DraftInput{
		TenantID:          in.TenantID,
		ExecutionID:       execCtx.Execution.ExecutionID,
		Kind:              "embedding",
		Realm:             "content",
		Owner:             artifact.OwnerPlatform,
		Purpose:           artifact.PurposeDecisionSupport,
		ContentRef:        embedding.EmbeddingID,
		SourceArtifactIDs: []string{parsed.ArtifactID},
		SemanticDescriptor: map[string]any{
			"dimensions": len(vector),
		},
		Metadata: map[string]any{"parsed_artifact_id": parsed.ArtifactID},
	})
	if err != nil {
		return nil, nil, err
	}
	if err := s.Deps.Artifacts.Accept(ctx, in.TenantID, a.ArtifactID, a.Version); err != nil {
		return nil, nil, err
	}

	record, err := s.Deps.Semantic.RecordFact(ctx, in.TenantID, semanticstore.RecordDeterministicEmbedding,
		sourceFileID, boundaryContractID, embedding.EmbeddingID, nil)
	if err != nil {
		return nil, nil, err
	}

	return []artifact.Artifact{a}, []execution.Event{
		{Type: "content.embedding_extracted", Payload: map[string]any{
			"artifact_id": a.ArtifactID, "record_id": record.RecordID, "source_file_id": sourceFileID,
		}},
	}, nil
}

// SaveMaterializationService handles the save_materialization intent: it
// authorizes phase two of the Data Boundary Contract protocol and records
// the resulting Materialization Index row that list_files, get_file, and
// parse_content all gate visibility on.
type SaveMaterializationService struct{ Deps Dependencies }

func (s *SaveMaterializationService) Kind() string { return "save_materialization" }

func (s *SaveMaterializationService) HandleIntent(ctx context.Context, execCtx execution.Context, in intent.Intent) ([]artifact.Artifact, []execution.Event, error) {
	contractID, err := paramString(in, "contract_id")
	if err != nil {
		return nil, nil, err
	}
	fileID, err := paramString(in, "file_id")
	if err != nil {
		return nil, nil, err
	}

	materializationType := steward.MaterializationFullArtifact
	if v, ok := in.Parameters["materialization_type"].(string); ok && v != "" {
		materializationType = steward.MaterializationType(v)
	}
	ttl := defaultMaterializationTTL
	if v, ok := in.Parameters["materialization_ttl_seconds"].(float64); ok && v > 0 {
		ttl = time.Duration(v) * time.Second
	}
	backingStore := "blob"
	if v, ok := in.Parameters["materialization_backing_store"].(string); ok && v != "" {
		backingStore = v
	}

	contract, err := execCtx.Steward.AuthorizeMaterialization(ctx, contractID, in.SubmittedBy, materializationType, ttl, backingStore)
	if err != nil {
		return nil, nil, err
	}

	var expiresAt time.Time
	if contract.MaterializationTTL > 0 {
		expiresAt = time.Now().Add(contract.MaterializationTTL)
	}

	if err := s.Deps.State.Put(ctx, in.TenantID, "materialization", rowstore.Row{
		"contract_id":                contractID,
		"file_id":                    fileID,
		"representation_type":        string(contract.MaterializationType),
		"backing_store":              contract.MaterializationBackingStore,
		"materialization_expires_at": expiresAt,
		"created_at":                 time.Now(),
	}); err != nil {
		return nil, nil, err
	}

	return nil, []execution.Event{
		{Type: "content.materialization_saved", Payload: map[string]any{
			"contract_id": contractID, "file_id": fileID, "materialization_type": string(contract.MaterializationType),
		}},
	}, nil
}

// PurgeExpiredMaterializationsService handles the
// purge_expired_materializations intent. It is submitted periodically by
// Purger rather than by an external caller, but it runs through the same
// dispatcher as every other intent so the purge appears in the WAL. The
// dispatcher runs handlers under a background context, so the submitter's
// cancellation does not reach a purge once it has started.
//
// A purge expires the contract and archives the file record; the file's
// blob bytes are not deleted and stay readable through Files.Open. It
// never touches the Records of Fact derived from the file: it stamps their
// source_expired_at and leaves their backing representation intact (§4.5,
// P7).
type PurgeExpiredMaterializationsService struct {
	Deps Dependencies
}

func (s *PurgeExpiredMaterializationsService) Kind() string { return "purge_expired_materializations" }

func (s *PurgeExpiredMaterializationsService) HandleIntent(ctx context.Context, execCtx execution.Context, in intent.Intent) ([]artifact.Artifact, []execution.Event, error) {
	records, err := s.Deps.State.Find(ctx, in.TenantID, "materialization", rowstore.Filter{}, 0)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	purged := make([]string, 0)
	for _, rec := range records {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		if _, ok := rec["purged"]; ok {
			continue
		}
		fileID, _ := rec["file_id"].(string)
		contractID, _ := rec["contract_id"].(string)
		if fileID == "" || contractID == "" {
			continue
		}

		expiresAt, ok := rec["materialization_expires_at"].(time.Time)
		if !ok || expiresAt.IsZero() || expiresAt.After(now) {
			continue
		}

		if err := execCtx.Steward.Expire(ctx, contractID, now); err != nil {
			return nil, nil, err
		}
		if err := s.Deps.Files.Archive(ctx, in.TenantID, fileID); err != nil && !runtimeerr.IsArtifactNotFound(err) {
			return nil, nil, err
		}
		if _, err := s.Deps.Semantic.ExpireFactsForSourceFile(ctx, in.TenantID, fileID, now); err != nil {
			return nil, nil, err
		}
		if _, err := s.Deps.State.Patch(ctx, in.TenantID, "materialization",
			rowstore.Filter{"contract_id": contractID, "file_id": fileID},
			rowstore.Row{"purged": true}); err != nil {
			return nil, nil, err
		}
		purged = append(purged, fileID)
	}

	return nil, []execution.Event{
		{Type: "content.materializations_purged", Payload: map[string]any{"file_ids": purged, "count": len(purged)}},
	}, nil
}
