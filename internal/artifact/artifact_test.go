package artifact

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cityos/runtime/internal/capability/graphstore"
	"github.com/cityos/runtime/internal/capability/rowstore"
)

func newTestRegistry() *Registry {
	return NewRegistry(rowstore.NewMemoryStore(), graphstore.NewMemoryStore())
}

func TestDraftAssignsIncrementingVersions(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	first, err := r.Draft(ctx, DraftInput{TenantID: "tenant-a", ExecutionID: "exec-1", Kind: "report", ContentRef: "ref-1"})
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if first.Version != 1 {
		t.Fatalf("expected version 1, got %d", first.Version)
	}
	if first.ParentArtifactID != "" {
		t.Fatalf("expected version 1 to have no parent, got %q", first.ParentArtifactID)
	}
	if !first.IsCurrentVersion {
		t.Fatal("expected version 1 to be current")
	}

	second, err := r.Draft(ctx, DraftInput{TenantID: "tenant-a", ExecutionID: "exec-2", ArtifactID: first.ArtifactID, Kind: "report", ContentRef: "ref-2"})
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if second.Version != 2 {
		t.Fatalf("expected version 2, got %d", second.Version)
	}
	if second.ParentArtifactID != first.ArtifactID {
		t.Fatalf("expected parent_artifact_id %q, got %q", first.ArtifactID, second.ParentArtifactID)
	}

	older, err := r.Get(ctx, "tenant-a", first.ArtifactID, first.Version)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if older.IsCurrentVersion {
		t.Fatal("expected version 1 to no longer be current once version 2 drafts")
	}
}

func TestAcceptObsoletesOlderVersions(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	first, _ := r.Draft(ctx, DraftInput{TenantID: "tenant-a", ExecutionID: "exec-1", Kind: "report", ContentRef: "ref-1"})
	second, _ := r.Draft(ctx, DraftInput{TenantID: "tenant-a", ExecutionID: "exec-2", ArtifactID: first.ArtifactID, Kind: "report", ContentRef: "ref-2"})

	if err := r.Accept(ctx, "tenant-a", first.ArtifactID, second.Version); err != nil {
		t.Fatalf("accept: %v", err)
	}

	older, err := r.Get(ctx, "tenant-a", first.ArtifactID, first.Version)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if older.Lifecycle != LifecycleObsolete {
		t.Fatalf("expected older version obsolete, got %s", older.Lifecycle)
	}

	newer, err := r.Get(ctx, "tenant-a", first.ArtifactID, second.Version)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if newer.Lifecycle != LifecycleAccepted {
		t.Fatalf("expected newer version accepted, got %s", newer.Lifecycle)
	}
}

func TestDraftRoundTripsNestedMetadata(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	metadata := map[string]any{
		"name": "report.txt",
		"tags": []any{"quarterly", "finance"},
		"source": map[string]any{
			"file_id": "file-1",
			"size":    float64(128),
		},
	}

	a, err := r.Draft(ctx, DraftInput{TenantID: "tenant-a", ExecutionID: "exec-1", Kind: "report", ContentRef: "ref-1", Metadata: metadata})
	if err != nil {
		t.Fatalf("draft: %v", err)
	}

	got, err := r.Get(ctx, "tenant-a", a.ArtifactID, a.Version)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(metadata, got.Metadata); diff != "" {
		t.Fatalf("metadata did not round-trip (-want +got):\n%s", diff)
	}
}

func TestDraftDefaultsOwnerAndPurpose(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	a, err := r.Draft(ctx, DraftInput{TenantID: "tenant-a", ExecutionID: "exec-1", Kind: "report", ContentRef: "ref-1"})
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if a.Owner != OwnerClient {
		t.Fatalf("expected default owner %q, got %q", OwnerClient, a.Owner)
	}
	if a.Purpose != PurposeDelivery {
		t.Fatalf("expected default purpose %q, got %q", PurposeDelivery, a.Purpose)
	}
}

func TestDraftRecordsSourceArtifactIDsAndCurrentLookup(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	src, err := r.Draft(ctx, DraftInput{TenantID: "tenant-a", ExecutionID: "exec-1", Kind: "file", ContentRef: "ref-1"})
	if err != nil {
		t.Fatalf("draft source: %v", err)
	}

	derived, err := r.Draft(ctx, DraftInput{
		TenantID:          "tenant-a",
		ExecutionID:       "exec-2",
		Kind:              "parsed_content",
		ContentRef:        "ref-2",
		SourceArtifactIDs: []string{src.ArtifactID},
	})
	if err != nil {
		t.Fatalf("draft derived: %v", err)
	}
	if len(derived.SourceArtifactIDs) != 1 || derived.SourceArtifactIDs[0] != src.ArtifactID {
		t.Fatalf("expected source_artifact_ids to round-trip, got %v", derived.SourceArtifactIDs)
	}

	current, err := r.Current(ctx, "tenant-a", derived.ArtifactID)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current.ArtifactID != derived.ArtifactID || current.Version != derived.Version {
		t.Fatalf("expected current version to match the only drafted version, got %+v", current)
	}
}

func TestListArtifactsFiltersByKindOwnerAndSource(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	src, _ := r.Draft(ctx, DraftInput{TenantID: "tenant-a", ExecutionID: "exec-1", Kind: "file", ContentRef: "ref-1"})
	_, _ = r.Draft(ctx, DraftInput{
		TenantID: "tenant-a", ExecutionID: "exec-2", Kind: "parsed_content", ContentRef: "ref-2",
		Owner: OwnerPlatform, Purpose: PurposeDecisionSupport, SourceArtifactIDs: []string{src.ArtifactID},
	})
	_, _ = r.Draft(ctx, DraftInput{TenantID: "tenant-a", ExecutionID: "exec-3", Kind: "file", ContentRef: "ref-3"})

	parsed, err := r.ListArtifacts(ctx, "tenant-a", ListFilter{Kind: "parsed_content"}, 0)
	if err != nil {
		t.Fatalf("list artifacts: %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("expected 1 parsed_content artifact, got %d", len(parsed))
	}

	derivedFromSrc, err := r.ListArtifacts(ctx, "tenant-a", ListFilter{SourceArtifactID: src.ArtifactID}, 0)
	if err != nil {
		t.Fatalf("list artifacts by source: %v", err)
	}
	if len(derivedFromSrc) != 1 {
		t.Fatalf("expected 1 artifact derived from src, got %d", len(derivedFromSrc))
	}

	files, err := r.ListArtifacts(ctx, "tenant-a", ListFilter{Kind: "file"}, 0)
	if err != nil {
		t.Fatalf("list artifacts by kind: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 file artifacts, got %d", len(files))
	}
}

func TestDeleteGuardRejectsArtifactWithLiveDependents(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	src, _ := r.Draft(ctx, DraftInput{TenantID: "tenant-a", ExecutionID: "exec-1", Kind: "file", ContentRef: "ref-1"})
	if err := r.DeleteGuard(ctx, "tenant-a", src.ArtifactID); err != nil {
		t.Fatalf("expected no dependents yet, got %v", err)
	}

	derived, err := r.Draft(ctx, DraftInput{
		TenantID: "tenant-a", ExecutionID: "exec-2", Kind: "parsed_content", ContentRef: "ref-2",
		SourceArtifactIDs: []string{src.ArtifactID},
	})
	if err != nil {
		t.Fatalf("draft derived: %v", err)
	}

	if err := r.DeleteGuard(ctx, "tenant-a", src.ArtifactID); err == nil {
		t.Fatal("expected delete guard to reject a source with a live dependent")
	}

	if err := r.Accept(ctx, "tenant-a", derived.ArtifactID, derived.Version); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := r.Draft(ctx, DraftInput{TenantID: "tenant-a", ExecutionID: "exec-3", ArtifactID: derived.ArtifactID, Kind: "parsed_content", ContentRef: "ref-3"}); err != nil {
		t.Fatalf("draft superseding version: %v", err)
	}
	if err := r.Accept(ctx, "tenant-a", derived.ArtifactID, derived.Version+1); err != nil {
		t.Fatalf("accept superseding version: %v", err)
	}

	if err := r.DeleteGuard(ctx, "tenant-a", src.ArtifactID); err != nil {
		t.Fatalf("expected delete guard to permit deletion once the dependent is obsolete, got %v", err)
	}
}
