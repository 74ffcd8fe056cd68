// Package artifact implements the Artifact Plane: the versioned, lifecycle-
// tracked output of executions. Every artifact starts in draft, is
// promoted to accepted once its owning execution completes successfully,
// and is marked obsolete when a newer version replaces it.
package artifact

import (
	"context"
	"time"

	"github.com/cityos/runtime/internal/capability/graphstore"
	"github.com/cityos/runtime/internal/capability/rowstore"
	"github.com/cityos/runtime/internal/idgen"
	"github.com/cityos/runtime/internal/runtimeerr"
)

// Lifecycle is an artifact's position in its lifecycle.
type Lifecycle string

const (
	LifecycleDraft    Lifecycle = "draft"
	LifecycleAccepted Lifecycle = "accepted"
	LifecycleObsolete Lifecycle = "obsolete"
)

// Owner names who an artifact's output belongs to.
type Owner string

const (
	OwnerClient   Owner = "client"
	OwnerPlatform Owner = "platform"
	OwnerShared   Owner = "shared"
)

// Purpose names what an artifact is for.
type Purpose string

const (
	PurposeDecisionSupport Purpose = "decision_support"
	PurposeDelivery        Purpose = "delivery"
	PurposeGovernance      Purpose = "governance"
	PurposeLearning        Purpose = "learning"
)

const table = "artifacts"

// Artifact is one version of a materialized output.
type Artifact struct {
	ArtifactID  string
	Version     int
	TenantID    string
	SessionID   string
	ExecutionID string
	Kind        string
	Realm       string
	Lifecycle   Lifecycle
	Owner       Owner
	Purpose     Purpose
	ContentRef  string
	Metadata    map[string]any

	// SourceArtifactIDs lists the artifacts this one was derived from,
	// defining its lineage. ParentArtifactID instead identifies the
	// prior version of this same logical artifact (version N's parent is
	// version N-1 of the same ArtifactID); it is empty for version 1.
	SourceArtifactIDs  []string
	ParentArtifactID   string
	IsCurrentVersion   bool
	SemanticDescriptor map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Registry is the Artifact Plane: it tracks every artifact version and the
// provenance edges between versions of the same logical artifact.
type Registry struct {
	rows  rowstore.Store
	graph graphstore.Store
}

// NewRegistry constructs a Registry over the given capability backends.
func NewRegistry(rows rowstore.Store, graph graphstore.Store) *Registry {
	return &Registry{rows: rows, graph: graph}
}

// DraftInput describes a new artifact version to register.
type DraftInput struct {
	TenantID    string
	SessionID   string
	ExecutionID string

	// ArtifactID is the logical artifact id. Empty mints a new one; a
	// non-empty value drafts the next version of an existing artifact.
	ArtifactID string
	Kind       string
	Realm      string
	Owner      Owner
	Purpose    Purpose
	ContentRef string
	Metadata   map[string]any

	SourceArtifactIDs  []string
	SemanticDescriptor map[string]any
}

func toRow(a Artifact) rowstore.Row {
	row := rowstore.Row{
		"artifact_id":        a.ArtifactID,
		"version":            a.Version,
		"tenant_id":          a.TenantID,
		"session_id":         a.SessionID,
		"execution_id":       a.ExecutionID,
		"kind":               a.Kind,
		"realm":              a.Realm,
		"lifecycle":          string(a.Lifecycle),
		"owner":              string(a.Owner),
		"purpose":            string(a.Purpose),
		"content_ref":        a.ContentRef,
		"metadata":           a.Metadata,
		"parent_artifact_id": a.ParentArtifactID,
		"is_current_version": a.IsCurrentVersion,
		"created_at":         a.CreatedAt,
		"updated_at":         a.UpdatedAt,
	}
	if a.SourceArtifactIDs != nil {
		ids := make([]any, len(a.SourceArtifactIDs))
		for i, id := range a.SourceArtifactIDs {
			ids[i] = id
		}
		row["source_artifact_ids"] = ids
	}
	if a.SemanticDescriptor != nil {
		row["semantic_descriptor"] = a.SemanticDescriptor
	}
	return row
}

func fromRow(row rowstore.Row) Artifact {
	a := Artifact{
		TenantID:         str(row["tenant_id"]),
		SessionID:        str(row["session_id"]),
		ArtifactID:       str(row["artifact_id"]),
		ExecutionID:      str(row["execution_id"]),
		Kind:             str(row["kind"]),
		Realm:            str(row["realm"]),
		Lifecycle:        Lifecycle(str(row["lifecycle"])),
		Owner:            Owner(str(row["owner"])),
		Purpose:          Purpose(str(row["purpose"])),
		ContentRef:       str(row["content_ref"]),
		ParentArtifactID: str(row["parent_artifact_id"]),
	}
	if v, ok := row["version"].(int); ok {
		a.Version = v
	} else if v, ok := row["version"].(float64); ok {
		a.Version = int(v)
	}
	if md, ok := row["metadata"].(map[string]any); ok {
		a.Metadata = md
	}
	if sd, ok := row["semantic_descriptor"].(map[string]any); ok {
		a.SemanticDescriptor = sd
	}
	if v, ok := row["is_current_version"].(bool); ok {
		a.IsCurrentVersion = v
	}
	switch ids := row["source_artifact_ids"].(type) {
	case []string:
		a.SourceArtifactIDs = ids
	case []any:
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if s, ok := id.(string); ok {
				out = append(out, s)
			}
		}
		a.SourceArtifactIDs = out
	}
	if ts, ok := row["created_at"].(time.Time); ok {
		a.CreatedAt = ts
	}
	if ts, ok := row["updated_at"].(time.Time); ok {
		a.UpdatedAt = ts
	}
	return a
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// Draft registers a new artifact version in the draft lifecycle state.
// in.ArtifactID == "" mints a new logical artifact; otherwise the new
// version's ParentArtifactID chains it to the prior version of the same
// logical artifact (located at version-1) and IsCurrentVersion flips from
// the prior version to this one.
func (r *Registry) Draft(ctx context.Context, in DraftInput) (Artifact, error) {
	artifactID := in.ArtifactID
	if artifactID == "" {
		artifactID = idgen.NewArtifactID()
	}

	prior, err := r.latestVersion(ctx, in.TenantID, artifactID)
	if err != nil && !runtimeerr.IsArtifactNotFound(err) {
		return Artifact{}, err
	}

	owner := in.Owner
	if owner == "" {
		owner = OwnerClient
	}
	purpose := in.Purpose
	if purpose == "" {
		purpose = PurposeDelivery
	}

	now := time.Now()
	a := Artifact{
		ArtifactID:         artifactID,
		Version:            prior + 1,
		TenantID:           in.TenantID,
		SessionID:          in.SessionID,
		ExecutionID:        in.ExecutionID,
		Kind:               in.Kind,
		Realm:              in.Realm,
		Lifecycle:          LifecycleDraft,
		Owner:              owner,
		Purpose:            purpose,
		ContentRef:         in.ContentRef,
		Metadata:           in.Metadata,
		SourceArtifactIDs:  in.SourceArtifactIDs,
		SemanticDescriptor: in.SemanticDescriptor,
		IsCurrentVersion:   true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if prior > 0 {
		a.ParentArtifactID = artifactID
	}

	if err := r.rows.Insert(ctx, in.TenantID, table, toRow(a)); err != nil {
		return Artifact{}, runtimeerr.NewCapabilityError("rowstore", "Insert", err)
	}

	if prior > 0 {
		if _, err := r.rows.Update(ctx, in.TenantID, table,
			rowstore.Filter{"artifact_id": artifactID, "version": prior},
			rowstore.Row{"is_current_version": false}); err != nil {
			return Artifact{}, runtimeerr.NewCapabilityError("rowstore", "Update", err)
		}
		if err := r.graph.AddEdge(ctx, in.TenantID, graphstore.Edge{
			From: a.ArtifactID, To: a.ArtifactID, Kind: "supersedes",
			Attrs: map[string]any{"from_version": prior, "to_version": a.Version},
		}); err != nil {
			return Artifact{}, err
		}
	}
	for _, sourceID := range in.SourceArtifactIDs {
		if err := r.graph.AddEdge(ctx, in.TenantID, graphstore.Edge{
			From: sourceID, To: a.ArtifactID, Kind: "source-of",
		}); err != nil {
			return Artifact{}, err
		}
	}
	return a, nil
}

func (r *Registry) latestVersion(ctx context.Context, tenantID, artifactID string) (int, error) {
	rows, err := r.rows.Query(ctx, tenantID, table, rowstore.Filter{"artifact_id": artifactID}, 0)
	if err != nil {
		return 0, runtimeerr.NewCapabilityError("rowstore", "Query", err)
	}
	if len(rows) == 0 {
		return 0, runtimeerr.ErrArtifactNotFound
	}
	max := 0
	for _, row := range rows {
		a := fromRow(row)
		if a.Version > max {
			max = a.Version
		}
	}
	return max, nil
}

// Accept promotes the given artifact version to the accepted lifecycle
// state, marking every older version of the same logical artifact obsolete.
func (r *Registry) Accept(ctx context.Context, tenantID, artifactID string, version int) error {
	if _, err := r.rows.Update(ctx, tenantID, table,
		rowstore.Filter{"artifact_id": artifactID, "version": version},
		rowstore.Row{"lifecycle": string(LifecycleAccepted), "updated_at": time.Now()}); err != nil {
		return runtimeerr.NewCapabilityError("rowstore", "Update", err)
	}

	rows, err := r.rows.Query(ctx, tenantID, table, rowstore.Filter{"artifact_id": artifactID}, 0)
	if err != nil {
		return runtimeerr.NewCapabilityError("rowstore", "Query", err)
	}
	for _, row := range rows {
		a := fromRow(row)
		if a.Version != version && a.Lifecycle != LifecycleObsolete {
			if _, err := r.rows.Update(ctx, tenantID, table,
				rowstore.Filter{"artifact_id": artifactID, "version": a.Version},
				rowstore.Row{"lifecycle": string(LifecycleObsolete)}); err != nil {
				return runtimeerr.NewCapabilityError("rowstore", "Update", err)
			}
		}
	}
	return nil
}

// Get returns the artifact at the given version.
func (r *Registry) Get(ctx context.Context, tenantID, artifactID string, version int) (Artifact, error) {
	rows, err := r.rows.Query(ctx, tenantID, table, rowstore.Filter{"artifact_id": artifactID, "version": version}, 1)
	if err != nil {
		return Artifact{}, runtimeerr.NewCapabilityError("rowstore", "Query", err)
	}
	if len(rows) == 0 {
		return Artifact{}, runtimeerr.ErrArtifactNotFound
	}
	return fromRow(rows[0]), nil
}

// Current returns the version of artifactID currently flagged as current.
// Exactly one version should ever carry that flag; Current returns the
// highest-versioned row with it set as a defensive tie-break.
func (r *Registry) Current(ctx context.Context, tenantID, artifactID string) (Artifact, error) {
	rows, err := r.rows.Query(ctx, tenantID, table, rowstore.Filter{"artifact_id": artifactID, "is_current_version": true}, 0)
	if err != nil {
		return Artifact{}, runtimeerr.NewCapabilityError("rowstore", "Query", err)
	}
	if len(rows) == 0 {
		return Artifact{}, runtimeerr.ErrArtifactNotFound
	}
	best := fromRow(rows[0])
	for _, row := range rows[1:] {
		a := fromRow(row)
		if a.Version > best.Version {
			best = a
		}
	}
	return best, nil
}

// List returns every tracked version of artifactID, oldest first.
func (r *Registry) List(ctx context.Context, tenantID, artifactID string) ([]Artifact, error) {
	rows, err := r.rows.Query(ctx, tenantID, table, rowstore.Filter{"artifact_id": artifactID}, 0)
	if err != nil {
		return nil, runtimeerr.NewCapabilityError("rowstore", "Query", err)
	}
	out := make([]Artifact, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// ListFilter narrows ListArtifacts to artifacts matching every non-empty
// field. SourceArtifactID, when set, additionally restricts the result to
// artifacts whose SourceArtifactIDs contains it, answering the "what was
// derived from this artifact" impact query.
type ListFilter struct {
	Kind             string
	Lifecycle        Lifecycle
	Owner            Owner
	Purpose          Purpose
	Realm            string
	SessionID        string
	SourceArtifactID string
}

// ListArtifacts returns every artifact version for tenantID matching
// filter, newest first. An empty filter field is not applied.
func (r *Registry) ListArtifacts(ctx context.Context, tenantID string, filter ListFilter, limit int) ([]Artifact, error) {
	rows, err := r.rows.Query(ctx, tenantID, table, rowstore.Filter{}, 0)
	if err != nil {
		return nil, runtimeerr.NewCapabilityError("rowstore", "Query", err)
	}

	out := make([]Artifact, 0, len(rows))
	for _, row := range rows {
		a := fromRow(row)
		if filter.Kind != "" && a.Kind != filter.Kind {
			continue
		}
		if filter.Lifecycle != "" && a.Lifecycle != filter.Lifecycle {
			continue
		}
		if filter.Owner != "" && a.Owner != filter.Owner {
			continue
		}
		if filter.Purpose != "" && a.Purpose != filter.Purpose {
			continue
		}
		if filter.Realm != "" && a.Realm != filter.Realm {
			continue
		}
		if filter.SessionID != "" && a.SessionID != filter.SessionID {
			continue
		}
		if filter.SourceArtifactID != "" && !containsString(a.SourceArtifactIDs, filter.SourceArtifactID) {
			continue
		}
		out = append(out, a)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// DeleteGuard reports whether artifactID may be deleted: it is rejected
// when another non-obsolete artifact lists it in SourceArtifactIDs, since
// deleting it would break that artifact's lineage.
func (r *Registry) DeleteGuard(ctx context.Context, tenantID, artifactID string) error {
	rows, err := r.rows.Query(ctx, tenantID, table, rowstore.Filter{}, 0)
	if err != nil {
		return runtimeerr.NewCapabilityError("rowstore", "Query", err)
	}
	for _, row := range rows {
		a := fromRow(row)
		if a.Lifecycle == LifecycleObsolete {
			continue
		}
		if containsString(a.SourceArtifactIDs, artifactID) {
			return runtimeerr.NewExecutionError(tenantID, a.ExecutionID, "delete-artifact",
				runtimeerr.ErrContractViolation)
		}
	}
	return nil
}
