// Package filestorage is the abstraction layer over the Blob Store
// capability for the content realm: it tracks file metadata (name, size,
// tenant, archival state) in the row store alongside the raw bytes in the
// blob store, so listing and archiving a file never requires reading its
// content.
package filestorage

import (
	"context"
	"io"
	"time"

	"github.com/cityos/runtime/internal/capability/blobstore"
	"github.com/cityos/runtime/internal/capability/rowstore"
	"github.com/cityos/runtime/internal/idgen"
	"github.com/cityos/runtime/internal/runtimeerr"
)

const table = "files"

// FileStatus tracks whether a file is still live or has been archived.
type FileStatus string

const (
	FileActive   FileStatus = "active"
	FileArchived FileStatus = "archived"
)

// File is the metadata record tracked for every ingested file.
type File struct {
	FileID     string
	TenantID   string
	Name       string
	ContentRef string
	SizeBytes  int64
	Status     FileStatus
	IngestedAt time.Time
}

// Storage combines the blob store with its row-store metadata shadow.
type Storage struct {
	blobs blobstore.Store
	rows  rowstore.Store
}

// New constructs a Storage over the given capability backends.
func New(blobs blobstore.Store, rows rowstore.Store) *Storage {
	return &Storage{blobs: blobs, rows: rows}
}

// Ingest stores content under tenantID/name and records its metadata.
func (s *Storage) Ingest(ctx context.Context, tenantID, name string, content io.Reader, sizeBytes int64) (File, error) {
	ref, err := s.blobs.Put(ctx, tenantID, name, content)
	if err != nil {
		return File{}, err
	}

	f := File{
		FileID:     idgen.NewArtifactID(),
		TenantID:   tenantID,
		Name:       name,
		ContentRef: ref,
		SizeBytes:  sizeBytes,
		Status:     FileActive,
		IngestedAt: time.Now(),
	}

	if err := s.rows.Insert(ctx, tenantID, table, rowstore.Row{
		"file_id":     f.FileID,
		"name":        f.Name,
		"content_ref": f.ContentRef,
		"size_bytes":  f.SizeBytes,
		"status":      string(f.Status),
		"ingested_at": f.IngestedAt,
	}); err != nil {
		return File{}, runtimeerr.NewCapabilityError("rowstore", "Insert", err)
	}
	return f, nil
}

// List returns every file tracked for tenantID, optionally restricted to
// a single status.
func (s *Storage) List(ctx context.Context, tenantID string, status FileStatus, limit int) ([]File, error) {
	filter := rowstore.Filter{}
	if status != "" {
		filter["status"] = string(status)
	}

	rows, err := s.rows.Query(ctx, tenantID, table, filter, limit)
	if err != nil {
		return nil, runtimeerr.NewCapabilityError("rowstore", "Query", err)
	}

	out := make([]File, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(tenantID, row))
	}
	return out, nil
}

// Get returns the metadata record for fileID.
func (s *Storage) Get(ctx context.Context, tenantID, fileID string) (File, error) {
	rows, err := s.rows.Query(ctx, tenantID, table, rowstore.Filter{"file_id": fileID}, 1)
	if err != nil {
		return File{}, runtimeerr.NewCapabilityError("rowstore", "Query", err)
	}
	if len(rows) == 0 {
		return File{}, runtimeerr.ErrArtifactNotFound
	}
	return fromRow(tenantID, rows[0]), nil
}

// Archive marks fileID archived without removing its blob, so it remains
// available for an explicit Open but drops out of the active listing.
func (s *Storage) Archive(ctx context.Context, tenantID, fileID string) error {
	updated, err := s.rows.Update(ctx, tenantID, table,
		rowstore.Filter{"file_id": fileID}, rowstore.Row{"status": string(FileArchived)})
	if err != nil {
		return runtimeerr.NewCapabilityError("rowstore", "Update", err)
	}
	if updated == 0 {
		return runtimeerr.ErrArtifactNotFound
	}
	return nil
}

// Open returns the content of the file stored under ref.
func (s *Storage) Open(ctx context.Context, contentRef string) (io.ReadCloser, error) {
	return s.blobs.Get(ctx, contentRef)
}

func fromRow(tenantID string, row rowstore.Row) File {
	f := File{TenantID: tenantID}
	if v, ok := row["file_id"].(string); ok {
		f.FileID = v
	}
	if v, ok := row["name"].(string); ok {
		f.Name = v
	}
	if v, ok := row["content_ref"].(string); ok {
		f.ContentRef = v
	}
	switch v := row["size_bytes"].(type) {
	case int64:
		f.SizeBytes = v
	case int:
		f.SizeBytes = int64(v)
	case float64:
		f.SizeBytes = int64(v)
	}
	if v, ok := row["status"].(string); ok {
		f.Status = FileStatus(v)
	}
	if v, ok := row["ingested_at"].(time.Time); ok {
		f.IngestedAt = v
	}
	return f
}
