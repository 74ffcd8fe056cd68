package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore persists blobs under a root directory on disk. The runtime
// uses it whenever BLOB_ENDPOINT is set, treating the value as that
// directory's path.
type LocalStore struct {
	root string
}

// NewLocalStore ensures root exists and returns a store rooted there.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, wrap("init", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) pathFor(ref string) string {
	return filepath.Join(s.root, ref)
}

func (s *LocalStore) Put(ctx context.Context, tenantID, key string, content io.Reader) (string, error) {
	ref := filepath.Join(tenantID, fmt.Sprintf("%s-%s", uuid.NewString(), filepath.Base(key)))
	dest := s.pathFor(ref)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", wrap("Put", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", wrap("Put", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return "", wrap("Put", err)
	}
	return ref, nil
}

func (s *LocalStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	f, err := os.Open(s.pathFor(ref))
	if err != nil {
		return nil, wrap("Get", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	if err := os.Remove(s.pathFor(ref)); err != nil && !os.IsNotExist(err) {
		return wrap("Delete", err)
	}
	return nil
}
