package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/cityos/runtime/internal/runtimeerr"
)

// MemoryStore keeps blob content in process memory. Used when BLOB_ENDPOINT
// is left unset entirely.
type MemoryStore struct {
	mu      sync.Mutex
	content map[string][]byte
}

// NewMemoryStore constructs an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{content: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, tenantID, key string, content io.Reader) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", wrap("Put", err)
	}
	ref := tenantID + "/" + uuid.NewString() + "-" + key

	s.mu.Lock()
	s.content[ref] = data
	s.mu.Unlock()
	return ref, nil
}

func (s *MemoryStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	s.mu.Lock()
	data, ok := s.content[ref]
	s.mu.Unlock()
	if !ok {
		return nil, wrap("Get", runtimeerr.ErrArtifactNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	delete(s.content, ref)
	s.mu.Unlock()
	return nil
}
