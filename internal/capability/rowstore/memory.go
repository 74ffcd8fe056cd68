package rowstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process row store. The runtime uses it when ROW_DSN
// is "memory" (any other ROW_DSN selects PostgresStore), and callers that
// only need the capability interface (e.g. abstraction-layer tests) use it
// instead of a live database.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]Row // key: tenantID + "/" + table
}

// NewMemoryStore constructs an empty in-memory row store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]Row)}
}

func key(tenantID, table string) string { return tenantID + "/" + table }

func matches(row Row, filter Filter) bool {
	for k, v := range filter {
		if row[k] != v {
			return false
		}
	}
	return true
}

func (s *MemoryStore) Insert(_ context.Context, tenantID, table string, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(tenantID, table)
	cloned := make(Row, len(row))
	for field, v := range row {
		cloned[field] = v
	}
	s.data[k] = append(s.data[k], cloned)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, tenantID, table string, filter Filter, limit int) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Row
	for _, row := range s.data[key(tenantID, table)] {
		if matches(row, filter) {
			out = append(out, row)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, tenantID, table string, filter Filter, patch Row) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for i, row := range s.data[key(tenantID, table)] {
		if matches(row, filter) {
			for k, v := range patch {
				row[k] = v
			}
			s.data[key(tenantID, table)][i] = row
			updated++
		}
	}
	return updated, nil
}

func (s *MemoryStore) Close() error { return nil }
