package blobstore

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestMemoryStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ref, err := s.Put(ctx, "tenant-a", "report.csv", bytes.NewBufferString("a,b,c"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	r, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "a,b,c" {
		t.Fatalf("expected round-tripped content, got %q", data)
	}

	if err := s.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, ref); err == nil {
		t.Fatal("expected error reading deleted blob")
	}
}
