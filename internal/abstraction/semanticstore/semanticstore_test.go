package semanticstore

import (
	"context"
	"testing"
	"time"

	"github.com/cityos/runtime/internal/capability/graphstore"
	"github.com/cityos/runtime/internal/capability/rowstore"
)

func TestExtractFieldFromOpaquePayload(t *testing.T) {
	payload := `{"customer": {"name": "Ada", "tier": "gold"}}`

	value, ok := ExtractField(payload, "customer.name")
	if !ok || value != "Ada" {
		t.Fatalf("expected to extract Ada, got %q ok=%v", value, ok)
	}

	if _, ok := ExtractField(payload, "customer.missing"); ok {
		t.Fatal("expected missing field to report ok=false")
	}
}

func TestRecordFactPersistsIndependentlyOfSourceExpiry(t *testing.T) {
	ctx := context.Background()
	s := New(rowstore.NewMemoryStore(), graphstore.NewMemoryStore())

	record, err := s.RecordFact(ctx, "tenant-a", RecordDeterministicEmbedding, "file-1", "contract-1", "embedding-1", nil)
	if err != nil {
		t.Fatalf("record fact: %v", err)
	}
	if record.SourceExpiredAt.IsZero() == false {
		t.Fatal("expected a freshly recorded fact to have no source_expired_at")
	}

	n, err := s.ExpireFactsForSourceFile(ctx, "tenant-a", "file-1", time.Now())
	if err != nil {
		t.Fatalf("expire facts: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 record expired, got %d", n)
	}

	facts, err := s.FactsForSourceFile(ctx, "tenant-a", "file-1")
	if err != nil {
		t.Fatalf("facts for source file: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected the record to still exist after its source expired, got %d", len(facts))
	}
	if facts[0].SourceExpiredAt.IsZero() {
		t.Fatal("expected source_expired_at to be set")
	}
	if facts[0].BackingRef != "embedding-1" {
		t.Fatalf("expected backing_ref to survive expiry, got %q", facts[0].BackingRef)
	}
}

func TestSaveAndRetrieveEmbeddings(t *testing.T) {
	ctx := context.Background()
	s := New(rowstore.NewMemoryStore(), graphstore.NewMemoryStore())

	if _, err := s.SaveEmbedding(ctx, "tenant-a", "artifact-1", "customer.name", []float64{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("save: %v", err)
	}

	embeddings, err := s.EmbeddingsFor(ctx, "tenant-a", "artifact-1")
	if err != nil {
		t.Fatalf("embeddings for: %v", err)
	}
	if len(embeddings) != 1 || embeddings[0].Field != "customer.name" {
		t.Fatalf("expected 1 embedding for customer.name, got %+v", embeddings)
	}
	if len(embeddings[0].Vector) != 3 {
		t.Fatalf("expected vector of length 3, got %d", len(embeddings[0].Vector))
	}
}
