package rowstore

import (
	"context"
	"testing"
)

func TestMemoryStoreInsertQueryUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Insert(ctx, "tenant-a", "intents", Row{"id": "1", "status": "pending"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, "tenant-a", "intents", Row{"id": "2", "status": "pending"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, "tenant-b", "intents", Row{"id": "3", "status": "pending"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := s.Query(ctx, "tenant-a", "intents", Filter{"status": "pending"}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows scoped to tenant-a, got %d", len(rows))
	}

	updated, err := s.Update(ctx, "tenant-a", "intents", Filter{"id": "1"}, Row{"status": "accepted"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 row updated, got %d", updated)
	}

	rows, _ = s.Query(ctx, "tenant-a", "intents", Filter{"status": "accepted"}, 0)
	if len(rows) != 1 {
		t.Fatalf("expected 1 accepted row, got %d", len(rows))
	}
}

func TestMemoryStoreNeverReturnsOrMutatesAnotherTenantsRows(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Insert(ctx, "tenant-a", "intents", Row{"id": "1", "status": "pending"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, "tenant-b", "intents", Row{"id": "1", "status": "pending"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := s.Query(ctx, "tenant-a", "intents", Filter{}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for _, row := range rows {
		if row["id"] == "1" && row["status"] != "pending" {
			t.Fatalf("tenant-a query returned an unexpected row: %v", row)
		}
	}
	if len(rows) != 1 {
		t.Fatalf("expected tenant-a's query to see only its own row, got %d rows", len(rows))
	}

	updated, err := s.Update(ctx, "tenant-a", "intents", Filter{"id": "1"}, Row{"status": "accepted"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected exactly 1 row updated for tenant-a, got %d", updated)
	}

	bRows, err := s.Query(ctx, "tenant-b", "intents", Filter{"id": "1"}, 0)
	if err != nil {
		t.Fatalf("query tenant-b: %v", err)
	}
	if len(bRows) != 1 || bRows[0]["status"] != "pending" {
		t.Fatalf("tenant-a's update leaked into tenant-b's row: %v", bRows)
	}
}
