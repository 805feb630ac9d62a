package vectorstore

import (
	"context"
	"testing"
)

func seedMemoryStore(t *testing.T) VectorStore {
	t.Helper()
	store := NewMemoryStore()
	ctx := context.Background()
	err := store.Upsert(ctx, "fingerprints", []Vector{
		{ID: "s-1", Values: []float32{1, 0, 0}, Metadata: map[string]any{"tenant_id": "t-1", "visibility_scope": "tenant_only"}},
		{ID: "s-2", Values: []float32{0.9, 0.1, 0}, Metadata: map[string]any{"tenant_id": "t-1", "visibility_scope": "multi_tenant"}},
		{ID: "s-3", Values: []float32{0, 1, 0}, Metadata: map[string]any{"tenant_id": "t-2", "visibility_scope": "multi_tenant"}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func TestMemoryStoreRanksBySimilarity(t *testing.T) {
	store := seedMemoryStore(t)
	matches, err := store.QueryMatches(context.Background(), "fingerprints", []float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("matches = %d, want 3", len(matches))
	}
	if matches[0].ID != "s-1" || matches[1].ID != "s-2" {
		t.Fatalf("order = %v, want s-1 then s-2", matches)
	}
	if matches[0].Score <= matches[1].Score || matches[1].Score <= matches[2].Score {
		t.Fatalf("scores not descending: %v", matches)
	}
}

func TestMemoryStoreScopeFilter(t *testing.T) {
	store := seedMemoryStore(t)
	// Visibility rule for a query from tenant t-1: own vectors, or vectors
	// any workspace has opted into sharing.
	filter := map[string]any{
		"$or": []any{
			map[string]any{"tenant_id": "t-1"},
			map[string]any{"visibility_scope": "multi_tenant"},
		},
	}

	ids, err := store.QueryIDs(context.Background(), "fingerprints", []float32{0.5, 0.5, 0}, 10, filter)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ids = %v, want all three", ids)
	}

	tenantOnly := map[string]any{"tenant_id": "t-2"}
	ids, err = store.QueryIDs(context.Background(), "fingerprints", []float32{0.5, 0.5, 0}, 10, tenantOnly)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ids) != 1 || ids[0] != "s-3" {
		t.Fatalf("ids = %v, want [s-3]", ids)
	}
}

func TestMemoryStoreTopKAndDelete(t *testing.T) {
	store := seedMemoryStore(t)
	ctx := context.Background()

	matches, err := store.QueryMatches(ctx, "fingerprints", []float32{1, 0, 0}, 1, nil)
	if err != nil || len(matches) != 1 {
		t.Fatalf("topK=1: matches=%v err=%v", matches, err)
	}

	if err := store.DeleteIDs(ctx, "fingerprints", []string{"s-1", "s-2"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ids, err := store.QueryIDs(ctx, "fingerprints", []float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("query after delete: %v", err)
	}
	if len(ids) != 1 || ids[0] != "s-3" {
		t.Fatalf("ids = %v, want [s-3]", ids)
	}
}

func TestMemoryStoreNamespaceIsolation(t *testing.T) {
	store := seedMemoryStore(t)
	ids, err := store.QueryIDs(context.Background(), "other", []float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids = %v, want empty for foreign namespace", ids)
	}
}

func TestMemoryStoreUpsertValidation(t *testing.T) {
	store := NewMemoryStore()
	err := store.Upsert(context.Background(), "fingerprints", []Vector{{ID: "", Values: []float32{1}}})
	if err == nil {
		t.Fatal("empty vector id must be rejected")
	}
	err = store.Upsert(context.Background(), "fingerprints", []Vector{{ID: "x", Values: nil}})
	if err == nil {
		t.Fatal("empty values must be rejected")
	}
}
