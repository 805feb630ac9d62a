package vectorstore

import (
	"errors"
	"testing"
)

func TestTranslateQueryFilterAlwaysPinsNamespace(t *testing.T) {
	out, err := translateQueryFilter("rca:tenant-a", nil)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	must, ok := out["must"].([]any)
	if !ok || len(must) != 1 {
		t.Fatalf("must = %v, want single namespace condition", out["must"])
	}
	cond := must[0].(map[string]any)
	if cond["key"] != payloadNamespaceKey {
		t.Fatalf("condition key = %v", cond["key"])
	}
}

func TestTranslateQueryFilterOperators(t *testing.T) {
	out, err := translateQueryFilter("rca", map[string]any{
		"visibility_scope": map[string]any{"$in": []string{"multi_tenant"}},
		"status":           map[string]any{"$ne": "missing"},
		"platform":         "uipath",
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	// namespace + $in + bare equality
	if must := out["must"].([]any); len(must) != 3 {
		t.Fatalf("must = %v, want 3 conditions", must)
	}
	if mustNot := out["must_not"].([]any); len(mustNot) != 1 {
		t.Fatalf("must_not = %v, want 1 condition", mustNot)
	}
}

func TestTranslateQueryFilterRejectsUnsupportedOperator(t *testing.T) {
	_, err := translateQueryFilter("rca", map[string]any{
		"relevance": map[string]any{"$gte": 0.7},
	})
	var opError *OpError
	if !errors.As(err, &opError) || opError.Code != OpErrorUnsupportedFilter {
		t.Fatalf("err = %v, want unsupported_filter", err)
	}
}

func TestTranslateQueryFilterRejectsEmptyIn(t *testing.T) {
	_, err := translateQueryFilter("rca", map[string]any{
		"tenant_id": map[string]any{"$in": []string{}},
	})
	var opError *OpError
	if !errors.As(err, &opError) || opError.Code != OpErrorValidation {
		t.Fatalf("err = %v, want validation_failed", err)
	}
}

func TestTranslateQueryFilterNestedBoolean(t *testing.T) {
	out, err := translateQueryFilter("rca", map[string]any{
		"$or": []any{
			map[string]any{"visibility_scope": "multi_tenant"},
			map[string]any{"tenant_id": map[string]any{"$eq": "t-1"}},
		},
		"$not": map[string]any{"status": "missing"},
	})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if should := out["should"].([]any); len(should) != 2 {
		t.Fatalf("should = %v, want 2 branches", should)
	}
	if mustNot := out["must_not"].([]any); len(mustNot) != 1 {
		t.Fatalf("must_not = %v, want 1 branch", mustNot)
	}
}
