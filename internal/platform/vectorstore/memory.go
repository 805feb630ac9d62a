package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// memoryStore is the process-local backend used when no Qdrant URL is
// configured. It honors the same filter grammar as the HTTP store so tests
// and local runs exercise identical query paths.
type memoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]Vector
}

func NewMemoryStore() VectorStore {
	return &memoryStore{namespaces: make(map[string]map[string]Vector)}
}

func (s *memoryStore) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	const op = "upsert"
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, v := range vectors {
		if strings.TrimSpace(v.ID) == "" {
			return opErr(op, OpErrorValidation, "vector id is required", nil)
		}
		if len(v.Values) == 0 {
			return opErr(op, OpErrorValidation, fmt.Sprintf("vector %q has empty values", v.ID), nil)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.namespaces[namespace]
	if ns == nil {
		ns = make(map[string]Vector)
		s.namespaces[namespace] = ns
	}
	for _, v := range vectors {
		stored := Vector{
			ID:       v.ID,
			Values:   append([]float32(nil), v.Values...),
			Metadata: make(map[string]any, len(v.Metadata)),
		}
		for k, val := range v.Metadata {
			stored.Metadata[k] = val
		}
		ns[v.ID] = stored
	}
	return nil
}

func (s *memoryStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]VectorMatch, error) {
	const op = "query"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(q) == 0 {
		return nil, opErr(op, OpErrorValidation, "query vector required", nil)
	}
	if topK <= 0 {
		topK = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]VectorMatch, 0)
	for _, v := range s.namespaces[namespace] {
		ok, err := evalFilter(v.Metadata, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, VectorMatch{ID: v.ID, Score: cosineSimilarity(q, v.Values)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *memoryStore) QueryIDs(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]string, error) {
	matches, err := s.QueryMatches(ctx, namespace, q, topK, filter)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.ID)
	}
	return out, nil
}

func (s *memoryStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.namespaces[namespace]
	for _, id := range ids {
		delete(ns, id)
	}
	return nil
}

func evalFilter(meta, filter map[string]any) (bool, error) {
	const op = "filter_eval"
	for key, value := range filter {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		if strings.HasPrefix(k, "$") {
			switch strings.ToLower(k) {
			case filterOpAnd:
				items, err := toObjectSlice(value)
				if err != nil {
					return false, opErr(op, OpErrorValidation, "$and expects array of objects", err)
				}
				for _, item := range items {
					ok, err := evalFilter(meta, item)
					if err != nil || !ok {
						return false, err
					}
				}
			case filterOpOr:
				items, err := toObjectSlice(value)
				if err != nil {
					return false, opErr(op, OpErrorValidation, "$or expects array of objects", err)
				}
				anyMatched := false
				for _, item := range items {
					ok, err := evalFilter(meta, item)
					if err != nil {
						return false, err
					}
					if ok {
						anyMatched = true
						break
					}
				}
				if !anyMatched {
					return false, nil
				}
			case filterOpNot:
				item, ok := value.(map[string]any)
				if !ok {
					return false, opErr(op, OpErrorValidation, "$not expects an object", nil)
				}
				matched, err := evalFilter(meta, item)
				if err != nil {
					return false, err
				}
				if matched {
					return false, nil
				}
			default:
				return false, opErr(op, OpErrorUnsupportedFilter,
					fmt.Sprintf("unsupported top-level filter operator %q", k), nil)
			}
			continue
		}

		ok, err := evalFieldFilter(meta[k], value)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func evalFieldFilter(fieldValue, condition any) (bool, error) {
	const op = "filter_eval"
	operators, isOperatorMap := condition.(map[string]any)
	if !isOperatorMap {
		return scalarEqual(fieldValue, condition), nil
	}
	for o, opVal := range operators {
		switch strings.ToLower(strings.TrimSpace(o)) {
		case filterOpEq:
			if !scalarEqual(fieldValue, opVal) {
				return false, nil
			}
		case filterOpNe:
			if scalarEqual(fieldValue, opVal) {
				return false, nil
			}
		case filterOpIn:
			values, err := toScalarSlice(opVal)
			if err != nil {
				return false, opErr(op, OpErrorValidation, "$in expects scalar array", err)
			}
			anyMatched := false
			for _, v := range values {
				if scalarEqual(fieldValue, v) {
					anyMatched = true
					break
				}
			}
			if !anyMatched {
				return false, nil
			}
		default:
			return false, opErr(op, OpErrorUnsupportedFilter,
				fmt.Sprintf("unsupported filter operator %q", o), nil)
		}
	}
	return true, nil
}

func scalarEqual(a, b any) bool {
	av, aok := toScalarValue(a)
	bv, bok := toScalarValue(b)
	if !aok || !bok {
		return false
	}
	if af, ok := toFloat(av); ok {
		bf, ok := toFloat(bv)
		return ok && af == bf
	}
	return av == bv
}

func toFloat(v any) (float64, bool) {
	switch typed := v.(type) {
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case float64:
		return typed, true
	default:
		return 0, false
	}
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
