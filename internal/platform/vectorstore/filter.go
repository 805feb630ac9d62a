package vectorstore

import (
	"fmt"
	"sort"
	"strings"
)

const (
	filterOpAnd = "$and"
	filterOpOr  = "$or"
	filterOpNot = "$not"
	filterOpIn  = "$in"
	filterOpEq  = "$eq"
	filterOpNe  = "$ne"
)

type qdrantFilter struct {
	Must    []any
	Should  []any
	MustNot []any
}

func (f qdrantFilter) asMap() map[string]any {
	out := map[string]any{}
	if len(f.Must) > 0 {
		out["must"] = f.Must
	}
	if len(f.Should) > 0 {
		out["should"] = f.Should
	}
	if len(f.MustNot) > 0 {
		out["must_not"] = f.MustNot
	}
	return out
}

func (f *qdrantFilter) merge(src qdrantFilter) {
	f.Must = append(f.Must, src.Must...)
	f.Should = append(f.Should, src.Should...)
	f.MustNot = append(f.MustNot, src.MustNot...)
}

// translateQueryFilter converts a mongo-style filter into Qdrant's
// must/should/must_not form, always pinning the namespace condition so one
// collection can hold many isolated namespaces.
func translateQueryFilter(qualifiedNS string, filter map[string]any) (map[string]any, error) {
	base := qdrantFilter{
		Must: []any{matchCondition(payloadNamespaceKey, qualifiedNS)},
	}
	if len(filter) == 0 {
		return base.asMap(), nil
	}
	translated, err := translateFilterMap(filter)
	if err != nil {
		return nil, err
	}
	base.merge(translated)
	return base.asMap(), nil
}

func translateFilterMap(filter map[string]any) (qdrantFilter, error) {
	const op = "filter_translate"
	out := qdrantFilter{}

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := filter[key]
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}

		if strings.HasPrefix(k, "$") {
			switch strings.ToLower(k) {
			case filterOpAnd, filterOpOr:
				items, err := toObjectSlice(value)
				if err != nil {
					return qdrantFilter{}, opErr(op, OpErrorValidation,
						fmt.Sprintf("operator %s expects array of objects", k), err)
				}
				for _, item := range items {
					sub, err := translateFilterMap(item)
					if err != nil {
						return qdrantFilter{}, err
					}
					if strings.ToLower(k) == filterOpAnd {
						out.Must = append(out.Must, sub.asMap())
					} else {
						out.Should = append(out.Should, sub.asMap())
					}
				}
			case filterOpNot:
				item, ok := value.(map[string]any)
				if !ok {
					return qdrantFilter{}, opErr(op, OpErrorValidation,
						fmt.Sprintf("operator %s expects an object", filterOpNot), nil)
				}
				sub, err := translateFilterMap(item)
				if err != nil {
					return qdrantFilter{}, err
				}
				out.MustNot = append(out.MustNot, sub.asMap())
			default:
				return qdrantFilter{}, opErr(op, OpErrorUnsupportedFilter,
					fmt.Sprintf("unsupported top-level filter operator %q", k), nil)
			}
			continue
		}

		fieldPart, err := translateFieldFilter(k, value)
		if err != nil {
			return qdrantFilter{}, err
		}
		out.merge(fieldPart)
	}
	return out, nil
}

func translateFieldFilter(field string, value any) (qdrantFilter, error) {
	const op = "filter_translate"
	out := qdrantFilter{}

	operators, isOperatorMap := value.(map[string]any)
	if !isOperatorMap {
		scalar, ok := toScalarValue(value)
		if !ok {
			return qdrantFilter{}, opErr(op, OpErrorValidation,
				fmt.Sprintf("field %q expects scalar value or operator object", field), nil)
		}
		out.Must = append(out.Must, matchCondition(field, scalar))
		return out, nil
	}

	if len(operators) == 0 {
		return qdrantFilter{}, opErr(op, OpErrorValidation,
			fmt.Sprintf("field %q has empty operator map", field), nil)
	}

	ops := make([]string, 0, len(operators))
	for o := range operators {
		ops = append(ops, o)
	}
	sort.Strings(ops)

	for _, o := range ops {
		opVal := operators[o]
		switch strings.ToLower(strings.TrimSpace(o)) {
		case filterOpEq:
			scalar, ok := toScalarValue(opVal)
			if !ok {
				return qdrantFilter{}, opErr(op, OpErrorValidation,
					fmt.Sprintf("operator %s for field %q expects scalar value", filterOpEq, field), nil)
			}
			out.Must = append(out.Must, matchCondition(field, scalar))
		case filterOpNe:
			scalar, ok := toScalarValue(opVal)
			if !ok {
				return qdrantFilter{}, opErr(op, OpErrorValidation,
					fmt.Sprintf("operator %s for field %q expects scalar value", filterOpNe, field), nil)
			}
			out.MustNot = append(out.MustNot, matchCondition(field, scalar))
		case filterOpIn:
			values, err := toScalarSlice(opVal)
			if err != nil || len(values) == 0 {
				return qdrantFilter{}, opErr(op, OpErrorValidation,
					fmt.Sprintf("operator %s for field %q expects non-empty scalar array", filterOpIn, field), err)
			}
			out.Must = append(out.Must, map[string]any{
				"key":   field,
				"match": map[string]any{"any": values},
			})
		default:
			return qdrantFilter{}, opErr(op, OpErrorUnsupportedFilter,
				fmt.Sprintf("unsupported filter operator %q for field %q", o, field), nil)
		}
	}
	return out, nil
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func toObjectSlice(value any) ([]map[string]any, error) {
	rawSlice, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected []any, got %T", value)
	}
	out := make([]map[string]any, 0, len(rawSlice))
	for _, item := range rawSlice {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected map[string]any in array, got %T", item)
		}
		out = append(out, obj)
	}
	return out, nil
}

func toScalarSlice(value any) ([]any, error) {
	switch typed := value.(type) {
	case []any:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			scalar, ok := toScalarValue(v)
			if !ok {
				return nil, fmt.Errorf("expected scalar, got %T", v)
			}
			out = append(out, scalar)
		}
		return out, nil
	case []string:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []int:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []float64:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected scalar array, got %T", value)
	}
}

func toScalarValue(value any) (any, bool) {
	switch typed := value.(type) {
	case string, bool, int, int64, uint64, float64:
		return typed, true
	case int8:
		return int(typed), true
	case int16:
		return int(typed), true
	case int32:
		return int(typed), true
	case uint:
		return uint64(typed), true
	case uint8:
		return uint64(typed), true
	case uint16:
		return uint64(typed), true
	case uint32:
		return uint64(typed), true
	case float32:
		return float64(typed), true
	default:
		return nil, false
	}
}
