package objpath

import "sort"

// DeepCopy returns a copy of a JSON tree. Maps and slices are copied
// recursively; scalars are shared.
func DeepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CopyMap(val)
	case []any:
		clone := make([]any, len(val))
		for i, item := range val {
			clone[i] = DeepCopy(item)
		}
		return clone
	default:
		return v
	}
}

// CopyMap deep-copies an object.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = DeepCopy(v)
	}
	return result
}

// OmitDeep removes the given keys from every object in the tree, in place.
func OmitDeep(v any, keys ...string) {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range keys {
			delete(val, k)
		}
		for _, child := range val {
			OmitDeep(child, keys...)
		}
	case []any:
		for _, item := range val {
			OmitDeep(item, keys...)
		}
	}
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
