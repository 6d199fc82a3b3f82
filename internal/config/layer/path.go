package layer

import (
	"reflect"
	"strings"
)

// GetByPath retrieves a value from a nested map using a dot-separated path.
func GetByPath(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}

	current := any(data)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		val, exists := m[part]
		if !exists {
			return nil, false
		}
		current = val
	}
	return current, true
}

// SetByPath sets a value in a nested map using a dot-separated path,
// creating intermediate maps as needed.
func SetByPath(data map[string]any, path string, value any) {
	if data == nil || path == "" {
		return
	}

	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// DeleteByPath removes a value from a nested map using a dot-separated path.
// Intermediate maps left empty by the deletion are pruned.
// Returns true if the value was found and deleted.
func DeleteByPath(data map[string]any, path string) bool {
	if data == nil || path == "" {
		return false
	}
	return deleteParts(data, strings.Split(path, "."))
}

func deleteParts(m map[string]any, parts []string) bool {
	if len(parts) == 1 {
		if _, ok := m[parts[0]]; !ok {
			return false
		}
		delete(m, parts[0])
		return true
	}

	next, ok := m[parts[0]].(map[string]any)
	if !ok {
		return false
	}
	if !deleteParts(next, parts[1:]) {
		return false
	}
	if len(next) == 0 {
		delete(m, parts[0])
	}
	return true
}

// FlattenMap flattens a nested map into a single-level map with
// dot-separated keys.
func FlattenMap(data map[string]any) map[string]any {
	result := make(map[string]any)
	flatten(data, "", result)
	return result
}

func flatten(data map[string]any, prefix string, result map[string]any) {
	for key, val := range data {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok && len(nested) > 0 {
			flatten(nested, fullKey, result)
			continue
		}
		result[fullKey] = val
	}
}

// UnflattenMap converts a map with dot-separated keys into a nested map.
// Keys that are already nested are merged in place.
func UnflattenMap(data map[string]any) map[string]any {
	result := make(map[string]any)
	for key, val := range data {
		if nested, ok := val.(map[string]any); ok {
			for sub, subVal := range FlattenMap(nested) {
				SetByPath(result, key+"."+sub, subVal)
			}
			continue
		}
		SetByPath(result, key, val)
	}
	return result
}

// DiffPaths returns every leaf path whose value differs between old and new,
// including paths present in only one of them.
func DiffPaths(old, new map[string]any) []string {
	oldFlat := FlattenMap(old)
	newFlat := FlattenMap(new)

	var changed []string
	for path, newVal := range newFlat {
		if oldVal, ok := oldFlat[path]; !ok || !ValuesEqual(oldVal, newVal) {
			changed = append(changed, path)
		}
	}
	for path := range oldFlat {
		if _, ok := newFlat[path]; !ok {
			changed = append(changed, path)
		}
	}
	return changed
}

// ValuesEqual compares two decoded configuration values.
func ValuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
