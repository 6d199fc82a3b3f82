package layer

import "time"

// Layer represents the settings persisted at a single scope.
type Layer struct {
	// Scope is the scope this layer represents.
	Scope Scope

	// Path is the settings file backing the layer, if any.
	Path string

	// Data holds the configuration values as a nested map.
	Data map[string]any

	// ModTime is when the layer was last loaded or modified.
	ModTime time.Time

	// ReadOnly prevents modifications to this layer.
	ReadOnly bool
}

// NewLayer creates an empty layer for the given scope.
func NewLayer(scope Scope) *Layer {
	return &Layer{
		Scope:    scope,
		Data:     make(map[string]any),
		ModTime:  time.Now(),
		ReadOnly: scope == ScopeDefault,
	}
}

// NewLayerWithData creates a layer with initial data.
func NewLayerWithData(scope Scope, data map[string]any) *Layer {
	l := NewLayer(scope)
	if data != nil {
		l.Data = data
	}
	return l
}

// Clone creates a deep copy of the layer.
func (l *Layer) Clone() *Layer {
	return &Layer{
		Scope:    l.Scope,
		Path:     l.Path,
		Data:     cloneMap(l.Data),
		ModTime:  l.ModTime,
		ReadOnly: l.ReadOnly,
	}
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, val := range src {
		dst[key] = cloneValue(val)
	}
	return dst
}

func cloneValue(val any) any {
	switch v := val.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		dst := make([]any, len(v))
		for i, item := range v {
			dst[i] = cloneValue(item)
		}
		return dst
	default:
		return val
	}
}
