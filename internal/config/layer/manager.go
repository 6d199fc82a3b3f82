package layer

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Layer manager errors.
var (
	// ErrLayerNotFound is returned when no layer exists for a scope.
	ErrLayerNotFound = errors.New("layer not found")

	// ErrReadOnly is returned when writing to a read-only layer.
	ErrReadOnly = errors.New("layer is read-only")
)

// Manager manages the scoped layers and provides merged access.
type Manager struct {
	mu     sync.RWMutex
	layers map[Scope]*Layer
}

// NewManager creates a new layer manager with no layers.
func NewManager() *Manager {
	return &Manager{layers: make(map[Scope]*Layer)}
}

// AddLayer installs a layer, replacing any layer already held for its scope.
func (m *Manager) AddLayer(layer *Layer) {
	if layer == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers[layer.Scope] = layer
}

// RemoveLayer removes the layer for a scope.
// Returns true if a layer was removed.
func (m *Manager) RemoveLayer(scope Scope) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.layers[scope]; !ok {
		return false
	}
	delete(m.layers, scope)
	return true
}

// Layer returns a copy of the layer for a scope, or nil.
func (m *Manager) Layer(scope Scope) *Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.layers[scope]; ok {
		return l.Clone()
	}
	return nil
}

// HasLayer reports whether a layer exists for the scope.
func (m *Manager) HasLayer(scope Scope) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.layers[scope]
	return ok
}

// Inspect returns the explicit value of path at every scope.
func (m *Manager) Inspect(path string) Inspection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	insp := Inspection{Key: path}
	for _, scope := range Scopes {
		l, ok := m.layers[scope]
		if !ok {
			continue
		}
		if v, found := GetByPath(l.Data, path); found {
			insp.set(scope, cloneValue(v))
		}
	}
	return insp
}

// Get returns the effective value for a setting path and the scope it came
// from, searching from the most specific scope down.
func (m *Manager) Get(path string) (any, Scope, bool) {
	v, scope := m.Inspect(path).Effective()
	return v, scope, v != nil
}

// Set writes a value into the layer of a scope.
func (m *Manager) Set(scope Scope, path string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.writableLayer(scope)
	if err != nil {
		return err
	}
	if l.Data == nil {
		l.Data = make(map[string]any)
	}
	SetByPath(l.Data, path, value)
	l.ModTime = time.Now()
	return nil
}

// Delete removes a value from the layer of a scope.
// Returns true if a value was removed.
func (m *Manager) Delete(scope Scope, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.writableLayer(scope)
	if err != nil {
		return false, err
	}
	removed := DeleteByPath(l.Data, path)
	if removed {
		l.ModTime = time.Now()
	}
	return removed, nil
}

// Replace swaps the data of a scope's layer, creating the layer if needed,
// and returns the leaf paths whose value changed.
func (m *Manager) Replace(scope Scope, data map[string]any) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.layers[scope]
	if !ok {
		l = NewLayer(scope)
		m.layers[scope] = l
	}
	if data == nil {
		data = make(map[string]any)
	}
	changed := DiffPaths(l.Data, data)
	l.Data = cloneMap(data)
	l.ModTime = time.Now()
	return changed
}

// Merge combines all layers into a single configuration map, most specific
// scope last.
func (m *Manager) Merge() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]any)
	for _, scope := range Scopes {
		l, ok := m.layers[scope]
		if !ok {
			continue
		}
		for path, v := range FlattenMap(l.Data) {
			SetByPath(result, path, cloneValue(v))
		}
	}
	return result
}

// writableLayer must be called with mu held.
func (m *Manager) writableLayer(scope Scope) (*Layer, error) {
	l, ok := m.layers[scope]
	if !ok {
		return nil, fmt.Errorf("scope %s: %w", scope, ErrLayerNotFound)
	}
	if l.ReadOnly {
		return nil, fmt.Errorf("scope %s: %w", scope, ErrReadOnly)
	}
	return l, nil
}
