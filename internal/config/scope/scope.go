// Package scope resolves which configuration scope a setting write targets.
//
// A toggle must update the scope the user (or a workspace's shared settings)
// already chose. Writing anywhere else would create a second override and
// later reads would observe conflicting values across scopes.
package scope

import "github.com/dshills/previewctl/internal/config/layer"

// Inspector exposes per-scope override visibility for a setting.
type Inspector interface {
	Inspect(path string) layer.Inspection
}

// writeOrder lists the override sites from most to least specific.
var writeOrder = []layer.Scope{
	layer.ScopeWorkspaceFolder,
	layer.ScopeWorkspace,
	layer.ScopeGlobal,
}

// ResolveWriteScope returns the most specific scope holding an explicit
// value, or layer.ScopeUnset when none does. Defaults are never considered.
func ResolveWriteScope(insp layer.Inspection) layer.Scope {
	for _, s := range writeOrder {
		if insp.Value(s) != nil {
			return s
		}
	}
	return layer.ScopeUnset
}

// Resolver resolves write scopes against a live configuration.
type Resolver struct {
	config Inspector
}

// NewResolver creates a resolver over the given configuration.
func NewResolver(config Inspector) *Resolver {
	return &Resolver{config: config}
}

// ResolveWriteScope inspects settingID and returns its write scope.
func (r *Resolver) ResolveWriteScope(settingID string) layer.Scope {
	return ResolveWriteScope(r.config.Inspect(settingID))
}
