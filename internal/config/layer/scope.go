// Package layer holds the scoped configuration layers of the settings store.
//
// Every scope owns at most one layer. Lookups walk the layers from the most
// specific scope (workspace folder) down to the built-in defaults, which is
// the precedence the host applies when computing an effective value.
package layer

import (
	"fmt"
	"strings"
)

// Scope identifies the granularity at which a setting override is persisted.
type Scope uint8

const (
	// ScopeUnset means no scope holds an explicit value. Writes targeting it
	// go to the host's default write scope.
	ScopeUnset Scope = iota
	// ScopeDefault holds the built-in defaults. It is never written.
	ScopeDefault
	// ScopeGlobal holds user-wide settings.
	ScopeGlobal
	// ScopeWorkspace holds settings shared by the open workspace.
	ScopeWorkspace
	// ScopeWorkspaceFolder holds settings of a single workspace folder.
	ScopeWorkspaceFolder
)

// Scopes lists the layered scopes in ascending precedence.
var Scopes = []Scope{ScopeDefault, ScopeGlobal, ScopeWorkspace, ScopeWorkspaceFolder}

// String returns a human-readable name for the scope.
func (s Scope) String() string {
	switch s {
	case ScopeUnset:
		return "unset"
	case ScopeDefault:
		return "default"
	case ScopeGlobal:
		return "global"
	case ScopeWorkspace:
		return "workspace"
	case ScopeWorkspaceFolder:
		return "workspaceFolder"
	default:
		return "unknown"
	}
}

// Writable reports whether values can be persisted at this scope.
func (s Scope) Writable() bool {
	return s == ScopeGlobal || s == ScopeWorkspace || s == ScopeWorkspaceFolder
}

// ParseScope parses a scope name as produced by String.
func ParseScope(name string) (Scope, error) {
	switch strings.ToLower(name) {
	case "", "unset":
		return ScopeUnset, nil
	case "default":
		return ScopeDefault, nil
	case "global", "user":
		return ScopeGlobal, nil
	case "workspace":
		return ScopeWorkspace, nil
	case "workspacefolder", "folder":
		return ScopeWorkspaceFolder, nil
	default:
		return ScopeUnset, fmt.Errorf("unknown scope %q", name)
	}
}
