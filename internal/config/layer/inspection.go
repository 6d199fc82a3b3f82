package layer

// Inspection is the per-scope view of a single setting. A nil field means the
// scope holds no explicit value for the key.
type Inspection struct {
	Key                  string
	DefaultValue         any
	GlobalValue          any
	WorkspaceValue       any
	WorkspaceFolderValue any
}

// Value returns the explicit value held at scope, or nil.
func (i Inspection) Value(scope Scope) any {
	switch scope {
	case ScopeDefault:
		return i.DefaultValue
	case ScopeGlobal:
		return i.GlobalValue
	case ScopeWorkspace:
		return i.WorkspaceValue
	case ScopeWorkspaceFolder:
		return i.WorkspaceFolderValue
	default:
		return nil
	}
}

// Effective returns the value the host applies and the scope providing it.
// Returns ScopeUnset and nil when no scope, not even the defaults, has a value.
func (i Inspection) Effective() (any, Scope) {
	for idx := len(Scopes) - 1; idx >= 0; idx-- {
		if v := i.Value(Scopes[idx]); v != nil {
			return v, Scopes[idx]
		}
	}
	return nil, ScopeUnset
}

func (i *Inspection) set(scope Scope, value any) {
	switch scope {
	case ScopeDefault:
		i.DefaultValue = value
	case ScopeGlobal:
		i.GlobalValue = value
	case ScopeWorkspace:
		i.WorkspaceValue = value
	case ScopeWorkspaceFolder:
		i.WorkspaceFolderValue = value
	}
}
