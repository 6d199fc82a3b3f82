package layer

import (
	"errors"
	"sort"
	"testing"
)

const flag = "typescript.experimental.useTsgo"

func newTestManager() *Manager {
	m := NewManager()
	defaults := NewLayer(ScopeDefault)
	SetByPath(defaults.Data, flag, false)
	m.AddLayer(defaults)
	m.AddLayer(NewLayer(ScopeGlobal))
	m.AddLayer(NewLayer(ScopeWorkspace))
	m.AddLayer(NewLayer(ScopeWorkspaceFolder))
	return m
}

func TestManager_InspectAndPrecedence(t *testing.T) {
	m := newTestManager()

	if v, scope, ok := m.Get(flag); !ok || v != false || scope != ScopeDefault {
		t.Fatalf("Get() = %v, %v, %v; want false from defaults", v, scope, ok)
	}

	if err := m.Set(ScopeGlobal, flag, true); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(ScopeWorkspace, flag, false); err != nil {
		t.Fatal(err)
	}

	insp := m.Inspect(flag)
	if insp.GlobalValue != true || insp.WorkspaceValue != false || insp.WorkspaceFolderValue != nil {
		t.Errorf("unexpected inspection: %+v", insp)
	}
	if v, scope := insp.Effective(); v != false || scope != ScopeWorkspace {
		t.Errorf("Effective() = %v, %v; want false, workspace", v, scope)
	}
}

func TestManager_SetReadOnlyAndMissing(t *testing.T) {
	m := NewManager()
	m.AddLayer(NewLayer(ScopeDefault))

	if err := m.Set(ScopeDefault, flag, true); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Set(default) error = %v, want ErrReadOnly", err)
	}
	if err := m.Set(ScopeGlobal, flag, true); !errors.Is(err, ErrLayerNotFound) {
		t.Errorf("Set(global) error = %v, want ErrLayerNotFound", err)
	}
}

func TestManager_Delete(t *testing.T) {
	m := newTestManager()
	_ = m.Set(ScopeWorkspaceFolder, flag, true)

	removed, err := m.Delete(ScopeWorkspaceFolder, flag)
	if err != nil || !removed {
		t.Fatalf("Delete() = %v, %v", removed, err)
	}
	if v := m.Inspect(flag).WorkspaceFolderValue; v != nil {
		t.Errorf("value still present: %v", v)
	}
	if l := m.Layer(ScopeWorkspaceFolder); len(l.Data) != 0 {
		t.Errorf("empty parents not pruned: %v", l.Data)
	}

	removed, _ = m.Delete(ScopeWorkspaceFolder, flag)
	if removed {
		t.Error("second Delete() should report nothing removed")
	}
}

func TestManager_Replace(t *testing.T) {
	m := newTestManager()
	_ = m.Set(ScopeGlobal, "editor.tabSize", 4)

	changed := m.Replace(ScopeGlobal, map[string]any{
		"editor": map[string]any{"tabSize": 4},
		"typescript": map[string]any{
			"experimental": map[string]any{"useTsgo": true},
		},
	})
	if len(changed) != 1 || changed[0] != flag {
		t.Errorf("Replace() changed = %v, want [%s]", changed, flag)
	}

	changed = m.Replace(ScopeGlobal, nil)
	sort.Strings(changed)
	if len(changed) != 2 {
		t.Errorf("Replace(nil) changed = %v, want both keys", changed)
	}
}

func TestManager_LayerIsCopy(t *testing.T) {
	m := newTestManager()
	_ = m.Set(ScopeGlobal, flag, true)

	l := m.Layer(ScopeGlobal)
	SetByPath(l.Data, flag, false)

	if v := m.Inspect(flag).GlobalValue; v != true {
		t.Errorf("mutating a returned layer changed the manager: %v", v)
	}
}

func TestManager_Merge(t *testing.T) {
	m := newTestManager()
	_ = m.Set(ScopeGlobal, "editor.tabSize", 2)
	_ = m.Set(ScopeWorkspace, flag, true)

	merged := m.Merge()
	if v, _ := GetByPath(merged, flag); v != true {
		t.Errorf("merged flag = %v, want true", v)
	}
	if v, _ := GetByPath(merged, "editor.tabSize"); v != 2 {
		t.Errorf("merged tabSize = %v, want 2", v)
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"global", ScopeGlobal, false},
		{"user", ScopeGlobal, false},
		{"workspace", ScopeWorkspace, false},
		{"workspaceFolder", ScopeWorkspaceFolder, false},
		{"", ScopeUnset, false},
		{"machine", ScopeUnset, true},
	}
	for _, tt := range tests {
		got, err := ParseScope(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseScope(%q) = %v, %v", tt.in, got, err)
		}
		if err == nil && tt.in != "" && tt.in != "user" && got.String() != tt.in {
			t.Errorf("%v.String() = %q, want %q", got, got.String(), tt.in)
		}
	}
}

func TestScope_Writable(t *testing.T) {
	for _, s := range []Scope{ScopeGlobal, ScopeWorkspace, ScopeWorkspaceFolder} {
		if !s.Writable() {
			t.Errorf("%v should be writable", s)
		}
	}
	for _, s := range []Scope{ScopeUnset, ScopeDefault} {
		if s.Writable() {
			t.Errorf("%v should not be writable", s)
		}
	}
}
