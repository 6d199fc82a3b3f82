package notify

import (
	"testing"

	"github.com/dshills/previewctl/internal/config/layer"
)

const flag = "typescript.experimental.useTsgo"

func TestChange_Affects(t *testing.T) {
	c := Change{Path: flag}

	tests := []struct {
		section string
		want    bool
	}{
		{flag, true},
		{"typescript", true},
		{"typescript.experimental", true},
		{"typescript.exp", false},
		{"typescript.experimental.useTsgo.extra", false},
		{"editor", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := c.Affects(tt.section); got != tt.want {
			t.Errorf("Affects(%q) = %v, want %v", tt.section, got, tt.want)
		}
	}
}

func TestNotifier_SubscribeAll(t *testing.T) {
	n := New()
	var got []Change
	n.Subscribe(func(c Change) { got = append(got, c) })

	n.Notify(Change{Path: flag, Scope: layer.ScopeGlobal, NewValue: true})
	n.Notify(Change{Path: "editor.tabSize", Scope: layer.ScopeWorkspace, NewValue: 2})

	if len(got) != 2 {
		t.Fatalf("received %d changes, want 2", len(got))
	}
	if got[0].Scope != layer.ScopeGlobal || got[0].NewValue != true {
		t.Errorf("unexpected first change: %+v", got[0])
	}
}

func TestNotifier_SubscribePath(t *testing.T) {
	n := New()
	count := 0
	n.SubscribePath("typescript", func(Change) { count++ })

	n.Notify(Change{Path: flag})
	n.Notify(Change{Path: "editor.tabSize"})

	if count != 1 {
		t.Errorf("path observer called %d times, want 1", count)
	}
}

func TestNotifier_DeliveryOrder(t *testing.T) {
	n := New()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		n.Subscribe(func(Change) { order = append(order, i) })
	}

	n.Notify(Change{Path: flag})
	for i, v := range order {
		if v != i {
			t.Fatalf("delivery order = %v", order)
		}
	}
}

func TestSubscription_Dispose(t *testing.T) {
	n := New()
	count := 0
	sub := n.Subscribe(func(Change) { count++ })

	if err := sub.Dispose(); err != nil {
		t.Fatal(err)
	}
	_ = sub.Dispose()
	n.Notify(Change{Path: flag})

	if count != 0 {
		t.Errorf("disposed observer called %d times", count)
	}
	if n.Len() != 0 {
		t.Errorf("Len() = %d, want 0", n.Len())
	}
}

func TestNotifier_Close(t *testing.T) {
	n := New()
	count := 0
	n.Subscribe(func(Change) { count++ })

	n.Close()
	n.Close()
	n.Notify(Change{Path: flag})

	if count != 0 {
		t.Error("closed notifier delivered a change")
	}
}

func TestChangeType_String(t *testing.T) {
	if ChangeSet.String() != "set" || ChangeDelete.String() != "delete" || ChangeType(9).String() != "unknown" {
		t.Error("unexpected ChangeType names")
	}
}
