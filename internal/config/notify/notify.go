// Package notify delivers configuration change notifications.
//
// Observers subscribe either to every change or to a section path. A change
// to "typescript.experimental.useTsgo" is delivered to observers of that exact
// path and of every parent section ("typescript", "typescript.experimental").
package notify

import (
	"sort"
	"strings"
	"sync"

	"github.com/dshills/previewctl/internal/config/layer"
)

// ChangeType represents the type of configuration change.
type ChangeType int

const (
	// ChangeSet indicates a value was set or updated.
	ChangeSet ChangeType = iota

	// ChangeDelete indicates a value was deleted.
	ChangeDelete
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change represents a configuration change event.
type Change struct {
	// Path is the dot-separated path to the changed setting.
	Path string

	// Scope is the scope whose value changed.
	Scope layer.Scope

	// Type is the type of change.
	Type ChangeType

	// OldValue is the previous value at Scope (may be nil).
	OldValue any

	// NewValue is the new value at Scope (nil for deletes).
	NewValue any

	// Source identifies where the change came from ("update", "file").
	Source string
}

// Affects reports whether the change touches section, either exactly or as
// one of its parent sections.
func (c Change) Affects(section string) bool {
	return section == c.Path || isParentPath(section, c.Path)
}

// Observer is called when configuration changes occur.
type Observer func(change Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	notifier *Notifier
	once     sync.Once
}

// Dispose removes this subscription. It is safe to call more than once.
func (s *Subscription) Dispose() error {
	s.once.Do(func() {
		if s.notifier != nil {
			s.notifier.unsubscribe(s.id)
		}
	})
	return nil
}

type entry struct {
	id       uint64
	path     string
	observer Observer
}

// Notifier manages configuration change subscriptions.
// Delivery is synchronous, in subscription order, outside the lock.
type Notifier struct {
	mu      sync.RWMutex
	entries map[uint64]entry
	nextID  uint64
	closed  bool
}

// New creates a new Notifier.
func New() *Notifier {
	return &Notifier{entries: make(map[uint64]entry)}
}

// Subscribe registers an observer for all changes.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.SubscribePath("", observer)
}

// SubscribePath registers an observer for changes at or below path.
func (n *Notifier) SubscribePath(path string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.entries[id] = entry{id: id, path: path, observer: observer}
	return &Subscription{id: id, notifier: n}
}

// Notify sends a change notification to all matching observers.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	matched := make([]entry, 0, len(n.entries))
	for _, e := range n.entries {
		if e.observer == nil {
			continue
		}
		if e.path == "" || change.Affects(e.path) {
			matched = append(matched, e)
		}
	}
	n.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].id < matched[j].id })
	for _, e := range matched {
		e.observer(change)
	}
}

// Len returns the number of active subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.entries)
}

// Close drops every subscription and stops delivery. It is safe to call
// Close multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.entries = make(map[uint64]entry)
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.entries, id)
}

// isParentPath checks if parent is a parent path of child.
// e.g., "typescript" is parent of "typescript.experimental.useTsgo".
func isParentPath(parent, child string) bool {
	if parent == "" || len(parent) >= len(child) {
		return false
	}
	return strings.HasPrefix(child, parent) && child[len(parent)] == '.'
}
