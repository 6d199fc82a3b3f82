package ui

import (
	"sync"

	"github.com/dshills/previewctl/internal/host"
)

// StatusItem is a status bar entry of a Window.
type StatusItem struct {
	id        string
	alignment host.Alignment
	priority  int
	window    *Window

	mu       sync.Mutex
	text     string
	tooltip  string
	command  string
	visible  bool
	disposed bool
}

// ID implements host.StatusItem.
func (s *StatusItem) ID() string { return s.id }

// SetText implements host.StatusItem.
func (s *StatusItem) SetText(text string) {
	if s.update(func() { s.text = text }) {
		s.window.statusChanged()
	}
}

// SetTooltip implements host.StatusItem.
func (s *StatusItem) SetTooltip(tooltip string) {
	s.update(func() { s.tooltip = tooltip })
}

// SetCommand implements host.StatusItem.
func (s *StatusItem) SetCommand(id string) {
	s.update(func() { s.command = id })
}

// Show implements host.StatusItem.
func (s *StatusItem) Show() {
	s.setVisible(true)
}

// Hide implements host.StatusItem.
func (s *StatusItem) Hide() {
	s.setVisible(false)
}

// Dispose implements host.Disposable.
func (s *StatusItem) Dispose() error {
	s.mu.Lock()
	wasVisible := s.visible && !s.disposed
	s.disposed = true
	s.mu.Unlock()

	s.window.mu.Lock()
	if s.window.items[s.id] == s {
		delete(s.window.items, s.id)
	}
	s.window.mu.Unlock()

	if wasVisible {
		s.window.statusChanged()
	}
	return nil
}

// Text returns the item text.
func (s *StatusItem) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Tooltip returns the item tooltip.
func (s *StatusItem) Tooltip() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tooltip
}

// Command returns the command run when the item is clicked.
func (s *StatusItem) Command() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.command
}

func (s *StatusItem) isVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible && !s.disposed
}

func (s *StatusItem) setVisible(v bool) {
	s.mu.Lock()
	changed := !s.disposed && s.visible != v
	s.visible = v
	s.mu.Unlock()
	if changed {
		s.window.statusChanged()
	}
}

// update applies fn and reports whether a visible item changed.
func (s *StatusItem) update(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return false
	}
	fn()
	return s.visible
}
