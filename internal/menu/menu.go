// Package menu is the add-on's quick pick over a fixed subset of its
// commands.
package menu

import (
	"context"
	"fmt"

	"github.com/dshills/previewctl/internal/command"
	"github.com/dshills/previewctl/internal/host"
	"github.com/dshills/previewctl/internal/logging"
)

// Placeholder is the quick pick prompt.
const Placeholder = "TypeScript Native Preview Commands"

// Action is one menu entry bound to a command id.
type Action struct {
	Label       string
	Description string
	CommandID   string
}

// Default returns the menu entries in display order.
func Default() []Action {
	return []Action{
		{
			Label:       "$(refresh) Restart Server",
			Description: "Restart the TypeScript Native Preview language server",
			CommandID:   command.Restart,
		},
		{
			Label:       "$(output) Show TS Server Log",
			Description: "Show the TypeScript Native Preview server log",
			CommandID:   command.OutputFocus,
		},
		{
			Label:       "$(debug-console) Show LSP Messages",
			Description: "Show the LSP communication trace",
			CommandID:   command.TraceFocus,
		},
		{
			Label:       "$(stop-circle) Disable TypeScript Native Preview",
			Description: "Switch back to the built-in TypeScript extension",
			CommandID:   command.Disable,
		},
	}
}

// Menu presents its actions and runs the chosen one. It holds no state
// beyond the action list.
type Menu struct {
	window   host.Window
	commands host.Commands
	actions  []Action
}

// New creates a menu over actions, or over Default() when none are given.
func New(window host.Window, commands host.Commands, actions ...Action) *Menu {
	if len(actions) == 0 {
		actions = Default()
	}
	return &Menu{
		window:   window,
		commands: commands,
		actions:  append([]Action(nil), actions...),
	}
}

// Actions returns a copy of the menu entries.
func (m *Menu) Actions() []Action {
	return append([]Action(nil), m.actions...)
}

// Runner runs detached work.
type Runner interface {
	Go(name string, fn func(ctx context.Context) error)
}

// Poster queues work on the host event loop.
type Poster interface {
	Post(fn func()) bool
}

// Show presents the menu and runs the chosen command. Dismissing it is not
// an error.
func (m *Menu) Show(ctx context.Context) error {
	id, err := m.choose(ctx)
	if err != nil || id == "" {
		return err
	}
	return m.run(ctx, id)
}

func (m *Menu) choose(ctx context.Context) (string, error) {
	items := make([]host.QuickPickItem, len(m.actions))
	for i, a := range m.actions {
		items[i] = host.QuickPickItem{Label: a.Label, Description: a.Description}
	}

	idx, err := m.window.ShowQuickPick(ctx, items, Placeholder)
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(m.actions) {
		return "", nil
	}
	return m.actions[idx].CommandID, nil
}

func (m *Menu) run(ctx context.Context, id string) error {
	if _, err := m.commands.ExecuteCommand(ctx, id); err != nil {
		return fmt.Errorf("menu %s: %w", id, err)
	}
	return nil
}

// Handler adapts Show to a command handler. The handler returns once the
// chosen command has run.
func (m *Menu) Handler() host.CommandHandler {
	return func(ctx context.Context, _ ...any) (any, error) {
		return nil, m.Show(ctx)
	}
}

// Detached returns a command handler that returns at once. The choice is
// awaited in a task, and the chosen command is posted back to loop, so the
// loop keeps running while the picker is open.
func (m *Menu) Detached(tasks Runner, loop Poster, logger *logging.Logger) host.CommandHandler {
	if logger == nil {
		logger = logging.NullLogger
	}
	return func(context.Context, ...any) (any, error) {
		tasks.Go("menu", func(ctx context.Context) error {
			id, err := m.choose(ctx)
			if err != nil || id == "" {
				return err
			}
			if !loop.Post(func() {
				if err := m.run(ctx, id); err != nil {
					logger.Warn("%v", err)
				}
			}) {
				return fmt.Errorf("menu %s: %w", id, host.ErrLoopStopped)
			}
			return nil
		})
		return nil, nil
	}
}
