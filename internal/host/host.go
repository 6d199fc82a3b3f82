// Package host declares the editor host collaborators the controller talks
// to, together with the small runtime pieces (event loop, detached tasks,
// disposables) every host implementation shares.
package host

import (
	"context"

	"github.com/dshills/previewctl/internal/config/layer"
	"github.com/dshills/previewctl/internal/config/notify"
)

// Disposable is a handle whose release undoes a registration.
type Disposable interface {
	Dispose() error
}

// Configuration is the host's scoped settings service.
type Configuration interface {
	// Inspect returns the explicit value of section at every scope.
	Inspect(section string) layer.Inspection

	// Get returns the effective value of section.
	Get(section string) (any, bool)

	// Update writes value at scope. ScopeUnset selects the host default
	// scope. A nil value removes the explicit setting.
	Update(ctx context.Context, section string, value any, scope layer.Scope) error

	// OnDidChange subscribes to configuration changes.
	OnDidChange(observer notify.Observer) Disposable
}

// CommandHandler runs a registered command.
type CommandHandler func(ctx context.Context, args ...any) (any, error)

// Commands is the host's command registry.
type Commands interface {
	RegisterCommand(id string, handler CommandHandler) (Disposable, error)
	ExecuteCommand(ctx context.Context, id string, args ...any) (any, error)

	// SetContext sets a context key used by the host's when-clauses.
	SetContext(key string, value any)
}

// QuickPickItem is a selectable entry of a quick pick.
type QuickPickItem struct {
	Label       string
	Description string
}

// Window is the host's user interface surface.
type Window interface {
	CreateOutputChannel(name string) OutputChannel
	CreateStatusItem(id string, alignment Alignment, priority int) StatusItem

	// ShowQuickPick presents items and returns the chosen index, or -1 when
	// the pick was dismissed.
	ShowQuickPick(ctx context.Context, items []QuickPickItem, placeholder string) (int, error)

	// ShowInformationMessage shows message with optional buttons and returns
	// the chosen button, or "" when dismissed or when there are no buttons.
	ShowInformationMessage(ctx context.Context, message string, buttons ...string) (string, error)

	// ShowErrorMessage is ShowInformationMessage at error severity.
	ShowErrorMessage(ctx context.Context, message string, buttons ...string) (string, error)
}

// OutputChannel is a named, append-only log pane.
type OutputChannel interface {
	Name() string
	Append(text string)
	AppendLine(line string)
	Write(p []byte) (int, error)
	Show()
	Disposable
}

// Alignment places a status item.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// StatusItem is an entry of the host status bar.
type StatusItem interface {
	ID() string
	SetText(text string)
	SetTooltip(tooltip string)
	SetCommand(commandID string)
	Show()
	Hide()
	Disposable
}

// Client is the language server client owned by an active feature bundle.
type Client interface {
	// Initialize starts the server. The returned handle stops it.
	Initialize(ctx context.Context) (Disposable, error)

	// Restart stops and starts the server again.
	Restart(ctx context.Context) error

	// Version reports the server version, or "" before initialization.
	Version() string
}

// Restarter asks the host to restart its extension subsystem.
type Restarter interface {
	RequestRestart(ctx context.Context) error
}

// Mode is the host run mode.
type Mode int

const (
	ModeProduction Mode = iota
	ModeDevelopment
	ModeTest
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeProduction:
		return "production"
	case ModeDevelopment:
		return "development"
	case ModeTest:
		return "test"
	default:
		return "unknown"
	}
}

// Environment describes the running host.
type Environment struct {
	Mode Mode

	// Version is the host version (semver).
	Version string
}
