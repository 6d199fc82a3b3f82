// Package feature starts and stops the bundle of in-process features that
// make up the native preview: its language commands, status items and the
// language server client.
package feature

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dshills/previewctl/internal/command"
	"github.com/dshills/previewctl/internal/host"
	"github.com/dshills/previewctl/internal/logging"
	"github.com/dshills/previewctl/internal/menu"
	"github.com/dshills/previewctl/internal/metrics"
)

// Status item ids.
const (
	StatusItemID  = command.Prefix + ".status"
	VersionItemID = command.Prefix + ".version"
)

// Activation results recorded in metrics.
const (
	resultSuccess       = "success"
	resultError         = "error"
	resultAlreadyActive = "already_active"
)

// Config holds the collaborators a bundle is built from.
type Config struct {
	Commands host.Commands
	Window   host.Window

	// Output is the server log channel, Trace the LSP message channel.
	Output host.OutputChannel
	Trace  host.OutputChannel

	// NewClient creates the client of one activation.
	NewClient func() host.Client

	// Tasks and Loop, when both set, move the blocking parts of the
	// language commands off the loop: the menu waits for its choice in a
	// task and posts the chosen command back, and the server restart runs
	// as a task. Without them the commands run to completion in the caller.
	Tasks *host.Tasks
	Loop  *host.Loop

	Metrics *metrics.Metrics
	Logger  *logging.Logger
}

// step acquires one part of a bundle.
type step struct {
	name string
	run  func(ctx context.Context, b *Bundle) error
}

// Manager owns the feature activation state. At most one bundle is active.
type Manager struct {
	mu         sync.Mutex
	cfg        Config
	active     *Bundle
	activating bool
	logger     *logging.Logger
}

// NewManager creates an inactive manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NullLogger
	}
	return &Manager{cfg: cfg, logger: logger.WithComponent("feature")}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return StateActive
	}
	return StateInactive
}

// Active returns the active bundle, or nil.
func (m *Manager) Active() *Bundle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Activate builds a new bundle: language commands, then status items, then
// the language server client. If any step fails, the handles acquired so
// far are released in reverse order and an *ActivationError is returned.
func (m *Manager) Activate(ctx context.Context) (*Bundle, error) {
	m.mu.Lock()
	if m.active != nil || m.activating {
		m.mu.Unlock()
		m.cfg.Metrics.RecordActivation(resultAlreadyActive)
		return nil, ErrAlreadyActive
	}
	m.activating = true
	m.mu.Unlock()

	b := newBundle()
	log := m.logger.WithField("bundle", b.ID())

	for _, s := range m.steps() {
		if err := ctx.Err(); err != nil {
			return nil, m.fail(b, s.name, err, log)
		}
		if err := s.run(ctx, b); err != nil {
			return nil, m.fail(b, s.name, err, log)
		}
	}

	m.mu.Lock()
	m.active = b
	m.activating = false
	m.mu.Unlock()

	m.cfg.Commands.SetContext(command.ContextServerRunning, true)
	m.cfg.Metrics.RecordActivation(resultSuccess)
	log.Info("activated with %d handles", b.Len())
	return b, nil
}

func (m *Manager) fail(b *Bundle, stepName string, err error, log *logging.Logger) error {
	if _, relErr := b.release(); relErr != nil {
		log.Warn("releasing partial bundle: %v", relErr)
	}

	m.mu.Lock()
	m.activating = false
	m.mu.Unlock()

	m.cfg.Metrics.RecordActivation(resultError)
	log.Error("activation failed at %s: %v", stepName, err)
	return &ActivationError{Step: stepName, Err: err}
}

// Deactivate releases every handle of b exactly once, newest first, and
// joins the release errors. Releasing an already released bundle or a nil
// bundle is a no-op.
func (m *Manager) Deactivate(b *Bundle) error {
	if b == nil {
		return nil
	}
	first, err := b.release()
	if !first {
		return nil
	}

	m.mu.Lock()
	wasActive := m.active == b
	if wasActive {
		m.active = nil
	}
	m.mu.Unlock()

	if wasActive {
		m.cfg.Commands.SetContext(command.ContextServerRunning, false)
	}
	m.cfg.Metrics.RecordDeactivation()

	log := m.logger.WithField("bundle", b.ID())
	if err != nil {
		log.Warn("deactivated with release errors: %v", err)
		return err
	}
	log.Info("deactivated")
	return nil
}

func (m *Manager) steps() []step {
	return []step{
		{name: "commands", run: m.registerCommands},
		{name: "status bar", run: m.setupStatusBar},
		{name: "version status", run: m.setupVersionStatus},
		{name: "client", run: m.startClient},
	}
}

func (m *Manager) registerCommands(_ context.Context, b *Bundle) error {
	mn := menu.New(m.cfg.Window, m.cfg.Commands)
	showMenu := mn.Handler()
	if m.detached() {
		showMenu = mn.Detached(m.cfg.Tasks, m.cfg.Loop, m.logger)
	}

	handlers := map[string]host.CommandHandler{
		command.Restart: m.background("restart server", func(ctx context.Context) error {
			return m.restartClient(ctx, b)
		}),
		command.OutputFocus: func(context.Context, ...any) (any, error) {
			m.cfg.Output.Show()
			return nil, nil
		},
		command.TraceFocus: func(context.Context, ...any) (any, error) {
			m.cfg.Trace.Show()
			return nil, nil
		},
		command.SelectVersion: func(context.Context, ...any) (any, error) {
			return nil, nil
		},
		command.ShowMenu: showMenu,
	}

	for _, id := range command.Language() {
		d, err := m.cfg.Commands.RegisterCommand(id, handlers[id])
		if err != nil {
			return err
		}
		b.hold(d)
	}
	return nil
}

func (m *Manager) detached() bool {
	return m.cfg.Tasks != nil && m.cfg.Loop != nil
}

// background wraps fn as a command handler that runs fn as a task when
// the manager is detached, and inline otherwise.
func (m *Manager) background(name string, fn func(ctx context.Context) error) host.CommandHandler {
	return func(ctx context.Context, _ ...any) (any, error) {
		if !m.detached() {
			return nil, fn(ctx)
		}
		m.cfg.Tasks.Go(name, fn)
		return nil, nil
	}
}

func (m *Manager) restartClient(ctx context.Context, b *Bundle) error {
	client := b.Client()
	if client == nil {
		return nil
	}
	err := client.Restart(ctx)
	m.showVersion(b, true)
	if err != nil {
		m.cfg.Output.AppendLine(fmt.Sprintf("restart failed: %v", err))
		return err
	}
	return nil
}

// showVersion puts the server version on the version item. A missing
// version leaves the item alone unless stale is set, in which case it
// reports the server as not running.
func (m *Manager) showVersion(b *Bundle, stale bool) {
	item := b.versionItem()
	if item == nil {
		return
	}
	v := ""
	if client := b.Client(); client != nil {
		v = strings.TrimSpace(client.Version())
	}
	switch {
	case v != "":
		item.SetText("tsgo " + v)
		item.SetTooltip("TypeScript Native Preview " + v)
	case stale:
		item.SetText("tsgo: not running")
		item.SetTooltip("TypeScript Native Preview server is not running")
	}
}

func (m *Manager) setupStatusBar(_ context.Context, b *Bundle) error {
	item := m.cfg.Window.CreateStatusItem(StatusItemID, host.AlignRight, 100)
	item.SetText("$(beaker) tsgo")
	item.SetTooltip("TypeScript Native Preview is running")
	item.SetCommand(command.ShowMenu)
	item.Show()
	b.hold(item)
	return nil
}

func (m *Manager) setupVersionStatus(_ context.Context, b *Bundle) error {
	item := m.cfg.Window.CreateStatusItem(VersionItemID, host.AlignRight, 99)
	item.SetText("tsgo: starting")
	item.SetCommand(command.SelectVersion)
	item.Show()
	b.setVersionItem(item)
	b.hold(item)
	return nil
}

func (m *Manager) startClient(ctx context.Context, b *Bundle) error {
	client := m.cfg.NewClient()
	handle, err := client.Initialize(ctx)
	if err != nil {
		return err
	}
	b.setClient(client)
	b.hold(handle)
	m.showVersion(b, false)
	return nil
}
