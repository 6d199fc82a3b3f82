// Package app hosts the controller in a terminal process. It wires the
// settings store, the command registry, the event loop and the terminal
// window together, then runs a command prompt until quit or until the
// extension host restart command rebuilds everything.
package app

import (
	"context"
	"io"
	"net/url"
	"path/filepath"
	"sync/atomic"

	"github.com/dshills/previewctl/internal/config"
	"github.com/dshills/previewctl/internal/config/registry"
	"github.com/dshills/previewctl/internal/config/store"
	"github.com/dshills/previewctl/internal/config/watcher"
	"github.com/dshills/previewctl/internal/dispatcher"
	"github.com/dshills/previewctl/internal/extension"
	"github.com/dshills/previewctl/internal/host"
	"github.com/dshills/previewctl/internal/logging"
	"github.com/dshills/previewctl/internal/lsp"
	"github.com/dshills/previewctl/internal/metrics"
	"github.com/dshills/previewctl/internal/ui"
)

// Options configures an Application.
type Options struct {
	Config config.Options

	// Input delivers command lines. A nil channel runs without a prompt.
	Input <-chan string

	// Out receives window output. Defaults to os.Stdout.
	Out io.Writer

	// Version is reported to the language server as the client version.
	Version string

	// Metrics is shared across restarts; nil creates private collectors.
	Metrics *metrics.Metrics
	Logger  *logging.Logger

	// NewClient replaces the language server client.
	NewClient func(output, trace host.OutputChannel) host.Client
}

// Application is one host session.
type Application struct {
	opts    Options
	logger  *logging.Logger
	metrics *metrics.Metrics

	registry   *registry.Registry
	store      *store.Store
	watcher    *watcher.Watcher
	commands   *dispatcher.Registry
	loop       *host.Loop
	tasks      *host.Tasks
	window     *ui.Window
	controller *extension.Controller

	initOrder []string
	restart   chan struct{}
	loopDone  chan struct{}
	running   atomic.Bool
	stopped   atomic.Bool
}

// New creates an application. Nothing runs until Run.
func New(opts Options) (*Application, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NullLogger
	}
	a := &Application{
		opts:     opts,
		logger:   logger.WithComponent("app"),
		metrics:  opts.Metrics,
		restart:  make(chan struct{}, 1),
		loopDone: make(chan struct{}),
	}
	if a.metrics == nil {
		a.metrics = metrics.New(nil)
	}

	if err := newBootstrapper(a).bootstrap(); err != nil {
		return nil, err
	}
	return a, nil
}

// Run activates the controller and processes input until the input ends,
// quit is entered, ctx is cancelled or a host restart is requested. The
// last case returns ErrRestartRequested.
func (a *Application) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.Shutdown()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer close(a.loopDone)
		_ = a.loop.Run(ctx)
	}()

	var activateErr error
	if err := a.loop.Call(ctx, func() { activateErr = a.controller.Activate(ctx) }); err != nil {
		return err
	}
	if activateErr != nil {
		a.logger.Error("activation failed: %v", activateErr)
		a.showError(ctx, "TypeScript Native Preview failed to start: "+activateErr.Error())
	}

	return a.serve(ctx)
}

// Shutdown stops the session in reverse order of construction. It is safe
// to call more than once.
func (a *Application) Shutdown() {
	if a.stopped.Swap(true) {
		return
	}

	a.loop.Stop()
	// Closing the window dismisses prompts that loop callbacks and
	// detached tasks wait on.
	if err := a.window.Close(); err != nil {
		a.logger.Warn("close window: %v", err)
	}
	if a.running.Load() {
		<-a.loopDone
	}

	if err := a.controller.Dispose(); err != nil {
		a.logger.Warn("dispose controller: %v", err)
	}
	newBootstrapper(a).cleanupAll()
}

// requestRestart is the host restart command.
func (a *Application) requestRestart(context.Context, ...any) (any, error) {
	a.logger.Info("extension host restart requested")
	select {
	case a.restart <- struct{}{}:
	default:
	}
	return nil, nil
}

// Controller returns the add-on controller.
func (a *Application) Controller() *extension.Controller { return a.controller }

// Commands returns the command registry.
func (a *Application) Commands() *dispatcher.Registry { return a.commands }

// Store returns the settings store.
func (a *Application) Store() *store.Store { return a.store }

// Window returns the terminal window.
func (a *Application) Window() *ui.Window { return a.window }

// Loop returns the event loop.
func (a *Application) Loop() *host.Loop { return a.loop }

func (a *Application) environment() host.Environment {
	return host.Environment{
		Mode:    parseMode(a.opts.Config.Host.Mode),
		Version: a.opts.Config.Host.Version,
	}
}

func parseMode(s string) host.Mode {
	switch s {
	case "development":
		return host.ModeDevelopment
	case "test":
		return host.ModeTest
	default:
		return host.ModeProduction
	}
}

// newClient builds the language server client of one activation. The
// server path and trace settings are read at activation time.
func (a *Application) newClient(output, trace host.OutputChannel) host.Client {
	if a.opts.NewClient != nil {
		return a.opts.NewClient(output, trace)
	}

	srv := a.opts.Config.Server
	command := srv.Command
	if v, ok := a.store.Get(registry.ServerPath); ok {
		if p, _ := v.(string); p != "" {
			command = p
		}
	}
	if v, _ := a.store.Get(registry.TraceServer); v == "off" {
		trace = nil
	}

	ws := a.opts.Config.Settings.Workspace
	return lsp.NewClient(lsp.Options{
		Command:         command,
		Args:            srv.Args,
		Dir:             ws,
		RootURI:         fileURI(ws),
		Output:          output,
		Trace:           trace,
		ShutdownTimeout: srv.ShutdownTimeout.Std(),
		ClientVersion:   a.opts.Version,
		Logger:          a.opts.Logger,
	})
}

func fileURI(dir string) string {
	if dir == "" {
		return ""
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dir)}).String()
}
