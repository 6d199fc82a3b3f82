package app

import (
	"errors"

	"github.com/dshills/previewctl/internal/command"
	"github.com/dshills/previewctl/internal/config/registry"
	"github.com/dshills/previewctl/internal/config/store"
	"github.com/dshills/previewctl/internal/config/watcher"
	"github.com/dshills/previewctl/internal/dispatcher"
	"github.com/dshills/previewctl/internal/extension"
	"github.com/dshills/previewctl/internal/host"
	"github.com/dshills/previewctl/internal/ui"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app *Application
}

func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{app: app}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initStore,
		b.initWatcher,
		b.initCommands,
		b.initRuntime,
		b.initWindow,
		b.initController,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanupAll()
			return err
		}
	}
	return nil
}

func (b *bootstrapper) initStore() error {
	a := b.app
	a.registry = registry.NewWithDefaults()

	s, err := store.New(a.registry, store.Paths(a.opts.Config.SettingsFiles()), store.WithLogger(a.opts.Logger))
	if err != nil {
		return &InitError{Component: "settings store", Err: err}
	}
	a.store = s
	a.initOrder = append(a.initOrder, "store")
	return nil
}

func (b *bootstrapper) initWatcher() error {
	a := b.app
	if !a.opts.Config.Settings.Watch {
		return nil
	}

	w, err := watcher.New(watcher.WithErrorHandler(func(err error) {
		a.logger.Warn("settings watcher: %v", err)
	}))
	if err != nil {
		return &InitError{Component: "settings watcher", Err: err}
	}
	a.watcher = w
	a.initOrder = append(a.initOrder, "watcher")

	if err := a.store.Watch(w); err != nil {
		return &InitError{Component: "settings watcher", Err: err}
	}
	return nil
}

func (b *bootstrapper) initCommands() error {
	a := b.app
	a.commands = dispatcher.NewRegistry(
		dispatcher.WithLogger(a.opts.Logger),
		dispatcher.WithObserver(a.metrics.RecordCommand),
	)
	if _, err := a.commands.RegisterCommand(command.RestartExtensionHost, a.requestRestart); err != nil {
		return &InitError{Component: "commands", Err: err}
	}
	a.initOrder = append(a.initOrder, "commands")
	return nil
}

func (b *bootstrapper) initRuntime() error {
	a := b.app
	a.loop = host.NewLoop(0, a.opts.Logger)
	a.tasks = host.NewTasks(a.opts.Logger)
	a.initOrder = append(a.initOrder, "runtime")
	return nil
}

func (b *bootstrapper) initWindow() error {
	a := b.app
	a.window = ui.New(ui.Options{
		Out:    a.opts.Out,
		LogDir: a.opts.Config.Log.Channels,
		Logger: a.opts.Logger,
	})
	a.initOrder = append(a.initOrder, "window")
	return nil
}

func (b *bootstrapper) initController() error {
	a := b.app
	a.controller = extension.New(extension.Config{
		Configuration: a.store,
		Commands:      a.commands,
		Window:        a.window,
		Restarter:     host.CommandRestarter{Commands: a.commands, CommandID: command.RestartExtensionHost},
		Environment:   a.environment(),
		Registry:      a.registry,
		Loop:          a.loop,
		Tasks:         a.tasks,
		NewClient:     a.newClient,
		PromptDelay:   a.opts.Config.Restart.PromptDelay.Std(),
		Metrics:       a.metrics,
		Logger:        a.opts.Logger,
	})
	a.initOrder = append(a.initOrder, "controller")
	return nil
}

// cleanupAll releases initialized components in reverse order.
func (b *bootstrapper) cleanupAll() {
	a := b.app
	var errs []error
	for i := len(a.initOrder) - 1; i >= 0; i-- {
		switch a.initOrder[i] {
		case "window":
			errs = append(errs, a.window.Close())
		case "runtime":
			a.loop.Stop()
		case "watcher":
			errs = append(errs, a.watcher.Close())
		case "store":
			a.store.Close()
		}
	}
	a.initOrder = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("cleanup: %v", err)
	}
}
