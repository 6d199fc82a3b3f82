// Package extension is the add-on entry point. A Controller owns the
// activation state for the lifetime of one host session: enablement
// commands, output channels, the configuration subscription, and the
// active feature bundle.
package extension

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/previewctl/internal/command"
	"github.com/dshills/previewctl/internal/config/notify"
	"github.com/dshills/previewctl/internal/config/registry"
	"github.com/dshills/previewctl/internal/config/scope"
	"github.com/dshills/previewctl/internal/feature"
	"github.com/dshills/previewctl/internal/host"
	"github.com/dshills/previewctl/internal/logging"
	"github.com/dshills/previewctl/internal/metrics"
	"github.com/dshills/previewctl/internal/restart"
)

// User facing text.
const (
	DevelopmentNotice = `TypeScript Native Preview is running in development mode. Ignoring "typescript.experimental.useTsgo": false.`
	DisabledNotice    = "TypeScript Native Preview is disabled. Select 'Enable TypeScript Native Preview (Experimental)' in the command palette to enable it."
)

// Controller errors.
var (
	ErrAlreadyStarted = errors.New("controller already activated")
	ErrDisposed       = errors.New("controller disposed")
)

// Config holds the host collaborators of a Controller.
type Config struct {
	Configuration host.Configuration
	Commands      host.Commands
	Window        host.Window
	Restarter     host.Restarter
	Environment   host.Environment
	Registry      *registry.Registry

	// Loop serializes command and configuration handling.
	Loop *host.Loop

	// Tasks runs the detached enable/disable writes and restart prompts.
	Tasks *host.Tasks

	// NewClient creates the language server client of one activation.
	NewClient func(output, trace host.OutputChannel) host.Client

	// PromptDelay before the restart prompt.
	PromptDelay time.Duration

	Metrics *metrics.Metrics
	Logger  *logging.Logger
}

// Controller is the add-on instance.
type Controller struct {
	cfg    Config
	logger *logging.Logger

	resolver *scope.Resolver

	mu            sync.Mutex
	ctx           context.Context
	features      *feature.Manager
	coordinator   *restart.Coordinator
	output        host.OutputChannel
	trace         host.OutputChannel
	subscriptions host.Disposables
	bundle        *feature.Bundle
	wantActive    bool
	activating    bool
	started       bool
	disposed      bool
}

// New creates an inactive controller.
func New(cfg Config) *Controller {
	if cfg.Registry == nil {
		cfg.Registry = registry.NewWithDefaults()
	}
	if cfg.Tasks == nil {
		cfg.Tasks = host.NewTasks(cfg.Logger)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NullLogger
	}
	return &Controller{
		cfg:      cfg,
		logger:   logger.WithComponent("extension"),
		resolver: scope.NewResolver(cfg.Configuration),
	}
}

// Activate runs the add-on startup. It returns the feature activation
// error, if any, after the enablement commands and channels are in place.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.ctx = context.WithoutCancel(ctx)
	c.mu.Unlock()

	c.cfg.Commands.SetContext(command.ContextServerRunning, false)

	if err := c.registerEnablementCommands(); err != nil {
		return err
	}

	output := c.cfg.Window.CreateOutputChannel(command.OutputChannel)
	trace := c.cfg.Window.CreateOutputChannel(command.TraceOutputChannel)
	_ = c.subscriptions.Add(output, trace)

	features := feature.NewManager(feature.Config{
		Commands: c.cfg.Commands,
		Window:   c.cfg.Window,
		Output:   output,
		Trace:    trace,
		NewClient: func() host.Client {
			return c.cfg.NewClient(output, trace)
		},
		Tasks:   c.cfg.Tasks,
		Loop:    c.cfg.Loop,
		Metrics: c.cfg.Metrics,
		Logger:  c.cfg.Logger,
	})

	coordinator := restart.New(restart.Config{
		Registry:      c.cfg.Registry,
		Configuration: c.cfg.Configuration,
		Window:        c.cfg.Window,
		Restarter:     c.cfg.Restarter,
		Target:        target{c},
		Environment:   c.cfg.Environment,
		Scheduler:     c.cfg.Loop,
		Tasks:         c.cfg.Tasks,
		Delay:         c.cfg.PromptDelay,
		Metrics:       c.cfg.Metrics,
		Logger:        c.cfg.Logger,
	})

	c.mu.Lock()
	c.output, c.trace = output, trace
	c.features, c.coordinator = features, coordinator
	c.mu.Unlock()

	_ = c.subscriptions.Add(c.cfg.Configuration.OnDidChange(c.onConfigurationChanged))

	return c.applyStartupPolicy(ctx)
}

// applyStartupPolicy activates the feature set when the flag is on. In
// development mode the feature set always runs; an explicit false is
// overridden with a notice. Otherwise a disabled flag leaves the feature
// set off and says so in the server log.
func (c *Controller) applyStartupPolicy(ctx context.Context) error {
	flag := c.Coordinator().Setting()
	v, _ := c.cfg.Configuration.Get(flag)

	if enabled, _ := v.(bool); !enabled {
		if c.cfg.Environment.Mode != host.ModeDevelopment {
			c.Output().AppendLine(DisabledNotice)
			c.logger.Info("disabled by %s", flag)
			return nil
		}
		if v == false {
			if _, err := c.cfg.Window.ShowInformationMessage(ctx, DevelopmentNotice); err != nil {
				c.logger.Warn("development notice: %v", err)
			}
		}
	}
	return c.activateFeatures(ctx)
}

func (c *Controller) registerEnablementCommands() error {
	commands := []struct {
		id     string
		enable bool
	}{
		{command.Enable, true},
		{command.Disable, false},
	}
	for _, cmd := range commands {
		d, err := c.cfg.Commands.RegisterCommand(cmd.id, c.updateFlag(cmd.enable))
		if err != nil {
			return fmt.Errorf("register %s: %w", cmd.id, err)
		}
		_ = c.subscriptions.Add(d)
	}
	return nil
}

// updateFlag writes the flag at the scope that already holds it, then
// restarts the host if the flag needs it. The write runs detached: the
// command returns at once and the outcome is only reported to the user.
func (c *Controller) updateFlag(enable bool) host.CommandHandler {
	return func(context.Context, ...any) (any, error) {
		coordinator := c.Coordinator()
		flag := coordinator.Setting()
		target := c.resolver.ResolveWriteScope(flag)

		c.cfg.Tasks.Go("update "+flag, func(ctx context.Context) error {
			err := c.cfg.Configuration.Update(ctx, flag, enable, target)
			c.cfg.Metrics.RecordConfigWrite(target.String(), err)
			if err != nil {
				msg := fmt.Sprintf("Failed to update %s: %v", flag, err)
				if _, showErr := c.cfg.Window.ShowErrorMessage(ctx, msg); showErr != nil {
					c.logger.Warn("showing write failure: %v", showErr)
				}
				return err
			}

			if _, err := coordinator.RestartIfNeeded(ctx); err != nil {
				c.logger.Warn("restart request failed: %v", err)
			}
			return nil
		})
		return nil, nil
	}
}

// onConfigurationChanged may be called from any goroutine; handling is
// moved onto the event loop.
func (c *Controller) onConfigurationChanged(change notify.Change) {
	coordinator := c.Coordinator()
	if !change.Affects(coordinator.Setting()) {
		return
	}
	posted := c.cfg.Loop.Post(func() {
		c.mu.Lock()
		ctx, disposed := c.ctx, c.disposed
		c.mu.Unlock()
		if disposed {
			return
		}
		coordinator.OnConfigurationChanged(ctx, change)
	})
	if !posted {
		c.logger.Debug("event loop stopped, dropping change to %s", change.Path)
	}
}

// activateFeatures runs the startup activation to completion and returns
// its error.
func (c *Controller) activateFeatures(ctx context.Context) error {
	c.mu.Lock()
	c.wantActive = true
	features := c.features
	c.mu.Unlock()
	return c.commit(features.Activate(ctx))
}

// startFeatures activates the feature set from a detached task, so the
// event loop keeps running while the language server starts. Requests
// made while an activation is in flight only update the wanted state.
func (c *Controller) startFeatures() {
	c.mu.Lock()
	c.wantActive = true
	if c.disposed || c.bundle != nil || c.activating {
		c.mu.Unlock()
		return
	}
	c.activating = true
	features := c.features
	c.mu.Unlock()

	c.cfg.Tasks.Go("activate features", func(ctx context.Context) error {
		err := c.commit(features.Activate(ctx))
		if err != nil {
			c.Output().AppendLine("TypeScript Native Preview failed to start: " + err.Error())
		}
		return err
	})
}

// commit keeps a new bundle if the feature set is still wanted and
// releases it otherwise.
func (c *Controller) commit(b *feature.Bundle, err error) error {
	c.mu.Lock()
	c.activating = false
	keep := err == nil && c.wantActive && !c.disposed
	if keep {
		c.bundle = b
	}
	features := c.features
	c.mu.Unlock()

	switch {
	case errors.Is(err, feature.ErrAlreadyActive):
		c.logger.Debug("feature set already active")
		return nil
	case err != nil:
		return err
	case !keep:
		c.logger.Info("feature set disabled during activation, releasing %s", b.ID())
		return features.Deactivate(b)
	}
	return nil
}

func (c *Controller) deactivateFeatures() error {
	c.mu.Lock()
	b := c.bundle
	c.bundle = nil
	c.wantActive = false
	features := c.features
	c.mu.Unlock()
	if features == nil {
		return nil
	}
	return features.Deactivate(b)
}

// State returns the feature state.
func (c *Controller) State() feature.State {
	c.mu.Lock()
	features := c.features
	c.mu.Unlock()
	if features == nil {
		return feature.StateInactive
	}
	return features.State()
}

// Activating reports whether an in-place activation is in flight.
func (c *Controller) Activating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activating
}

// Bundle returns the active feature bundle, or nil.
func (c *Controller) Bundle() *feature.Bundle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bundle
}

// Coordinator returns the restart coordinator, or nil before Activate.
func (c *Controller) Coordinator() *restart.Coordinator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coordinator
}

// Resolver returns the write scope resolver.
func (c *Controller) Resolver() *scope.Resolver {
	return c.resolver
}

// Output returns the server log channel, or nil before Activate.
func (c *Controller) Output() host.OutputChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output
}

// Trace returns the LSP message channel, or nil before Activate.
func (c *Controller) Trace() host.OutputChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trace
}

// Dispose releases the feature bundle, the enablement commands, the
// configuration subscription and the output channels, then waits for
// detached tasks. It is safe to call more than once.
func (c *Controller) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	c.mu.Unlock()

	var errs []error
	if err := c.deactivateFeatures(); err != nil {
		errs = append(errs, err)
	}
	if err := c.subscriptions.Dispose(); err != nil {
		errs = append(errs, err)
	}
	// An activation still in flight sees disposed and releases its bundle.
	c.cfg.Tasks.Wait()
	return errors.Join(errs...)
}

// target adapts the controller to the restart coordinator.
type target struct{ c *Controller }

func (t target) Activate(context.Context) error {
	t.c.startFeatures()
	return nil
}

func (t target) Deactivate(context.Context) error {
	return t.c.deactivateFeatures()
}
