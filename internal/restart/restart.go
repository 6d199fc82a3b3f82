// Package restart decides how a change of the capability flag is applied:
// in place, by starting or stopping the feature set, or by asking the host
// to restart its extension subsystem.
package restart

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/previewctl/internal/config/notify"
	"github.com/dshills/previewctl/internal/config/registry"
	"github.com/dshills/previewctl/internal/host"
	"github.com/dshills/previewctl/internal/logging"
	"github.com/dshills/previewctl/internal/metrics"
)

// Prompt text and button.
const (
	PromptMessage = "TypeScript Native Preview setting has changed. Restart extensions to apply changes."
	PromptButton  = "Restart Extensions"
)

// DefaultDelay is the wait before the restart prompt.
const DefaultDelay = 100 * time.Millisecond

// Decision is how a flag change is applied.
type Decision int

const (
	// SafeInPlace - the feature set is started or stopped locally.
	SafeInPlace Decision = iota

	// NeedsRestart - the host's extension subsystem must restart.
	NeedsRestart
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case SafeInPlace:
		return "safe_in_place"
	case NeedsRestart:
		return "needs_restart"
	default:
		return "unknown"
	}
}

// Target is started or stopped on in-place changes.
type Target interface {
	Activate(ctx context.Context) error
	Deactivate(ctx context.Context) error
}

// Scheduler runs fn after a delay on the host event loop.
type Scheduler interface {
	After(d time.Duration, fn func()) (cancel func())
}

// Runner runs detached work.
type Runner interface {
	Go(name string, fn func(ctx context.Context) error)
}

// Config holds the coordinator collaborators.
type Config struct {
	// Setting is the capability flag. Defaults to registry.UseTsgo.
	Setting string

	Registry      *registry.Registry
	Configuration host.Configuration
	Window        host.Window
	Restarter     host.Restarter
	Target        Target
	Environment   host.Environment
	Scheduler     Scheduler
	Tasks         Runner

	// Delay before the restart prompt. Defaults to DefaultDelay.
	Delay time.Duration

	Metrics *metrics.Metrics
	Logger  *logging.Logger
}

// Coordinator applies capability flag changes.
type Coordinator struct {
	cfg    Config
	logger *logging.Logger
}

// New creates a coordinator.
func New(cfg Config) *Coordinator {
	if cfg.Setting == "" {
		cfg.Setting = registry.UseTsgo
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NullLogger
	}
	return &Coordinator{cfg: cfg, logger: logger.WithComponent("restart")}
}

// Setting returns the capability flag path.
func (c *Coordinator) Setting() string {
	return c.cfg.Setting
}

// Decide reports how a change to settingID is applied on this host. It
// depends only on setting metadata and the host version, never on the new
// value. Unknown settings are SafeInPlace.
func (c *Coordinator) Decide(settingID string) Decision {
	s := c.cfg.Registry.Get(settingID)
	if s == nil {
		return SafeInPlace
	}
	if s.NeedsRestart(c.cfg.Environment.Version) {
		return NeedsRestart
	}
	return SafeInPlace
}

// OnConfigurationChanged applies change. It reports false, doing nothing,
// when change does not affect the capability flag.
//
// On NeedsRestart a prompt is scheduled after the delay and the host is
// asked to restart only if the user accepts; no lifecycle call is made.
// On SafeInPlace the effective flag is read and exactly one of Activate or
// Deactivate is called on the target.
func (c *Coordinator) OnConfigurationChanged(ctx context.Context, change notify.Change) (Decision, bool) {
	if !change.Affects(c.cfg.Setting) {
		return SafeInPlace, false
	}

	decision := c.Decide(c.cfg.Setting)
	c.cfg.Metrics.RecordDecision(decision.String())
	c.logger.Debug("%s changed at %s scope: %s", change.Path, change.Scope, decision)

	switch decision {
	case NeedsRestart:
		c.cfg.Scheduler.After(c.cfg.Delay, c.prompt)
	case SafeInPlace:
		c.applyInPlace(ctx)
	}
	return decision, true
}

func (c *Coordinator) applyInPlace(ctx context.Context) {
	v, _ := c.cfg.Configuration.Get(c.cfg.Setting)
	enabled, _ := v.(bool)

	var err error
	if enabled {
		err = c.cfg.Target.Activate(ctx)
	} else {
		err = c.cfg.Target.Deactivate(ctx)
	}
	if err != nil {
		c.logger.Error("applying %s=%v: %v", c.cfg.Setting, enabled, err)
	}
}

// prompt runs on the event loop once the delay elapses. The question
// itself blocks on the user, so it is asked from a detached task.
func (c *Coordinator) prompt() {
	c.cfg.Tasks.Go("restart prompt", func(ctx context.Context) error {
		choice, err := c.cfg.Window.ShowInformationMessage(ctx, PromptMessage, PromptButton)
		if err != nil {
			c.cfg.Metrics.RecordPrompt(metrics.OutcomeFailed)
			return err
		}
		if choice != PromptButton {
			c.cfg.Metrics.RecordPrompt(metrics.OutcomeDeclined)
			c.logger.Info("restart declined")
			return nil
		}

		if err := c.cfg.Restarter.RequestRestart(ctx); err != nil {
			c.cfg.Metrics.RecordPrompt(metrics.OutcomeFailed)
			return err
		}
		c.cfg.Metrics.RecordPrompt(metrics.OutcomeAccepted)
		return nil
	})
}

// RestartIfNeeded asks the host to restart, without prompting, when the
// capability flag needs a restart. It reports whether a restart was
// requested.
func (c *Coordinator) RestartIfNeeded(ctx context.Context) (bool, error) {
	if c.Decide(c.cfg.Setting) != NeedsRestart {
		return false, nil
	}
	if c.cfg.Restarter == nil {
		return false, errors.New("no restarter configured")
	}
	return true, c.cfg.Restarter.RequestRestart(ctx)
}
