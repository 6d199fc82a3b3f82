package restart

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dshills/previewctl/internal/config/layer"
	"github.com/dshills/previewctl/internal/config/notify"
	"github.com/dshills/previewctl/internal/config/registry"
	"github.com/dshills/previewctl/internal/config/store"
	"github.com/dshills/previewctl/internal/host"
	"github.com/dshills/previewctl/internal/host/hosttest"
	"github.com/dshills/previewctl/internal/metrics"
)

type fakeTarget struct {
	mu          sync.Mutex
	activated   int
	deactivated int
}

func (f *fakeTarget) Activate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated++
	return nil
}

func (f *fakeTarget) Deactivate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivated++
	return nil
}

func (f *fakeTarget) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activated, f.deactivated
}

// manualScheduler records scheduled callbacks instead of running them.
type manualScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
}

func (s *manualScheduler) After(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.fns = append(s.fns, fn)
	return func() {}
}

func (s *manualScheduler) fire() {
	s.mu.Lock()
	fns := s.fns
	s.fns = nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type fixture struct {
	coord     *Coordinator
	config    *store.Store
	window    *hosttest.Window
	restarter *hosttest.Restarter
	target    *fakeTarget
	scheduler *manualScheduler
	tasks     *host.Tasks
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T, hostVersion string) *fixture {
	t.Helper()
	reg := registry.NewWithDefaults()
	s, err := store.New(reg, store.Paths{
		layer.ScopeGlobal: filepath.Join(t.TempDir(), "settings.json"),
	})
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		config:    s,
		window:    hosttest.NewWindow(),
		restarter: &hosttest.Restarter{},
		target:    &fakeTarget{},
		scheduler: &manualScheduler{},
		tasks:     host.NewTasks(nil),
		metrics:   metrics.New(nil),
	}
	f.coord = New(Config{
		Registry:      reg,
		Configuration: s,
		Window:        f.window,
		Restarter:     f.restarter,
		Target:        f.target,
		Environment:   host.Environment{Mode: host.ModeProduction, Version: hostVersion},
		Scheduler:     f.scheduler,
		Tasks:         f.tasks,
		Metrics:       f.metrics,
	})
	return f
}

func (f *fixture) setFlag(t *testing.T, v bool) notify.Change {
	t.Helper()
	var got notify.Change
	sub := f.config.OnDidChange(func(c notify.Change) { got = c })
	defer sub.Dispose()
	if err := f.config.Update(context.Background(), registry.UseTsgo, v, layer.ScopeGlobal); err != nil {
		t.Fatal(err)
	}
	return got
}

func TestDecision_String(t *testing.T) {
	if SafeInPlace.String() != "safe_in_place" || NeedsRestart.String() != "needs_restart" {
		t.Error("unexpected decision names")
	}
	if Decision(5).String() != "unknown" {
		t.Error("unknown decision name")
	}
}

func TestCoordinator_Decide(t *testing.T) {
	tests := []struct {
		name    string
		version string
		setting string
		want    Decision
	}{
		{"old host", "1.104.0", registry.UseTsgo, NeedsRestart},
		{"live host", "1.105.0", registry.UseTsgo, SafeInPlace},
		{"newer host", "v1.110.2", registry.UseTsgo, SafeInPlace},
		{"unparsable host", "insiders", registry.UseTsgo, NeedsRestart},
		{"plain setting", "1.104.0", registry.TraceServer, SafeInPlace},
		{"unknown setting", "1.104.0", "other.setting", SafeInPlace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.version)
			if got := f.coord.Decide(tt.setting); got != tt.want {
				t.Errorf("Decide(%s) = %v, want %v", tt.setting, got, tt.want)
			}
		})
	}
}

func TestCoordinator_IgnoresOtherSettings(t *testing.T) {
	f := newFixture(t, "1.104.0")

	_, handled := f.coord.OnConfigurationChanged(context.Background(), notify.Change{
		Path: registry.TraceServer,
	})
	if handled {
		t.Error("change to another setting was handled")
	}
	if len(f.scheduler.delays) != 0 {
		t.Error("prompt scheduled for unrelated change")
	}
	if a, d := f.target.counts(); a+d != 0 {
		t.Error("lifecycle called for unrelated change")
	}
}

func TestCoordinator_NeedsRestartAccepted(t *testing.T) {
	f := newFixture(t, "1.104.0")
	f.window.Answer = func(msg hosttest.Message) string { return PromptButton }

	change := f.setFlag(t, true)
	decision, handled := f.coord.OnConfigurationChanged(context.Background(), change)
	if !handled || decision != NeedsRestart {
		t.Fatalf("OnConfigurationChanged() = %v, %v, want NeedsRestart", decision, handled)
	}

	// Nothing happens until the delay elapses.
	if len(f.window.Messages()) != 0 {
		t.Error("prompt shown before the delay")
	}
	if len(f.scheduler.delays) != 1 || f.scheduler.delays[0] != DefaultDelay {
		t.Fatalf("scheduled delays = %v, want [%v]", f.scheduler.delays, DefaultDelay)
	}

	f.scheduler.fire()
	f.tasks.Wait()

	msgs := f.window.Messages()
	if len(msgs) != 1 || msgs[0].Text != PromptMessage {
		t.Fatalf("messages = %+v, want the restart prompt", msgs)
	}
	if len(msgs[0].Buttons) != 1 || msgs[0].Buttons[0] != PromptButton {
		t.Errorf("buttons = %v", msgs[0].Buttons)
	}
	if n := f.restarter.Requests(); n != 1 {
		t.Errorf("restart requests = %d, want 1", n)
	}
	if a, d := f.target.counts(); a+d != 0 {
		t.Errorf("lifecycle called on NeedsRestart: activate=%d deactivate=%d", a, d)
	}
	if v := testutil.ToFloat64(f.metrics.RestartPrompts.WithLabelValues(metrics.OutcomeAccepted)); v != 1 {
		t.Errorf("accepted prompts = %f, want 1", v)
	}
}

func TestCoordinator_NeedsRestartDeclined(t *testing.T) {
	f := newFixture(t, "1.104.0")

	change := f.setFlag(t, true)
	f.coord.OnConfigurationChanged(context.Background(), change)
	f.scheduler.fire()
	f.tasks.Wait()

	if n := f.restarter.Requests(); n != 0 {
		t.Errorf("restart requested %d times after decline", n)
	}
	if a, d := f.target.counts(); a+d != 0 {
		t.Error("lifecycle called after decline")
	}
	if v := testutil.ToFloat64(f.metrics.RestartPrompts.WithLabelValues(metrics.OutcomeDeclined)); v != 1 {
		t.Errorf("declined prompts = %f, want 1", v)
	}
}

func TestCoordinator_AcceptedRestartFails(t *testing.T) {
	f := newFixture(t, "1.104.0")
	f.restarter.Err = errors.New("restart refused")

	change := f.setFlag(t, true)
	f.window.Answer = func(hosttest.Message) string { return PromptButton }
	f.coord.OnConfigurationChanged(context.Background(), change)
	f.scheduler.fire()
	f.tasks.Wait()

	if n := f.restarter.Requests(); n != 1 {
		t.Errorf("restart requests = %d, want 1", n)
	}
	accepted := testutil.ToFloat64(f.metrics.RestartPrompts.WithLabelValues(metrics.OutcomeAccepted))
	failed := testutil.ToFloat64(f.metrics.RestartPrompts.WithLabelValues(metrics.OutcomeFailed))
	if accepted != 0 || failed != 1 {
		t.Errorf("prompt outcomes accepted=%f failed=%f, want 0/1", accepted, failed)
	}
}

func TestCoordinator_SafeInPlace(t *testing.T) {
	f := newFixture(t, "1.105.0")

	change := f.setFlag(t, true)
	decision, _ := f.coord.OnConfigurationChanged(context.Background(), change)
	if decision != SafeInPlace {
		t.Fatalf("decision = %v, want SafeInPlace", decision)
	}
	if a, d := f.target.counts(); a != 1 || d != 0 {
		t.Errorf("after enable: activate=%d deactivate=%d, want 1/0", a, d)
	}

	change = f.setFlag(t, false)
	f.coord.OnConfigurationChanged(context.Background(), change)
	if a, d := f.target.counts(); a != 1 || d != 1 {
		t.Errorf("after disable: activate=%d deactivate=%d, want 1/1", a, d)
	}

	if len(f.scheduler.delays) != 0 || len(f.window.Messages()) != 0 {
		t.Error("SafeInPlace change prompted")
	}
}

func TestCoordinator_ParentSectionChange(t *testing.T) {
	f := newFixture(t, "1.105.0")
	_ = f.setFlag(t, true)

	_, handled := f.coord.OnConfigurationChanged(context.Background(), notify.Change{
		Path: "typescript.experimental.useTsgo",
	})
	if !handled {
		t.Error("flag change not handled")
	}
	if a, _ := f.target.counts(); a != 1 {
		t.Errorf("activate = %d, want 1", a)
	}
}

func TestCoordinator_WithLoop(t *testing.T) {
	reg := registry.NewWithDefaults()
	s, err := store.New(reg, store.Paths{layer.ScopeGlobal: filepath.Join(t.TempDir(), "settings.json")})
	if err != nil {
		t.Fatal(err)
	}

	loop := host.NewLoop(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	window := hosttest.NewWindow()
	window.Answer = func(hosttest.Message) string { return PromptButton }
	restarter := &hosttest.Restarter{Requested: make(chan struct{}, 1)}
	tasks := host.NewTasks(nil)

	coord := New(Config{
		Registry:      reg,
		Configuration: s,
		Window:        window,
		Restarter:     restarter,
		Target:        &fakeTarget{},
		Environment:   host.Environment{Version: "1.100.0"},
		Scheduler:     loop,
		Tasks:         tasks,
		Delay:         20 * time.Millisecond,
	})

	start := time.Now()
	coord.OnConfigurationChanged(ctx, notify.Change{Path: registry.UseTsgo, NewValue: true})

	select {
	case <-restarter.Requested:
		if time.Since(start) < 20*time.Millisecond {
			t.Error("restart prompt ran before the delay")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("restart never requested")
	}
	tasks.Wait()
}

func TestCoordinator_RestartIfNeeded(t *testing.T) {
	f := newFixture(t, "1.104.0")
	requested, err := f.coord.RestartIfNeeded(context.Background())
	if err != nil || !requested {
		t.Errorf("RestartIfNeeded() = %v, %v, want true", requested, err)
	}
	if f.restarter.Requests() != 1 {
		t.Errorf("restart requests = %d", f.restarter.Requests())
	}
	if len(f.window.Messages()) != 0 {
		t.Error("RestartIfNeeded prompted")
	}

	f = newFixture(t, "1.105.0")
	requested, err = f.coord.RestartIfNeeded(context.Background())
	if err != nil || requested {
		t.Errorf("RestartIfNeeded() on live host = %v, %v, want false", requested, err)
	}
}
