// Package dispatcher is the host command registry: command ids bound to
// handlers, plus the context keys commands publish for when-clauses.
package dispatcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/dshills/previewctl/internal/host"
	"github.com/dshills/previewctl/internal/logging"
)

// Observer is told about every command execution.
type Observer func(id string, took time.Duration, err error)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver sets the execution observer.
func WithObserver(obs Observer) Option {
	return func(r *Registry) {
		r.observer = obs
	}
}

type registration struct {
	token   uint64
	handler host.CommandHandler
}

// Registry maps command ids to a single handler each. It implements
// host.Commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]registration
	contexts map[string]any
	next     uint64

	logger   *logging.Logger
	observer Observer
}

// NewRegistry creates an empty command registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		commands: make(map[string]registration),
		contexts: make(map[string]any),
		logger:   logging.NullLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("commands")
	return r
}

// RegisterCommand binds id to handler. The returned handle unregisters it;
// disposing it again, or after the id was re-registered, has no effect.
func (r *Registry) RegisterCommand(id string, handler host.CommandHandler) (host.Disposable, error) {
	if id == "" || handler == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrCommandExists, id)
	}
	r.next++
	token := r.next
	r.commands[id] = registration{token: token, handler: handler}
	r.logger.Debug("registered %s", id)

	return host.Once(host.DisposableFunc(func() error {
		r.unregister(id, token)
		return nil
	})), nil
}

func (r *Registry) unregister(id string, token uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.commands[id]; ok && reg.token == token {
		delete(r.commands, id)
		r.logger.Debug("unregistered %s", id)
	}
}

// ExecuteCommand runs the handler bound to id on the calling goroutine.
// A panicking handler is reported as ErrPanic.
func (r *Registry) ExecuteCommand(ctx context.Context, id string, args ...any) (result any, err error) {
	r.mu.RLock()
	reg, ok := r.commands[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, id)
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("command %s panicked: %v\n%s", id, p, debug.Stack())
			result, err = nil, fmt.Errorf("%w: %s: %v", ErrPanic, id, p)
		}
		if r.observer != nil {
			r.observer(id, time.Since(start), err)
		}
	}()

	return reg.handler(ctx, args...)
}

// SetContext stores a context key value.
func (r *Registry) SetContext(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[key] = value
}

// Context returns a context key value.
func (r *Registry) Context(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.contexts[key]
	return v, ok
}

// Has returns true if a handler is registered for id.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[id]
	return ok
}

// List returns all registered command ids.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.commands))
	for id := range r.commands {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}
