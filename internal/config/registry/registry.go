package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Well-known setting paths.
const (
	// UseTsgo is the capability flag toggling the native preview.
	UseTsgo = "typescript.experimental.useTsgo"

	// TraceServer controls LSP message tracing.
	TraceServer = "typescript.native-preview.trace.server"

	// ServerPath overrides the language server executable.
	ServerPath = "typescript.native-preview.tsdk"
)

// Registry errors.
var (
	// ErrSettingAlreadyRegistered is returned when registering a duplicate path.
	ErrSettingAlreadyRegistered = errors.New("setting already registered")

	// ErrUnknownSetting is returned when validating an unregistered path.
	ErrUnknownSetting = errors.New("unknown setting")
)

// Registry maintains all known setting definitions.
type Registry struct {
	mu       sync.RWMutex
	settings map[string]*Setting
}

// New creates an empty settings registry.
func New() *Registry {
	return &Registry{settings: make(map[string]*Setting)}
}

// NewWithDefaults creates a registry holding the add-on's settings.
func NewWithDefaults() *Registry {
	r := New()
	r.RegisterDefaults()
	return r
}

// Register adds a setting definition to the registry.
func (r *Registry) Register(setting Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.settings[setting.Path]; exists {
		return fmt.Errorf("%w: %s", ErrSettingAlreadyRegistered, setting.Path)
	}
	s := setting
	r.settings[setting.Path] = &s
	return nil
}

// MustRegister registers a setting and panics on error.
func (r *Registry) MustRegister(setting Setting) {
	if err := r.Register(setting); err != nil {
		panic(err)
	}
}

// Get returns the setting registered at path, or nil.
func (r *Registry) Get(path string) *Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.settings[path]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// Has checks whether a setting is registered.
func (r *Registry) Has(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.settings[path]
	return ok
}

// All returns every setting sorted by path.
func (r *Registry) All() []*Setting {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Setting, 0, len(r.settings))
	for _, s := range r.settings {
		cp := *s
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result
}

// Defaults returns the default values keyed by dotted path.
func (r *Registry) Defaults() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]any, len(r.settings))
	for path, s := range r.settings {
		if s.Default != nil {
			result[path] = s.Default
		}
	}
	return result
}

// Validate checks value against the setting registered at path.
func (r *Registry) Validate(path string, value any) error {
	s := r.Get(path)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, path)
	}
	if err := s.Validate(value); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// RegisterDefaults registers the settings contributed by the add-on.
func (r *Registry) RegisterDefaults() {
	r.MustRegister(Setting{
		Path:            UseTsgo,
		Type:            TypeBool,
		Default:         false,
		Description:     "Use the native preview language server instead of the built-in TypeScript service.",
		RequiresRestart: true,
		LiveSince:       "v1.105.0",
	})

	r.MustRegister(Setting{
		Path:        TraceServer,
		Type:        TypeEnum,
		Default:     "off",
		Description: "Traces the communication between the editor and the language server.",
		Enum:        []string{"off", "messages", "verbose"},
	})

	r.MustRegister(Setting{
		Path:        ServerPath,
		Type:        TypeString,
		Default:     "",
		Description: "Path to the native preview language server executable.",
	})
}
